package perrors

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"github.com/ternarybob/arbor"
)

// Service identifies which external dependency a circuit breaker guards
// (spec.md §4.1 circuit_breakers).
type Service string

const (
	ServiceGenerator      Service = "generator"
	ServiceURLValidation  Service = "url_validation"
	ServiceImageGeneration Service = "image_generation"
	ServiceEmbedding      Service = "embedding"
	ServiceWebhook        Service = "webhook"
)

type breakerSettings struct {
	failureThreshold uint32
	timeout          time.Duration
}

var serviceSettings = map[Service]breakerSettings{
	ServiceGenerator:       {failureThreshold: 5, timeout: 30 * time.Second},
	ServiceImageGeneration: {failureThreshold: 3, timeout: 30 * time.Second},
	ServiceURLValidation:   {failureThreshold: 10, timeout: 15 * time.Second},
	ServiceEmbedding:       {failureThreshold: 5, timeout: 30 * time.Second},
	ServiceWebhook:         {failureThreshold: 5, timeout: 20 * time.Second},
}

// BreakerRegistry lazily builds and caches one gobreaker.CircuitBreaker
// per Service, so every caller for a given service shares open/closed
// state (spec.md §4.1).
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[Service]*gobreaker.CircuitBreaker
	logger   arbor.ILogger
}

// NewBreakerRegistry creates an empty registry; breakers are built on
// first use.
func NewBreakerRegistry(logger arbor.ILogger) *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[Service]*gobreaker.CircuitBreaker),
		logger:   logger,
	}
}

func (r *BreakerRegistry) get(service Service) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[service]; ok {
		return cb
	}

	settings, ok := serviceSettings[service]
	if !ok {
		settings = breakerSettings{failureThreshold: 5, timeout: 30 * time.Second}
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(service),
		MaxRequests: 1,
		Interval:    0,
		Timeout:     settings.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.failureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.logger.Warn().
				Str("service", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})
	r.breakers[service] = cb
	return cb
}

// Execute runs fn through the named service's circuit breaker. When the
// breaker is open it returns gobreaker.ErrOpenState without calling fn.
func (r *BreakerRegistry) Execute(service Service, fn func() (any, error)) (any, error) {
	return r.get(service).Execute(fn)
}

// State reports the current state of a service's breaker, for health
// and stats endpoints.
func (r *BreakerRegistry) State(service Service) gobreaker.State {
	return r.get(service).State()
}
