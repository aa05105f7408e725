package perrors

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ternarybob/arbor"
)

// RetryProfile names one of the fixed backoff profiles the pipeline's
// external calls retry under (spec.md §4.1 RETRY_CONFIGS).
type RetryProfile string

const (
	ProfileAPICalls          RetryProfile = "api_calls"
	ProfileURLValidation     RetryProfile = "url_validation"
	ProfileImageGeneration   RetryProfile = "image_generation"
	ProfileCriticalOperation RetryProfile = "critical_operations"
)

type profileConfig struct {
	maxRetries     uint64
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

var profiles = map[RetryProfile]profileConfig{
	ProfileAPICalls:          {maxRetries: 3, initialBackoff: 2 * time.Second, maxBackoff: 30 * time.Second},
	ProfileURLValidation:     {maxRetries: 2, initialBackoff: 1 * time.Second, maxBackoff: 10 * time.Second},
	ProfileImageGeneration:   {maxRetries: 2, initialBackoff: 5 * time.Second, maxBackoff: 60 * time.Second},
	ProfileCriticalOperation: {maxRetries: 5, initialBackoff: 1 * time.Second, maxBackoff: 120 * time.Second},
}

func newBackOff(profile RetryProfile) backoff.BackOff {
	cfg, ok := profiles[profile]
	if !ok {
		cfg = profiles[ProfileAPICalls]
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = cfg.initialBackoff
	eb.MaxInterval = cfg.maxBackoff
	eb.Multiplier = 2.0
	eb.RandomizationFactor = 0.25
	return backoff.WithMaxRetries(eb, cfg.maxRetries)
}

// WithRetry runs fn under the named profile's exponential backoff,
// retrying only errors classified as recoverable. A *Classified error
// carrying Recoverable=false is returned immediately without further
// attempts; a non-Classified error is retried only when shouldRetry
// recognises it as a context deadline or a network timeout.
func WithRetry(ctx context.Context, logger arbor.ILogger, profile RetryProfile, stage, service string, fn func() error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !shouldRetry(err) {
			return backoff.Permanent(err)
		}
		logger.Debug().
			Int("attempt", attempt).
			Str("profile", string(profile)).
			Str("stage", stage).
			Str("service", service).
			Err(err).
			Msg("retrying after backoff")
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(newBackOff(profile), ctx))
	if err != nil {
		logger.Warn().
			Int("attempts", attempt).
			Str("profile", string(profile)).
			Str("stage", stage).
			Str("service", service).
			Err(err).
			Msg("retry attempts exhausted")
	}
	return err
}

// shouldRetry decides retryability from a *Classified's Kind when
// present, falling back to network-error introspection for plain
// errors passed in from callers that have not classified yet.
func shouldRetry(err error) bool {
	if c, ok := As(err); ok {
		return c.Recoverable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
