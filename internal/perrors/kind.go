// Package perrors classifies pipeline failures by kind and severity,
// and wraps retry/circuit-breaker/fallback policy around the calls that
// can fail: the generator, URL probing, image generation, embeddings,
// and webhook delivery (spec.md §4.1, §7).
package perrors

import (
	"errors"
	"fmt"
)

// Kind is the classification a Classified error carries. Unlike the
// substring-sniffing classifier this pipeline's Python ancestor used,
// Kind is assigned by the caller from a typed SDK error or HTTP status,
// never guessed from an error message.
type Kind string

const (
	KindTransient       Kind = "transient"
	KindPermanent       Kind = "permanent"
	KindRateLimit       Kind = "rate_limit"
	KindAuthentication  Kind = "authentication"
	KindValidation      Kind = "validation"
	KindTimeout         Kind = "timeout"
	KindExternalService Kind = "external_service"
	KindInternal        Kind = "internal"
	KindUnknown         Kind = "unknown"
)

// Severity is how badly a failure should be treated for alerting and
// for the critical-stage fail-fast rule (spec.md §4.1).
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Recoverable reports whether this Kind's default handling is to retry.
func (k Kind) Recoverable() bool {
	switch k {
	case KindTransient, KindRateLimit, KindTimeout, KindExternalService:
		return true
	default:
		return false
	}
}

// DefaultSeverity maps a Kind to the severity used when the caller does
// not override it.
func (k Kind) DefaultSeverity() Severity {
	switch k {
	case KindAuthentication, KindInternal:
		return SeverityCritical
	case KindExternalService, KindPermanent:
		return SeverityHigh
	case KindRateLimit, KindTimeout, KindTransient:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Classified wraps an underlying error with a Kind, Severity, the stage
// that raised it, and whether the pipeline considers it recoverable.
type Classified struct {
	Kind       Kind
	Severity   Severity
	Stage      string
	Service    string
	Recoverable bool
	Err        error
}

func (c *Classified) Error() string {
	return fmt.Sprintf("[%s/%s] stage=%s service=%s: %v", c.Kind, c.Severity, c.Stage, c.Service, c.Err)
}

func (c *Classified) Unwrap() error { return c.Err }

// Classify wraps err with the given Kind, defaulting severity and
// recoverability from the Kind unless overridden.
func Classify(err error, kind Kind, stage, service string) *Classified {
	if err == nil {
		return nil
	}
	return &Classified{
		Kind:        kind,
		Severity:    kind.DefaultSeverity(),
		Stage:       stage,
		Service:     service,
		Recoverable: kind.Recoverable(),
		Err:         err,
	}
}

// As is a thin convenience wrapper over errors.As for *Classified.
func As(err error) (*Classified, bool) {
	var c *Classified
	if errors.As(err, &c) {
		return c, true
	}
	return nil, false
}

// criticalStages are the stages whose failure aborts the job outright
// rather than degrading gracefully (spec.md §4.1, §8 invariants).
var criticalStages = map[string]bool{
	"stage_00": true,
	"stage_01": true,
	"stage_02": true,
	"stage_10": true,
	"stage_12": true,
}

// IsCriticalStage reports whether a failure in this stage must abort
// the job rather than fall back to degraded output.
func IsCriticalStage(stage string) bool {
	return criticalStages[stage]
}
