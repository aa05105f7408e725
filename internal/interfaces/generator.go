// Package interfaces defines the seams between the pipeline runtime and
// its external dependencies: the LLM generator, embeddings, citation URL
// probing, job/KV persistence, and webhook delivery. Stages and the job
// manager depend on these, never on concrete providers.
package interfaces

import "context"

// GeneratorMode indicates whether a Generator has credentials for a live
// model API (cloud) or has none (offline). No implementation in this
// repository returns canned output in offline mode.
type GeneratorMode string

const (
	GeneratorModeCloud   GeneratorMode = "cloud"
	GeneratorModeOffline GeneratorMode = "offline"
)

// GenerateRequest is a single structured-output generation call.
type GenerateRequest struct {
	Model           string
	SystemPrompt    string
	UserPrompt      string
	Schema          map[string]any
	Temperature     float64
	MaxOutputTokens int
	UseWebSearch    bool
}

// GenerateResponse is the generator's reply. Raw carries the decoded
// JSON object verbatim so callers needing specific fields never have to
// re-marshal; Text carries a model's plain-text response when no schema
// was supplied.
type GenerateResponse struct {
	Raw         map[string]any
	Text        string
	ModelUsed   string
	InputTokens int
	OutputTokens int
}

// Generator produces structured or free-text content from a prompt. It
// is the seam stage 2 (generation) and stage 11 (review) call through;
// the concrete implementation (llm.Factory) wraps Claude and Gemini
// clients and has no offline-fixture output (spec.md §5 external
// interfaces).
type Generator interface {
	// Generate runs one completion request, retrying internally per the
	// provider's own rate-limit/backoff rules.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// Mode reports whether this generator is live or offline.
	Mode() GeneratorMode

	// Close releases any underlying client resources.
	Close() error
}
