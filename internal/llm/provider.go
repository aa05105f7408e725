// Package llm wires the pipeline's interfaces.Generator to a live
// model provider: Gemini with Google Search grounding and URL context
// for research-backed generation, Claude as an alternate provider for
// review-stage rewrites. With no API key configured the Factory reports
// offline mode but has no fixture output: Generate returns an error
// (spec.md §5 external interfaces).
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/blogpipeline/internal/interfaces"
)

// ProviderType names the backing model family a request is routed to.
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderClaude ProviderType = "claude"
)

// Config carries the credentials and defaults the factory needs.
type Config struct {
	GeminiAPIKey    string
	GeminiModel     string
	ClaudeAPIKey    string
	ClaudeModel     string
	DefaultProvider ProviderType
}

// Factory is a interfaces.Generator backed by Gemini and/or Claude,
// selecting between them by the model string's prefix the way the
// article-generation request names it (spec.md §4.4 stage 2).
type Factory struct {
	cfg          Config
	logger       arbor.ILogger
	geminiClient *genai.Client
	claudeClient anthropic.Client
	claudeReady  bool
}

// NewFactory builds a Factory. Clients are created lazily on first
// use so a job that only ever calls one provider never needs the
// other's API key.
func NewFactory(cfg Config, logger arbor.ILogger) *Factory {
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = ProviderGemini
	}
	return &Factory{cfg: cfg, logger: logger}
}

func (f *Factory) Mode() interfaces.GeneratorMode {
	if f.cfg.GeminiAPIKey == "" && f.cfg.ClaudeAPIKey == "" {
		return interfaces.GeneratorModeOffline
	}
	return interfaces.GeneratorModeCloud
}

func (f *Factory) Close() error {
	return nil
}

// detectProvider mirrors the original provider-prefix convention:
// "claude/<model>" or "gemini/<model>" picks explicitly, a bare
// "claude-*"/"gemini-*" model name infers it, anything else falls back
// to the configured default.
func (f *Factory) detectProvider(model string) ProviderType {
	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "claude/"), strings.HasPrefix(lower, "anthropic/"), strings.HasPrefix(lower, "claude-"):
		return ProviderClaude
	case strings.HasPrefix(lower, "gemini/"), strings.HasPrefix(lower, "google/"), strings.HasPrefix(lower, "gemini-"):
		return ProviderGemini
	case model == "":
		return f.cfg.DefaultProvider
	default:
		return f.cfg.DefaultProvider
	}
}

func normalizeModel(model string) string {
	for _, prefix := range []string{"claude/", "anthropic/", "gemini/", "google/"} {
		if strings.HasPrefix(strings.ToLower(model), prefix) {
			return model[len(prefix):]
		}
	}
	return model
}

// Generate implements interfaces.Generator.
func (f *Factory) Generate(ctx context.Context, req interfaces.GenerateRequest) (*interfaces.GenerateResponse, error) {
	provider := f.detectProvider(req.Model)
	model := normalizeModel(req.Model)

	switch provider {
	case ProviderClaude:
		return f.generateClaude(ctx, req, model)
	default:
		return f.generateGemini(ctx, req, model)
	}
}

func (f *Factory) getGeminiClient(ctx context.Context) (*genai.Client, error) {
	if f.geminiClient != nil {
		return f.geminiClient, nil
	}
	if f.cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("gemini api key not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  f.cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	f.geminiClient = client
	return client, nil
}

func (f *Factory) getClaudeClient() anthropic.Client {
	if f.claudeReady {
		return f.claudeClient
	}
	f.claudeClient = anthropic.NewClient(option.WithAPIKey(f.cfg.ClaudeAPIKey))
	f.claudeReady = true
	return f.claudeClient
}
