// Package embeddings implements interfaces.EmbeddingService against
// Gemini's embedding endpoint, used ahead of stage 12 storage for the
// supplemented similarity/staleness check (spec.md §5, SPEC_FULL.md
// domain stack).
package embeddings

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/blogpipeline/internal/interfaces"
)

const defaultDimension = 768

// Service is a interfaces.EmbeddingService backed by a lazily-built
// genai client, grounded on the teacher's Ollama-backed embedding
// service (internal/services/embeddings/embedding_service.go) but
// retargeted at Gemini's embedding model rather than a local Ollama
// instance.
type Service struct {
	apiKey    string
	modelName string
	dimension int
	logger    arbor.ILogger
	client    *genai.Client
}

// NewService builds an embedding service. The client is created lazily
// on first Embed call so a job that never needs similarity checking
// never pays for a client.
func NewService(apiKey, modelName string, logger arbor.ILogger) interfaces.EmbeddingService {
	if modelName == "" {
		modelName = "text-embedding-004"
	}
	return &Service{apiKey: apiKey, modelName: modelName, dimension: defaultDimension, logger: logger}
}

func (s *Service) ModelName() string { return s.modelName }
func (s *Service) Dimension() int    { return s.dimension }

func (s *Service) getClient(ctx context.Context) (*genai.Client, error) {
	if s.client != nil {
		return s.client, nil
	}
	if s.apiKey == "" {
		return nil, fmt.Errorf("embeddings: gemini api key not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: s.apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("embeddings: create gemini client: %w", err)
	}
	s.client = client
	return client, nil
}

// Embed generates one embedding vector per input text, in the order
// given, via a single batched call to the embedding endpoint.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	client, err := s.getClient(ctx)
	if err != nil {
		return nil, err
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	resp, err := client.Models.EmbedContent(ctx, s.modelName, contents, &genai.EmbedContentConfig{
		TaskType: "SEMANTIC_SIMILARITY",
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings: embed content: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embeddings: expected %d vectors, got %d", len(texts), len(resp.Embeddings))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	if len(out) > 0 && len(out[0]) > 0 {
		s.dimension = len(out[0])
	}
	return out, nil
}

// IsAvailable reports whether the embedding backend is configured. It
// does not make a network call since Gemini has no cheap health probe
// separate from the embed call itself.
func (s *Service) IsAvailable(ctx context.Context) bool {
	return s.apiKey != ""
}
