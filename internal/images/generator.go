// Package images implements interfaces.ImageGenerator against Gemini's
// image-capable model, grounded on the same genai client pattern
// internal/llm and internal/embeddings use (spec.md §4.4 stage 9,
// SPEC_FULL.md domain stack).
package images

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/genai"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/blogpipeline/internal/interfaces"
)

const defaultModel = "gemini-2.5-flash-image"

// Generator is a interfaces.ImageGenerator backed by a lazily-built
// genai client. With no API key configured it returns an error on
// every call, letting ImageStage's own retry/fallback logic supply the
// placeholder image instead of duplicating that behavior here.
type Generator struct {
	apiKey string
	model  string
	logger arbor.ILogger
	client *genai.Client
}

func NewGenerator(apiKey, model string, logger arbor.ILogger) interfaces.ImageGenerator {
	if model == "" {
		model = defaultModel
	}
	return &Generator{apiKey: apiKey, model: model, logger: logger}
}

func (g *Generator) getClient(ctx context.Context) (*genai.Client, error) {
	if g.client != nil {
		return g.client, nil
	}
	if g.apiKey == "" {
		return nil, fmt.Errorf("images: gemini api key not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("images: create gemini client: %w", err)
	}
	g.client = client
	return client, nil
}

// Generate requests one image for req.Prompt. UseGraphics nudges the
// prompt toward a flat vector illustration rather than a photograph,
// matching the "simple graphic" option spec.md §4.4 stage 9 describes.
func (g *Generator) Generate(ctx context.Context, req interfaces.ImageRequest) (*interfaces.ImageResult, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return nil, err
	}

	prompt := req.Prompt
	if req.UseGraphics {
		prompt = "Simple flat vector illustration, no text overlay, for a blog article about: " + prompt
	} else {
		prompt = "Photorealistic editorial illustration, no text overlay, for a blog article about: " + prompt
	}

	resp, err := client.Models.GenerateContent(ctx, g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			ResponseModalities: []string{"IMAGE"},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("images: generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("images: empty response")
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return &interfaces.ImageResult{
				URL:     fmt.Sprintf("data:%s;base64,%s", part.InlineData.MIMEType, encodeBase64(part.InlineData.Data)),
				AltText: req.AltText,
				Credit:  "Generated with " + g.model,
			}, nil
		}
	}
	return nil, fmt.Errorf("images: response carried no image data")
}

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
