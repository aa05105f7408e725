package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ternarybob/blogpipeline/internal/interfaces"
)

// generateClaude calls Claude for requests that don't need web
// grounding, such as stage 11's targeted rewrite generations.
func (f *Factory) generateClaude(ctx context.Context, req interfaces.GenerateRequest, model string) (*interfaces.GenerateResponse, error) {
	if f.cfg.ClaudeAPIKey == "" {
		return nil, fmt.Errorf("claude api key not configured")
	}
	if model == "" {
		model = f.cfg.ClaudeModel
	}
	client := f.getClaudeClient()

	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("claude messages.new: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return &interfaces.GenerateResponse{
		Text:         text,
		ModelUsed:    model,
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}
