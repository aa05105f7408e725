package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/ternarybob/blogpipeline/internal/interfaces"
)

// generateGemini calls Gemini with Google Search grounding and URL
// context enabled when the request asks for it, and with a structured
// JSON schema when one was supplied. Grounding URLs from the response's
// GroundingMetadata are surfaced back through Raw["grounding_urls"]
// for stage 2 to build its source_name_map from (spec.md §4.4 stage 2).
func (f *Factory) generateGemini(ctx context.Context, req interfaces.GenerateRequest, model string) (*interfaces.GenerateResponse, error) {
	client, err := f.getGeminiClient(ctx)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = f.cfg.GeminiModel
	}

	temp := float32(req.Temperature)
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temp),
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxOutputTokens)
	}
	if req.UseWebSearch {
		config.Tools = []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
			{URLContext: &genai.URLContext{}},
		}
	}
	if len(req.Schema) > 0 && !req.UseWebSearch {
		// Gemini cannot combine tool use with a forced response schema;
		// when grounding is requested the model is asked (via the system
		// prompt) to emit schema-shaped JSON as plain text instead.
		if schema, err := convertSchema(req.Schema); err == nil {
			config.ResponseMIMEType = "application/json"
			config.ResponseSchema = schema
		}
	}

	resp, err := client.Models.GenerateContent(ctx, model, []*genai.Content{genai.NewContentFromText(req.UserPrompt, genai.RoleUser)}, config)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return &interfaces.GenerateResponse{ModelUsed: model}, nil
	}

	text := resp.Text()

	raw := map[string]any{}
	if urls := groundingURLs(resp); len(urls) > 0 {
		items := make([]any, len(urls))
		for i, u := range urls {
			items[i] = u
		}
		raw["grounding_urls"] = items
	}

	usage := 0
	if resp.UsageMetadata != nil {
		usage = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &interfaces.GenerateResponse{
		Raw:          raw,
		Text:         text,
		ModelUsed:    model,
		OutputTokens: usage,
	}, nil
}

// groundingURLs flattens the grounding chunks Gemini attaches when
// Google Search is used as a tool.
func groundingURLs(resp *genai.GenerateContentResponse) []string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	gm := resp.Candidates[0].GroundingMetadata
	var out []string
	for _, chunk := range gm.GroundingChunks {
		if chunk.Web != nil && chunk.Web.URI != "" {
			out = append(out, chunk.Web.URI)
		}
	}
	return out
}

// convertSchema translates a plain map[string]any JSON-schema fragment
// (as produced by stages.articleSchema) into genai's typed Schema.
// Only the subset the pipeline's own schema builder emits (object,
// string properties, required) is supported.
func convertSchema(in map[string]any) (*genai.Schema, error) {
	out := &genai.Schema{Type: genai.TypeObject}

	if props, ok := in["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, v := range props {
			field, ok := v.(map[string]any)
			if !ok {
				continue
			}
			fieldType, _ := field["type"].(string)
			out.Properties[name] = &genai.Schema{Type: genaiType(fieldType)}
		}
	}
	if required, ok := in["required"].([]string); ok {
		out.Required = required
	}
	return out, nil
}

func genaiType(t string) genai.Type {
	switch t {
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}
