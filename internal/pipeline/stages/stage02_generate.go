package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/blogpipeline/internal/interfaces"
	"github.com/ternarybob/blogpipeline/internal/models"
	"github.com/ternarybob/blogpipeline/internal/perrors"
	"github.com/ternarybob/blogpipeline/internal/pipeline"
)

// minGeneratedChars is the shortest response stage 2 accepts before
// treating it as a retryable empty generation (spec.md §4.4 stage 2).
const minGeneratedChars = 500

// GenerateStage calls the generator with web search and URL context
// tools enabled, against a schema shaped like models.ArticleOutput's
// flat field set, and records the grounding URLs the model cited
// (spec.md §4.4 stage 2).
type GenerateStage struct {
	generator interfaces.Generator
	breakers  *perrors.BreakerRegistry
	logger    arbor.ILogger
	model     string
}

// NewGenerateStage builds stage 2 against a concrete Generator.
func NewGenerateStage(generator interfaces.Generator, breakers *perrors.BreakerRegistry, logger arbor.ILogger, model string) *GenerateStage {
	return &GenerateStage{generator: generator, breakers: breakers, logger: logger, model: model}
}

func (s *GenerateStage) Number() int  { return 2 }
func (s *GenerateStage) Name() string { return "generate" }

func (s *GenerateStage) Execute(ctx context.Context, ec *pipeline.ExecutionContext) error {
	req := interfaces.GenerateRequest{
		Model:           s.model,
		SystemPrompt:    systemInstruction(ec.Config.WordCount),
		UserPrompt:      ec.Prompt,
		Schema:          articleSchema(),
		Temperature:     0.7,
		MaxOutputTokens: 8192,
		UseWebSearch:    true,
	}

	var resp *interfaces.GenerateResponse
	err := perrors.WithRetry(ctx, s.logger, perrors.ProfileAPICalls, "stage_02", "generator", func() error {
		raw, execErr := s.breakers.Execute(perrors.ServiceGenerator, func() (any, error) {
			return s.generator.Generate(ctx, req)
		})
		if execErr != nil {
			return perrors.Classify(execErr, perrors.KindExternalService, "stage_02", "generator")
		}
		r := raw.(*interfaces.GenerateResponse)
		if len(strings.TrimSpace(r.Text)) < minGeneratedChars {
			return perrors.Classify(fmt.Errorf("generator returned %d chars, below the %d-char floor", len(r.Text), minGeneratedChars),
				perrors.KindTransient, "stage_02", "generator")
		}
		resp = r
		return nil
	})
	if err != nil {
		return err
	}

	// The generator is asked to emit schema-shaped JSON as plain text
	// when grounding tools are active (a forced response schema can't be
	// combined with tool use), so the article fields always come from
	// resp.Text; resp.Raw only ever carries provider metadata such as
	// grounding_urls, which is merged in afterward rather than replacing it.
	flat := map[string]any{}
	if jsonErr := json.Unmarshal([]byte(jsonBody(resp.Text)), &flat); jsonErr != nil {
		return perrors.Classify(fmt.Errorf("parse raw_article json: %w", jsonErr), perrors.KindValidation, "stage_02", "generator")
	}
	for k, v := range resp.Raw {
		flat[k] = v
	}

	article := &models.ArticleOutput{}
	article.FromFlatMap(flat)
	ec.RawArticle = article

	ec.GroundingURLs = extractGroundingURLs(flat)
	ec.SourceNameMap = buildSourceNameMap(ec.GroundingURLs)

	return nil
}

func systemInstruction(wordCount int) string {
	return fmt.Sprintf(
		"You are a research-grounded content generator. Use web search and URL context to verify every factual "+
			"claim before writing it. Respond with nothing but a single JSON object matching the supplied schema, "+
			"targeting approximately %d words across its section fields. Never fabricate a citation: every [N] "+
			"marker in the body must correspond to a real source you looked up, listed in the Sources field.", wordCount)
}

// jsonBody strips a ```json fenced code block around the model's
// response, in case the grounding system prompt's "respond with nothing
// but JSON" instruction is not followed literally.
func jsonBody(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// articleSchema mirrors models.ArticleOutput's flat field names so the
// generator's structured response needs no translation before
// FromFlatMap (spec.md §4.4 stage 2, §3.1).
func articleSchema() map[string]any {
	props := map[string]any{
		"Headline":         map[string]any{"type": "string"},
		"Subtitle":         map[string]any{"type": "string"},
		"Teaser":           map[string]any{"type": "string"},
		"Direct_Answer":    map[string]any{"type": "string"},
		"Intro":            map[string]any{"type": "string"},
		"Meta_Title":       map[string]any{"type": "string"},
		"Meta_Description": map[string]any{"type": "string"},
		"Sources":          map[string]any{"type": "string"},
		"Search_Queries":   map[string]any{"type": "string"},
		"TLDR":             map[string]any{"type": "string"},
	}
	for i := 1; i <= 9; i++ {
		props[fmt.Sprintf("section_%02d_title", i)] = map[string]any{"type": "string"}
		props[fmt.Sprintf("section_%02d_content", i)] = map[string]any{"type": "string"}
	}
	for i := 1; i <= 3; i++ {
		props[fmt.Sprintf("key_takeaway_%02d", i)] = map[string]any{"type": "string"}
		props[fmt.Sprintf("image_%02d_url", i)] = map[string]any{"type": "string"}
		props[fmt.Sprintf("image_%02d_alt_text", i)] = map[string]any{"type": "string"}
		props[fmt.Sprintf("image_%02d_credit", i)] = map[string]any{"type": "string"}
	}
	for i := 1; i <= 6; i++ {
		props[fmt.Sprintf("faq_%02d_question", i)] = map[string]any{"type": "string"}
		props[fmt.Sprintf("faq_%02d_answer", i)] = map[string]any{"type": "string"}
	}
	for i := 1; i <= 4; i++ {
		props[fmt.Sprintf("paa_%02d_question", i)] = map[string]any{"type": "string"}
		props[fmt.Sprintf("paa_%02d_answer", i)] = map[string]any{"type": "string"}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   []string{"Headline", "Subtitle", "Teaser", "Direct_Answer", "Intro", "Meta_Title", "Meta_Description"},
	}
}

// extractGroundingURLs pulls whatever grounding/citation URL list the
// provider attached to its raw response (Gemini's grounding metadata,
// under a "grounding_urls" key providers populate before handing the
// map back).
func extractGroundingURLs(flat map[string]any) []string {
	raw, ok := flat["grounding_urls"]
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// buildSourceNameMap maps each grounding URL to a display name derived
// from its host. The map is stored on the ExecutionContext; no later
// stage reads it, so blank citation titles are not filled from it
// (spec.md §4.4 stage 2).
func buildSourceNameMap(groundingURLs []string) map[string]string {
	if len(groundingURLs) == 0 {
		return nil
	}
	out := make(map[string]string, len(groundingURLs))
	for _, raw := range groundingURLs {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		out[raw] = titleFromHost(u.Host)
	}
	return out
}

func titleFromHost(host string) string {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if i := strings.LastIndex(host, "."); i > 0 {
		host = host[:i]
	}
	parts := strings.Split(host, ".")
	name := parts[0]
	if name == "" {
		return host
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
