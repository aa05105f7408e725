package stages

import (
	"context"
	"strings"

	"github.com/ternarybob/blogpipeline/internal/models"
	"github.com/ternarybob/blogpipeline/internal/pipeline"
)

const (
	maxFAQs = 6
	maxPAAs = 4
)

// FAQStage extracts and dedupes the FAQ and People-Also-Ask blocks,
// dropping invalid (empty-question) pairs and renumbering what
// survives. Shortfalls are tolerated, not fatal (spec.md §4.4 stage 8).
type FAQStage struct{}

func NewFAQStage() *FAQStage { return &FAQStage{} }

func (s *FAQStage) Number() int  { return 8 }
func (s *FAQStage) Name() string { return "faq_paa_validation" }

func (s *FAQStage) ExecuteParallel(ctx context.Context, h *pipeline.ParallelHandle) error {
	article := h.RawArticle()
	if article == nil {
		if err := h.Put(pipeline.KeyFAQs, []models.FAQPair{}); err != nil {
			return err
		}
		return h.Put(pipeline.KeyPAAs, []models.FAQPair{})
	}

	faqs := dedupeQuestions(article.NonEmptyFAQs(), maxFAQs)
	paas := dedupeQuestions(article.NonEmptyPAAs(), maxPAAs)

	if err := h.Put(pipeline.KeyFAQs, faqs); err != nil {
		return err
	}
	return h.Put(pipeline.KeyPAAs, paas)
}

// dedupeQuestions drops pairs with a blank question, collapses
// duplicates by normalized question text, and caps the result at max.
func dedupeQuestions(pairs []models.FAQPair, max int) []models.FAQPair {
	seen := make(map[string]bool, len(pairs))
	var out []models.FAQPair
	for _, p := range pairs {
		if len(out) >= max {
			break
		}
		q := strings.TrimSpace(p.Question)
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, models.FAQPair{Question: q, Answer: strings.TrimSpace(p.Answer)})
	}
	return out
}
