package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/blogpipeline/internal/models"
	"github.com/ternarybob/blogpipeline/internal/pipeline"
)

// PromptBuildStage renders the generation prompt from the normalized
// job config, the detected company/site context, and the sitemap. It
// does no I/O: given the same inputs it always produces the same
// prompt (spec.md §4.4 stage 1).
type PromptBuildStage struct{}

func NewPromptBuildStage() *PromptBuildStage { return &PromptBuildStage{} }

func (s *PromptBuildStage) Number() int  { return 1 }
func (s *PromptBuildStage) Name() string { return "prompt_build" }

func (s *PromptBuildStage) Execute(ctx context.Context, ec *pipeline.ExecutionContext) error {
	ec.Prompt = buildPrompt(ec)
	return nil
}

func buildPrompt(ec *pipeline.ExecutionContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write an article targeting the keyword %q for %s, a %s business (%s).\n\n",
		ec.Config.Keyword, ec.CompanyName, ec.SiteType, ec.Config.CompanyURL)
	fmt.Fprintf(&b, "%s\n\n", ec.Config.ContentGenerationInstruction)

	if ec.Config.Instructions != "" {
		fmt.Fprintf(&b, "Additional instructions: %s\n\n", ec.Config.Instructions)
	}
	if len(ec.Config.CompanyCompetitors) > 0 {
		fmt.Fprintf(&b, "Known competitors to be aware of (do not promote): %s\n\n",
			strings.Join(ec.Config.CompanyCompetitors, ", "))
	}
	if ec.Config.Language != "" && ec.Config.Language != "en" {
		fmt.Fprintf(&b, "Write the article in language code %q.\n\n", ec.Config.Language)
	}
	if ec.Config.Country != "" {
		fmt.Fprintf(&b, "Audience country: %s.\n\n", ec.Config.Country)
	}

	if topics := topicHints(ec); len(topics) > 0 {
		fmt.Fprintf(&b, "Related topics already published on this site, for internal-linking context: %s\n\n",
			strings.Join(topics, "; "))
	}

	fmt.Fprintf(&b, "Target length: approximately %d words, across 9 numbered sections plus an introduction, "+
		"a direct answer, a teaser, an FAQ block of up to 6 pairs, and a People-Also-Ask block of up to 4 pairs. "+
		"Cite every factual claim with a numbered [N] marker and list the sources at the end.\n", ec.Config.WordCount)

	return b.String()
}

// topicHints surfaces a handful of blog-labelled sitemap titles so the
// generator can reference related existing content without being
// handed the raw URL list.
func topicHints(ec *pipeline.ExecutionContext) []string {
	if ec.Sitemap == nil {
		return nil
	}
	var out []string
	for _, p := range ec.Sitemap.Pages {
		if p.Title == "" || p.Label != models.LabelBlog {
			continue
		}
		if len(out) >= 8 {
			break
		}
		out = append(out, p.Title)
	}
	return out
}
