package stages

import (
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/ternarybob/arbor"

	"context"

	"github.com/ternarybob/blogpipeline/internal/citations"
	"github.com/ternarybob/blogpipeline/internal/interfaces"
	"github.com/ternarybob/blogpipeline/internal/models"
	"github.com/ternarybob/blogpipeline/internal/perrors"
	"github.com/ternarybob/blogpipeline/internal/pipeline"
)

// conversationalLeadIns are English-only transitional phrases the AEO
// pass puts at the start of the second half of a long paragraph it
// splits (spec.md
// §4.4 stage 10: "conversational-phrase density English-only").
var conversationalLeadIns = []string{
	"Here's the thing:",
	"In practice,",
	"What this means is",
	"Put simply,",
}

// CleanupStage sanitizes the generated HTML against an allow-list,
// assembles the final content HTML, links inline citation markers,
// re-checks citation URLs one last time, and applies the
// answer-engine-optimization post-processing pass (spec.md §4.4
// stage 10). A failure here aborts the job (critical stage).
type CleanupStage struct {
	probe  interfaces.URLProbe
	policy *bluemonday.Policy
	logger arbor.ILogger
}

func NewCleanupStage(probe interfaces.URLProbe, logger arbor.ILogger) *CleanupStage {
	policy := bluemonday.NewPolicy()
	policy.AllowElements("p", "h2", "h3", "h4", "ul", "ol", "li", "strong", "em", "blockquote", "sup", "br", "table", "thead", "tbody", "tr", "th", "td")
	policy.AllowAttrs("id", "class").OnElements("p", "h2", "h3", "sup", "a")
	policy.AllowAttrs("href", "rel", "target").OnElements("a")
	return &CleanupStage{probe: probe, policy: policy, logger: logger}
}

func (s *CleanupStage) Number() int  { return 10 }
func (s *CleanupStage) Name() string { return "cleanup_merge" }

func (s *CleanupStage) Execute(ctx context.Context, ec *pipeline.ExecutionContext) error {
	if ec.RawArticle == nil {
		return perrors.Classify(fmt.Errorf("no article to clean up"), perrors.KindValidation, "stage_10", "cleanup_merge")
	}

	content := renderContentHTML(ec)
	content = sanitizeStructure(content)

	citationMap := map[int]string{}
	if ec.Citations != nil {
		s.finalURLSanityCheck(ctx, ec.Citations)
		citationMap = ec.Citations.ToCitationMap()
		content = citations.LinkMarkers(content, citationMap)
		if rewritten, err := citations.RewriteAnchors(content, ec.Citations); err == nil {
			content = rewritten
		}
	}

	content = s.policy.Sanitize(content)
	content = applyAEOPostProcessing(content, ec.Config.Language, citationMap)

	ec.ValidatedHTML = content

	if ec.Quality == nil {
		ec.Quality = &models.QualityReport{Passed: true}
	}

	return nil
}

// finalURLSanityCheck re-probes every citation immediately before it
// enters the published citation_map, logging any that have gone dead
// since stage 4's reconciliation instead of blocking the job on it
// (spec.md §4.4 stage 10: "final URL sanity check before adding to
// citation_map").
func (s *CleanupStage) finalURLSanityCheck(ctx context.Context, list *models.CitationList) {
	if list.Count() == 0 || s.probe == nil {
		return
	}
	urls := make([]string, 0, list.Count())
	for _, c := range list.Citations {
		urls = append(urls, c.URL)
	}
	results := s.probe.ProbeAll(ctx, urls)
	byURL := make(map[string]interfaces.ProbeResult, len(results))
	for _, r := range results {
		byURL[r.URL] = r
	}
	for _, c := range list.Citations {
		if r, ok := byURL[c.URL]; ok && !r.Reachable {
			s.logger.Warn().Str("url", c.URL).Int("citation_number", c.Number).Msg("citation URL failed final sanity check")
		}
	}
}

func renderContentHTML(ec *pipeline.ExecutionContext) string {
	a := ec.RawArticle
	var b strings.Builder
	fmt.Fprintf(&b, "<h1>%s</h1>\n", a.Headline)
	fmt.Fprintf(&b, "<p class=\"teaser\">%s</p>\n", a.Teaser)
	fmt.Fprintf(&b, "<p class=\"direct-answer\">%s</p>\n", a.DirectAnswer)
	fmt.Fprintf(&b, "<p>%s</p>\n", a.Intro)
	for _, sec := range a.NonEmptySections() {
		fmt.Fprintf(&b, "<h2 id=\"%s\">%s</h2>\n", slugify(sec.Title), sec.Title)
		fmt.Fprintf(&b, "<p>%s</p>\n", sec.Content)
	}
	if ec.Citations != nil && ec.Citations.Count() > 0 {
		b.WriteString(ec.Citations.ToHTMLParagraphList())
	}
	return b.String()
}

// sanitizeStructure fixes the common generator slip-ups: an unclosed
// paragraph, a doubled closing tag, or stray invisible characters
// (spec.md §4.4 stage 10).
func sanitizeStructure(html string) string {
	html = strings.ReplaceAll(html, "​", "")
	html = strings.ReplaceAll(html, "﻿", "")
	html = strings.ReplaceAll(html, "</p></p>", "</p>")
	if strings.Count(html, "<p>") > strings.Count(html, "</p>") {
		html += "</p>"
	}
	return html
}
