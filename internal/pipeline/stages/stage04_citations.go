package stages

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/blogpipeline/internal/citations"
	"github.com/ternarybob/blogpipeline/internal/interfaces"
	"github.com/ternarybob/blogpipeline/internal/models"
	"github.com/ternarybob/blogpipeline/internal/pipeline"
)

// CitationsStage parses the generator's Sources block, validates every
// URL, and reconciles broken ones: reachable citations are kept,
// unreachable ones pointing at the company's own domain are dropped,
// everything else is looked up via the alternative finder and, failing
// that, kept but flagged [UNVERIFIED] (spec.md §4.4 stage 4, §4.3).
type CitationsStage struct {
	probe     interfaces.URLProbe
	generator interfaces.Generator
	logger    arbor.ILogger
}

func NewCitationsStage(probe interfaces.URLProbe, generator interfaces.Generator, logger arbor.ILogger) *CitationsStage {
	return &CitationsStage{probe: probe, generator: generator, logger: logger}
}

func (s *CitationsStage) Number() int  { return 4 }
func (s *CitationsStage) Name() string { return "citations" }

func (s *CitationsStage) ExecuteParallel(ctx context.Context, h *pipeline.ParallelHandle) error {
	article := h.RawArticle()
	if article == nil || article.Sources == "" {
		return h.Put(pipeline.KeyCitations, &models.CitationList{})
	}
	if h.Config().CitationsDisabled {
		return h.Put(pipeline.KeyCitations, &models.CitationList{})
	}

	parsed := citations.ParseSources(article.Sources)
	if parsed.Count() == 0 {
		return h.Put(pipeline.KeyCitations, parsed)
	}

	urls := make([]string, 0, parsed.Count())
	for _, c := range parsed.Citations {
		urls = append(urls, c.URL)
	}

	results := s.probe.ProbeAll(ctx, urls)

	companyDomain := hostOf(h.Config().CompanyURL)
	findAlt := citations.NewGeneratorAlternativeFinder(ctx, s.generator, h.Config().Keyword, s.logger)
	reconciled := citations.Reconcile(parsed, results, companyDomain, h.Config().CompanyCompetitors, findAlt)

	return h.Put(pipeline.KeyCitations, reconciled)
}
