// Package stages implements the thirteen numbered pipeline stages
// (spec.md §4.4) as pipeline.Stage / pipeline.ParallelStage
// implementations wired together by the job manager's Runner.
package stages

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/blogpipeline/internal/models"
	"github.com/ternarybob/blogpipeline/internal/perrors"
	"github.com/ternarybob/blogpipeline/internal/pipeline"
	"github.com/ternarybob/blogpipeline/internal/sitemap"
)

// DataFetchStage validates the job config, crawls the company's
// sitemap, classifies its site type, and builds the blog-page linking
// pool stage 5 draws candidates from (spec.md §4.4 stage 0).
type DataFetchStage struct {
	crawler *sitemap.Crawler
	logger  arbor.ILogger
}

// NewDataFetchStage builds stage 0 against a shared sitemap crawler.
func NewDataFetchStage(crawler *sitemap.Crawler, logger arbor.ILogger) *DataFetchStage {
	return &DataFetchStage{crawler: crawler, logger: logger}
}

func (s *DataFetchStage) Number() int    { return 0 }
func (s *DataFetchStage) Name() string   { return "data_fetch_normalization" }

func (s *DataFetchStage) Execute(ctx context.Context, ec *pipeline.ExecutionContext) error {
	ec.Config.Normalize()

	if missing := ec.Config.MissingFields(); len(missing) > 0 {
		err := fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
		return perrors.Classify(err, perrors.KindValidation, "stage_00", "data_fetch")
	}

	ec.CompanyName = ec.Config.CompanyName
	if ec.CompanyName == "" {
		ec.CompanyName = companyNameFromURL(ec.Config.CompanyURL)
	}

	sm, err := s.crawler.Crawl(ctx, ec.Config.CompanyURL)
	if err != nil {
		s.logger.Warn().Err(err).Str("company_url", ec.Config.CompanyURL).Msg("sitemap crawl failed, continuing with an empty sitemap")
		sm = &models.SitemapPageList{CompanyURL: ec.Config.CompanyURL}
	}
	ec.Sitemap = sm
	ec.SiteType = classifySiteType(sm)

	applyOverrides(ec)

	ec.BlogPages = buildBlogPagePool(sm, ec.Config.SitemapURLs)

	return nil
}

// companyNameFromURL derives a display name from a bare host: strip
// www., drop the TLD, split on hyphens, and Title Case the remainder
// (spec.md §4.4 stage 0).
func companyNameFromURL(rawURL string) string {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if i := strings.LastIndex(host, "."); i > 0 {
		host = host[:i]
	}
	parts := strings.Split(host, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// classifySiteType buckets a crawled sitemap by its dominant content
// label ratio. An empty crawl, or one where no label reaches 25% of the
// pages, is "corporate"; ties between qualifying labels go to blog,
// then product, then service.
func classifySiteType(sm *models.SitemapPageList) string {
	total := sm.Count()
	if total == 0 {
		return "corporate"
	}
	counts := sm.LabelCounts()
	blogRatio := float64(counts[models.LabelBlog]) / float64(total)
	productRatio := float64(counts[models.LabelProduct]) / float64(total)
	serviceRatio := float64(counts[models.LabelService]) / float64(total)

	switch {
	case blogRatio >= 0.25 && blogRatio >= productRatio && blogRatio >= serviceRatio:
		return "content-marketing"
	case productRatio >= 0.25 && productRatio >= serviceRatio:
		return "product-focused"
	case serviceRatio >= 0.25:
		return "service-focused"
	default:
		return "corporate"
	}
}

// applyOverrides layers job_config.overrides on top of the
// auto-detected company_name/site_type fields, last writer wins
// (spec.md §4.4 stage 0: "applies user overrides on top of
// auto-detected fields").
func applyOverrides(ec *pipeline.ExecutionContext) {
	if ec.Config.Overrides == nil {
		return
	}
	if v, ok := ec.Config.Overrides["company_name"]; ok && v != "" {
		ec.CompanyName = v
	}
	if v, ok := ec.Config.Overrides["site_type"]; ok && v != "" {
		ec.SiteType = v
	}
}

// buildBlogPagePool assembles stage 5's internal-linking candidate
// pool in priority order: (a) crawled blog URLs, (b) URLs the caller
// supplied directly, (c) none (spec.md §4.4 stage 0).
func buildBlogPagePool(sm *models.SitemapPageList, providedSitemapURLs []string) []string {
	crawled := sm.URLsByLabel(models.LabelBlog)
	if len(crawled) > 0 {
		return crawled
	}
	if len(providedSitemapURLs) > 0 {
		return append([]string(nil), providedSitemapURLs...)
	}
	return nil
}
