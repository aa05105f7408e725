package stages

import (
	"context"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/blogpipeline/internal/interfaces"
	"github.com/ternarybob/blogpipeline/internal/models"
	"github.com/ternarybob/blogpipeline/internal/pipeline"
)

const maxInternalLinks = 10

// InternalLinksStage scores internal-link candidates drawn from the
// crawled blog pages, the caller-supplied sitemap URLs, and batch
// sibling hints, keeps only the ones that HEAD-validate against the
// company's own domain, dedupes by domain, and caps the result at 10
// (spec.md §4.4 stage 5).
type InternalLinksStage struct {
	probe  interfaces.URLProbe
	logger arbor.ILogger
}

func NewInternalLinksStage(probe interfaces.URLProbe, logger arbor.ILogger) *InternalLinksStage {
	return &InternalLinksStage{probe: probe, logger: logger}
}

func (s *InternalLinksStage) Number() int  { return 5 }
func (s *InternalLinksStage) Name() string { return "internal_links" }

func (s *InternalLinksStage) ExecuteParallel(ctx context.Context, h *pipeline.ParallelHandle) error {
	topics := articleTopics(h.RawArticle())
	candidates := scoreCandidates(topics, h.BlogPages(), h.Config().SitemapURLs, h.Config().InternalLinkHints)
	if len(candidates) == 0 {
		return h.Put(pipeline.KeyInternalLinks, []models.InternalLink{})
	}

	companyHost := hostOf(h.Config().CompanyURL)
	urls := make([]string, 0, len(candidates))
	for _, c := range candidates {
		urls = append(urls, c.URL)
	}
	results := s.probe.ProbeAll(ctx, urls)
	reachable := make(map[string]bool, len(results))
	for _, r := range results {
		reachable[r.URL] = r.Reachable
	}

	seenDomain := make(map[string]bool)
	var valid []models.InternalLink
	for _, c := range candidates {
		if !reachable[c.URL] {
			continue
		}
		if hostOf(c.URL) == companyHost && c.Domain == "" {
			c.Domain = companyHost
		}
		if seenDomain[c.Domain] {
			continue
		}
		seenDomain[c.Domain] = true
		c.URL = normalizeMagazinePath(c.URL)
		valid = append(valid, c)
	}

	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Relevance > valid[j].Relevance })
	if len(valid) > maxInternalLinks {
		valid = valid[:maxInternalLinks]
	}

	return h.Put(pipeline.KeyInternalLinks, valid)
}

// articleTopics derives a topic word set from the headline and section
// titles, used to score candidate link relevance.
func articleTopics(article *models.ArticleOutput) map[string]bool {
	topics := make(map[string]bool)
	if article == nil {
		return topics
	}
	addTopicWords(topics, article.Headline)
	for _, sec := range article.NonEmptySections() {
		addTopicWords(topics, sec.Title)
	}
	return topics
}

func addTopicWords(topics map[string]bool, text string) {
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,:;!?\"'()")
		if len(w) > 3 {
			topics[w] = true
		}
	}
}

// scoreCandidates builds the priority-ordered candidate pool: crawled
// blog pages first (relevance boosted by topic overlap), then
// caller-supplied sitemap URLs, then batch-sibling hints.
func scoreCandidates(topics map[string]bool, blogPages, sitemapURLs, hints []string) []models.InternalLink {
	var out []models.InternalLink
	for _, u := range blogPages {
		out = append(out, models.InternalLink{URL: u, Relevance: relevanceScore(u, topics) + 2, Domain: hostOf(u)})
	}
	for _, u := range sitemapURLs {
		out = append(out, models.InternalLink{URL: u, Relevance: relevanceScore(u, topics) + 1, Domain: hostOf(u)})
	}
	for _, u := range hints {
		out = append(out, models.InternalLink{URL: u, Relevance: relevanceScore(u, topics), Domain: hostOf(u)})
	}
	return out
}

func relevanceScore(candidateURL string, topics map[string]bool) float64 {
	score := 1.0
	lower := strings.ToLower(candidateURL)
	for topic := range topics {
		if strings.Contains(lower, topic) {
			score += 1.5
		}
	}
	if score > 10 {
		score = 10
	}
	return score
}

// normalizeMagazinePath rewrites a blog-page URL's path to the
// canonical /magazine/<slug> form the linking pool publishes under
// (spec.md §4.4 stage 5).
func normalizeMagazinePath(rawURL string) string {
	slug := ""
	parts := strings.Split(strings.TrimRight(rawURL, "/"), "/")
	if len(parts) > 0 {
		slug = slugify(parts[len(parts)-1])
	}
	if slug == "" {
		return rawURL
	}
	scheme := "https"
	host := hostOf(rawURL)
	if host == "" {
		return rawURL
	}
	return scheme + "://" + host + "/magazine/" + slug
}
