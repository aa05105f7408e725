// Package pipeline runs the thirteen content-generation stages (0-12)
// for one job: stages 0-3 sequentially, stages 4-9 fanned out concurrently,
// then 10-12 sequentially against the merged result (spec.md §4.4,
// §8 execution model).
package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/blogpipeline/internal/models"
)

// ExecutionContext is the per-job working state threaded through every
// stage. It is a struct of owned sub-records rather than a single flat
// bag, so stage code only touches the section relevant to it (spec.md
// §3.1, REDESIGN FLAGS).
type ExecutionContext struct {
	JobID  string
	Config models.JobConfig

	CompanyName string
	SiteType    string
	BlogPages   []string

	Sitemap       *models.SitemapPageList
	Prompt        string
	RawArticle    *models.ArticleOutput
	GroundingURLs []string
	SourceNameMap map[string]string
	Quality       *models.QualityReport
	Citations     *models.CitationList
	InternalLinks []models.InternalLink
	TOC           []TOCEntry
	Metadata      ArticleMetadata
	FAQs          []models.FAQPair
	PAAs          []models.FAQPair
	WordCount     int
	ReadTimeMin   int
	PublishedAt   time.Time
	Images        []models.ArticleImage
	ValidatedHTML string
	FinalHTML     string
	ReviewNotes   []string
	StorageResult map[string]any

	parallel *parallelResults
}

// TOCEntry is one table-of-contents anchor (spec.md §4.4 stage 6).
type TOCEntry struct {
	Title string
	Anchor string
	Level int
}

// ArticleMetadata is the SEO metadata block produced by stage 7.
type ArticleMetadata struct {
	MetaTitle       string
	MetaDescription string
	CanonicalURL    string
	OGImage         string
}

// NewExecutionContext builds the context a job's run starts from.
func NewExecutionContext(jobID string, config models.JobConfig) *ExecutionContext {
	return &ExecutionContext{
		JobID:    jobID,
		Config:   config,
		parallel: newParallelResults(),
	}
}

// parallelResults is the scratchpad the fan-out phase (stages 4-9)
// writes into. Each stage owns a disjoint key; Put returns an error on
// a collision instead of silently overwriting one stage's output with
// another's (spec.md §8 invariants: parallel writes must not collide).
type parallelResults struct {
	mu      sync.Mutex
	entries map[string]any
}

func newParallelResults() *parallelResults {
	return &parallelResults{entries: make(map[string]any)}
}

// ParallelHandle is the narrow view a stage running in the fan-out
// phase receives: write access to its own scratchpad slot plus
// read-only accessors for the rest of the context. It cannot mutate
// ExecutionContext's owned fields directly, so concurrent stages never
// race on them.
type ParallelHandle struct {
	ctx *ExecutionContext
}

// Handle returns a ParallelHandle bound to this context, for use by
// code launching the fan-out phase.
func (c *ExecutionContext) Handle() *ParallelHandle {
	return &ParallelHandle{ctx: c}
}

// Put stores this stage's output under key, returning an error if
// another stage already wrote that key this run.
func (h *ParallelHandle) Put(key string, value any) error {
	p := h.ctx.parallel
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.entries[key]; exists {
		return fmt.Errorf("parallel result collision on key %q", key)
	}
	p.entries[key] = value
	return nil
}

// Config returns the job configuration (read-only by convention).
func (h *ParallelHandle) Config() models.JobConfig { return h.ctx.Config }

// RawArticle returns the generated draft the fan-out stages read from.
func (h *ParallelHandle) RawArticle() *models.ArticleOutput { return h.ctx.RawArticle }

// Sitemap returns the crawled sitemap the fan-out stages read from.
func (h *ParallelHandle) Sitemap() *models.SitemapPageList { return h.ctx.Sitemap }

// Quality returns the stage-3 quality report.
func (h *ParallelHandle) Quality() *models.QualityReport { return h.ctx.Quality }

// CompanyName returns the normalized company name stage 0 derived.
func (h *ParallelHandle) CompanyName() string { return h.ctx.CompanyName }

// SiteType returns the site-type classification stage 0 computed.
func (h *ParallelHandle) SiteType() string { return h.ctx.SiteType }

// BlogPages returns the crawled blog URLs stage 0 found, highest
// priority in the internal-linking pool (spec.md §4.4 stage 5).
func (h *ParallelHandle) BlogPages() []string { return h.ctx.BlogPages }

// GroundingURLs returns the URLs the generator grounded its answer on
// (spec.md §4.4 stage 2), used to build the citation source name map.
func (h *ParallelHandle) GroundingURLs() []string { return h.ctx.GroundingURLs }

// SourceNameMap returns the grounding-URL-to-display-name map stage 2
// built. No stage calls this accessor.
func (h *ParallelHandle) SourceNameMap() map[string]string { return h.ctx.SourceNameMap }

// JobID returns the owning job's identifier.
func (h *ParallelHandle) JobID() string { return h.ctx.JobID }

// Merge copies every parallel-phase result into its owning
// ExecutionContext field. Called once after all fan-out stages finish;
// panics are not used here because a missing key is a normal "that
// stage fell back to its degraded default" outcome, not a bug.
func (c *ExecutionContext) Merge() {
	p := c.parallel
	p.mu.Lock()
	defer p.mu.Unlock()

	if v, ok := p.entries[KeyCitations]; ok {
		c.Citations, _ = v.(*models.CitationList)
	}
	if v, ok := p.entries[KeyInternalLinks]; ok {
		c.InternalLinks, _ = v.([]models.InternalLink)
	}
	if v, ok := p.entries[KeyTOC]; ok {
		c.TOC, _ = v.([]TOCEntry)
	}
	if v, ok := p.entries[KeyMetadata]; ok {
		c.Metadata, _ = v.(ArticleMetadata)
	}
	if v, ok := p.entries[KeyFAQs]; ok {
		c.FAQs, _ = v.([]models.FAQPair)
	}
	if v, ok := p.entries[KeyPAAs]; ok {
		c.PAAs, _ = v.([]models.FAQPair)
	}
	if v, ok := p.entries[KeyImages]; ok {
		c.Images, _ = v.([]models.ArticleImage)
	}
	if v, ok := p.entries[KeyWordCount]; ok {
		c.WordCount, _ = v.(int)
	}
	if v, ok := p.entries[KeyReadTime]; ok {
		c.ReadTimeMin, _ = v.(int)
	}
	if v, ok := p.entries[KeyPublishedAt]; ok {
		c.PublishedAt, _ = v.(time.Time)
	}
}

// Keys for the fan-out stages' disjoint parallel-result slots.
const (
	KeyCitations     = "citations"
	KeyInternalLinks = "internal_links"
	KeyTOC           = "toc"
	KeyMetadata      = "metadata"
	KeyFAQs          = "faqs"
	KeyPAAs          = "paas"
	KeyImages        = "images"
	KeyWordCount     = "word_count"
	KeyReadTime      = "read_time"
	KeyPublishedAt   = "publication_date"
)
