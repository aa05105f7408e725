package stages

import (
	"context"
	"math/rand"
	"time"

	"github.com/ternarybob/blogpipeline/internal/pipeline"
)

const (
	wordsPerMinute  = 200
	minReadTimeMin  = 1
	maxReadTimeMin  = 30
	publicationDays = 90
)

// MetadataStage counts the article's words across every text field,
// derives a clamped read-time estimate, assigns a uniformly-random
// publication date within the last 90 days, and builds the SEO
// metadata block (spec.md §4.4 stage 7).
type MetadataStage struct{}

func NewMetadataStage() *MetadataStage { return &MetadataStage{} }

func (s *MetadataStage) Number() int  { return 7 }
func (s *MetadataStage) Name() string { return "metadata" }

func (s *MetadataStage) ExecuteParallel(ctx context.Context, h *pipeline.ParallelHandle) error {
	article := h.RawArticle()
	if article == nil {
		return h.Put(pipeline.KeyWordCount, 0)
	}

	words := countWords(articleText(article))
	readTime := words / wordsPerMinute
	if words%wordsPerMinute != 0 {
		readTime++
	}
	readTime = clamp(readTime, minReadTimeMin, maxReadTimeMin)

	publishedAt := randomRecentDate(publicationDays)

	meta := pipeline.ArticleMetadata{
		MetaTitle:       article.MetaTitle,
		MetaDescription: article.MetaDescription,
		CanonicalURL:    h.Config().CompanyURL,
	}

	if err := h.Put(pipeline.KeyWordCount, words); err != nil {
		return err
	}
	if err := h.Put(pipeline.KeyReadTime, readTime); err != nil {
		return err
	}
	if err := h.Put(pipeline.KeyPublishedAt, publishedAt); err != nil {
		return err
	}
	return h.Put(pipeline.KeyMetadata, meta)
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// randomRecentDate picks a uniformly-random instant within the last
// withinDays days (spec.md §4.4 stage 7).
func randomRecentDate(withinDays int) time.Time {
	offset := time.Duration(rand.Int63n(int64(withinDays) * int64(24*time.Hour)))
	return time.Now().Add(-offset)
}
