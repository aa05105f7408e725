package interfaces

import "context"

// PublishedArticle is the flat record stage 12 hands to storage: the
// rendered HTML plus the indexable metadata a row/search index needs.
type PublishedArticle struct {
	JobID           string
	Keyword         string
	CompanyName     string
	Headline        string
	MetaTitle       string
	MetaDescription string
	HTML            string
	WordCount       int
	ReadTimeMinutes int
	CitationCount   int
}

// ArticleStore is the storage hook stage 12 calls through (spec.md §4.4
// stage 12). The implementation in internal/articlestore writes the
// article to the key/value store and, when embeddings are available,
// scores its similarity to the previous article for the same pair; it
// does not update the job's row, create a Google Doc or fire a webhook.
type ArticleStore interface {
	// Save persists the article and returns a storage_result map
	// suitable for embedding directly in the job result.
	Save(ctx context.Context, article PublishedArticle) (map[string]any, error)
}
