// Package articlestore implements interfaces.ArticleStore against the
// badger key/value store, with a similarity/staleness check against
// the previous article for the same keyword+company pair (spec.md
// §4.4 stage 12; SPEC_FULL.md similarity/staleness checking).
package articlestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/blogpipeline/internal/interfaces"
)

// record is the JSON shape persisted per article key.
type record struct {
	Article   interfaces.PublishedArticle `json:"article"`
	Embedding []float32                   `json:"embedding,omitempty"`
	StoredAt  time.Time                   `json:"stored_at"`
}

// Store is a interfaces.ArticleStore backed by a KeyValueStorage
// instance, grounded on the teacher's cache freshness-window pattern
// generalized from time-based to content-similarity-based freshness.
type Store struct {
	kv        interfaces.KeyValueStorage
	embedding interfaces.EmbeddingService
	logger    arbor.ILogger
}

func NewStore(kv interfaces.KeyValueStorage, embedding interfaces.EmbeddingService, logger arbor.ILogger) interfaces.ArticleStore {
	return &Store{kv: kv, embedding: embedding, logger: logger}
}

// Save persists the article under a key scoped to its keyword+company
// pair so the next run for the same pair can look up the prior
// version, then computes a warn-only similarity score against it.
func (s *Store) Save(ctx context.Context, article interfaces.PublishedArticle) (map[string]any, error) {
	latestKey := latestKeyFor(article.Keyword, article.CompanyName)

	var embedding []float32
	similarityScore := -1.0
	if s.embedding != nil && s.embedding.IsAvailable(ctx) {
		vectors, err := s.embedding.Embed(ctx, []string{article.Headline + "\n" + article.MetaDescription})
		if err != nil {
			s.logger.Warn().Err(err).Str("job_id", article.JobID).Msg("embedding failed, skipping similarity check")
		} else if len(vectors) > 0 {
			embedding = vectors[0]
			if prev, ok := s.previousEmbedding(ctx, latestKey); ok {
				similarityScore = interfaces.CosineSimilarity(embedding, prev)
			}
		}
	}

	rec := record{Article: article, Embedding: embedding, StoredAt: time.Now()}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("articlestore: marshal: %w", err)
	}

	if err := s.kv.Set(ctx, articleKey(article.JobID), string(data), "published article"); err != nil {
		return nil, fmt.Errorf("articlestore: save article: %w", err)
	}
	if err := s.kv.Set(ctx, latestKey, string(data), "latest article for keyword+company"); err != nil {
		return nil, fmt.Errorf("articlestore: save latest pointer: %w", err)
	}

	result := map[string]any{
		"stored":     true,
		"key":        articleKey(article.JobID),
		"word_count": article.WordCount,
	}
	if similarityScore >= 0 {
		result["similarity_score"] = similarityScore
		if similarityScore > 0.97 {
			s.logger.Warn().
				Str("job_id", article.JobID).
				Float64("similarity_score", similarityScore).
				Msg("new article is highly similar to the previous one for this keyword+company pair")
		}
	}
	return result, nil
}

func (s *Store) previousEmbedding(ctx context.Context, latestKey string) ([]float32, bool) {
	pair, err := s.kv.GetPair(ctx, latestKey)
	if err != nil {
		return nil, false
	}
	var prev record
	if err := json.Unmarshal([]byte(pair.Value), &prev); err != nil || len(prev.Embedding) == 0 {
		return nil, false
	}
	return prev.Embedding, true
}

func articleKey(jobID string) string {
	return "article:" + jobID
}

func latestKeyFor(keyword, companyName string) string {
	return "article-latest:" + companyName + ":" + keyword
}
