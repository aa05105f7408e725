package stages

import (
	"context"

	"github.com/ternarybob/blogpipeline/internal/pipeline"
)

// TOCStage builds an ordered table of contents from the article's
// non-empty section titles. Pure transform, no I/O (spec.md §4.4
// stage 6).
type TOCStage struct{}

func NewTOCStage() *TOCStage { return &TOCStage{} }

func (s *TOCStage) Number() int  { return 6 }
func (s *TOCStage) Name() string { return "toc" }

func (s *TOCStage) ExecuteParallel(ctx context.Context, h *pipeline.ParallelHandle) error {
	article := h.RawArticle()
	if article == nil {
		return h.Put(pipeline.KeyTOC, []pipeline.TOCEntry{})
	}

	var entries []pipeline.TOCEntry
	for _, sec := range article.NonEmptySections() {
		entries = append(entries, pipeline.TOCEntry{
			Title:  sec.Title,
			Anchor: slugify(sec.Title),
			Level:  2,
		})
	}

	return h.Put(pipeline.KeyTOC, entries)
}
