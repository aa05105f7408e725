package stages

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/blogpipeline/internal/interfaces"
	"github.com/ternarybob/blogpipeline/internal/perrors"
	"github.com/ternarybob/blogpipeline/internal/pipeline"
)

// StorageStage renders the final article HTML and persists it through
// the configured storage hook. A failure here aborts the job
// (critical stage): a generated article that can't be saved anywhere
// is a job failure, not a degraded success (spec.md §4.4 stage 12).
type StorageStage struct {
	store  interfaces.ArticleStore
	logger arbor.ILogger
}

func NewStorageStage(store interfaces.ArticleStore, logger arbor.ILogger) *StorageStage {
	return &StorageStage{store: store, logger: logger}
}

func (s *StorageStage) Number() int  { return 12 }
func (s *StorageStage) Name() string { return "storage" }

func (s *StorageStage) Execute(ctx context.Context, ec *pipeline.ExecutionContext) error {
	if ec.RawArticle == nil {
		return perrors.Classify(fmt.Errorf("no article to store"), perrors.KindValidation, "stage_12", "storage")
	}
	if ec.ValidatedHTML == "" {
		ec.ValidatedHTML = renderContentHTML(ec)
	}

	citationCount := 0
	if ec.Citations != nil {
		citationCount = ec.Citations.Count()
	}

	article := interfaces.PublishedArticle{
		JobID:           ec.JobID,
		Keyword:         ec.Config.Keyword,
		CompanyName:     ec.CompanyName,
		Headline:        ec.RawArticle.Headline,
		MetaTitle:       ec.Metadata.MetaTitle,
		MetaDescription: ec.Metadata.MetaDescription,
		HTML:            ec.ValidatedHTML,
		WordCount:       ec.WordCount,
		ReadTimeMinutes: ec.ReadTimeMin,
		CitationCount:   citationCount,
	}

	var result map[string]any
	err := perrors.WithRetry(ctx, s.logger, perrors.ProfileCriticalOperation, "stage_12", "storage", func() error {
		saved, saveErr := s.store.Save(ctx, article)
		if saveErr != nil {
			return saveErr
		}
		result = saved
		return nil
	})
	if err != nil {
		return perrors.Classify(err, perrors.KindExternalService, "stage_12", "storage")
	}

	ec.StorageResult = result
	ec.FinalHTML = ec.ValidatedHTML
	return nil
}
