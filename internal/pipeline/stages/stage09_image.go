package stages

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/blogpipeline/internal/interfaces"
	"github.com/ternarybob/blogpipeline/internal/models"
	"github.com/ternarybob/blogpipeline/internal/perrors"
	"github.com/ternarybob/blogpipeline/internal/pipeline"
)

const maxAltTextLen = 125

// ImageStage generates the article's three images (hero, mid-article,
// bottom) in parallel, retrying each under the image_generation
// profile and circuit breaker before falling back to a placeholder
// (spec.md §4.4 stage 9).
type ImageStage struct {
	generator interfaces.ImageGenerator
	breakers  *perrors.BreakerRegistry
	logger    arbor.ILogger
}

func NewImageStage(generator interfaces.ImageGenerator, breakers *perrors.BreakerRegistry, logger arbor.ILogger) *ImageStage {
	return &ImageStage{generator: generator, breakers: breakers, logger: logger}
}

func (s *ImageStage) Number() int  { return 9 }
func (s *ImageStage) Name() string { return "image" }

func (s *ImageStage) ExecuteParallel(ctx context.Context, h *pipeline.ParallelHandle) error {
	article := h.RawArticle()
	if article == nil {
		return h.Put(pipeline.KeyImages, []models.ArticleImage{})
	}

	sections := article.NonEmptySections()
	requests := []interfaces.ImageRequest{
		{Prompt: article.Headline, AltText: truncateAlt(article.Headline), UseGraphics: h.Config().UseGraphics},
		{Prompt: sectionSpan(sections, 2, 3), AltText: truncateAlt(article.Headline + " illustration"), UseGraphics: h.Config().UseGraphics},
		{Prompt: sectionSpan(sections, 5, 6), AltText: truncateAlt(article.Headline + " detail"), UseGraphics: h.Config().UseGraphics},
	}

	images := make([]models.ArticleImage, len(requests))
	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req interfaces.ImageRequest) {
			defer wg.Done()
			images[i] = s.generateOne(ctx, req)
		}(i, req)
	}
	wg.Wait()

	return h.Put(pipeline.KeyImages, images)
}

func (s *ImageStage) generateOne(ctx context.Context, req interfaces.ImageRequest) models.ArticleImage {
	var result *interfaces.ImageResult
	err := perrors.WithRetry(ctx, s.logger, perrors.ProfileImageGeneration, "stage_09", "image_generation", func() error {
		raw, execErr := s.breakers.Execute(perrors.ServiceImageGeneration, func() (any, error) {
			return s.generator.Generate(ctx, req)
		})
		if execErr != nil {
			return perrors.Classify(execErr, perrors.KindExternalService, "stage_09", "image_generation")
		}
		result = raw.(*interfaces.ImageResult)
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("alt_text", req.AltText).Msg("image generation failed, using placeholder")
		return perrors.FallbackImageURL(req.AltText)
	}
	return models.ArticleImage{URL: result.URL, AltText: truncateAlt(result.AltText), Credit: result.Credit}
}

// sectionSpan joins section titles/content from index `from` through
// `to` (1-based, inclusive) into an image prompt, tolerating a shorter
// section list.
func sectionSpan(sections []models.ArticleSection, from, to int) string {
	var out string
	for i := from - 1; i < to && i < len(sections); i++ {
		if i < 0 {
			continue
		}
		out += fmt.Sprintf("%s. ", sections[i].Title)
	}
	return out
}

func truncateAlt(s string) string {
	r := []rune(s)
	if len(r) <= maxAltTextLen {
		return s
	}
	return string(r[:maxAltTextLen])
}
