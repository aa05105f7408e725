package interfaces

import "context"

// ImageRequest describes one image to generate: a hero, mid-article,
// or bottom illustration built from the article's headline or a
// specific section's content (spec.md §4.4 stage 9).
type ImageRequest struct {
	Prompt      string
	AltText     string
	UseGraphics bool // render a simple vector/graphic instead of a photographic image
}

// ImageResult is a single generated (or placeholder) image.
type ImageResult struct {
	URL     string
	AltText string
	Credit  string
}

// ImageGenerator produces article illustrations. Concrete
// implementations wrap a model's image endpoint; the pipeline falls
// back to ImageStage's placeholder on repeated failure.
type ImageGenerator interface {
	Generate(ctx context.Context, req ImageRequest) (*ImageResult, error)
}
