package citations

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/blogpipeline/internal/interfaces"
	"github.com/ternarybob/blogpipeline/internal/models"
)

// NewGeneratorAlternativeFinder builds an AlternativeFinder backed by a
// web-search-grounded generator call: for a citation whose URL failed
// validation, it asks the generator to name a current, reputable page
// supporting the same claim and takes the first grounding URL the
// response surfaces (spec.md §4.3 "for failed URLs, a secondary
// validator asks the generator with web search for a replacement
// URL"). Returns nil if generator is nil, so callers can pass it
// straight to Reconcile without a separate offline-mode check.
func NewGeneratorAlternativeFinder(ctx context.Context, generator interfaces.Generator, keyword string, logger arbor.ILogger) AlternativeFinder {
	if generator == nil {
		return nil
	}
	return func(cit models.Citation) (string, bool) {
		prompt := fmt.Sprintf(
			"The article's topic is %q. A cited source titled %q at %s is no longer reachable. "+
				"Find one current, reputable page that supports the same claim. Reply with just the URL.",
			keyword, cit.Title, cit.URL,
		)
		resp, err := generator.Generate(ctx, interfaces.GenerateRequest{
			Model:        "gemini/",
			UserPrompt:   prompt,
			UseWebSearch: true,
		})
		if err != nil {
			logger.Warn().Err(err).Str("url", cit.URL).Msg("alternative citation lookup failed")
			return "", false
		}

		urls, _ := resp.Raw["grounding_urls"].([]any)
		for _, u := range urls {
			if s, ok := u.(string); ok && s != "" && s != cit.URL {
				return s, true
			}
		}
		return "", false
	}
}
