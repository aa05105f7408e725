package perrors

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ternarybob/blogpipeline/internal/models"
)

// FallbackImageURL returns a placeholder image used when image
// generation fails and the job is not in a critical stage (spec.md §4.1
// graceful degradation).
func FallbackImageURL(altText string) models.ArticleImage {
	return models.ArticleImage{
		URL:     "https://placehold.co/1200x630?text=" + url.QueryEscape(altText),
		AltText: altText,
		Credit:  "placeholder",
	}
}

// FallbackCitationURL returns a generic search URL used when a citation
// cannot be validated or replaced with a live source.
func FallbackCitationURL(query string) string {
	return "https://www.google.com/search?q=" + url.QueryEscape(query)
}

// SimpleInternalLinks derives a minimal internal-link set directly from
// a company's sitemap pages when the scoring stage fails, picking the
// first few blog, product or service pages with no relevance weighting.
func SimpleInternalLinks(pages []models.SitemapPage, max int) []models.InternalLink {
	var out []models.InternalLink
	for _, p := range pages {
		if p.Label != models.LabelBlog && p.Label != models.LabelProduct && p.Label != models.LabelService {
			continue
		}
		out = append(out, models.InternalLink{
			URL:       p.URL,
			Title:     p.Title,
			Relevance: 5,
			Domain:    hostOf(p.URL),
		})
		if len(out) >= max {
			break
		}
	}
	return out
}

// BasicMetaDescription truncates the intro paragraph to a safe meta
// description length when metadata generation fails.
func BasicMetaDescription(intro, keyword string) string {
	const maxLen = 155
	text := strings.TrimSpace(intro)
	if text == "" {
		return fmt.Sprintf("Learn about %s in this comprehensive guide.", keyword)
	}
	if len(text) <= maxLen {
		return text
	}
	cut := text[:maxLen]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
