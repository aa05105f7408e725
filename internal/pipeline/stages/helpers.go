package stages

import (
	"net/url"
	"regexp"
	"strings"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// stripTags removes HTML markup for word counts and text analysis,
// leaving the visible text behind.
func stripTags(s string) string {
	return tagPattern.ReplaceAllString(s, " ")
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// slugify lowercases and hyphenates a title into an anchor/slug
// segment, trimming leading/trailing hyphens.
func slugify(s string) string {
	lower := strings.ToLower(s)
	slug := nonSlugChars.ReplaceAllString(lower, "-")
	return strings.Trim(slug, "-")
}

// hostOf extracts the lowercase, www-stripped host from a URL string,
// returning the input unchanged if it doesn't parse as a URL.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.ToLower(rawURL)
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
