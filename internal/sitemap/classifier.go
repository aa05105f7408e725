// Package sitemap crawls a company's sitemap (or a plain URL list),
// classifies each page by the kind of content it likely holds, and
// caches the result so repeated jobs for the same company don't
// re-fetch and re-parse the same XML (spec.md §4.2).
package sitemap

import (
	"regexp"
	"strings"

	"github.com/ternarybob/blogpipeline/internal/models"
)

// patternScore is how much a single regex match contributes toward a
// label's classification score (spec.md §4.2 classification). Multiple
// matching patterns for the same label stack, capped at 1.0 confidence.
const patternScore = 0.4

// otherBaseScore is the score "other" starts with, so a page matching
// nothing still resolves to a label instead of failing classification.
const otherBaseScore = 0.1

type labelPattern struct {
	label    models.PageLabel
	patterns []*regexp.Regexp
}

var classifierPatterns = buildPatterns(map[models.PageLabel][]string{
	models.LabelBlog:     {`/blog/?`, `/news/?`, `/articles?/?`, `/insights?/?`, `/press/?`},
	models.LabelProduct:  {`/products?/?`, `/solutions?/?`, `/platform/?`, `/features?/?`},
	models.LabelService:  {`/services?/?`, `/offerings?/?`},
	models.LabelDocs:     {`/docs?/?`, `/documentation/?`, `/help/?`, `/support/?`, `/guide/?`, `/api-reference/?`},
	models.LabelResource: {`/resources?/?`, `/whitepapers?/?`, `/case-studies?/?`, `/ebooks?/?`, `/webinars?/?`},
	models.LabelCompany:  {`/about(-us)?/?`, `/team/?`, `/company/?`, `/careers?/?`, `/leadership/?`},
	models.LabelLegal:    {`/privacy(-policy)?/?`, `/terms(-of-service)?/?`, `/legal/?`, `/cookie-policy/?`},
	models.LabelContact:  {`/contact(-us)?/?`},
	models.LabelLanding:  {`/lp/?`, `/landing/?`, `/demo/?`, `/free-trial/?`},
})

func buildPatterns(spec map[models.PageLabel][]string) []labelPattern {
	out := make([]labelPattern, 0, len(spec))
	for label, raw := range spec {
		compiled := make([]*regexp.Regexp, 0, len(raw))
		for _, p := range raw {
			compiled = append(compiled, regexp.MustCompile(p))
		}
		out = append(out, labelPattern{label: label, patterns: compiled})
	}
	return out
}

// ClassifyPage scores a URL's path against every label's pattern set and
// returns the best-scoring label with its confidence, defaulting to
// "other" when nothing matches (spec.md §4.2).
func ClassifyPage(rawURL, path string) models.SitemapPage {
	lower := strings.ToLower(path)

	bestLabel := models.LabelOther
	bestScore := otherBaseScore

	for _, lp := range classifierPatterns {
		score := 0.0
		for _, re := range lp.patterns {
			if re.MatchString(lower) {
				score += patternScore
			}
		}
		if score > bestScore {
			bestScore = score
			bestLabel = lp.label
		}
	}

	confidence := bestScore
	if confidence > 1.0 {
		confidence = 1.0
	}

	return models.SitemapPage{
		URL:        rawURL,
		Path:       path,
		Label:      bestLabel,
		Title:      TitleFromPath(path),
		Confidence: confidence,
	}
}

// TitleFromPath derives a human-readable title from the last non-empty
// URL path segment: hyphens and underscores become spaces, and the
// result is title-cased. Falls back to "Untitled" for an empty path
// (spec.md §4.2).
func TitleFromPath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	var last string
	for i := len(segments) - 1; i >= 0; i-- {
		if strings.TrimSpace(segments[i]) != "" {
			last = segments[i]
			break
		}
	}
	if last == "" {
		return "Untitled"
	}
	last = strings.ReplaceAll(last, "-", " ")
	last = strings.ReplaceAll(last, "_", " ")
	return toTitleCase(last)
}

func toTitleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
