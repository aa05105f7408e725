package citations

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/blogpipeline/internal/models"
)

// markerPattern matches an inline "[N]" citation reference in article
// body text.
var markerPattern = regexp.MustCompile(`\[(\d+)\]`)

// LinkMarkers replaces every "[N]" marker in the article HTML with an
// anchor pointing at the matching citation's #source-N paragraph, for
// numbers present in the citation map. Unknown numbers are left as
// plain text (spec.md §4.3 linker contract).
func LinkMarkers(html string, citationMap map[int]string) string {
	return markerPattern.ReplaceAllStringFunc(html, func(match string) string {
		sub := markerPattern.FindStringSubmatch(match)
		n, err := strconv.Atoi(sub[1])
		if err != nil {
			return match
		}
		if _, ok := citationMap[n]; !ok {
			return match
		}
		return fmt.Sprintf(`<sup><a href="#source-%d" class="citation-ref">[%d]</a></sup>`, n, n)
	})
}

// RewriteAnchors walks parsed HTML and rewrites every anchor whose text
// is exactly a citation marker ("[3]") into a properly linked reference,
// for markup produced by the generator that already wraps the number in
// an <a> tag without an href (spec.md §4.3).
func RewriteAnchors(html string, citations *models.CitationList) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse article html: %w", err)
	}

	citationMap := citations.ToCitationMap()

	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		sub := markerPattern.FindStringSubmatch(text)
		if sub == nil {
			return
		}
		n, err := strconv.Atoi(sub[1])
		if err != nil {
			return
		}
		if _, ok := citationMap[n]; !ok {
			return
		}
		sel.SetAttr("href", fmt.Sprintf("#source-%d", n))
		sel.SetAttr("class", "citation-ref")
	})

	rendered, err := doc.Find("body").Html()
	if err != nil {
		return doc.Html()
	}
	return rendered, nil
}
