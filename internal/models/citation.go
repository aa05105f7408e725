package models

import (
	"fmt"
	"net/url"
	"strings"
)

// Citation is one numbered source reference (spec.md §3.1).
type Citation struct {
	Number          int    `json:"number"`
	URL             string `json:"url"`
	Title           string `json:"title"`
	MetaDescription string `json:"meta_description,omitempty"`
}

// NewCitation validates and constructs a Citation. Relative URLs are
// rejected per spec.md §4.3 parser rule.
func NewCitation(number int, rawURL, title string) (Citation, error) {
	if number < 1 {
		return Citation{}, fmt.Errorf("citation number must be >= 1, got %d", number)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Citation{}, fmt.Errorf("invalid citation url %q: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Citation{}, fmt.Errorf("citation url must be absolute http/https, got %q", rawURL)
	}
	return Citation{Number: number, URL: rawURL, Title: strings.TrimSpace(title)}, nil
}

// CitationList is an ordered sequence of citations. Numbers are
// reassigned to 1..N by Renumber after any filtering (spec.md §3.1).
type CitationList struct {
	Citations []Citation `json:"citations"`
}

// Count returns the number of citations.
func (c *CitationList) Count() int {
	if c == nil {
		return 0
	}
	return len(c.Citations)
}

// Renumber reassigns Number fields to 1..N in slice order.
func (c *CitationList) Renumber() {
	for i := range c.Citations {
		c.Citations[i].Number = i + 1
	}
}

// Filter returns a new CitationList containing only citations for
// which keep returns true, renumbered contiguously.
func (c *CitationList) Filter(keep func(Citation) bool) *CitationList {
	out := &CitationList{}
	for _, cit := range c.Citations {
		if keep(cit) {
			out.Citations = append(out.Citations, cit)
		}
	}
	out.Renumber()
	return out
}

// ToCitationMap builds the {number -> url} map the HTML renderer uses
// to resolve #source-N anchors (spec.md §4.3).
func (c *CitationList) ToCitationMap() map[int]string {
	m := make(map[int]string, len(c.Citations))
	for _, cit := range c.Citations {
		m[cit.Number] = cit.URL
	}
	return m
}

// ToHTMLParagraphList renders the citation list as a superscript-anchored
// paragraph list, one <p id="source-N"> per citation.
func (c *CitationList) ToHTMLParagraphList() string {
	if c.Count() == 0 {
		return ""
	}
	var b strings.Builder
	for _, cit := range c.Citations {
		fmt.Fprintf(&b, `<p id="source-%d">[%d] <a href="%s" rel="noopener nofollow" target="_blank">%s</a></p>`+"\n",
			cit.Number, cit.Number, htmlAttrEscape(cit.URL), htmlTextEscape(cit.Title))
	}
	return b.String()
}

func htmlAttrEscape(s string) string {
	r := strings.NewReplacer(`&`, "&amp;", `"`, "&quot;", `<`, "&lt;", `>`, "&gt;")
	return r.Replace(s)
}

func htmlTextEscape(s string) string {
	r := strings.NewReplacer(`&`, "&amp;", `<`, "&lt;", `>`, "&gt;")
	return r.Replace(s)
}
