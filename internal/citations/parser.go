// Package citations parses, validates, and links the numbered source
// citations a generated article's Sources block carries, replacing
// unreachable URLs and rendering the final citation list and inline
// anchors (spec.md §4.3).
package citations

import (
	"regexp"
	"strings"

	"github.com/ternarybob/blogpipeline/internal/models"
)

// strictPattern matches "[N]: https://url - Title" or "[N]: https://url Title".
var strictPattern = regexp.MustCompile(`(?m)^\s*\[(\d+)\]:\s*(https?://\S+?)(?:\s+[-–]\s+|\s+)(.+)$`)

// relaxedPattern matches any "[N]: ..." line; splitURLAndTitle then takes
// the first field as the URL and whatever follows it as the title.
var relaxedPattern = regexp.MustCompile(`(?m)^\s*\[(\d+)\]:\s*(.+)$`)

// ParseSources extracts a CitationList from a generator's raw Sources
// block. It first tries the strict URL+title pattern, then falls back
// to the relaxed pattern for any numbered line the strict pass
// missed. Citations are renumbered 1..N in appearance order regardless
// of the numbers in the source text (spec.md §4.3).
func ParseSources(sources string) *models.CitationList {
	list := &models.CitationList{}
	if strings.TrimSpace(sources) == "" {
		return list
	}

	claimed := make(map[int]bool)

	for _, m := range strictPattern.FindAllStringSubmatch(sources, -1) {
		num := atoiSafe(m[1])
		rawURL := strings.TrimSpace(m[2])
		title := strings.TrimSpace(m[3])
		if cit, err := models.NewCitation(num, rawURL, title); err == nil {
			list.Citations = append(list.Citations, cit)
			claimed[num] = true
		}
	}

	for _, m := range relaxedPattern.FindAllStringSubmatch(sources, -1) {
		num := atoiSafe(m[1])
		if claimed[num] {
			continue
		}
		rest := strings.TrimSpace(m[2])
		rawURL, title := splitURLAndTitle(rest)
		if cit, err := models.NewCitation(num, rawURL, title); err == nil {
			list.Citations = append(list.Citations, cit)
			claimed[num] = true
		}
	}

	sortByNumber(list.Citations)
	list.Renumber()
	return list
}

// splitURLAndTitle pulls the leading http(s) URL off a relaxed-match
// remainder, treating everything after it as the title.
func splitURLAndTitle(s string) (string, string) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", ""
	}
	url := fields[0]
	title := strings.TrimSpace(strings.TrimPrefix(s, url))
	return url, title
}

func sortByNumber(cs []models.Citation) {
	for i := 1; i < len(cs); i++ {
		for j := i; j > 0 && cs[j].Number < cs[j-1].Number; j-- {
			cs[j], cs[j-1] = cs[j-1], cs[j]
		}
	}
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}
