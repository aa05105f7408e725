package citations

import (
	"net/url"
	"strings"

	"github.com/ternarybob/blogpipeline/internal/interfaces"
	"github.com/ternarybob/blogpipeline/internal/models"
)

// AlternativeFinder looks up a replacement URL for a citation whose
// original URL failed validation, typically by re-running a web search
// for the citation's title plus the article's keyword.
type AlternativeFinder func(models.Citation) (url string, found bool)

// Reconcile applies validation results to a parsed citation list:
//   - a reachable citation is kept unchanged
//   - an unreachable citation is offered to AlternativeFinder first; a
//     replacement is accepted unless it itself resolves to the
//     company's own domain or one of competitorDomains (spec.md §4.3:
//     "filtering out the company's own domain ... competitor domains
//     ... and a configured forbidden-domain list")
//   - failing that, an unreachable citation pointing at the company's
//     own domain is rejected outright, never restored (spec.md §4.3,
//     Open Question b)
//   - any other unreachable citation is kept but flagged [UNVERIFIED]
//     rather than silently dropped, so the article still cites a source
//     even if it could not be freshly confirmed
//
// The result is renumbered 1..N in survivor order.
func Reconcile(original *models.CitationList, results []interfaces.ProbeResult, companyDomain string, competitorDomains []string, findAlt AlternativeFinder) *models.CitationList {
	byURL := make(map[string]interfaces.ProbeResult, len(results))
	for _, r := range results {
		byURL[r.URL] = r
	}

	out := &models.CitationList{}
	for _, cit := range original.Citations {
		res, probed := byURL[cit.URL]
		if probed && res.Reachable {
			out.Citations = append(out.Citations, cit)
			continue
		}

		if findAlt != nil {
			if altURL, found := findAlt(cit); found && altURLAllowed(altURL, companyDomain, competitorDomains) {
				cit.URL = altURL
				out.Citations = append(out.Citations, cit)
				continue
			}
		}

		if IsCompanyURL(cit.URL, companyDomain) {
			continue // rejected: never restore a broken company URL
		}

		cit.Title = "[UNVERIFIED] " + cit.Title
		out.Citations = append(out.Citations, cit)
	}

	out.Renumber()
	return out
}

// altURLAllowed rejects an alternative-finder replacement that points
// back at the company's own domain or a named competitor's, so the
// alternative finder can't launder a dead company link into a live one
// (spec.md §4.3).
func altURLAllowed(altURL, companyDomain string, competitorDomains []string) bool {
	if IsCompanyURL(altURL, companyDomain) {
		return false
	}
	for _, competitor := range competitorDomains {
		if domainOf(competitor) == "" {
			continue
		}
		if IsCompanyURL(altURL, domainOf(competitor)) {
			return false
		}
	}
	return true
}

// domainOf normalizes a competitor entry that may be a bare domain or
// a full URL into the host IsCompanyURL compares against. Entries that
// don't resemble either (a competitor's display name rather than its
// domain) compare harmlessly against nothing.
func domainOf(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	}
	return strings.TrimPrefix(strings.ToLower(raw), "www.")
}
