package citations

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ternarybob/blogpipeline/internal/interfaces"
)

// genericFallbackDomains are well-known research domains the
// alternative-source search may substitute in for a broken citation.
// IsGenericFallbackDomain reports membership, but nothing in the
// pipeline calls it, so citations on these domains get no special
// handling: they are neither rejected nor restored.
var genericFallbackDomains = map[string]bool{
	"pewresearch.org": true,
	"nist.gov":        true,
	"census.gov":      true,
	"statista.com":    true,
}

// softNotFoundMarkers are substrings of a redirect-following probe's
// final URL path that indicate a "soft 404": a 200 response that is
// actually an error page (spec.md §4.3 url validator).
var softNotFoundMarkers = []string{
	"/404",
	"/not-found",
	"/error",
	"notfound",
	"page-not-found",
}

// HTTPProbe validates citation URLs with one HEAD request each, paced by
// a single rate limiter shared across all hosts. There is no per-host
// limit, and no GET retry when a server rejects HEAD.
type HTTPProbe struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPProbe builds a probe capped at requestsPerSecond across all
// hosts, matching the original crawler's politeness budget.
func NewHTTPProbe(requestsPerSecond float64) *HTTPProbe {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	return &HTTPProbe{
		client:  &http.Client{Timeout: 5 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

var _ interfaces.URLProbe = (*HTTPProbe)(nil)

// Probe validates a single URL, implementing interfaces.URLProbe.
func (p *HTTPProbe) Probe(ctx context.Context, target string) interfaces.ProbeResult {
	if err := p.limiter.Wait(ctx); err != nil {
		return interfaces.ProbeResult{URL: target, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return interfaces.ProbeResult{URL: target, Err: err}
	}
	req.Header.Set("User-Agent", "blogpipeline-citation-validator/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return interfaces.ProbeResult{URL: target, Err: err}
	}
	defer resp.Body.Close()

	finalPath := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalPath = resp.Request.URL.Path
	}

	result := interfaces.ProbeResult{
		URL:        target,
		StatusCode: resp.StatusCode,
		Reachable:  resp.StatusCode == http.StatusOK && !isSoftNotFoundPath(finalPath),
		IsSoft404:  resp.StatusCode == http.StatusOK && isSoftNotFoundPath(finalPath),
	}
	return result
}

// isSoftNotFoundPath reports whether a redirect-followed response's
// final URL path looks like an error page dressed up as a 200 (spec.md
// §4.3: pass requires status 200 AND a final path free of any soft-404
// marker substring).
func isSoftNotFoundPath(path string) bool {
	lower := strings.ToLower(path)
	for _, marker := range softNotFoundMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ProbeAll validates every URL concurrently, preserving input order.
func (p *HTTPProbe) ProbeAll(ctx context.Context, urls []string) []interfaces.ProbeResult {
	results := make([]interfaces.ProbeResult, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			results[i] = p.Probe(ctx, u)
		}(i, u)
	}
	wg.Wait()
	return results
}

// IsGenericFallbackDomain reports whether a URL's host is one of the
// known generic research-citation domains.
func IsGenericFallbackDomain(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return genericFallbackDomains[strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")]
}

// IsCompanyURL reports whether rawURL's host shares the company
// domain's registrable portion with companyDomain.
func IsCompanyURL(rawURL, companyDomain string) bool {
	if companyDomain == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	domain := strings.TrimPrefix(strings.ToLower(companyDomain), "www.")
	return host == domain || strings.HasSuffix(host, "."+domain)
}
