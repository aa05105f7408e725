package interfaces

import "context"

// ProbeResult is the outcome of validating one citation URL.
type ProbeResult struct {
	URL        string
	Reachable  bool
	StatusCode int
	IsSoft404  bool
	Err        error
}

// URLProbe validates citation URLs are live before they are embedded in
// an article (spec.md §4.3 citation validation). Implementations rate
// limit their requests and classify soft-404s (a 200 status whose final,
// redirect-followed URL path looks like an error page) as unreachable.
type URLProbe interface {
	Probe(ctx context.Context, url string) ProbeResult
	ProbeAll(ctx context.Context, urls []string) []ProbeResult
}
