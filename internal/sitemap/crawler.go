package sitemap

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/blogpipeline/internal/models"
	"github.com/ternarybob/blogpipeline/internal/perrors"
)

// dangerousSchemes are URL schemes a sitemap must never point us at
// (spec.md §4.2 URL validation).
var dangerousSchemes = map[string]bool{
	"javascript":      true,
	"file":            true,
	"data":            true,
	"vbscript":        true,
	"about":           true,
	"chrome":          true,
	"chrome-extension": true,
}

// candidateSuffixes are the sitemap locations tried in order against a
// company's root URL (spec.md §4.2 crawl).
var candidateSuffixes = []string{"/sitemap.xml", "/sitemap_index.xml", "/sitemap/sitemap.xml"}

// urlset is the XML shape of a plain sitemap (encoding/xml has no DTD
// or external-entity expansion, so the XXE hardening the Python source
// needed from defusedxml is structural here rather than a library
// choice).
type urlset struct {
	XMLName xml.Name    `xml:"urlset"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc string `xml:"loc"`
}

type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []sitemapRef `xml:"sitemap"`
}

type sitemapRef struct {
	Loc string `xml:"loc"`
}

// Durable is the write-through backing store layered under the
// in-memory LRUCache so a crawl result survives a process restart
// (spec.md §4.2 cache, SPEC_FULL.md domain stack: badger-backed
// durable half of the sitemap cache).
type Durable interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

// Crawler fetches and classifies a company's sitemap (spec.md §4.2).
type Crawler struct {
	httpClient *http.Client
	cache      *LRUCache
	durable    Durable
	limiter    *rate.Limiter
	breakers   *perrors.BreakerRegistry
	logger     arbor.ILogger
	maxURLs    int
}

// Config controls crawler limits (spec.md §4.2).
type Config struct {
	MaxURLs      int
	MaxCacheSize int
	CacheTTL     time.Duration
	// RequestsPerSecond caps politeness-delay pacing per crawl.
	RequestsPerSecond float64
}

// DefaultConfig mirrors the crawler's original defaults.
func DefaultConfig() Config {
	return Config{
		MaxURLs:           500,
		MaxCacheSize:      100,
		CacheTTL:          24 * time.Hour,
		RequestsPerSecond: 2,
	}
}

// NewCrawler builds a Crawler. cfg.MaxURLs and cfg.MaxCacheSize must be
// positive; invalid values fall back to DefaultConfig.
func NewCrawler(cfg Config, breakers *perrors.BreakerRegistry, logger arbor.ILogger) *Crawler {
	if cfg.MaxURLs <= 0 || cfg.MaxCacheSize <= 0 {
		cfg = DefaultConfig()
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	return &Crawler{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		cache:      NewLRUCache(cfg.MaxCacheSize, cfg.CacheTTL),
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		breakers:   breakers,
		logger:     logger,
		maxURLs:    cfg.MaxURLs,
	}
}

// WithDurable layers a durable cache under the in-memory LRU. Safe to
// call once, right after NewCrawler; crawls before this call simply
// don't benefit from cross-restart caching.
func (c *Crawler) WithDurable(d Durable) *Crawler {
	c.durable = d
	return c
}

// Crawl fetches, parses, classifies, and caches the sitemap for
// companyURL. A cache hit skips every network call (spec.md §4.2).
func (c *Crawler) Crawl(ctx context.Context, companyURL string) (*models.SitemapPageList, error) {
	normalized, err := normalizeCompanyURL(companyURL)
	if err != nil {
		return nil, perrors.Classify(err, perrors.KindValidation, "stage_00", "sitemap_crawler")
	}

	cacheKey := fmt.Sprintf("%s:%d", normalized, c.maxURLs)
	if cached, ok := c.cache.Get(cacheKey); ok {
		c.logger.Debug().Str("company_url", normalized).Msg("sitemap cache hit")
		return cached, nil
	}
	if cached, ok := c.durableGet(cacheKey); ok {
		c.logger.Debug().Str("company_url", normalized).Msg("sitemap durable cache hit")
		c.cache.Set(cacheKey, cached)
		return cached, nil
	}

	locs, err := c.fetchAllLocations(ctx, normalized)
	if err != nil {
		return nil, err
	}

	pages := make([]models.SitemapPage, 0, len(locs))
	seen := make(map[string]bool, len(locs))
	for _, loc := range locs {
		if len(pages) >= c.maxURLs {
			break
		}
		if seen[loc] {
			continue
		}
		seen[loc] = true
		if !c.isValidURL(loc) {
			continue
		}
		parsed, err := url.Parse(loc)
		if err != nil {
			continue
		}
		pages = append(pages, ClassifyPage(loc, parsed.Path))
	}

	result := &models.SitemapPageList{
		Pages:          pages,
		CompanyURL:     normalized,
		TotalURLs:      len(pages),
		FetchTimestamp: time.Now(),
	}
	c.cache.Set(cacheKey, result)
	c.durableSet(cacheKey, result)
	return result, nil
}

func (c *Crawler) durableGet(key string) (*models.SitemapPageList, bool) {
	if c.durable == nil {
		return nil, false
	}
	data, ok := c.durable.Get(key)
	if !ok {
		return nil, false
	}
	var pages models.SitemapPageList
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, false
	}
	return &pages, true
}

func (c *Crawler) durableSet(key string, pages *models.SitemapPageList) {
	if c.durable == nil {
		return
	}
	data, err := json.Marshal(pages)
	if err != nil {
		return
	}
	c.durable.Set(key, data)
}

// fetchAllLocations tries each candidate sitemap location (and its www
// mirror) in turn, returning the first one that parses successfully.
func (c *Crawler) fetchAllLocations(ctx context.Context, companyURL string) ([]string, error) {
	candidates := c.candidateURLs(companyURL)

	var lastErr error
	for _, candidate := range candidates {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, status, err := c.fetch(ctx, candidate)
		if err != nil {
			lastErr = err
			continue
		}
		if status == http.StatusNotFound || status == http.StatusForbidden || status == http.StatusUnauthorized {
			continue
		}
		if status >= 500 || status == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("sitemap fetch %s: status %d", candidate, status)
			continue
		}

		locs, isIndex, err := parseSitemapXML(body)
		if err != nil {
			lastErr = err
			continue
		}
		if !isIndex {
			return locs, nil
		}
		return c.fetchSubSitemaps(ctx, locs), nil
	}

	if lastErr != nil {
		return nil, perrors.Classify(lastErr, perrors.KindExternalService, "stage_00", "sitemap_crawler")
	}
	return nil, perrors.Classify(fmt.Errorf("no sitemap found for %s", companyURL), perrors.KindExternalService, "stage_00", "sitemap_crawler")
}

func (c *Crawler) candidateURLs(companyURL string) []string {
	var out []string
	for _, suffix := range candidateSuffixes {
		out = append(out, strings.TrimRight(companyURL, "/")+suffix)
	}
	if u, err := url.Parse(companyURL); err == nil && !strings.HasPrefix(u.Host, "www.") {
		mirror := *u
		mirror.Host = "www." + u.Host
		for _, suffix := range candidateSuffixes {
			out = append(out, strings.TrimRight(mirror.String(), "/")+suffix)
		}
	}
	return out
}

// fetchSubSitemaps concurrently fetches every sub-sitemap referenced by
// a sitemap index and merges their page URLs, tolerating individual
// failures (spec.md §4.2: a broken sub-sitemap degrades, it doesn't
// fail the crawl).
func (c *Crawler) fetchSubSitemaps(ctx context.Context, subLocs []string) []string {
	var (
		mu  sync.Mutex
		out []string
		wg  sync.WaitGroup
	)

	sem := make(chan struct{}, 5)
	for _, loc := range subLocs {
		wg.Add(1)
		go func(loc string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := c.limiter.Wait(ctx); err != nil {
				return
			}
			body, status, err := c.fetch(ctx, loc)
			if err != nil || status != http.StatusOK {
				c.logger.Debug().Str("sub_sitemap", loc).Err(err).Msg("sub-sitemap fetch failed, skipping")
				return
			}
			locs, _, err := parseSitemapXML(body)
			if err != nil {
				return
			}
			mu.Lock()
			out = append(out, locs...)
			mu.Unlock()
		}(loc)
	}
	wg.Wait()
	return out
}

func (c *Crawler) fetch(ctx context.Context, target string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", "blogpipeline-sitemap-crawler/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func (c *Crawler) isValidURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if dangerousSchemes[scheme] {
		return false
	}
	if scheme != "http" && scheme != "https" {
		return false
	}
	return strings.Contains(u.Host, ".")
}

// parseSitemapXML decodes either a <urlset> or <sitemapindex> document
// and returns the <loc> values, flagging whether it was an index.
func parseSitemapXML(body []byte) ([]string, bool, error) {
	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err == nil && len(index.Sitemaps) > 0 {
		locs := make([]string, 0, len(index.Sitemaps))
		for _, s := range index.Sitemaps {
			locs = append(locs, strings.TrimSpace(s.Loc))
		}
		return locs, true, nil
	}

	var set urlset
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, false, fmt.Errorf("parse sitemap xml: %w", err)
	}
	locs := make([]string, 0, len(set.URLs))
	for _, u := range set.URLs {
		locs = append(locs, strings.TrimSpace(u.Loc))
	}
	return locs, false, nil
}

func normalizeCompanyURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("company_url is empty")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid company_url %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("company_url %q has no host", raw)
	}
	return strings.TrimRight(u.Scheme+"://"+u.Host, "/"), nil
}
