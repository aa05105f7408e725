package sitemap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/blogpipeline/internal/perrors"
)

func newTestCrawler(t *testing.T) *Crawler {
	t.Helper()
	logger := arbor.NewLogger()
	cfg := Config{MaxURLs: 50, MaxCacheSize: 10, RequestsPerSecond: 1000}
	return NewCrawler(cfg, perrors.NewBreakerRegistry(logger), logger)
}

func TestCrawler_CrawlParsesAndClassifiesURLset(t *testing.T) {
	var serverURL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sitemap.xml" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		body := []byte(
			"<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n" +
				"<urlset xmlns=\"http://www.sitemaps.org/schemas/sitemap/0.9\">" +
				"<url><loc>" + serverURL + "/blog/my-first-post</loc></url>" +
				"<url><loc>" + serverURL + "/about-us</loc></url>" +
				"<url><loc>" + serverURL + "/contact</loc></url>" +
				"</urlset>")
		_, _ = w.Write(body)
	}))
	defer server.Close()
	serverURL = server.URL

	crawler := newTestCrawler(t)
	result, err := crawler.Crawl(context.Background(), serverURL)
	require.NoError(t, err)
	require.Equal(t, 3, result.Count())

	counts := result.LabelCounts()
	assert.Equal(t, 1, counts["blog"])
	assert.Equal(t, 1, counts["company"])
	assert.Equal(t, 1, counts["contact"])
}

func TestCrawler_CrawlUsesCacheOnSecondCall(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"><url><loc>` + r.Host + `/blog/a</loc></url></urlset>`))
	}))
	defer server.Close()

	crawler := newTestCrawler(t)
	ctx := context.Background()

	_, err := crawler.Crawl(ctx, server.URL)
	require.NoError(t, err)
	_, err = crawler.Crawl(ctx, server.URL)
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "second crawl should be served from cache")
}

func TestCrawler_RejectsUnresolvableCompanyURL(t *testing.T) {
	crawler := newTestCrawler(t)
	_, err := crawler.Crawl(context.Background(), "")
	assert.Error(t, err)
}
