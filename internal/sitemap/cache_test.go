package sitemap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/blogpipeline/internal/models"
)

func TestLRUCache_SetGet(t *testing.T) {
	c := NewLRUCache(2, 0)
	pages := &models.SitemapPageList{CompanyURL: "https://a.com"}
	c.Set("a", pages)

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, pages, got)
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache(2, 0)
	c.Set("a", &models.SitemapPageList{CompanyURL: "a"})
	c.Set("b", &models.SitemapPageList{CompanyURL: "b"})

	// touch "a" so "b" becomes the least recently used
	_, _ = c.Get("a")
	c.Set("c", &models.SitemapPageList{CompanyURL: "c"})

	_, aOK := c.Get("a")
	_, bOK := c.Get("b")
	_, cOK := c.Get("c")

	assert.True(t, aOK)
	assert.False(t, bOK)
	assert.True(t, cOK)
	assert.Equal(t, 2, c.Len())
}

func TestLRUCache_TTLExpiry(t *testing.T) {
	c := NewLRUCache(2, 10*time.Millisecond)
	c.Set("a", &models.SitemapPageList{CompanyURL: "a"})

	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok)
}
