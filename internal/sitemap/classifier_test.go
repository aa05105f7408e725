package sitemap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/blogpipeline/internal/models"
)

func TestClassifyPage_Blog(t *testing.T) {
	page := ClassifyPage("https://example.com/blog/how-to-scale", "/blog/how-to-scale")
	assert.Equal(t, models.LabelBlog, page.Label)
	assert.Greater(t, page.Confidence, 0.1)
}

func TestClassifyPage_Other(t *testing.T) {
	page := ClassifyPage("https://example.com/xyz123", "/xyz123")
	assert.Equal(t, models.LabelOther, page.Label)
	assert.Equal(t, 0.1, page.Confidence)
}

func TestClassifyPage_MultiplePatternsIncreaseConfidence(t *testing.T) {
	single := ClassifyPage("https://example.com/contact", "/contact")
	assert.Equal(t, models.LabelContact, single.Label)
	assert.InDelta(t, 0.4, single.Confidence, 0.001)

	multiple := ClassifyPage("https://example.com/blog/news", "/blog/news")
	assert.Equal(t, models.LabelBlog, multiple.Label)
	assert.InDelta(t, 0.8, multiple.Confidence, 0.001)
	assert.Greater(t, multiple.Confidence, single.Confidence)
}

func TestTitleFromPath(t *testing.T) {
	cases := map[string]string{
		"/blog/how-to-scale-a-startup": "How To Scale A Startup",
		"/":                            "Untitled",
		"/about_us":                    "About Us",
	}
	for path, want := range cases {
		assert.Equal(t, want, TitleFromPath(path), "path=%s", path)
	}
}
