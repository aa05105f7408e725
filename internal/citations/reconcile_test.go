package citations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/blogpipeline/internal/interfaces"
	"github.com/ternarybob/blogpipeline/internal/models"
)

func mustCitation(t *testing.T, n int, url, title string) models.Citation {
	t.Helper()
	c, err := models.NewCitation(n, url, title)
	require.NoError(t, err)
	return c
}

func TestReconcile_KeepsReachableCitation(t *testing.T) {
	original := &models.CitationList{Citations: []models.Citation{
		mustCitation(t, 1, "https://example.com/a", "A"),
	}}
	results := []interfaces.ProbeResult{{URL: "https://example.com/a", Reachable: true}}

	out := Reconcile(original, results, "acme.com", nil, nil)
	require.Equal(t, 1, out.Count())
	assert.Equal(t, "https://example.com/a", out.Citations[0].URL)
}

func TestReconcile_RejectsUnreachableCompanyURL(t *testing.T) {
	original := &models.CitationList{Citations: []models.Citation{
		mustCitation(t, 1, "https://acme.com/broken-page", "Broken"),
	}}
	results := []interfaces.ProbeResult{{URL: "https://acme.com/broken-page", Reachable: false}}

	out := Reconcile(original, results, "acme.com", nil, nil)
	assert.Equal(t, 0, out.Count(), "an unreachable company URL must be dropped, never restored")
}

func TestReconcile_MarksUnverifiedThirdPartyURL(t *testing.T) {
	original := &models.CitationList{Citations: []models.Citation{
		mustCitation(t, 1, "https://thirdparty.com/x", "Third Party Source"),
	}}
	results := []interfaces.ProbeResult{{URL: "https://thirdparty.com/x", Reachable: false}}

	out := Reconcile(original, results, "acme.com", nil, nil)
	require.Equal(t, 1, out.Count())
	assert.Contains(t, out.Citations[0].Title, "[UNVERIFIED]")
}

func TestReconcile_UsesAlternativeWhenFound(t *testing.T) {
	original := &models.CitationList{Citations: []models.Citation{
		mustCitation(t, 1, "https://acme.com/broken-page", "Broken"),
	}}
	results := []interfaces.ProbeResult{{URL: "https://acme.com/broken-page", Reachable: false}}
	findAlt := func(c models.Citation) (string, bool) {
		return "https://pewresearch.org/replacement", true
	}

	out := Reconcile(original, results, "acme.com", nil, findAlt)
	require.Equal(t, 1, out.Count())
	assert.Equal(t, "https://pewresearch.org/replacement", out.Citations[0].URL)
}

func TestReconcile_RejectsAlternativeOnCompetitorDomain(t *testing.T) {
	original := &models.CitationList{Citations: []models.Citation{
		mustCitation(t, 1, "https://thirdparty.com/x", "Third Party Source"),
	}}
	results := []interfaces.ProbeResult{{URL: "https://thirdparty.com/x", Reachable: false}}
	findAlt := func(c models.Citation) (string, bool) {
		return "https://widgetify.com/replacement", true
	}

	out := Reconcile(original, results, "acme.com", []string{"widgetify.com"}, findAlt)
	require.Equal(t, 1, out.Count())
	assert.Contains(t, out.Citations[0].Title, "[UNVERIFIED]")
}
