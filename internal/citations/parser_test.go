package citations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSources_StrictFormat(t *testing.T) {
	sources := "[1]: https://example.com/report - Annual Industry Report\n" +
		"[2]: https://other.com/data - Census Data\n"

	list := ParseSources(sources)
	require.Equal(t, 2, list.Count())
	assert.Equal(t, "https://example.com/report", list.Citations[0].URL)
	assert.Equal(t, "Annual Industry Report", list.Citations[0].Title)
	assert.Equal(t, 1, list.Citations[0].Number)
	assert.Equal(t, 2, list.Citations[1].Number)
}

func TestParseSources_RelaxedFallback(t *testing.T) {
	sources := "[1]: https://example.com/report some loose title text\n"

	list := ParseSources(sources)
	require.Equal(t, 1, list.Count())
	assert.Equal(t, "https://example.com/report", list.Citations[0].URL)
}

func TestParseSources_RenumbersContiguously(t *testing.T) {
	sources := "[5]: https://a.com/x - A\n[9]: https://b.com/y - B\n"

	list := ParseSources(sources)
	require.Equal(t, 2, list.Count())
	assert.Equal(t, 1, list.Citations[0].Number)
	assert.Equal(t, 2, list.Citations[1].Number)
}

func TestParseSources_Empty(t *testing.T) {
	list := ParseSources("")
	assert.Equal(t, 0, list.Count())
}
