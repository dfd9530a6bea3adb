package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSources(t *testing.T) {
	md := `# Report

According to [the Go blog](https://go.dev/blog/ "Go") and [**docs**](https://go.dev/doc/),
see also https://example.com/a and again [dup](https://go.dev/blog/).

A [relative link](/local) and <mailto:someone@example.com> are ignored.`

	sources := ExtractSources(md)
	require.Len(t, sources, 3)
	assert.Equal(t, map[string]any{"url": "https://go.dev/blog/", "title": "the Go blog"}, sources[0])
	assert.Equal(t, map[string]any{"url": "https://go.dev/doc/", "title": "docs"}, sources[1])
	assert.Equal(t, map[string]any{"url": "https://example.com/a", "title": "https://example.com/a"}, sources[2])
}

func TestExtractSourcesEmpty(t *testing.T) {
	sources := ExtractSources("no links here")
	assert.NotNil(t, sources)
	assert.Empty(t, sources)
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML("## Summary\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")
	require.NoError(t, err)
	assert.Contains(t, html, "<h2>Summary</h2>")
	assert.Contains(t, html, "<table>")
}
