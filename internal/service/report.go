package service

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// ExtractSources lists the distinct links of a markdown report in order of
// appearance. Bare URLs count as links.
func ExtractSources(md string) []map[string]any {
	src := []byte(md)
	doc := markdown.Parser().Parse(text.NewReader(src))

	sources := []map[string]any{}
	seen := make(map[string]bool)
	add := func(url, title string) {
		if url == "" || seen[url] {
			return
		}
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return
		}
		seen[url] = true
		if title == "" {
			title = url
		}
		sources = append(sources, map[string]any{"url": url, "title": title})
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Link:
			add(string(node.Destination), nodeText(node, src))
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			add(string(node.URL(src)), "")
		}
		return ast.WalkContinue, nil
	})
	return sources
}

func nodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(src))
			continue
		}
		b.WriteString(nodeText(c, src))
	}
	return strings.TrimSpace(b.String())
}

// RenderHTML converts a markdown report to HTML.
func RenderHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}
