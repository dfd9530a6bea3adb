package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"golang.org/x/net/html"
)

const (
	fetchUserAgent = "Mozilla/5.0 (compatible; DeepResearchAgent/1.0)"

	// DefaultMaxFetchBytes caps how much of a page is read.
	DefaultMaxFetchBytes = 5 << 20
)

// Elements dropped before conversion.
var strippedElements = map[string]bool{
	"script": true,
	"style":  true,
	"nav":    true,
	"footer": true,
	"header": true,
}

// FetchArgs are the arguments of fetch_url.
type FetchArgs struct {
	URL       string `json:"url" jsonschema:"description=The URL to fetch."`
	MaxLength int    `json:"max_length,omitempty" jsonschema:"description=Maximum content length to return (default 50000).,default=50000"`
}

// Fetcher downloads pages and converts them to markdown. Bodies beyond
// MaxBodyBytes are cut off before conversion.
type Fetcher struct {
	Client       *http.Client
	MaxBodyBytes int64
	conv         *converter.Converter
}

// NewFetcher creates a fetcher with a 30 second timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{
		Client:       &http.Client{Timeout: 30 * time.Second},
		MaxBodyBytes: DefaultMaxFetchBytes,
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

// Tool returns the fetch_url tool.
func (f *Fetcher) Tool() Tool {
	return NewTool("fetch_url",
		"Fetch a URL and convert its content to markdown format.",
		f.Fetch)
}

// Fetch downloads args.URL and returns its content as markdown.
func (f *Fetcher) Fetch(ctx context.Context, args FetchArgs) string {
	if args.MaxLength <= 0 {
		args.MaxLength = 50000
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, args.URL, nil)
	if err != nil {
		return fmt.Sprintf("Error fetching URL: %v", err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Sprintf("Error fetching URL: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Sprintf("Error fetching URL: HTTP %d", resp.StatusCode)
	}

	limit := f.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxFetchBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return fmt.Sprintf("Error fetching URL: %v", err)
	}

	markdown, err := f.toMarkdown(string(body))
	if err != nil {
		return fmt.Sprintf("Error fetching URL: %v", err)
	}

	cleaned := cleanLines(markdown)
	if r := []rune(cleaned); len(r) > args.MaxLength {
		cleaned = string(r[:args.MaxLength]) + "\n\n[Content truncated...]"
	}
	return fmt.Sprintf("**Source:** %s\n\n%s", args.URL, cleaned)
}

func (f *Fetcher) toMarkdown(page string) (string, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	stripElements(doc)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}
	return f.conv.ConvertString(buf.String())
}

func stripElements(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && strippedElements[c.Data] {
			n.RemoveChild(c)
		} else {
			stripElements(c)
		}
		c = next
	}
}

// cleanLines trims every line and drops the blank ones.
func cleanLines(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
