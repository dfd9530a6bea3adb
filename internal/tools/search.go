package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SearchArgs are the arguments of tavily_search.
type SearchArgs struct {
	Query      string `json:"query" jsonschema:"description=The search query."`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"description=Maximum number of results to return (default 5).,default=5"`
}

// Searcher queries the Tavily search API.
type Searcher struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

type tavilyRequest struct {
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Tool returns the tavily_search tool.
func (s *Searcher) Tool() Tool {
	return NewTool("tavily_search",
		"Search the web using Tavily for current information. Returns formatted search results with titles, URLs, and snippets.",
		s.Search)
}

// Search runs a web search and formats the results for the model.
func (s *Searcher) Search(ctx context.Context, args SearchArgs) string {
	if s.APIKey == "" {
		return "Error: TAVILY_API_KEY environment variable not set"
	}
	if args.MaxResults <= 0 {
		args.MaxResults = 5
	}

	resp, err := s.query(ctx, args)
	if err != nil {
		return fmt.Sprintf("Error searching: %v", err)
	}

	var lines []string
	if resp.Answer != "" {
		lines = append(lines, fmt.Sprintf("**Quick Answer:** %s\n", resp.Answer))
	}
	lines = append(lines, "**Search Results:**\n")
	for i, r := range resp.Results {
		title := r.Title
		if title == "" {
			title = "No title"
		}
		lines = append(lines,
			fmt.Sprintf("%d. **%s**", i+1, title),
			fmt.Sprintf("   URL: %s", r.URL),
			fmt.Sprintf("   %s...", truncateRunes(r.Content, 300)),
			"",
		)
	}
	return strings.Join(lines, "\n")
}

func (s *Searcher) query(ctx context.Context, args SearchArgs) (*tavilyResponse, error) {
	body, err := json.Marshal(tavilyRequest{Query: args.Query, MaxResults: args.MaxResults, IncludeAnswer: true})
	if err != nil {
		return nil, err
	}
	base := strings.TrimRight(s.BaseURL, "/")
	if base == "" {
		base = "https://api.tavily.com"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	httpResp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("tavily returned HTTP %d: %s", httpResp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var out tavilyResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode tavily response: %w", err)
	}
	return &out, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
