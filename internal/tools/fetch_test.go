package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const samplePage = `<html><head><style>body{color:red}</style><script>var tracking = 1;</script></head>
<body>
<header>SITE HEADER</header>
<nav><a href="/">Home</a></nav>
<h1>Research Notes</h1>
<p>Some <strong>bold</strong> text.</p>
<footer>COPYRIGHT</footer>
</body></html>`

func TestFetchConvertsToMarkdown(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	out := NewFetcher().Fetch(context.Background(), FetchArgs{URL: srv.URL})

	assert.Equal(t, fetchUserAgent, ua)
	assert.True(t, strings.HasPrefix(out, "**Source:** "+srv.URL+"\n\n"), out)
	assert.Contains(t, out, "# Research Notes")
	assert.Contains(t, out, "Some **bold** text.")
	for _, dropped := range []string{"SITE HEADER", "Home", "COPYRIGHT", "tracking", "color:red"} {
		assert.NotContains(t, out, dropped)
	}
	assert.NotContains(t, out, "\n\n\n")
}

func TestFetchFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<p>moved here</p>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out := NewFetcher().Fetch(context.Background(), FetchArgs{URL: srv.URL + "/old"})
	assert.Contains(t, out, "moved here")
}

func TestFetchTruncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<p>" + strings.Repeat("x", 100) + "</p>"))
	}))
	defer srv.Close()

	out := NewFetcher().Fetch(context.Background(), FetchArgs{URL: srv.URL, MaxLength: 10})
	assert.Equal(t, "**Source:** "+srv.URL+"\n\n"+strings.Repeat("x", 10)+"\n\n[Content truncated...]", out)
}

func TestFetchStopsReadingAtBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<p>" + strings.Repeat("a", 4096) + "TAIL</p>"))
	}))
	defer srv.Close()

	f := NewFetcher()
	f.MaxBodyBytes = 1024
	out := f.Fetch(context.Background(), FetchArgs{URL: srv.URL})
	assert.Contains(t, out, strings.Repeat("a", 100))
	assert.NotContains(t, out, "TAIL")
	assert.Less(t, len(out), 1200)
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	out := NewFetcher().Fetch(context.Background(), FetchArgs{URL: srv.URL})
	assert.Equal(t, "Error fetching URL: HTTP 404", out)
}

func TestFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	out := NewFetcher().Fetch(context.Background(), FetchArgs{URL: url})
	assert.True(t, strings.HasPrefix(out, "Error fetching URL: "), out)
}

func TestCleanLines(t *testing.T) {
	assert.Equal(t, "a\nb", cleanLines("  a  \n\n   \n b\n"))
}
