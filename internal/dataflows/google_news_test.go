package dataflows

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>news</title>
<item>
  <title>Microsoft beats estimates on cloud growth</title>
  <link>https://news.example.com/a</link>
  <description>&lt;a href="https://x"&gt;Microsoft beats estimates&lt;/a&gt;&amp;nbsp;&lt;font&gt;Reuters&lt;/font&gt;</description>
  <pubDate>Mon, 06 Oct 2025 14:00:00 GMT</pubDate>
  <source url="https://www.reuters.com">Reuters</source>
</item>
<item>
  <title>Second headline</title>
  <link>https://news.example.com/b</link>
  <description></description>
  <pubDate>Tue, 07 Oct 2025 09:30:00 GMT</pubDate>
  <source url="https://www.ft.com"></source>
</item>
<item>
  <title>Third headline</title>
  <link>https://news.example.com/c</link>
</item>
</channel></rss>`

func TestGoogleNewsClient_Search(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	c := NewGoogleNewsClient(GoogleNewsOptions{BaseURL: srv.URL, UserAgent: "test-agent"})
	articles, err := c.Search(context.Background(), NewsSearchParams{
		Query:        "latest Microsoft stock financial news and headlines",
		LookbackDays: 7,
		MaxResults:   2,
	})
	require.NoError(t, err)
	assert.Equal(t, "latest Microsoft stock financial news and headlines when:7d", gotQuery)
	require.Len(t, articles, 2)

	assert.Equal(t, "Microsoft beats estimates on cloud growth", articles[0].Title)
	assert.Equal(t, "Reuters", articles[0].Source)
	assert.NotContains(t, articles[0].Description, "<a")
	assert.Equal(t, 2025, articles[0].PublishedAt.Year())
	assert.Equal(t, "www.ft.com", articles[1].Source)
}

func TestGoogleNewsClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewGoogleNewsClient(GoogleNewsOptions{BaseURL: srv.URL})
	_, err := c.Search(context.Background(), NewsSearchParams{Query: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	_, err = c.Search(context.Background(), NewsSearchParams{Query: "  "})
	require.Error(t, err)
}

func TestCleanHTML(t *testing.T) {
	assert.Equal(t, "Hello world", CleanHTML(`<p>Hello <b>world</b></p>`))
	assert.Equal(t, "", CleanHTML("   "))
}

func TestFormatHeadlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	articles, err := NewGoogleNewsClient(GoogleNewsOptions{BaseURL: srv.URL}).Search(context.Background(), NewsSearchParams{Query: "msft"})
	require.NoError(t, err)
	out := FormatHeadlines(articles)
	assert.Contains(t, out, "- Microsoft beats estimates on cloud growth (Reuters, 2025-10-06)")
	assert.Contains(t, out, "- Third headline")
}
