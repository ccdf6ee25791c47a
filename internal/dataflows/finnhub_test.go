package dataflows

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/FinCortex/config"
	"github.com/dyike/FinCortex/internal/models"
)

const sampleCompanyNews = `[
  {"category":"company","datetime":1759759200,"headline":"Microsoft expands Azure capacity","id":1,"related":"MSFT","source":"Reuters","summary":"<p>New regions &amp; more GPUs</p>","url":"https://news.example.com/1"},
  {"category":"company","datetime":1759845600,"headline":"  ","id":2,"related":"MSFT","source":"Reuters","summary":"","url":"https://news.example.com/2"},
  {"category":"company","datetime":1759932000,"headline":"Microsoft raises dividend","id":3,"related":"MSFT","source":"Bloomberg","summary":"","url":"https://news.example.com/3"},
  {"category":"company","datetime":1760018400,"headline":"Fourth item","id":4,"related":"MSFT","source":"FT","summary":"","url":"https://news.example.com/4"}
]`

func TestFinnhubClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/company-news", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "MSFT", q.Get("symbol"))
		assert.Equal(t, "secret", q.Get("token"))
		assert.Equal(t, "2025-10-07", q.Get("from"))
		assert.Equal(t, "2025-10-10", q.Get("to"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleCompanyNews))
	}))
	defer srv.Close()

	client := NewFinnhubClient(FinnhubOptions{BaseURL: srv.URL, APIKey: "secret"})
	client.now = func() time.Time { return time.Date(2025, 10, 10, 12, 0, 0, 0, time.UTC) }

	articles, err := client.Search(context.Background(), NewsSearchParams{
		Query:        "Microsoft",
		Symbol:       "msft",
		LookbackDays: 3,
		MaxResults:   2,
	})
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "Microsoft expands Azure capacity", articles[0].Title)
	assert.Equal(t, "New regions & more GPUs", articles[0].Description)
	assert.Equal(t, "Reuters", articles[0].Source)
	assert.Equal(t, time.Unix(1759759200, 0).UTC(), articles[0].PublishedAt)
	assert.Equal(t, "Microsoft raises dividend", articles[1].Title)
}

func TestFinnhubClient_SearchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewFinnhubClient(FinnhubOptions{BaseURL: srv.URL}).
		Search(context.Background(), NewsSearchParams{Symbol: "MSFT"})
	assert.ErrorIs(t, err, ErrFinnhubNotConfigured)

	client := NewFinnhubClient(FinnhubOptions{BaseURL: srv.URL, APIKey: "secret"})
	_, err = client.Search(context.Background(), NewsSearchParams{Query: "Microsoft"})
	assert.ErrorContains(t, err, "symbol cannot be empty")

	_, err = client.Search(context.Background(), NewsSearchParams{Symbol: "MSFT"})
	assert.ErrorContains(t, err, "429")
}

func TestFinnhubConfigured(t *testing.T) {
	assert.False(t, FinnhubConfigured(&config.Config{}))
	assert.False(t, FinnhubConfigured(&config.Config{FinnhubAPIKey: "  "}))
	assert.True(t, FinnhubConfigured(&config.Config{FinnhubAPIKey: "key"}))
}

type stubNews struct {
	articles []models.NewsArticle
	err      error
	calls    int
}

func (s *stubNews) Search(context.Context, NewsSearchParams) ([]models.NewsArticle, error) {
	s.calls++
	return s.articles, s.err
}

func TestNewsChain(t *testing.T) {
	ctx := context.Background()
	hit := []models.NewsArticle{{Title: "headline"}}

	t.Run("first non-empty wins", func(t *testing.T) {
		first := &stubNews{articles: hit}
		second := &stubNews{articles: []models.NewsArticle{{Title: "other"}}}
		got, err := NewNewsChain(nil).Add("a", first).Add("b", second).Search(ctx, NewsSearchParams{})
		require.NoError(t, err)
		assert.Equal(t, hit, got)
		assert.Equal(t, 0, second.calls)
	})

	t.Run("falls through empty and failing sources", func(t *testing.T) {
		empty := &stubNews{}
		failing := &stubNews{err: errors.New("boom")}
		last := &stubNews{articles: hit}
		got, err := NewNewsChain(nil).Add("a", empty).Add("b", failing).Add("c", last).Search(ctx, NewsSearchParams{})
		require.NoError(t, err)
		assert.Equal(t, hit, got)
	})

	t.Run("empty when any source succeeded", func(t *testing.T) {
		got, err := NewNewsChain(nil).
			Add("a", &stubNews{err: errors.New("boom")}).
			Add("b", &stubNews{}).
			Search(ctx, NewsSearchParams{})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("joins errors when all fail", func(t *testing.T) {
		errA := errors.New("down")
		_, err := NewNewsChain(nil).
			Add("a", &stubNews{err: errA}).
			Add("b", &stubNews{err: errors.New("limit")}).
			Search(ctx, NewsSearchParams{})
		require.Error(t, err)
		assert.ErrorIs(t, err, errA)
		assert.ErrorContains(t, err, "b: limit")
	})

	t.Run("no sources", func(t *testing.T) {
		chain := NewNewsChain(nil).Add("nil", nil)
		assert.Equal(t, 0, chain.Len())
		_, err := chain.Search(ctx, NewsSearchParams{})
		assert.Error(t, err)
	})
}
