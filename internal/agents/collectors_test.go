package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/FinCortex/internal/dataflows"
	"github.com/dyike/FinCortex/internal/llm/llmtest"
	"github.com/dyike/FinCortex/internal/models"
)

type stubMarketData struct {
	snap   *dataflows.MarketSnapshot
	err    error
	symbol string
	days   int
}

func (s *stubMarketData) Snapshot(_ context.Context, symbol string, days int) (*dataflows.MarketSnapshot, error) {
	s.symbol = symbol
	s.days = days
	return s.snap, s.err
}

func msftSnapshot() *dataflows.MarketSnapshot {
	return &dataflows.MarketSnapshot{
		Symbol: "MSFT",
		Source: "yahoo",
		Bars:   make([]models.MarketBar, 30),
		Indicators: models.MarketIndicators{
			LastPrice: decimal.RequireFromString("412.50"),
			Return5D:  decimal.RequireFromString("0.0125"),
			MA20:      decimal.RequireFromString("405.10"),
		},
		Fundamentals: models.Fundamentals{MarketCap: "$3,081,237,000,000"}.OrNA(),
	}
}

func TestAnalyzeTicker(t *testing.T) {
	m := llmtest.Reply("Price trades above its 20-day average.")
	data := &stubMarketData{snap: msftSnapshot()}
	a, err := NewMarketAnalyst(m, data, 0)
	require.NoError(t, err)

	out := a.AnalyzeTicker(context.Background(), " msft ")

	assert.Equal(t, "Price trades above its 20-day average.", out)
	assert.Equal(t, "MSFT", data.symbol)
	assert.Equal(t, DefaultMarketPeriodDays, data.days)
	prompt := m.Prompts()[0]
	assert.Contains(t, prompt, "Market Analysis for MSFT:")
	assert.Contains(t, prompt, "- Current Price: $412.50")
	assert.Contains(t, prompt, "- 5-Day Return: 1.25%")
	assert.Contains(t, prompt, "- Market Cap: $3,081,237,000,000")
	assert.Contains(t, prompt, "- Forward P/E: N/A")
}

func TestAnalyzeTickerDataErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"fetch error", errors.New("dial tcp: timeout"), "**CRITICAL ERROR FETCHING MARKET DATA FOR MSFT: dial tcp: timeout**"},
		{"no bars", dataflows.ErrNoMarketData, "No market data found for MSFT (Check ticker name and connectivity). Data frame was empty."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := llmtest.Reply("unused")
			a, err := NewMarketAnalyst(m, &stubMarketData{err: tc.err}, 60)
			require.NoError(t, err)

			assert.Equal(t, tc.want, a.AnalyzeTicker(context.Background(), "MSFT"))
			assert.Zero(t, m.Calls())
		})
	}
}

func TestAnalyzeTickerModelFailure(t *testing.T) {
	a, err := NewMarketAnalyst(llmtest.Fail(errors.New("bad gateway")), &stubMarketData{snap: msftSnapshot()}, 60)
	require.NoError(t, err)

	out := a.AnalyzeTicker(context.Background(), "MSFT")

	assert.True(t, strings.HasPrefix(out, "LLM analysis failed for market summary. Raw data:\nMarket Analysis for MSFT:"))
	assert.Contains(t, out, "\nError: ")
	assert.Contains(t, out, "bad gateway")
}

type stubNews struct {
	articles []models.NewsArticle
	err      error
	params   dataflows.NewsSearchParams
}

func (s *stubNews) Search(_ context.Context, params dataflows.NewsSearchParams) ([]models.NewsArticle, error) {
	s.params = params
	return s.articles, s.err
}

func sampleArticles() []models.NewsArticle {
	return []models.NewsArticle{
		{Title: "Microsoft expands AI capex", Source: "Reuters", PublishedAt: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)},
		{Title: "EU opens Teams inquiry", Description: "Regulators widen antitrust review."},
	}
}

func TestTopHeadlines(t *testing.T) {
	m := llmtest.Reply("### Themes\n- AI investment")
	search := &stubNews{articles: sampleArticles()}
	a, err := NewNewsAnalyst(m, search, NewsConfig{})
	require.NoError(t, err)

	out := a.TopHeadlines(context.Background(), "Microsoft")

	assert.Equal(t, "### Themes\n- AI investment", out)
	assert.Equal(t, "latest Microsoft stock financial news and headlines", search.params.Query)
	assert.Equal(t, "Microsoft", search.params.Symbol)
	assert.Equal(t, 7, search.params.LookbackDays)
	assert.Equal(t, DefaultNewsMaxResults, search.params.MaxResults)
	prompt := m.Prompts()[0]
	assert.Contains(t, prompt, "Microsoft expands AI capex (Reuters, 2024-05-02)")
	assert.Contains(t, prompt, "Regulators widen antitrust review.")
}

func TestTopHeadlinesWithoutModelCall(t *testing.T) {
	cases := []struct {
		name   string
		search *stubNews
		want   string
	}{
		{"search error", &stubNews{err: errors.New("status 503")}, "Error fetching news: status 503"},
		{"no results", &stubNews{}, "No relevant news snippets found for Microsoft in the past 7 days."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := llmtest.Reply("unused")
			a, err := NewNewsAnalyst(m, tc.search, NewsConfig{})
			require.NoError(t, err)

			assert.Equal(t, tc.want, a.TopHeadlines(context.Background(), "Microsoft"))
			assert.Zero(t, m.Calls())
		})
	}
}

func TestTopHeadlinesModelFailure(t *testing.T) {
	a, err := NewNewsAnalyst(llmtest.Fail(errors.New("overloaded")), &stubNews{articles: sampleArticles()}, NewsConfig{LookbackDays: 3})
	require.NoError(t, err)

	out := a.TopHeadlines(context.Background(), "Microsoft")

	want := fmt.Sprintf("LLM analysis failed for news sentiment. Raw data:\n%s\nError: ", dataflows.FormatHeadlines(sampleArticles()))
	assert.True(t, strings.HasPrefix(out, want))
	assert.Contains(t, out, "overloaded")
}
