package dataflows

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/equity"
	"github.com/shopspring/decimal"

	"github.com/dyike/FinCortex/internal/models"
)

const DefaultYahooSummaryURL = "https://query2.finance.yahoo.com"

// YahooClient reads daily bars and equity quotes from Yahoo Finance. The
// sector comes from the quote summary asset profile, which finance-go does
// not cover.
type YahooClient struct {
	summary *resty.Client
}

type YahooOption func(*YahooClient)

// WithSummaryURL points asset profile lookups at baseURL.
func WithSummaryURL(baseURL string) YahooOption {
	return func(y *YahooClient) {
		y.summary.SetBaseURL(strings.TrimRight(baseURL, "/"))
	}
}

func NewYahooClient(opts ...YahooOption) *YahooClient {
	client := resty.New()
	client.SetBaseURL(DefaultYahooSummaryURL)
	client.SetTimeout(10 * time.Second)
	client.SetHeader("User-Agent", "Mozilla/5.0 (compatible; FinCortex)")

	y := &YahooClient{summary: client}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

func (y *YahooClient) Name() string { return "yahoo" }

// DailyBars returns the daily bars of the last `days` calendar days, oldest first.
func (y *YahooClient) DailyBars(ctx context.Context, symbol string, days int) ([]models.MarketBar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	return runWithContext(ctx, func() ([]models.MarketBar, error) {
		iter := chart.Get(&chart.Params{
			Symbol:   symbol,
			Start:    datetime.New(&start),
			End:      datetime.New(&end),
			Interval: datetime.OneDay,
		})

		var bars []models.MarketBar
		for iter.Next() {
			bar := iter.Bar()
			bars = append(bars, models.MarketBar{
				Symbol: symbol,
				Date:   time.Unix(int64(bar.Timestamp), 0).UTC(),
				Open:   bar.Open,
				High:   bar.High,
				Low:    bar.Low,
				Close:  bar.Close,
				Volume: int64(bar.Volume),
			})
		}
		if err := iter.Err(); err != nil {
			return nil, fmt.Errorf("failed to get historical data for %s: %w", symbol, err)
		}
		return bars, nil
	})
}

// Fundamentals reads market cap and forward P/E from the equity quote and the
// sector from the asset profile. A failed profile lookup leaves the sector
// empty.
func (y *YahooClient) Fundamentals(ctx context.Context, symbol string, _ decimal.Decimal) (models.Fundamentals, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	q, err := runWithContext(ctx, func() (*finance.Equity, error) {
		return equity.Get(symbol)
	})
	if err != nil {
		return models.Fundamentals{}, fmt.Errorf("failed to get equity quote for %s: %w", symbol, err)
	}
	if q == nil {
		return models.Fundamentals{}, fmt.Errorf("no equity quote for %s", symbol)
	}
	sector, _ := y.Sector(ctx, symbol)
	return quoteFundamentals(q, sector), nil
}

func quoteFundamentals(q *finance.Equity, sector string) models.Fundamentals {
	f := models.Fundamentals{Sector: strings.TrimSpace(sector)}
	if q.MarketCap > 0 {
		f.MarketCap = FormatMarketCap(decimal.NewFromInt(q.MarketCap))
	}
	if q.ForwardPE != 0 {
		f.ForwardPE = decimal.NewFromFloat(q.ForwardPE).StringFixed(2)
	}
	return f
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			AssetProfile struct {
				Sector   string `json:"sector"`
				Industry string `json:"industry"`
			} `json:"assetProfile"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// Sector returns the asset profile sector of symbol.
func (y *YahooClient) Sector(ctx context.Context, symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	resp, err := y.summary.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParam("modules", "assetProfile").
		Get("/v10/finance/quoteSummary/{symbol}")
	if err != nil {
		return "", fmt.Errorf("failed to get asset profile for %s: %w", symbol, err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("yahoo quote summary error %d for %s", resp.StatusCode(), symbol)
	}

	var body quoteSummaryResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return "", fmt.Errorf("failed to parse asset profile: %w", err)
	}
	if e := body.QuoteSummary.Error; e != nil {
		return "", fmt.Errorf("yahoo quote summary %s: %s", e.Code, e.Description)
	}
	if len(body.QuoteSummary.Result) == 0 {
		return "", fmt.Errorf("no asset profile for %s", symbol)
	}
	return strings.TrimSpace(body.QuoteSummary.Result[0].AssetProfile.Sector), nil
}

// runWithContext runs a blocking call that has no context support and
// abandons it when ctx is done.
func runWithContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{val: v, err: err}
	}()
	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
