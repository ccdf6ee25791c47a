package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"go.uber.org/zap"

	"github.com/dyike/FinCortex/consts"
	"github.com/dyike/FinCortex/internal/dataflows"
	"github.com/dyike/FinCortex/internal/utils"
)

const DefaultMarketPeriodDays = 60

// MarketData loads the price history and fundamentals for a ticker.
type MarketData interface {
	Snapshot(ctx context.Context, symbol string, days int) (*dataflows.MarketSnapshot, error)
}

type MarketAnalyst struct {
	caller
	data MarketData
	days int
}

func NewMarketAnalyst(m model.BaseChatModel, data MarketData, days int, opts ...Option) (*MarketAnalyst, error) {
	if data == nil {
		return nil, fmt.Errorf("%s: market data source is required", consts.Stage_Market)
	}
	if days <= 0 {
		days = DefaultMarketPeriodDays
	}
	c, err := newCaller(consts.Stage_Market, m, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	return &MarketAnalyst{caller: c, data: data, days: days}, nil
}

// AnalyzeTicker summarizes recent price action and fundamentals. Data errors
// are reported in the returned text without calling the model.
func (a *MarketAnalyst) AnalyzeTicker(ctx context.Context, ticker string) string {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	snap, err := a.data.Snapshot(ctx, ticker, a.days)
	switch {
	case errors.Is(err, dataflows.ErrNoMarketData):
		a.fallback("no market data", err)
		return fmt.Sprintf("No market data found for %s (Check ticker name and connectivity). Data frame was empty.", ticker)
	case err != nil:
		a.fallback("market data fetch failed", err)
		return fmt.Sprintf("**CRITICAL ERROR FETCHING MARKET DATA FOR %s: %v**", ticker, err)
	}

	summary := dataflows.FormatMarketSummary(ticker, snap.Indicators, snap.Fundamentals)
	a.logger.Debug("market snapshot ready",
		zap.String("ticker", ticker),
		zap.String("source", snap.Source),
		zap.Int("bars", len(snap.Bars)))

	analysis, err := a.call(ctx, utils.PromptMarketQuant, map[string]any{"Summary": summary})
	if err != nil {
		a.fallback("market analysis failed", err)
		return fmt.Sprintf("LLM analysis failed for market summary. Raw data:\n%s\nError: %v", summary, err)
	}
	return analysis
}
