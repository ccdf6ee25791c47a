package dataflows

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dyike/FinCortex/internal/models"
)

// ErrNoMarketData is returned when a source answers without any bars.
var ErrNoMarketData = errors.New("no market data")

// MarketSource provides daily bars and best-effort fundamentals.
type MarketSource interface {
	Name() string
	DailyBars(ctx context.Context, symbol string, days int) ([]models.MarketBar, error)
	Fundamentals(ctx context.Context, symbol string, lastPrice decimal.Decimal) (models.Fundamentals, error)
}

var longportSuffixes = []string{".HK", ".SH", ".SZ", ".SG"}

// IsLongportSymbol reports whether symbol is listed on a market served by
// Longport rather than Yahoo.
func IsLongportSymbol(symbol string) bool {
	upper := strings.ToUpper(strings.TrimSpace(symbol))
	for _, suffix := range longportSuffixes {
		if strings.HasSuffix(upper, suffix) {
			return true
		}
	}
	return false
}

// MarketRouter picks Longport for its own markets when it is configured and
// Yahoo otherwise.
type MarketRouter struct {
	yahoo    MarketSource
	longport MarketSource
	logger   *zap.Logger
}

func NewMarketRouter(yahoo, longport MarketSource, logger *zap.Logger) *MarketRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarketRouter{yahoo: yahoo, longport: longport, logger: logger}
}

func (r *MarketRouter) SourceFor(symbol string) MarketSource {
	if r.longport != nil && IsLongportSymbol(symbol) {
		return r.longport
	}
	return r.yahoo
}

// MarketSnapshot is everything the market stage needs for one ticker.
type MarketSnapshot struct {
	Symbol       string
	Source       string
	Bars         []models.MarketBar
	Indicators   models.MarketIndicators
	Fundamentals models.Fundamentals
}

// Snapshot loads bars, derives indicators and attaches fundamentals. A bar
// fetch failure is returned; a fundamentals failure only degrades to N/A.
func (r *MarketRouter) Snapshot(ctx context.Context, symbol string, days int) (*MarketSnapshot, error) {
	src := r.SourceFor(symbol)
	if src == nil {
		return nil, errors.New("no market source configured")
	}
	bars, err := src.DailyBars(ctx, symbol, days)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, ErrNoMarketData
	}

	snap := &MarketSnapshot{
		Symbol:     symbol,
		Source:     src.Name(),
		Bars:       bars,
		Indicators: ComputeIndicators(bars),
	}
	fundamentals, err := src.Fundamentals(ctx, symbol, snap.Indicators.LastPrice)
	if err != nil {
		r.logger.Warn("could not fetch fundamentals",
			zap.String("symbol", symbol),
			zap.String("source", src.Name()),
			zap.Error(err))
		fundamentals = models.Fundamentals{}
	}
	snap.Fundamentals = fundamentals.OrNA()
	return snap, nil
}
