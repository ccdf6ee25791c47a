package dataflows

import (
	"context"
	"errors"
	"time"

	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
	"github.com/shopspring/decimal"

	"github.com/dyike/FinCortex/config"
	"github.com/dyike/FinCortex/internal/models"
)

var ErrLongportNotConfigured = errors.New("longport API credentials not configured")

// LongportClient serves Hong Kong, mainland China and Singapore symbols.
type LongportClient struct {
	quoteCtx *quote.QuoteContext
}

func LongportConfigured(cfg *config.Config) bool {
	return cfg.LongportAppKey != "" && cfg.LongportAppSecret != "" && cfg.LongportAccessToken != ""
}

func NewLongportClient(cfg *config.Config) (*LongportClient, error) {
	if !LongportConfigured(cfg) {
		return nil, ErrLongportNotConfigured
	}

	conf, err := lpconfig.New(lpconfig.WithConfigKey(cfg.LongportAppKey, cfg.LongportAppSecret, cfg.LongportAccessToken))
	if err != nil {
		return nil, err
	}

	quoteContext, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, err
	}

	return &LongportClient{quoteCtx: quoteContext}, nil
}

func (lpc *LongportClient) Name() string { return "longport" }

func (lpc *LongportClient) Close() error {
	return lpc.quoteCtx.Close()
}

// DailyBars returns up to `days` most recent daily candlesticks, oldest first.
func (lpc *LongportClient) DailyBars(ctx context.Context, symbol string, days int) ([]models.MarketBar, error) {
	if lpc.quoteCtx == nil {
		return nil, errors.New("quote context is nil")
	}
	sticks, err := lpc.quoteCtx.Candlesticks(ctx, symbol, quote.PeriodDay, int32(days), quote.AdjustTypeNo)
	if err != nil {
		return nil, err
	}

	bars := make([]models.MarketBar, 0, len(sticks))
	for _, stick := range sticks {
		if stick == nil {
			continue
		}
		open, _ := stick.Open.Float64()
		high, _ := stick.High.Float64()
		low, _ := stick.Low.Float64()
		closePrice, _ := stick.Close.Float64()
		bars = append(bars, models.MarketBar{
			Symbol: symbol,
			Date:   time.Unix(stick.Timestamp, 0).UTC(),
			Open:   decimal.NewFromFloat(open),
			High:   decimal.NewFromFloat(high),
			Low:    decimal.NewFromFloat(low),
			Close:  decimal.NewFromFloat(closePrice),
			Volume: stick.Volume,
		})
	}
	return bars, nil
}

// Fundamentals derives market cap from total shares. Longport static info
// has no sector or forward estimates.
func (lpc *LongportClient) Fundamentals(ctx context.Context, symbol string, lastPrice decimal.Decimal) (models.Fundamentals, error) {
	if lpc.quoteCtx == nil {
		return models.Fundamentals{}, errors.New("quote context is nil")
	}
	infos, err := lpc.quoteCtx.StaticInfo(ctx, []string{symbol})
	if err != nil {
		return models.Fundamentals{}, err
	}
	if len(infos) == 0 || infos[0] == nil {
		return models.Fundamentals{}, errors.New("no static info for " + symbol)
	}
	var f models.Fundamentals
	if shares := infos[0].TotalShares; shares > 0 && lastPrice.IsPositive() {
		f.MarketCap = FormatMarketCap(lastPrice.Mul(decimal.NewFromInt(shares)))
	}
	return f, nil
}
