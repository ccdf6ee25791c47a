package dataflows

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/dyike/FinCortex/internal/models"
)

func barsWithCloses(closes ...float64) []models.MarketBar {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.MarketBar, len(closes))
	for i, c := range closes {
		bars[i] = models.MarketBar{Symbol: "MSFT", Date: start.AddDate(0, 0, i), Close: decimal.NewFromFloat(c)}
	}
	return bars
}

func TestComputeIndicators_FullWindow(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	ind := ComputeIndicators(barsWithCloses(closes...))

	assert.Equal(t, "124", ind.LastPrice.String())
	// 124 / 119 - 1
	assert.Equal(t, "0.0420", ind.Return5D.StringFixed(4))
	// mean of 105..124
	assert.Equal(t, "114.50", ind.MA20.StringFixed(2))
}

func TestComputeIndicators_ShortHistory(t *testing.T) {
	ind := ComputeIndicators(barsWithCloses(10, 11, 12))
	assert.Equal(t, "12", ind.LastPrice.String())
	assert.True(t, ind.Return5D.IsZero())
	assert.True(t, ind.MA20.IsZero())

	assert.Equal(t, models.MarketIndicators{}, ComputeIndicators(nil))
}

func TestFormatMarketSummary(t *testing.T) {
	ind := models.MarketIndicators{
		LastPrice: decimal.RequireFromString("412.3"),
		Return5D:  decimal.RequireFromString("-0.01234"),
		MA20:      decimal.RequireFromString("405"),
	}
	out := FormatMarketSummary("MSFT", ind, models.Fundamentals{MarketCap: "$3,000,000"})
	assert.Contains(t, out, "Market Analysis for MSFT:")
	assert.Contains(t, out, "- Current Price: $412.30")
	assert.Contains(t, out, "- 5-Day Return: -1.23%")
	assert.Contains(t, out, "- 20-Day Moving Average: $405.00")
	assert.Contains(t, out, "- Sector: N/A")
	assert.Contains(t, out, "- Market Cap: $3,000,000")
	assert.Contains(t, out, "- Forward P/E: N/A")
}

func TestFormatMarketCap(t *testing.T) {
	assert.Equal(t, "$3,081,237,000,000", FormatMarketCap(decimal.NewFromInt(3081237000000)))
	assert.Equal(t, "$999", FormatMarketCap(decimal.NewFromInt(999)))
	assert.Equal(t, "$1,000", FormatMarketCap(decimal.NewFromFloat(999.6)))
}
