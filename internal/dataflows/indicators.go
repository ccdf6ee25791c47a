package dataflows

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dyike/FinCortex/internal/models"
)

const (
	returnPeriod = 5
	maWindow     = 20
)

// ComputeIndicators derives the last close, the 5-bar return and the 20-bar
// simple moving average from bars ordered oldest first. The return is zero
// with fewer than six bars and the average is zero with fewer than twenty.
func ComputeIndicators(bars []models.MarketBar) models.MarketIndicators {
	var out models.MarketIndicators
	n := len(bars)
	if n == 0 {
		return out
	}
	last := bars[n-1].Close
	out.LastPrice = last

	if n > returnPeriod {
		base := bars[n-1-returnPeriod].Close
		if !base.IsZero() {
			out.Return5D = last.Div(base).Sub(decimal.NewFromInt(1))
		}
	}

	if n >= maWindow {
		sum := decimal.Zero
		for _, b := range bars[n-maWindow:] {
			sum = sum.Add(b.Close)
		}
		out.MA20 = sum.Div(decimal.NewFromInt(maWindow))
	}
	return out
}

// FormatMarketSummary renders the plain-text block the quant prompt
// interprets and the fallback text repeats.
func FormatMarketSummary(symbol string, ind models.MarketIndicators, f models.Fundamentals) string {
	f = f.OrNA()
	var b strings.Builder
	fmt.Fprintf(&b, "Market Analysis for %s:\n", symbol)
	fmt.Fprintf(&b, "- Current Price: $%s\n", ind.LastPrice.StringFixed(2))
	fmt.Fprintf(&b, "- 5-Day Return: %s%%\n", ind.Return5D.Mul(decimal.NewFromInt(100)).StringFixed(2))
	fmt.Fprintf(&b, "- 20-Day Moving Average: $%s\n", ind.MA20.StringFixed(2))
	fmt.Fprintf(&b, "- Sector: %s\n", f.Sector)
	fmt.Fprintf(&b, "- Market Cap: %s\n", f.MarketCap)
	fmt.Fprintf(&b, "- Forward P/E: %s\n", f.ForwardPE)
	return b.String()
}

// FormatMarketCap renders a whole-dollar amount with thousands separators.
func FormatMarketCap(amount decimal.Decimal) string {
	digits := amount.Round(0).Abs().String()
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	sign := ""
	if amount.Round(0).IsNegative() {
		sign = "-"
	}
	return sign + "$" + b.String()
}
