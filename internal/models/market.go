package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketBar is one daily OHLCV bar.
type MarketBar struct {
	Symbol string          `json:"symbol"`
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// Fundamentals holds the best-effort company figures shown next to the
// indicators. Empty strings render as "N/A".
type Fundamentals struct {
	Sector    string `json:"sector"`
	MarketCap string `json:"market_cap"`
	ForwardPE string `json:"forward_pe"`
}

// MarketIndicators are derived from the most recent bars.
type MarketIndicators struct {
	LastPrice decimal.Decimal `json:"last_price"`
	Return5D  decimal.Decimal `json:"ret_5d"`
	MA20      decimal.Decimal `json:"ma_20"`
}

const NotAvailable = "N/A"

// OrNA fills empty fields with "N/A".
func (f Fundamentals) OrNA() Fundamentals {
	if f.Sector == "" {
		f.Sector = NotAvailable
	}
	if f.MarketCap == "" {
		f.MarketCap = NotAvailable
	}
	if f.ForwardPE == "" {
		f.ForwardPE = NotAvailable
	}
	return f
}
