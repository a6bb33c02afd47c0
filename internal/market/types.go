// Package market defines the quote and candle shapes the arena consumes
// and the indicator snapshot fed into trader prompts.
package market

import (
	"context"
	"time"
)

// Quote is one normalized market snapshot for a single symbol.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	High24h   float64   `json:"high_24h"`
	Low24h    float64   `json:"low_24h"`
	Volume24h float64   `json:"volume_24h"`
	Timestamp time.Time `json:"timestamp"`
}

type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// QuoteSource supplies the one quote each cycle runs on. A failure here is
// a cycle-level error; the next scheduled cycle is the retry.
type QuoteSource interface {
	FetchQuote(ctx context.Context, symbol string) (Quote, error)
}

// KlineSource supplies recent candles for the optional indicator context.
type KlineSource interface {
	FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}
