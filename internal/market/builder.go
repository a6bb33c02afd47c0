package market

import (
	"context"
	"fmt"
)

const (
	defaultContextInterval = "15m"
	defaultContextLimit    = 100
)

// KlineCache holds recent candles between cycles. Satisfied by
// store.MemoryKlineStore; declared here so the cache stays swappable.
type KlineCache interface {
	Put(ctx context.Context, symbol, interval string, ks []Candle, max int) error
	Get(ctx context.Context, symbol, interval string) ([]Candle, error)
}

// ContextBuilder turns a kline window into the indicator snapshot the
// prompt embeds. With a cache attached, a failed fetch falls back to the
// last good window instead of dropping the block outright.
type ContextBuilder struct {
	Source   KlineSource
	Cache    KlineCache
	Interval string
	Limit    int
}

func NewContextBuilder(source KlineSource, cache KlineCache, interval string, limit int) *ContextBuilder {
	if interval == "" {
		interval = defaultContextInterval
	}
	if limit <= 0 {
		limit = defaultContextLimit
	}
	return &ContextBuilder{
		Source:   source,
		Cache:    cache,
		Interval: interval,
		Limit:    limit,
	}
}

// Build fetches the window, refreshes the cache and computes indicators.
func (b *ContextBuilder) Build(ctx context.Context, symbol string) (*IndicatorSnapshot, error) {
	if b == nil || b.Source == nil {
		return nil, fmt.Errorf("no kline source configured")
	}
	candles, err := b.Source.FetchKlines(ctx, symbol, b.Interval, b.Limit)
	if err != nil {
		if cached := b.fromCache(ctx, symbol); cached != nil {
			return cached, nil
		}
		return nil, fmt.Errorf("fetch klines: %w", err)
	}
	if b.Cache != nil {
		if err := b.Cache.Put(ctx, symbol, b.Interval, candles, b.Limit); err == nil {
			if merged, err := b.Cache.Get(ctx, symbol, b.Interval); err == nil && len(merged) >= len(candles) {
				candles = merged
			}
		}
	}
	snap, err := ComputeIndicators(candles, b.Interval)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (b *ContextBuilder) fromCache(ctx context.Context, symbol string) *IndicatorSnapshot {
	if b.Cache == nil {
		return nil
	}
	cached, err := b.Cache.Get(ctx, symbol, b.Interval)
	if err != nil || len(cached) == 0 {
		return nil
	}
	snap, err := ComputeIndicators(cached, b.Interval)
	if err != nil {
		return nil
	}
	return &snap
}
