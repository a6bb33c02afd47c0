// Package binance adapts the Binance USD-M futures REST API to the
// market.QuoteSource and market.KlineSource contracts. Market data
// endpoints need no credentials.
package binance

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"ludus/internal/market"
	"ludus/internal/pkg/convert"
	symbolpkg "ludus/internal/pkg/symbol"
)

const maxKlineLimit = 1500

type Source struct {
	cfg    Config
	client *futures.Client
}

func New(cfg Config) *Source {
	final := cfg.withDefaults()
	client := futures.NewClient("", "")
	client.BaseURL = final.RESTBaseURL
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Source{cfg: final, client: client}
}

// FetchQuote combines the 24h ticker (last price, range, volume) with the
// book ticker (best bid/ask) into one snapshot.
func (s *Source) FetchQuote(ctx context.Context, symbol string) (market.Quote, error) {
	clean, err := exchangeSymbol(symbol)
	if err != nil {
		return market.Quote{}, err
	}
	stats, err := s.client.NewListPriceChangeStatsService().Symbol(clean).Do(ctx)
	if err != nil {
		return market.Quote{}, fmt.Errorf("fetching 24h stats for %s failed: %w", clean, err)
	}
	if len(stats) == 0 || stats[0] == nil {
		return market.Quote{}, fmt.Errorf("empty 24h stats for %s", clean)
	}
	st := stats[0]
	quote := market.Quote{
		Symbol:    symbolpkg.Normalize(symbol),
		Price:     convert.ToFloat64(st.LastPrice),
		High24h:   convert.ToFloat64(st.HighPrice),
		Low24h:    convert.ToFloat64(st.LowPrice),
		Volume24h: convert.ToFloat64(st.Volume),
		Timestamp: time.Now().UTC(),
	}
	if quote.Price <= 0 {
		return market.Quote{}, fmt.Errorf("no tradable price for %s", clean)
	}
	books, err := s.client.NewListBookTickersService().Symbol(clean).Do(ctx)
	if err != nil {
		return market.Quote{}, fmt.Errorf("fetching book ticker for %s failed: %w", clean, err)
	}
	if len(books) > 0 && books[0] != nil {
		quote.Bid = convert.ToFloat64(books[0].BidPrice)
		quote.Ask = convert.ToFloat64(books[0].AskPrice)
	}
	if quote.Bid <= 0 {
		quote.Bid = quote.Price
	}
	if quote.Ask <= 0 {
		quote.Ask = quote.Price
	}
	return quote, nil
}

func (s *Source) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	clean, err := exchangeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	kls, err := s.client.NewKlinesService().Symbol(clean).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching klines for %s failed: %w", clean, err)
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      convert.ToFloat64(kl.Open),
			High:      convert.ToFloat64(kl.High),
			Low:       convert.ToFloat64(kl.Low),
			Close:     convert.ToFloat64(kl.Close),
			Volume:    convert.ToFloat64(kl.Volume),
		})
	}
	return out, nil
}

// exchangeSymbol renders any accepted pair spelling as the slash-free form
// the exchange expects.
func exchangeSymbol(symbol string) (string, error) {
	clean := symbolpkg.ToExchange(symbol)
	if clean == "" {
		return "", fmt.Errorf("symbol is required")
	}
	return clean, nil
}
