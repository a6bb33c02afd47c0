package market

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockKlineSource struct {
	mock.Mock
}

func (m *MockKlineSource) FetchKlines(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	args := m.Called(ctx, symbol, interval, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Candle), args.Error(1)
}

type memoryCache struct {
	data map[string][]Candle
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]Candle)}
}

func (c *memoryCache) Put(ctx context.Context, symbol, interval string, ks []Candle, max int) error {
	key := symbol + "@" + interval
	cur := c.data[key]
	for _, candle := range ks {
		n := len(cur)
		if n > 0 && cur[n-1].OpenTime == candle.OpenTime {
			cur[n-1] = candle
			continue
		}
		cur = append(cur, candle)
	}
	if max > 0 && len(cur) > max {
		cur = cur[len(cur)-max:]
	}
	c.data[key] = cur
	return nil
}

func (c *memoryCache) Get(ctx context.Context, symbol, interval string) ([]Candle, error) {
	return c.data[symbol+"@"+interval], nil
}

func TestContextBuilderBuild(t *testing.T) {
	source := new(MockKlineSource)
	source.On("FetchKlines", mock.Anything, "BTC/USDT", "15m", 100).
		Return(risingCandles(60), nil).Once()

	b := NewContextBuilder(source, newMemoryCache(), "15m", 100)
	snap, err := b.Build(context.Background(), "BTC/USDT")

	assert.NoError(t, err)
	assert.NotNil(t, snap)
	assert.Equal(t, 60, snap.Count)
	source.AssertExpectations(t)
}

func TestContextBuilderFallsBackToCacheOnFetchError(t *testing.T) {
	source := new(MockKlineSource)
	source.On("FetchKlines", mock.Anything, "BTC/USDT", "15m", 100).
		Return(nil, errors.New("rest unavailable")).Once()

	cache := newMemoryCache()
	assert.NoError(t, cache.Put(context.Background(), "BTC/USDT", "15m", risingCandles(60), 100))

	b := NewContextBuilder(source, cache, "15m", 100)
	snap, err := b.Build(context.Background(), "BTC/USDT")

	assert.NoError(t, err)
	assert.NotNil(t, snap)
	assert.Equal(t, 60, snap.Count)
	source.AssertExpectations(t)
}

func TestContextBuilderFetchErrorWithEmptyCache(t *testing.T) {
	source := new(MockKlineSource)
	source.On("FetchKlines", mock.Anything, "BTC/USDT", "15m", 100).
		Return(nil, errors.New("rest unavailable")).Once()

	b := NewContextBuilder(source, newMemoryCache(), "15m", 100)
	_, err := b.Build(context.Background(), "BTC/USDT")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "fetch klines")
}

func TestContextBuilderMergesShortFetchWithCache(t *testing.T) {
	window := risingCandles(60)

	source := new(MockKlineSource)
	// The fresh fetch alone is too short for the slow EMA; the cached
	// window supplies the history.
	source.On("FetchKlines", mock.Anything, "BTC/USDT", "15m", 100).
		Return(window[50:], nil).Once()

	cache := newMemoryCache()
	assert.NoError(t, cache.Put(context.Background(), "BTC/USDT", "15m", window[:50], 100))

	b := NewContextBuilder(source, cache, "15m", 100)
	snap, err := b.Build(context.Background(), "BTC/USDT")

	assert.NoError(t, err)
	assert.NotNil(t, snap)
	assert.Equal(t, 60, snap.Count)
	source.AssertExpectations(t)
}

func TestContextBuilderRequiresSource(t *testing.T) {
	b := NewContextBuilder(nil, nil, "15m", 100)
	_, err := b.Build(context.Background(), "BTC/USDT")
	assert.Error(t, err)
}

func TestNewContextBuilderDefaults(t *testing.T) {
	b := NewContextBuilder(nil, nil, "", 0)
	assert.Equal(t, "15m", b.Interval)
	assert.Equal(t, 100, b.Limit)
}
