package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// risingCandles builds a strictly rising close series, enough for the slow
// EMA window.
func risingCandles(n int) []Candle {
	out := make([]Candle, n)
	for i := range out {
		c := 100.0 + float64(i)
		out[i] = Candle{
			OpenTime:  int64(i) * 900000,
			CloseTime: int64(i+1)*900000 - 1,
			Open:      c - 0.5,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    10,
		}
	}
	return out
}

func TestComputeIndicatorsNeedsEnoughCandles(t *testing.T) {
	_, err := ComputeIndicators(risingCandles(20), "15m")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not enough candles")
}

func TestComputeIndicatorsRisingSeries(t *testing.T) {
	candles := risingCandles(60)

	snap, err := ComputeIndicators(candles, "15m")

	assert.NoError(t, err)
	assert.Equal(t, "15m", snap.Interval)
	assert.Equal(t, 60, snap.Count)
	assert.Equal(t, 159.0, snap.Close)
	assert.Greater(t, snap.EMAFast, snap.EMASlow)
	assert.Less(t, snap.EMAFast, snap.Close)
	assert.Greater(t, snap.RSI, 70.0)
	assert.Equal(t, "overbought", snap.RSIState)
	assert.Greater(t, snap.MACD, 0.0)
	assert.Greater(t, snap.ATR, 0.0)
}

func TestRenderEmptySnapshot(t *testing.T) {
	assert.Equal(t, "", IndicatorSnapshot{}.Render())
	assert.Equal(t, "", IndicatorSnapshot{Count: 60}.Render())
}

func TestRenderSnapshotBlock(t *testing.T) {
	snap := IndicatorSnapshot{
		Interval: "15m",
		Count:    100,
		Close:    58000,
		EMAFast:  57500,
		EMASlow:  56900,
		RSI:      64.2,
		RSIState: "neutral",
		MACD:     120.5,
		MACDHist: 14.25,
		ATR:      310.7,
	}

	block := snap.Render()

	assert.Contains(t, block, "Technical context (15m, 100 candles):")
	assert.Contains(t, block, "EMA20 57500 / EMA50 56900 -> uptrend")
	assert.Contains(t, block, "RSI14 64.2 (neutral)")
	assert.Contains(t, block, "MACD 120.5 hist 14.25 -> bullish momentum")
	assert.Contains(t, block, "ATR14 310.7")
}

func TestRenderDowntrend(t *testing.T) {
	snap := IndicatorSnapshot{
		Interval: "15m", Count: 100,
		Close: 100, EMAFast: 110, EMASlow: 120,
		RSI: 25, RSIState: "oversold", MACDHist: -3,
	}

	block := snap.Render()

	assert.Contains(t, block, "-> downtrend")
	assert.Contains(t, block, "bearish momentum")
}
