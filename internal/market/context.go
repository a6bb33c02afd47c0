package market

import (
	"fmt"
	"math"
	"strings"

	"github.com/markcheno/go-talib"

	"ludus/internal/pkg/format"
)

// IndicatorSnapshot is the condensed technical picture rendered into a
// trader prompt. Series stay internal; only the latest values travel.
type IndicatorSnapshot struct {
	Interval string
	Count    int
	Close    float64
	EMAFast  float64
	EMASlow  float64
	RSI      float64
	RSIState string
	MACD     float64
	MACDHist float64
	ATR      float64
}

const (
	emaFastPeriod = 20
	emaSlowPeriod = 50
	rsiPeriod     = 14
	atrPeriod     = 14
)

// ComputeIndicators condenses a candle window into the latest indicator
// values. Needs at least emaSlowPeriod candles to say anything useful.
func ComputeIndicators(candles []Candle, interval string) (IndicatorSnapshot, error) {
	snap := IndicatorSnapshot{Interval: interval, Count: len(candles)}
	if len(candles) < emaSlowPeriod {
		return snap, fmt.Errorf("not enough candles: have %d, need %d", len(candles), emaSlowPeriod)
	}
	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}
	snap.Close = closes[len(closes)-1]
	snap.EMAFast = lastValid(talib.Ema(closes, emaFastPeriod))
	snap.EMASlow = lastValid(talib.Ema(closes, emaSlowPeriod))
	snap.RSI = lastValid(talib.Rsi(closes, rsiPeriod))
	switch {
	case snap.RSI >= 70:
		snap.RSIState = "overbought"
	case snap.RSI <= 30:
		snap.RSIState = "oversold"
	default:
		snap.RSIState = "neutral"
	}
	macd, _, hist := talib.Macd(closes, 12, 26, 9)
	snap.MACD = lastValid(macd)
	snap.MACDHist = lastValid(hist)
	snap.ATR = lastValid(talib.Atr(highs, lows, closes, atrPeriod))
	return snap, nil
}

// Render produces the prompt block. Empty when the snapshot carries no data
// so a failed context build just drops out of the prompt.
func (s IndicatorSnapshot) Render() string {
	if s.Count == 0 || s.Close == 0 {
		return ""
	}
	trend := "mixed"
	switch {
	case s.Close > s.EMAFast && s.EMAFast > s.EMASlow:
		trend = "uptrend"
	case s.Close < s.EMAFast && s.EMAFast < s.EMASlow:
		trend = "downtrend"
	}
	momentum := "flat"
	switch {
	case s.MACDHist > 0:
		momentum = "bullish"
	case s.MACDHist < 0:
		momentum = "bearish"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Technical context (%s, %d candles):\n", s.Interval, s.Count))
	sb.WriteString(fmt.Sprintf("- EMA%d %s / EMA%d %s -> %s\n",
		emaFastPeriod, format.Float(s.EMAFast, 2), emaSlowPeriod, format.Float(s.EMASlow, 2), trend))
	sb.WriteString(fmt.Sprintf("- RSI%d %s (%s)\n", rsiPeriod, format.Float(s.RSI, 1), s.RSIState))
	sb.WriteString(fmt.Sprintf("- MACD %s hist %s -> %s momentum\n",
		format.Float(s.MACD, 4), format.Float(s.MACDHist, 4), momentum))
	sb.WriteString(fmt.Sprintf("- ATR%d %s", atrPeriod, format.Float(s.ATR, 2)))
	return sb.String()
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		v := series[i]
		if !math.IsNaN(v) && !math.IsInf(v, 0) && v != 0 {
			return v
		}
	}
	return 0
}
