package ledger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEquityMarksLongAtPrice(t *testing.T) {
	l := New(10000, 100)
	l.Execute("buy", "BTC/USDT", 0.5, 8000, execTime)

	equity := l.Equity(map[string]float64{"BTC/USDT": 9000})

	assert.InDelta(t, 6000+0.5*9000, equity, 1e-9)
}

func TestEquityFallsBackToEntryWithoutPrice(t *testing.T) {
	l := New(10000, 100)
	l.Execute("buy", "BTC/USDT", 0.5, 8000, execTime)

	equity := l.Equity(map[string]float64{})

	assert.InDelta(t, 10000, equity, 1e-9)
}

func TestEquityMarksShortAgainstEntry(t *testing.T) {
	l := New(10000, 100)
	l.Execute("sell", "BTC/USDT", 0.5, 8000, execTime)

	// Cash 8000, margin 2000, price moved down 1000 in the short's favor.
	equity := l.Equity(map[string]float64{"BTC/USDT": 7000})

	assert.InDelta(t, 8000+2000+0.5*1000, equity, 1e-9)
}

func TestUnrealizedPnLSkipsUnpricedSymbols(t *testing.T) {
	l := New(10000, 100)
	l.Execute("buy", "BTC/USDT", 0.5, 8000, execTime)
	l.Execute("buy", "ETH/USDT", 0.5, 2000, execTime)

	pnl := l.UnrealizedPnL(map[string]float64{"BTC/USDT": 9000})

	assert.InDelta(t, 500, pnl, 1e-9)
}

func TestSnapshotReturnsRatioAndCopies(t *testing.T) {
	l := New(10000, 100)
	l.Execute("buy", "BTC/USDT", 0.5, 8000, execTime)

	snap := l.Snapshot(map[string]float64{"BTC/USDT": 9000})

	assert.InDelta(t, 6000, snap.Cash, 1e-9)
	assert.InDelta(t, 10500, snap.Equity, 1e-9)
	assert.InDelta(t, 500, snap.TotalPnL, 1e-9)
	assert.InDelta(t, 0.05, snap.ReturnPct, 1e-9)
	assert.Equal(t, 1, snap.TradeCount)
	assert.Len(t, snap.Positions, 1)

	// Mutating the snapshot copy must not touch the book.
	snap.Positions[0].Quantity = 99
	assert.InDelta(t, 0.5, l.Positions["BTC/USDT"].Quantity, 1e-9)
}

func TestSnapshotZeroCapital(t *testing.T) {
	l := New(0, 100)

	snap := l.Snapshot(nil)

	assert.Equal(t, 0.0, snap.ReturnPct)
}

func TestRestoreOverwritesBook(t *testing.T) {
	l := New(10000, 100)
	l.Execute("buy", "BTC/USDT", 0.5, 8000, execTime)

	l.Restore(7500, []Position{
		{Symbol: "ETH/USDT", Side: SideShort, Quantity: 0.3, EntryPrice: 2000, Margin: 300},
	}, 12, -250)

	assert.InDelta(t, 7500, l.Cash, 1e-9)
	assert.Equal(t, 12, l.TradeCount)
	assert.InDelta(t, -250, l.RealizedPnL, 1e-9)
	assert.Empty(t, l.Trades())
	assert.Nil(t, l.Positions["BTC/USDT"])
	pos := l.Positions["ETH/USDT"]
	assert.NotNil(t, pos)
	assert.Equal(t, SideShort, pos.Side)
	assert.InDelta(t, 300, pos.Margin, 1e-9)
}

func TestTradeHistoryIsCapped(t *testing.T) {
	l := New(100000, 3)

	for i := 0; i < 5; i++ {
		res := l.Execute("buy", fmt.Sprintf("C%d/USDT", i), 0.01, 100, execTime)
		assert.Equal(t, StatusExecuted, res.Status)
	}

	trades := l.Trades()
	assert.Len(t, trades, 3)
	assert.Equal(t, "C2/USDT", trades[0].Symbol)
	assert.Equal(t, "C4/USDT", trades[2].Symbol)
	assert.Equal(t, 5, l.TradeCount)
}
