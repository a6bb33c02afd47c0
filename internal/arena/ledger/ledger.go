// Package ledger holds one trader's simulated book: cash, open positions
// and the trade trail. Each ledger has exactly one writer, the competition
// loop acting for its trader, so the package does no locking of its own.
package ledger

import (
	"time"
)

const (
	SideLong  = "long"
	SideShort = "short"
)

const (
	// Order size bounds in base asset units. Requests outside the range
	// execute at the nearest bound.
	MinQuantity = 0.001
	MaxQuantity = 1.0

	// Fraction of notional reserved from cash when opening a short, in
	// lieu of receiving proceeds.
	ShortMarginRatio = 0.5
)

// Position is one open holding. Quantity stays positive; direction lives
// in Side. Margin is only meaningful for shorts.
type Position struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Quantity   float64 `json:"quantity"`
	EntryPrice float64 `json:"entry_price"`
	Margin     float64 `json:"margin,omitempty"`
}

// TradeRecord is one executed trade. RealizedPnL is set only when the
// trade closed or reduced an opposite position.
type TradeRecord struct {
	Action      string    `json:"action"`
	Symbol      string    `json:"symbol"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	RealizedPnL *float64  `json:"realized_pnl,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Ledger is the mutable book. TradeCount survives restarts via the state
// store; the in-memory trade list is capped and exists for prompts and the
// API, with persistence as the durable record.
type Ledger struct {
	InitialCapital float64
	Cash           float64
	Positions      map[string]*Position
	TradeCount     int
	RealizedPnL    float64

	trades       []TradeRecord
	historyLimit int
}

func New(initialCapital float64, historyLimit int) *Ledger {
	return &Ledger{
		InitialCapital: initialCapital,
		Cash:           initialCapital,
		Positions:      make(map[string]*Position),
		historyLimit:   historyLimit,
	}
}

// Restore overwrites the book with persisted state, used to resume a
// competition across restarts. The in-memory trade list starts empty; only
// the count carries over.
func (l *Ledger) Restore(cash float64, positions []Position, tradeCount int, realizedPnL float64) {
	l.Cash = cash
	l.Positions = make(map[string]*Position, len(positions))
	for i := range positions {
		p := positions[i]
		l.Positions[p.Symbol] = &p
	}
	l.TradeCount = tradeCount
	l.RealizedPnL = realizedPnL
	l.trades = nil
}

// UnrealizedPnL marks open positions against the given prices. Symbols
// without a price contribute zero.
func (l *Ledger) UnrealizedPnL(prices map[string]float64) float64 {
	total := 0.0
	for sym, pos := range l.Positions {
		price, ok := prices[sym]
		if !ok || price <= 0 {
			continue
		}
		if pos.Side == SideLong {
			total += (price - pos.EntryPrice) * pos.Quantity
		} else {
			total += (pos.EntryPrice - price) * pos.Quantity
		}
	}
	return total
}

// Equity is cash plus the liquidation value of every open position: a long
// is worth its market value, a short its reserved margin plus unrealized
// P&L.
func (l *Ledger) Equity(prices map[string]float64) float64 {
	total := l.Cash
	for sym, pos := range l.Positions {
		price, ok := prices[sym]
		if !ok || price <= 0 {
			price = pos.EntryPrice
		}
		if pos.Side == SideLong {
			total += pos.Quantity * price
		} else {
			total += pos.Margin + (pos.EntryPrice-price)*pos.Quantity
		}
	}
	return total
}

// Snapshot is a read-only copy of the book handed to prompts, the API and
// the persistence layer.
type Snapshot struct {
	Cash          float64    `json:"cash"`
	Equity        float64    `json:"equity"`
	RealizedPnL   float64    `json:"realized_pnl"`
	UnrealizedPnL float64    `json:"unrealized_pnl"`
	TotalPnL      float64    `json:"total_pnl"`
	ReturnPct     float64    `json:"return_pct"`
	TradeCount    int        `json:"trade_count"`
	Positions     []Position `json:"positions"`
}

func (l *Ledger) Snapshot(prices map[string]float64) Snapshot {
	equity := l.Equity(prices)
	unrealized := l.UnrealizedPnL(prices)
	totalPnL := equity - l.InitialCapital
	returnPct := 0.0
	if l.InitialCapital > 0 {
		returnPct = totalPnL / l.InitialCapital
	}
	positions := make([]Position, 0, len(l.Positions))
	for _, pos := range l.Positions {
		positions = append(positions, *pos)
	}
	return Snapshot{
		Cash:          l.Cash,
		Equity:        equity,
		RealizedPnL:   l.RealizedPnL,
		UnrealizedPnL: unrealized,
		TotalPnL:      totalPnL,
		ReturnPct:     returnPct,
		TradeCount:    l.TradeCount,
		Positions:     positions,
	}
}

// Trades returns a copy of the capped in-memory trade list, oldest first.
func (l *Ledger) Trades() []TradeRecord {
	out := make([]TradeRecord, len(l.trades))
	copy(out, l.trades)
	return out
}

func (l *Ledger) appendTrade(rec TradeRecord) {
	l.TradeCount++
	l.trades = append(l.trades, rec)
	if l.historyLimit > 0 && len(l.trades) > l.historyLimit {
		l.trades = l.trades[len(l.trades)-l.historyLimit:]
	}
}
