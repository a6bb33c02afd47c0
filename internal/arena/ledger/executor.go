package ledger

import (
	"fmt"
	"strings"
	"time"

	"ludus/internal/pkg/trading"
)

// Result statuses. A rejection is a first-class outcome, not an error: the
// book is untouched and the reason travels with the decision record.
const (
	StatusExecuted = "executed"
	StatusRejected = "rejected"
	StatusHold     = "hold"
)

// ExecResult describes what one decision did to the book.
type ExecResult struct {
	Status      string   `json:"status"`
	Action      string   `json:"action,omitempty"`
	Symbol      string   `json:"symbol,omitempty"`
	Quantity    float64  `json:"quantity,omitempty"`
	Price       float64  `json:"price,omitempty"`
	RealizedPnL *float64 `json:"realized_pnl,omitempty"`
	Reason      string   `json:"reason,omitempty"`
}

func (r ExecResult) Executed() bool { return r.Status == StatusExecuted }

// Execute applies one decision at the given price. The requested quantity
// is clamped to [MinQuantity, MaxQuantity] before anything else. Every call
// either mutates the book fully or not at all.
func (l *Ledger) Execute(action, symbol string, quantity, price float64, now time.Time) ExecResult {
	action = strings.ToLower(strings.TrimSpace(action))
	if action == "hold" || action == "" {
		return ExecResult{Status: StatusHold, Action: "hold"}
	}
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return ExecResult{Status: StatusRejected, Action: action, Reason: "missing symbol"}
	}
	if price <= 0 {
		return ExecResult{Status: StatusRejected, Action: action, Symbol: symbol, Reason: "no tradable price"}
	}
	quantity = trading.ClampQuantity(quantity, MinQuantity, MaxQuantity)
	switch action {
	case "buy":
		return l.executeBuy(symbol, quantity, price, now)
	case "sell":
		return l.executeSell(symbol, quantity, price, now)
	default:
		return ExecResult{Status: StatusRejected, Action: action, Symbol: symbol,
			Reason: fmt.Sprintf("unsupported action %q", action)}
	}
}

// executeBuy debits the full cost up front, then settles against an
// existing short if one is open: the covered part realizes
// (entry - price) x covered and releases its margin share plus the
// proceeds reserved at entry; any overshoot flips into a fresh long at the
// current price. Without a short it opens or extends a long, overwriting
// the entry price with the latest fill.
func (l *Ledger) executeBuy(symbol string, quantity, price float64, now time.Time) ExecResult {
	cost := quantity * price
	if l.Cash < cost {
		return ExecResult{
			Status: StatusRejected, Action: "buy", Symbol: symbol,
			Quantity: quantity, Price: price,
			Reason: fmt.Sprintf("insufficient cash: need %.2f, have %.2f", cost, l.Cash),
		}
	}
	l.Cash -= cost

	pos := l.Positions[symbol]
	if pos != nil && pos.Side == SideShort {
		covered := trading.CloseQuantity(quantity, pos.Quantity)
		pnl := (pos.EntryPrice - price) * covered
		released := 0.0
		if pos.Quantity > 0 {
			released = pos.Margin * covered / pos.Quantity
		}
		l.Cash += released + covered*pos.EntryPrice
		l.RealizedPnL += pnl
		remainder := quantity - covered
		if remainder > 0 {
			l.Positions[symbol] = &Position{
				Symbol: symbol, Side: SideLong,
				Quantity: remainder, EntryPrice: price,
			}
		} else {
			pos.Quantity -= covered
			pos.Margin -= released
			if pos.Quantity <= 0 {
				delete(l.Positions, symbol)
			}
		}
		result := ExecResult{
			Status: StatusExecuted, Action: "buy", Symbol: symbol,
			Quantity: quantity, Price: price, RealizedPnL: &pnl,
		}
		l.appendTrade(TradeRecord{
			Action: "buy", Symbol: symbol, Quantity: quantity,
			Price: price, RealizedPnL: &pnl, Timestamp: now,
		})
		return result
	}

	if pos != nil {
		pos.Quantity += quantity
		pos.EntryPrice = price
	} else {
		l.Positions[symbol] = &Position{
			Symbol: symbol, Side: SideLong,
			Quantity: quantity, EntryPrice: price,
		}
	}
	l.appendTrade(TradeRecord{
		Action: "buy", Symbol: symbol, Quantity: quantity,
		Price: price, Timestamp: now,
	})
	return ExecResult{
		Status: StatusExecuted, Action: "buy", Symbol: symbol,
		Quantity: quantity, Price: price,
	}
}

// executeSell reduces an open long first, capped at the held quantity,
// crediting proceeds and realizing (price - entry) x sold. With no long to
// reduce it opens or extends a short instead, reserving half the notional
// as margin.
func (l *Ledger) executeSell(symbol string, quantity, price float64, now time.Time) ExecResult {
	pos := l.Positions[symbol]
	if pos != nil && pos.Side == SideLong {
		sellQty := trading.CloseQuantity(quantity, pos.Quantity)
		proceeds := sellQty * price
		pnl := (price - pos.EntryPrice) * sellQty
		l.Cash += proceeds
		l.RealizedPnL += pnl
		pos.Quantity -= sellQty
		if pos.Quantity <= 0 {
			delete(l.Positions, symbol)
		}
		l.appendTrade(TradeRecord{
			Action: "sell", Symbol: symbol, Quantity: sellQty,
			Price: price, RealizedPnL: &pnl, Timestamp: now,
		})
		return ExecResult{
			Status: StatusExecuted, Action: "sell", Symbol: symbol,
			Quantity: sellQty, Price: price, RealizedPnL: &pnl,
		}
	}

	margin := quantity * price * ShortMarginRatio
	if l.Cash < margin {
		return ExecResult{
			Status: StatusRejected, Action: "sell", Symbol: symbol,
			Quantity: quantity, Price: price,
			Reason: fmt.Sprintf("insufficient margin: need %.2f, have %.2f", margin, l.Cash),
		}
	}
	l.Cash -= margin
	if pos != nil {
		pos.Quantity += quantity
		pos.EntryPrice = price
		pos.Margin += margin
	} else {
		l.Positions[symbol] = &Position{
			Symbol: symbol, Side: SideShort,
			Quantity: quantity, EntryPrice: price, Margin: margin,
		}
	}
	l.appendTrade(TradeRecord{
		Action: "short", Symbol: symbol, Quantity: quantity,
		Price: price, Timestamp: now,
	})
	return ExecResult{
		Status: StatusExecuted, Action: "sell", Symbol: symbol,
		Quantity: quantity, Price: price,
	}
}
