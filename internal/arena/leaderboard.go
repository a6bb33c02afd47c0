package arena

import (
	"fmt"
	"sort"
	"time"

	"ludus/internal/arena/ledger"
	"ludus/internal/gateway/notifier"
	"ludus/internal/logger"
	"ludus/internal/market"
	formatutil "ludus/internal/pkg/format"
)

// LeaderboardEntry is one trader's standing marked to the latest quote.
type LeaderboardEntry struct {
	Rank          int     `json:"rank"`
	Trader        string  `json:"trader"`
	Provider      string  `json:"provider"`
	Model         string  `json:"model"`
	Equity        float64 `json:"equity"`
	Cash          float64 `json:"cash"`
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	TotalPnL      float64 `json:"total_pnl"`
	ReturnPct     float64 `json:"return_pct"`
	Positions     int     `json:"positions"`
	Trades        int     `json:"trades"`
}

// TraderStatus reports one seat's health.
type TraderStatus struct {
	Name     string `json:"name"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	OK       bool   `json:"ok"`
	Err      string `json:"error,omitempty"`
}

// Status is the competition overview served by the API.
type Status struct {
	CompetitionID string         `json:"competition_id"`
	Name          string         `json:"name"`
	Symbol        string         `json:"symbol"`
	Mode          string         `json:"mode"`
	Cycle         int            `json:"cycle"`
	NumCycles     int            `json:"num_cycles"`
	Running       bool           `json:"running"`
	StartedAt     time.Time      `json:"started_at,omitempty"`
	LastQuote     *market.Quote  `json:"last_quote,omitempty"`
	Traders       []TraderStatus `json:"traders"`
}

// Leaderboard ranks the live traders by equity, marked to the last quote.
// Seats that failed construction have no book and are not ranked; they
// stay visible through Status.
func (c *Competition) Leaderboard() []LeaderboardEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var prices map[string]float64
	if c.lastQuote != nil {
		prices = map[string]float64{c.lastQuote.Symbol: c.lastQuote.Price}
	}
	entries := make([]LeaderboardEntry, 0, len(c.seats))
	for _, seat := range c.seats {
		if seat.Trader == nil {
			continue
		}
		snap := seat.Trader.Ledger.Snapshot(prices)
		entries = append(entries, LeaderboardEntry{
			Trader:        seat.Name,
			Provider:      seat.Trader.Provider,
			Model:         seat.Trader.Model,
			Equity:        snap.Equity,
			Cash:          snap.Cash,
			RealizedPnL:   snap.RealizedPnL,
			UnrealizedPnL: snap.UnrealizedPnL,
			TotalPnL:      snap.TotalPnL,
			ReturnPct:     snap.ReturnPct,
			Positions:     len(snap.Positions),
			Trades:        snap.TradeCount,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Equity > entries[j].Equity })
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// Status returns the competition overview.
func (c *Competition) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	traders := make([]TraderStatus, 0, len(c.seats))
	for _, seat := range c.seats {
		ts := TraderStatus{Name: seat.Name, OK: seat.Trader != nil, Err: seat.Err}
		if seat.Trader != nil {
			ts.Provider = seat.Trader.Provider
			ts.Model = seat.Trader.Model
		}
		traders = append(traders, ts)
	}
	return Status{
		CompetitionID: c.params.CompetitionID,
		Name:          c.params.Name,
		Symbol:        c.params.Symbol,
		Mode:          c.params.Mode,
		Cycle:         c.cycle,
		NumCycles:     c.params.NumCycles,
		Running:       c.running.Load(),
		StartedAt:     c.startedAt,
		LastQuote:     c.lastQuote,
		Traders:       traders,
	}
}

// Results returns the most recent cycle results, newest first.
func (c *Competition) Results(limit int) []CycleResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if limit <= 0 || limit > len(c.results) {
		limit = len(c.results)
	}
	out := make([]CycleResult, 0, limit)
	for i := len(c.results) - 1; i >= len(c.results)-limit; i-- {
		out = append(out, c.results[i])
	}
	return out
}

// TraderSnapshot returns one trader's current book marked to the last
// quote.
func (c *Competition) TraderSnapshot(name string) (ledger.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var prices map[string]float64
	if c.lastQuote != nil {
		prices = map[string]float64{c.lastQuote.Symbol: c.lastQuote.Price}
	}
	for _, seat := range c.seats {
		if seat.Trader != nil && seat.Name == name {
			return seat.Trader.Ledger.Snapshot(prices), true
		}
	}
	return ledger.Snapshot{}, false
}

// CompetitionID returns the run identifier, generated when the config left
// it blank.
func (c *Competition) CompetitionID() string { return c.params.CompetitionID }

// notifyCycle pushes the cycle summary. Push failures only warn; the
// notifier is a spectator, never a dependency.
func (c *Competition) notifyCycle(result CycleResult) {
	if c.notifier == nil {
		return
	}
	msg := notifier.StructuredMessage{
		Icon:      "📊",
		Title:     fmt.Sprintf("%s cycle %d", c.params.Name, result.Cycle),
		Timestamp: result.Timestamp.UTC(),
	}
	if result.Err != "" {
		msg.Icon = "⚠️"
		msg.Sections = []notifier.MessageSection{{Title: "Cycle error", Lines: []string{result.Err}}}
		if err := c.notifier.SendText(msg.RenderMarkdown()); err != nil {
			logger.Warnf("Telegram push failed (cycle error): %v", err)
		}
		return
	}

	decisionLines := make([]string, 0, len(result.Decisions))
	for _, outcome := range result.Decisions {
		line := fmt.Sprintf("%s: %s", outcome.Trader, outcome.Decision.Action)
		if tr := outcome.TradeResult; tr != nil && tr.Status != ledger.StatusHold {
			line = fmt.Sprintf("%s: %s %s @ %s (%s)",
				outcome.Trader, tr.Action, formatutil.Quantity(tr.Quantity), formatutil.Price(tr.Price), tr.Status)
			if tr.Status == ledger.StatusRejected {
				line = fmt.Sprintf("%s: %s rejected: %s", outcome.Trader, tr.Action, tr.Reason)
			}
		}
		if outcome.Err != "" {
			line += " [error]"
		}
		decisionLines = append(decisionLines, line)
	}

	standings := c.Leaderboard()
	boardLines := make([]string, 0, len(standings))
	for _, e := range standings {
		boardLines = append(boardLines, fmt.Sprintf("#%d %s %s (%s)",
			e.Rank, e.Trader, formatutil.Money(e.Equity), formatutil.Percent(e.ReturnPct)))
	}

	var marketLines []string
	if result.Quote != nil {
		marketLines = []string{fmt.Sprintf("%s @ %s", result.Quote.Symbol, formatutil.Price(result.Quote.Price))}
	}
	msg.Sections = []notifier.MessageSection{
		{Title: "Market", Lines: marketLines},
		{Title: "Decisions", Lines: decisionLines},
		{Title: "Leaderboard", Lines: boardLines},
	}
	if err := c.notifier.SendText(msg.RenderMarkdown()); err != nil {
		logger.Warnf("Telegram push failed (cycle summary): %v", err)
	}
}
