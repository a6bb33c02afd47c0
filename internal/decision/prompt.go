package decision

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"ludus/internal/arena/ledger"
	"ludus/internal/market"
	"ludus/internal/mode"
	formatutil "ludus/internal/pkg/format"
)

// defaultRecentTrades caps how many past trades the user prompt replays.
const defaultRecentTrades = 5

// PromptInput is everything one trader's prompt is built from. The builder
// touches nothing outside this struct, so identical inputs always yield
// identical prompts.
type PromptInput struct {
	TraderName string
	Cycle      int
	Quote      market.Quote
	Snapshot   ledger.Snapshot
	Trades     []ledger.TradeRecord
	Mode       mode.Mode
	Indicators *market.IndicatorSnapshot
}

// PromptBuilder assembles the system and user prompts for each cycle.
type PromptBuilder struct {
	CompetitionName string
	RecentTrades    int
}

func NewPromptBuilder(competitionName string) *PromptBuilder {
	return &PromptBuilder{
		CompetitionName: competitionName,
		RecentTrades:    defaultRecentTrades,
	}
}

// Build returns the system prompt and the user prompt for one cycle.
func (b *PromptBuilder) Build(input PromptInput) (string, string) {
	return b.buildSystem(input), b.buildUser(input)
}

func (b *PromptBuilder) buildSystem(input PromptInput) string {
	name := strings.TrimSpace(input.TraderName)
	if name == "" {
		name = "trader"
	}
	competition := strings.TrimSpace(b.CompetitionName)
	if competition == "" {
		competition = "Alpha Arena"
	}
	symbol := strings.TrimSpace(input.Quote.Symbol)
	base := baseAsset(symbol)

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, an autonomous trader competing in %s, a paper-trading competition. Your only goal is to finish with the highest account value.\n", name, competition)
	sb.WriteString("\nRules:\n")
	fmt.Fprintf(&sb, "- You trade a single instrument: %s.\n", symbol)
	sb.WriteString("- Each cycle you issue exactly one decision: \"buy\", \"sell\" or \"hold\".\n")
	sb.WriteString("- \"buy\" opens or extends a long position, or covers an open short.\n")
	sb.WriteString("- \"sell\" closes a long position, or opens/extends a short. Shorts reserve cash margin worth 50% of notional.\n")
	fmt.Fprintf(&sb, "- Order quantity is in %s and is clamped to [%s, %s].\n",
		base, formatutil.Quantity(ledger.MinQuantity), formatutil.Quantity(ledger.MaxQuantity))
	sb.WriteString("- Orders your cash cannot cover are rejected and the cycle is wasted.\n")
	sb.WriteString("\nRespond with a single JSON object and nothing else:\n")
	fmt.Fprintf(&sb, "{\"action\": \"buy\"|\"sell\"|\"hold\", \"symbol\": \"%s\", \"quantity\": 0.5, \"confidence\": 0.8, \"reasoning\": \"...\"}\n", symbol)
	fmt.Fprintf(&sb, "- quantity: order size in %s, between %s and %s.\n",
		base, formatutil.Quantity(ledger.MinQuantity), formatutil.Quantity(ledger.MaxQuantity))
	sb.WriteString("- confidence: 0.0 to 1.0.\n")
	sb.WriteString("- reasoning: one or two sentences.\n")
	return sb.String()
}

func (b *PromptBuilder) buildUser(input PromptInput) string {
	var sb strings.Builder
	sb.WriteString(renderMarket(input.Quote))
	if input.Indicators != nil {
		if block := input.Indicators.Render(); block != "" {
			sb.WriteString(block)
		}
	}
	sb.WriteString(renderAccount(input.Snapshot))
	sb.WriteString(renderPositions(input.Snapshot.Positions))
	sb.WriteString(b.renderRecentTrades(input.Trades))
	sb.WriteString(input.Mode.PromptBlock())
	sb.WriteString(renderTask(input))
	return strings.TrimSpace(sb.String()) + "\n"
}

func renderMarket(q market.Quote) string {
	var sb strings.Builder
	sb.WriteString("## Market\n")
	line := fmt.Sprintf("- %s last: %s", q.Symbol, formatutil.Price(q.Price))
	if q.Bid > 0 && q.Ask > 0 {
		line += fmt.Sprintf(" (bid %s / ask %s)", formatutil.Price(q.Bid), formatutil.Price(q.Ask))
	}
	sb.WriteString(line + "\n")
	if q.High24h > 0 && q.Low24h > 0 {
		fmt.Fprintf(&sb, "- 24h range: %s .. %s, volume %s\n",
			formatutil.Price(q.Low24h), formatutil.Price(q.High24h), formatutil.Float(q.Volume24h, 2))
	}
	if !q.Timestamp.IsZero() {
		fmt.Fprintf(&sb, "- Time: %s\n", q.Timestamp.UTC().Format(time.RFC3339))
	}
	return sb.String()
}

func renderAccount(snap ledger.Snapshot) string {
	var sb strings.Builder
	sb.WriteString("\n## Account\n")
	fmt.Fprintf(&sb, "- Cash: %s USDT, portfolio value: %s\n",
		formatutil.Money(snap.Cash), formatutil.Money(snap.Equity))
	fmt.Fprintf(&sb, "- Total P&L: %s (%s), realized: %s\n",
		formatutil.SignedMoney(snap.TotalPnL), formatutil.Percent(snap.ReturnPct), formatutil.SignedMoney(snap.RealizedPnL))
	fmt.Fprintf(&sb, "- Open positions: %d, trades so far: %d\n",
		len(snap.Positions), snap.TradeCount)
	return sb.String()
}

func renderPositions(positions []ledger.Position) string {
	var sb strings.Builder
	sb.WriteString("\n## Positions\n")
	if len(positions) == 0 {
		sb.WriteString("No open positions.\n")
		return sb.String()
	}
	sorted := append([]ledger.Position(nil), positions...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Symbol < sorted[j].Symbol })
	for _, pos := range sorted {
		line := fmt.Sprintf("- %s %s qty=%s entry=%s",
			pos.Symbol, pos.Side, formatutil.Quantity(pos.Quantity), formatutil.Price(pos.EntryPrice))
		if pos.Side == ledger.SideShort && pos.Margin > 0 {
			line += fmt.Sprintf(" margin=%s", formatutil.Money(pos.Margin))
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

func (b *PromptBuilder) renderRecentTrades(trades []ledger.TradeRecord) string {
	if len(trades) == 0 {
		return ""
	}
	limit := b.RecentTrades
	if limit <= 0 {
		limit = defaultRecentTrades
	}
	if len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}
	var sb strings.Builder
	sb.WriteString("\n## Recent Trades\n")
	for _, t := range trades {
		line := fmt.Sprintf("- %s %s %s @ %s",
			t.Timestamp.UTC().Format(time.RFC3339), t.Action,
			formatutil.Quantity(t.Quantity), formatutil.Price(t.Price))
		if t.RealizedPnL != nil {
			line += fmt.Sprintf(" pnl=%s", formatutil.SignedMoney(*t.RealizedPnL))
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

func renderTask(input PromptInput) string {
	var sb strings.Builder
	sb.WriteString("\n## Task\n")
	fmt.Fprintf(&sb, "Cycle %d. Decide buy, sell or hold for %s and answer with the JSON object only.\n",
		input.Cycle, input.Quote.Symbol)
	if firstCycle(input.Snapshot) {
		sb.WriteString("This is your first cycle and your book is empty. A hold is not acceptable: you must open a position now, so answer with buy or sell.\n")
	}
	return sb.String()
}

// firstCycle is true until the trader has either traded once or holds a
// position, whichever happens first.
func firstCycle(snap ledger.Snapshot) bool {
	return snap.TradeCount == 0 && len(snap.Positions) == 0
}

func baseAsset(symbol string) string {
	if i := strings.IndexByte(symbol, '/'); i > 0 {
		return symbol[:i]
	}
	if symbol == "" {
		return "base units"
	}
	return symbol
}
