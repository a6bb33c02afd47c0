package decision

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ludus/internal/arena/ledger"
	"ludus/internal/market"
	"ludus/internal/mode"
)

func promptInput() PromptInput {
	return PromptInput{
		TraderName: "gpt-5",
		Cycle:      3,
		Quote: market.Quote{
			Symbol:    "BTC/USDT",
			Price:     58000,
			Bid:       57990,
			Ask:       58010,
			High24h:   59000,
			Low24h:    56500,
			Volume24h: 12345.6,
			Timestamp: time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC),
		},
		Snapshot: ledger.Snapshot{
			Cash:       6000,
			Equity:     10500,
			TotalPnL:   500,
			ReturnPct:  0.05,
			TradeCount: 2,
			Positions: []ledger.Position{
				{Symbol: "BTC/USDT", Side: ledger.SideLong, Quantity: 0.5, EntryPrice: 8000},
			},
		},
		Mode: mode.Mode{
			ID:           "balanced",
			Description:  "steady hands",
			Instructions: []string{"Size positions moderately."},
		},
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	b := NewPromptBuilder("Alpha Arena")

	system, _ := b.Build(promptInput())

	assert.Contains(t, system, "You are gpt-5")
	assert.Contains(t, system, "Alpha Arena")
	assert.Contains(t, system, "You trade a single instrument: BTC/USDT.")
	assert.Contains(t, system, "clamped to [0.001, 1]")
	assert.Contains(t, system, "Respond with a single JSON object")
	assert.Contains(t, system, `"symbol": "BTC/USDT"`)
}

func TestBuildUserPromptSections(t *testing.T) {
	b := NewPromptBuilder("Alpha Arena")

	_, user := b.Build(promptInput())

	assert.Contains(t, user, "## Market")
	assert.Contains(t, user, "BTC/USDT last: 58000")
	assert.Contains(t, user, "bid 57990 / ask 58010")
	assert.Contains(t, user, "## Account")
	assert.Contains(t, user, "Cash: 6000.00 USDT")
	assert.Contains(t, user, "Total P&L: +500.00 (+5.00%)")
	assert.Contains(t, user, "## Positions")
	assert.Contains(t, user, "BTC/USDT long qty=0.5 entry=8000")
	assert.Contains(t, user, "## Trading Mode: balanced (steady hands)")
	assert.Contains(t, user, "- Size positions moderately.")
	assert.Contains(t, user, "Cycle 3.")
	assert.NotContains(t, user, "first cycle")
}

func TestBuildUserPromptForcesFirstTrade(t *testing.T) {
	b := NewPromptBuilder("Alpha Arena")
	input := promptInput()
	input.Snapshot.TradeCount = 0
	input.Snapshot.Positions = nil

	_, user := b.Build(input)

	assert.Contains(t, user, "This is your first cycle")
	assert.Contains(t, user, "answer with buy or sell")
	assert.Contains(t, user, "No open positions.")
}

func TestBuildUserPromptShortPositionShowsMargin(t *testing.T) {
	b := NewPromptBuilder("Alpha Arena")
	input := promptInput()
	input.Snapshot.Positions = []ledger.Position{
		{Symbol: "BTC/USDT", Side: ledger.SideShort, Quantity: 0.2, EntryPrice: 58000, Margin: 5800},
	}

	_, user := b.Build(input)

	assert.Contains(t, user, "BTC/USDT short qty=0.2 entry=58000 margin=5800.00")
}

func TestBuildUserPromptRecentTradesCapped(t *testing.T) {
	b := NewPromptBuilder("Alpha Arena")
	input := promptInput()
	for i := 0; i < 8; i++ {
		input.Trades = append(input.Trades, ledger.TradeRecord{
			Action: "buy", Symbol: "BTC/USDT", Quantity: 0.1,
			Price: float64(50000 + i), Timestamp: time.Date(2025, 10, 20, 12, i, 0, 0, time.UTC),
		})
	}

	_, user := b.Build(input)

	assert.Contains(t, user, "## Recent Trades")
	assert.Equal(t, defaultRecentTrades, strings.Count(user, "- 2025-10-20T12:"))
	// The newest trades survive the cap.
	assert.Contains(t, user, "@ 50007")
	assert.NotContains(t, user, "@ 50000")
}

func TestBuildUserPromptOmitsEmptySections(t *testing.T) {
	b := NewPromptBuilder("")
	input := promptInput()
	input.Trades = nil
	input.Mode = mode.Mode{}

	_, user := b.Build(input)

	assert.NotContains(t, user, "## Recent Trades")
	assert.NotContains(t, user, "## Trading Mode")
}

func TestBaseAsset(t *testing.T) {
	assert.Equal(t, "BTC", baseAsset("BTC/USDT"))
	assert.Equal(t, "SOLUSDT", baseAsset("SOLUSDT"))
	assert.Equal(t, "base units", baseAsset(""))
}
