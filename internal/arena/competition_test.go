package arena

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"ludus/internal/arena/ledger"
	"ludus/internal/mode"
	"ludus/internal/store/gormstore"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestNewCompetitionValidation(t *testing.T) {
	quotes := new(MockQuoteSource)
	seats := []Seat{newSeat("alpha", 10000)}

	t.Run("Missing Quote Source", func(t *testing.T) {
		_, err := NewCompetition(testParams(), Deps{Seats: seats})
		assert.ErrorContains(t, err, "quote source")
	})

	t.Run("No Seats", func(t *testing.T) {
		_, err := NewCompetition(testParams(), Deps{Quotes: quotes})
		assert.ErrorContains(t, err, "at least one trader")
	})

	t.Run("Missing Symbol", func(t *testing.T) {
		params := testParams()
		params.Symbol = "   "
		_, err := NewCompetition(params, Deps{Quotes: quotes, Seats: seats})
		assert.ErrorContains(t, err, "symbol")
	})

	t.Run("Bad Interval", func(t *testing.T) {
		params := testParams()
		params.CycleInterval = 0
		_, err := NewCompetition(params, Deps{Quotes: quotes, Seats: seats})
		assert.ErrorContains(t, err, "cycle interval")
	})

	t.Run("Generated ID And Normalized Symbol", func(t *testing.T) {
		params := testParams()
		params.CompetitionID = ""
		params.Symbol = "btc/usdt"
		c, err := NewCompetition(params, Deps{Quotes: quotes, Seats: seats})
		assert.NoError(t, err)
		assert.Len(t, c.CompetitionID(), 36)
		assert.Equal(t, "BTC/USDT", c.Status().Symbol)
	})
}

func TestNewCompetitionChecksModeAgainstCatalog(t *testing.T) {
	catalog := filepath.Join(t.TempDir(), "modes.yaml")
	content := "modes:\n  balanced:\n    instructions:\n      - \"Size positions moderately.\"\n"
	assert.NoError(t, os.WriteFile(catalog, []byte(content), 0o644))
	registry, err := mode.NewRegistry(catalog)
	assert.NoError(t, err)

	quotes := new(MockQuoteSource)
	seats := []Seat{newSeat("alpha", 10000)}

	params := testParams()
	params.Mode = "reckless"
	_, err = NewCompetition(params, Deps{Quotes: quotes, Modes: registry, Seats: seats})
	assert.True(t, errors.Is(err, mode.ErrUnknownMode))

	params.Mode = "balanced"
	_, err = NewCompetition(params, Deps{Quotes: quotes, Modes: registry, Seats: seats})
	assert.NoError(t, err)
}

func TestResumeRestoresSavedBooks(t *testing.T) {
	store := newMemoryStateStore()
	store.competitions["comp-test"] = gormstore.CompetitionRecord{
		CompetitionID: "comp-test",
		LastCycle:     5,
	}
	store.ledgers["comp-test"] = map[string]gormstore.LedgerStateRecord{
		"alpha": {
			CompetitionID:  "comp-test",
			ModelName:      "alpha",
			InitialCapital: 10000,
			Cash:           7500,
			RealizedPnL:    -200,
			TradeCount:     3,
			Positions: []ledger.Position{
				{Symbol: "BTC/USDT", Side: ledger.SideLong, Quantity: 0.5, EntryPrice: 9000},
			},
		},
	}

	alpha := newSeat("alpha", 10000)
	newcomer := newSeat("newcomer", 10000)
	params := testParams()
	params.Resume = true

	c, err := NewCompetition(params, Deps{
		Quotes: new(MockQuoteSource),
		Store:  store,
		Seats:  []Seat{alpha, newcomer},
	})
	assert.NoError(t, err)

	assert.Equal(t, 5, c.Status().Cycle)

	book := alpha.Trader.Ledger
	assert.InDelta(t, 7500, book.Cash, 1e-9)
	assert.InDelta(t, -200, book.RealizedPnL, 1e-9)
	assert.Equal(t, 3, book.TradeCount)
	pos := book.Positions["BTC/USDT"]
	assert.NotNil(t, pos)
	assert.InDelta(t, 9000, pos.EntryPrice, 1e-9)

	// A trader without a saved row starts from its configured capital.
	fresh := newcomer.Trader.Ledger
	assert.InDelta(t, 10000, fresh.Cash, 1e-9)
	assert.Equal(t, 0, fresh.TradeCount)
}

func TestResumeWithoutSavedStateStartsFresh(t *testing.T) {
	params := testParams()
	params.Resume = true

	c, err := NewCompetition(params, Deps{
		Quotes: new(MockQuoteSource),
		Store:  newMemoryStateStore(),
		Seats:  []Seat{newSeat("alpha", 10000)},
	})
	assert.NoError(t, err)
	assert.Equal(t, 0, c.Status().Cycle)
}

func TestStartRunsBoundedCycles(t *testing.T) {
	quotes := new(MockQuoteSource)
	quotes.On("FetchQuote", mock.Anything, "BTC/USDT").Return(testQuote(8000), nil)

	store := newMemoryStateStore()
	params := testParams()
	params.NumCycles = 2
	params.CycleInterval = 20 * time.Millisecond

	c, err := NewCompetition(params, Deps{Quotes: quotes, Store: store, Seats: []Seat{newSeat("alpha", 10000)}})
	assert.NoError(t, err)

	assert.NoError(t, c.Start(context.Background()))

	assert.Equal(t, 2, c.Status().Cycle)
	assert.False(t, c.Running())
	rec, ok := store.competition(c.CompetitionID())
	assert.True(t, ok)
	assert.Equal(t, "finished", rec.Status)
	assert.Equal(t, 2, rec.LastCycle)

	// A completed competition does not run more cycles.
	assert.NoError(t, c.Start(context.Background()))
	assert.Equal(t, 2, c.Status().Cycle)
}

func TestStopBeforeStartRunsNothing(t *testing.T) {
	quotes := new(MockQuoteSource)
	store := newMemoryStateStore()
	params := testParams()
	params.NumCycles = 3
	params.CycleInterval = 10 * time.Millisecond

	c, err := NewCompetition(params, Deps{Quotes: quotes, Store: store, Seats: []Seat{newSeat("alpha", 10000)}})
	assert.NoError(t, err)

	c.Stop()
	c.Stop() // idempotent

	assert.NoError(t, c.Start(context.Background()))
	assert.Equal(t, 0, c.Status().Cycle)
	rec, _ := store.competition(c.CompetitionID())
	assert.Equal(t, "stopped", rec.Status)
	quotes.AssertExpectations(t)
}

func TestStartTwiceFails(t *testing.T) {
	quotes := new(MockQuoteSource)
	quotes.On("FetchQuote", mock.Anything, "BTC/USDT").Return(testQuote(8000), nil)

	params := testParams()
	params.CycleInterval = 10 * time.Millisecond

	c, err := NewCompetition(params, Deps{Quotes: quotes, Seats: []Seat{newSeat("alpha", 10000)}})
	assert.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background()) }()
	waitFor(t, 2*time.Second, c.Running)

	assert.ErrorContains(t, c.Start(context.Background()), "already running")

	c.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("competition did not stop")
	}
	assert.False(t, c.Running())
}

func TestLeaderboardRanksByEquity(t *testing.T) {
	quotes := new(MockQuoteSource)
	quotes.On("FetchQuote", mock.Anything, "BTC/USDT").Return(testQuote(8000), nil).Once()
	quotes.On("FetchQuote", mock.Anything, "BTC/USDT").Return(testQuote(9000), nil).Once()

	alpha := newSeat("alpha", 10000, buyHalf, `{"action":"hold"}`)
	bravo := newSeat("bravo", 10000)

	c, err := NewCompetition(testParams(), Deps{Quotes: quotes, Seats: []Seat{bravo, alpha}})
	assert.NoError(t, err)

	c.RunCycle(context.Background())
	c.RunCycle(context.Background())

	board := c.Leaderboard()
	assert.Len(t, board, 2)

	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, "alpha", board[0].Trader)
	assert.InDelta(t, 10500, board[0].Equity, 1e-9)
	assert.InDelta(t, 0.05, board[0].ReturnPct, 1e-9)
	assert.InDelta(t, 500, board[0].UnrealizedPnL, 1e-9)
	assert.Equal(t, 1, board[0].Positions)
	assert.Equal(t, 1, board[0].Trades)

	assert.Equal(t, 2, board[1].Rank)
	assert.Equal(t, "bravo", board[1].Trader)
	assert.InDelta(t, 10000, board[1].Equity, 1e-9)
	quotes.AssertExpectations(t)
}

func TestResultsNewestFirstAndCapped(t *testing.T) {
	quotes := new(MockQuoteSource)
	quotes.On("FetchQuote", mock.Anything, "BTC/USDT").Return(testQuote(8000), nil).Once()
	quotes.On("FetchQuote", mock.Anything, "BTC/USDT").Return(testQuote(8100), nil).Once()
	quotes.On("FetchQuote", mock.Anything, "BTC/USDT").Return(testQuote(8200), nil).Once()

	params := testParams()
	params.HistoryLimit = 2

	c, err := NewCompetition(params, Deps{Quotes: quotes, Seats: []Seat{newSeat("alpha", 10000)}})
	assert.NoError(t, err)

	for i := 0; i < 3; i++ {
		c.RunCycle(context.Background())
	}

	results := c.Results(0)
	assert.Len(t, results, 2)
	assert.Equal(t, 3, results[0].Cycle)
	assert.Equal(t, 8200.0, results[0].Quote.Price)
	assert.Equal(t, 2, results[1].Cycle)

	one := c.Results(1)
	assert.Len(t, one, 1)
	assert.Equal(t, 3, one[0].Cycle)

	assert.Len(t, c.Results(10), 2)
	quotes.AssertExpectations(t)
}

func TestTraderSnapshotMarksToLastQuote(t *testing.T) {
	quotes := new(MockQuoteSource)
	quotes.On("FetchQuote", mock.Anything, "BTC/USDT").Return(testQuote(8000), nil).Once()

	alpha := newSeat("alpha", 10000, buyHalf)
	c, err := NewCompetition(testParams(), Deps{Quotes: quotes, Seats: []Seat{alpha}})
	assert.NoError(t, err)

	c.RunCycle(context.Background())

	snap, ok := c.TraderSnapshot("alpha")
	assert.True(t, ok)
	assert.InDelta(t, 6000, snap.Cash, 1e-9)
	assert.InDelta(t, 10000, snap.Equity, 1e-9)
	assert.Len(t, snap.Positions, 1)

	_, ok = c.TraderSnapshot("ghost")
	assert.False(t, ok)
}
