package arena

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ludus/internal/decision"
	"ludus/internal/logger"
	"ludus/internal/market"
	"ludus/internal/mode"
	"ludus/internal/scheduler"
	"ludus/internal/store/decisionlog"
	"ludus/internal/store/gormstore"

	"github.com/google/uuid"
)

// defaultResultHistory caps the in-memory cycle result ring when the
// config does not.
const defaultResultHistory = 500

// Params configures one competition run.
type Params struct {
	CompetitionID string
	Name          string
	Symbol        string
	CycleInterval time.Duration
	ModelDelay    time.Duration
	NumCycles     int
	Mode          string
	Resume        bool
	HistoryLimit  int
}

// StateStore is the durable side of the competition. *gormstore.Store
// satisfies it; tests swap in fakes.
type StateStore interface {
	SaveCompetition(ctx context.Context, rec gormstore.CompetitionRecord) error
	LoadCompetition(ctx context.Context, competitionID string) (gormstore.CompetitionRecord, bool, error)
	SaveLedgerStates(ctx context.Context, recs []gormstore.LedgerStateRecord) error
	LoadLedgerStates(ctx context.Context, competitionID string) (map[string]gormstore.LedgerStateRecord, error)
	AppendSnapshots(ctx context.Context, recs []gormstore.PerformanceSnapshotRecord) error
}

// DecisionSink receives one row per trader per cycle.
type DecisionSink interface {
	Append(ctx context.Context, rec decisionlog.Record) (int64, error)
}

// TextNotifier pushes the cycle summary. Kept local so the arena does not
// import a concrete transport.
type TextNotifier interface {
	SendText(text string) error
}

// Deps are the competition's collaborators. Store, Decisions, Context and
// Notifier may be nil; the loop degrades to in-memory operation.
type Deps struct {
	Quotes    market.QuoteSource
	Context   *market.ContextBuilder
	Modes     *mode.Registry
	Store     StateStore
	Decisions DecisionSink
	Notifier  TextNotifier
	Seats     []Seat
}

// Competition owns the cycle loop and all trader books. The loop is the
// only writer; HTTP handlers read concurrently through the RWMutex.
type Competition struct {
	params  Params
	quotes  market.QuoteSource
	context *market.ContextBuilder
	modes   *mode.Registry
	prompts *decision.PromptBuilder

	store     StateStore
	decisions DecisionSink
	notifier  TextNotifier

	seats []Seat

	mu        sync.RWMutex
	cycle     int
	results   []CycleResult
	lastQuote *market.Quote
	startedAt time.Time

	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	nowFn    func() time.Time
}

// NewCompetition wires a competition. It fails fast on a missing quote
// source, an empty field, or a mode the catalog does not know; a resumable
// saved state is loaded before the first cycle.
func NewCompetition(params Params, deps Deps) (*Competition, error) {
	if deps.Quotes == nil {
		return nil, fmt.Errorf("competition requires a quote source")
	}
	if len(deps.Seats) == 0 {
		return nil, fmt.Errorf("competition requires at least one trader")
	}
	params.Symbol = strings.ToUpper(strings.TrimSpace(params.Symbol))
	if params.Symbol == "" {
		return nil, fmt.Errorf("competition requires a symbol")
	}
	if params.CycleInterval <= 0 {
		return nil, fmt.Errorf("competition requires a positive cycle interval")
	}
	if params.CompetitionID == "" {
		params.CompetitionID = uuid.NewString()
	}
	if params.HistoryLimit <= 0 {
		params.HistoryLimit = defaultResultHistory
	}
	if deps.Modes != nil {
		if _, err := deps.Modes.Mode(params.Mode); err != nil {
			return nil, err
		}
	}

	c := &Competition{
		params:    params,
		quotes:    deps.Quotes,
		context:   deps.Context,
		modes:     deps.Modes,
		prompts:   decision.NewPromptBuilder(params.Name),
		store:     deps.Store,
		decisions: deps.Decisions,
		notifier:  deps.Notifier,
		seats:     deps.Seats,
		stopCh:    make(chan struct{}),
		nowFn:     time.Now,
	}
	if params.Resume && c.store != nil {
		if err := c.resume(context.Background()); err != nil {
			return nil, fmt.Errorf("resume competition %s: %w", params.CompetitionID, err)
		}
	}
	return c, nil
}

// resume reloads the last completed cycle and every saved trader book.
// Traders without a saved row keep their fresh ledger: a model added
// mid-competition starts from its configured capital.
func (c *Competition) resume(ctx context.Context) error {
	rec, found, err := c.store.LoadCompetition(ctx, c.params.CompetitionID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	c.cycle = rec.LastCycle
	states, err := c.store.LoadLedgerStates(ctx, c.params.CompetitionID)
	if err != nil {
		return err
	}
	restored := 0
	for _, seat := range c.seats {
		if seat.Trader == nil {
			continue
		}
		state, ok := states[seat.Name]
		if !ok {
			continue
		}
		seat.Trader.Ledger.Restore(state.Cash, state.Positions, state.TradeCount, state.RealizedPnL)
		restored++
	}
	logger.Infof("Competition %s resumed at cycle %d, %d/%d traders restored",
		c.params.CompetitionID, c.cycle, restored, len(c.seats))
	return nil
}

// Start runs cycles until the configured count is reached, Stop is called,
// or ctx finishes. Cycle failures are logged and the loop continues; only
// the first cycle runs without waiting one interval.
func (c *Competition) Start(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return fmt.Errorf("competition already running")
	}
	defer c.running.Store(false)

	c.mu.Lock()
	c.startedAt = c.now()
	c.mu.Unlock()
	c.persistCompetition(ctx, "running")

	sched := scheduler.NewCycleScheduler(ctx, c.params.CycleInterval)
	sched.RunImmediately = true
	if c.params.NumCycles > 0 {
		remaining := c.params.NumCycles - c.completedCycles()
		if remaining <= 0 {
			logger.Infof("Competition %s already completed %d cycles", c.params.CompetitionID, c.completedCycles())
			c.persistCompetition(ctx, "finished")
			return nil
		}
		sched.MaxCycles = remaining
	}

	logger.Infof("Competition %s started: symbol=%s traders=%d interval=%s cycles=%d mode=%s",
		c.params.CompetitionID, c.params.Symbol, len(c.seats), c.params.CycleInterval,
		c.params.NumCycles, c.params.Mode)

	sched.Start(func() bool {
		select {
		case <-c.stopCh:
			return false
		default:
		}
		c.RunCycle(ctx)
		return true
	})

	status := "stopped"
	if c.params.NumCycles > 0 && c.completedCycles() >= c.params.NumCycles {
		status = "finished"
	}
	c.persistCompetition(ctx, status)
	logger.Infof("Competition %s %s after %d cycles", c.params.CompetitionID, status, c.completedCycles())
	return nil
}

// Stop ends the loop after the in-flight cycle completes. Safe to call
// more than once and from any goroutine.
func (c *Competition) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Running reports whether the loop is active.
func (c *Competition) Running() bool { return c.running.Load() }

func (c *Competition) completedCycles() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cycle
}

func (c *Competition) now() time.Time {
	if c.nowFn != nil {
		return c.nowFn()
	}
	return time.Now()
}

// activeMode resolves the configured mode against the live catalog. The
// catalog hot-reloads, so the mode can vanish mid-run; the prompt then
// simply loses its instruction block.
func (c *Competition) activeMode() mode.Mode {
	if c.modes == nil {
		return mode.Mode{}
	}
	m, err := c.modes.Mode(c.params.Mode)
	if err != nil {
		logger.Warnf("Mode %q missing from catalog, prompting without instructions", c.params.Mode)
		return mode.Mode{}
	}
	return m
}

func (c *Competition) persistCompetition(ctx context.Context, status string) {
	if c.store == nil {
		return
	}
	c.mu.RLock()
	rec := gormstore.CompetitionRecord{
		CompetitionID: c.params.CompetitionID,
		Name:          c.params.Name,
		Symbol:        c.params.Symbol,
		Mode:          c.params.Mode,
		CycleSeconds:  int(c.params.CycleInterval / time.Second),
		NumCycles:     c.params.NumCycles,
		LastCycle:     c.cycle,
		Status:        status,
		StartedAt:     c.startedAt,
	}
	c.mu.RUnlock()
	if err := c.store.SaveCompetition(ctx, rec); err != nil {
		logger.Errorf("Persist competition %s failed: %v", c.params.CompetitionID, err)
	}
}
