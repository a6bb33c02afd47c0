package arena

import (
	"context"
	"fmt"
	"time"

	"ludus/internal/arena/ledger"
	"ludus/internal/decision"
	"ludus/internal/logger"
	"ludus/internal/market"
	"ludus/internal/mode"
	formatutil "ludus/internal/pkg/format"
	"ludus/internal/scheduler"
	"ludus/internal/store/decisionlog"
	"ludus/internal/store/gormstore"
)

// CycleResult is the full outcome of one cycle. Err is set when the cycle
// aborted before any trader was queried (quote failure); Decisions then
// stays empty.
type CycleResult struct {
	Cycle     int               `json:"cycle"`
	Timestamp time.Time         `json:"timestamp"`
	Quote     *market.Quote     `json:"quote,omitempty"`
	Err       string            `json:"error,omitempty"`
	Decisions []DecisionOutcome `json:"decisions,omitempty"`
}

// DecisionOutcome is one trader's row for one cycle: the decision (or the
// hold fallback), the trade result, and the raw material it came from.
type DecisionOutcome struct {
	Trader      string             `json:"trader"`
	Timestamp   time.Time          `json:"timestamp"`
	Decision    decision.Decision  `json:"decision"`
	TradeResult *ledger.ExecResult `json:"trade_result,omitempty"`
	Err         string             `json:"error,omitempty"`

	rawOutput string
	rawJSON   string
}

// RunCycle executes exactly one cycle: one quote, then every seat in
// config order about one model-delay apart, then persistence. It never
// returns an error; failures are recorded in the result and the next
// scheduled cycle is the retry.
func (c *Competition) RunCycle(ctx context.Context) CycleResult {
	cycle := c.completedCycles() + 1
	result := CycleResult{Cycle: cycle, Timestamp: c.now()}

	quote, err := c.quotes.FetchQuote(ctx, c.params.Symbol)
	if err != nil {
		result.Err = fmt.Sprintf("quote fetch failed: %v", err)
		logger.Errorf("Cycle %d: %s", cycle, result.Err)
		c.commitCycle(ctx, result)
		return result
	}
	result.Quote = &quote
	logger.Infof("Cycle %d: %s @ %s", cycle, quote.Symbol, formatutil.Price(quote.Price))

	indicators := c.buildMarketContext(ctx)

	activeMode := c.activeMode()
	result.Decisions = make([]DecisionOutcome, 0, len(c.seats))
	for i, seat := range c.seats {
		if i > 0 && c.params.ModelDelay > 0 {
			if !scheduler.SleepWithContext(ctx, c.params.ModelDelay) {
				break
			}
		}
		result.Decisions = append(result.Decisions, c.decideSeat(ctx, seat, cycle, quote, activeMode, indicators))
	}

	c.commitCycle(ctx, result)
	return result
}

// buildMarketContext computes the optional indicator block. Never fatal:
// a failed fetch just means the prompt goes out without it.
func (c *Competition) buildMarketContext(ctx context.Context) *market.IndicatorSnapshot {
	if c.context == nil {
		return nil
	}
	snap, err := c.context.Build(ctx, c.params.Symbol)
	if err != nil {
		logger.Warnf("Market context unavailable: %v", err)
		return nil
	}
	return snap
}

func (c *Competition) decideSeat(ctx context.Context, seat Seat, cycle int, quote market.Quote, activeMode mode.Mode, indicators *market.IndicatorSnapshot) DecisionOutcome {
	now := c.now()
	if seat.Trader == nil {
		return DecisionOutcome{
			Trader:      seat.Name,
			Timestamp:   now,
			Decision:    decision.Decision{Action: decision.ActionHold},
			TradeResult: &ledger.ExecResult{Status: ledger.StatusHold, Action: decision.ActionHold},
			Err:         "trader unavailable: " + seat.Err,
		}
	}

	t := seat.Trader
	prices := map[string]float64{quote.Symbol: quote.Price}
	input := decision.PromptInput{
		TraderName: t.Name,
		Cycle:      cycle,
		Quote:      quote,
		Snapshot:   t.Ledger.Snapshot(prices),
		Trades:     t.Ledger.Trades(),
		Mode:       activeMode,
		Indicators: indicators,
	}
	systemPrompt, userPrompt := c.prompts.Build(input)

	res := t.Requester.Request(ctx, systemPrompt, userPrompt)
	outcome := DecisionOutcome{
		Trader:    t.Name,
		Timestamp: now,
		Decision:  res.Decision,
		Err:       res.Err,
		rawOutput: res.RawOutput,
		rawJSON:   res.RawJSON,
	}
	if res.Errored() {
		outcome.TradeResult = &ledger.ExecResult{Status: ledger.StatusHold, Action: decision.ActionHold}
		logger.Warnf("Cycle %d: %s decision failed: %s", cycle, t.Name, res.Err)
		return outcome
	}

	c.mu.Lock()
	exec := t.Ledger.Execute(res.Decision.Action, res.Decision.Symbol, res.Decision.Quantity, quote.Price, now)
	c.mu.Unlock()
	outcome.TradeResult = &exec

	switch exec.Status {
	case ledger.StatusExecuted:
		logger.Infof("Cycle %d: %s %s %s %s @ %s",
			cycle, t.Name, exec.Action, formatutil.Quantity(exec.Quantity), exec.Symbol, formatutil.Price(exec.Price))
	case ledger.StatusRejected:
		logger.Warnf("Cycle %d: %s %s rejected: %s", cycle, t.Name, exec.Action, exec.Reason)
	default:
		logger.Debugf("Cycle %d: %s holds", cycle, t.Name)
	}
	return outcome
}

// commitCycle persists the cycle, then publishes it to readers. Persistence
// failures are logged and never stop the loop; cycle N is fully committed
// before cycle N+1 can start.
func (c *Competition) commitCycle(ctx context.Context, result CycleResult) {
	c.persistDecisions(ctx, result)
	c.persistState(ctx, result)

	c.mu.Lock()
	c.cycle = result.Cycle
	if result.Quote != nil {
		c.lastQuote = result.Quote
	}
	c.results = append(c.results, result)
	if len(c.results) > c.params.HistoryLimit {
		c.results = c.results[len(c.results)-c.params.HistoryLimit:]
	}
	c.mu.Unlock()

	c.persistCompetition(ctx, "running")
	c.notifyCycle(result)
}

func (c *Competition) persistDecisions(ctx context.Context, result CycleResult) {
	if c.decisions == nil {
		return
	}
	for _, outcome := range result.Decisions {
		rec := decisionlog.Record{
			Timestamp:     outcome.Timestamp.UnixMilli(),
			CompetitionID: c.params.CompetitionID,
			ModelName:     outcome.Trader,
			Cycle:         result.Cycle,
			Action:        outcome.Decision.Action,
			Symbol:        outcome.Decision.Symbol,
			Quantity:      outcome.Decision.Quantity,
			Confidence:    outcome.Decision.Confidence,
			Reasoning:     outcome.Decision.Reasoning,
			RawOutput:     outcome.rawOutput,
			RawJSON:       outcome.rawJSON,
			Error:         outcome.Err,
		}
		if result.Quote != nil {
			rec.Price = result.Quote.Price
		}
		if tr := outcome.TradeResult; tr != nil {
			rec.Status = tr.Status
			rec.Reason = tr.Reason
			rec.RealizedPnL = tr.RealizedPnL
		}
		if _, err := c.decisions.Append(ctx, rec); err != nil {
			logger.Errorf("Persist decision for %s failed: %v", outcome.Trader, err)
		}
	}
}

func (c *Competition) persistState(ctx context.Context, result CycleResult) {
	if c.store == nil {
		return
	}
	now := c.now()
	states := make([]gormstore.LedgerStateRecord, 0, len(c.seats))
	snapshots := make([]gormstore.PerformanceSnapshotRecord, 0, len(c.seats))
	var prices map[string]float64
	if result.Quote != nil {
		prices = map[string]float64{result.Quote.Symbol: result.Quote.Price}
	}
	for _, seat := range c.seats {
		if seat.Trader == nil {
			continue
		}
		book := seat.Trader.Ledger
		snap := book.Snapshot(prices)
		states = append(states, gormstore.LedgerStateRecord{
			CompetitionID:  c.params.CompetitionID,
			ModelName:      seat.Name,
			InitialCapital: book.InitialCapital,
			Cash:           book.Cash,
			RealizedPnL:    book.RealizedPnL,
			TradeCount:     book.TradeCount,
			Positions:      snap.Positions,
			UpdatedAt:      now,
		})
		if result.Quote != nil {
			snapshots = append(snapshots, gormstore.PerformanceSnapshotRecord{
				CompetitionID: c.params.CompetitionID,
				ModelName:     seat.Name,
				Cycle:         result.Cycle,
				Price:         result.Quote.Price,
				Cash:          snap.Cash,
				Equity:        snap.Equity,
				RealizedPnL:   snap.RealizedPnL,
				UnrealizedPnL: snap.UnrealizedPnL,
				TotalPnL:      snap.TotalPnL,
				ReturnPct:     snap.ReturnPct,
				PositionCount: len(snap.Positions),
				TradeCount:    snap.TradeCount,
				Timestamp:     result.Timestamp,
			})
		}
	}
	if err := c.store.SaveLedgerStates(ctx, states); err != nil {
		logger.Errorf("Persist ledger states failed: %v", err)
	}
	if err := c.store.AppendSnapshots(ctx, snapshots); err != nil {
		logger.Errorf("Persist performance snapshots failed: %v", err)
	}
}
