package app

import (
	"fmt"
	"strings"

	"ludus/internal/arena"
	ludcfg "ludus/internal/config"
	"ludus/internal/mode"
	"ludus/internal/pkg/format"
)

// StartupSummary is printed once before the first cycle so a run's whole
// configuration is visible in one block.
type StartupSummary struct {
	Competition CompetitionSummary
	Traders     []TraderSummary
	Modes       []string
	ActiveMode  string
	StatePath   string
	DecisionLog string
	Notifier    string
	HTTPAddr    string
	Context     string
}

type CompetitionSummary struct {
	Name     string
	Symbol   string
	Interval string
	Cycles   int
	Resume   bool
}

type TraderSummary struct {
	Name     string
	Provider string
	Model    string
	Capital  float64
	Err      string
}

func buildStartupSummary(cfg *ludcfg.Config, seats []arena.Seat, stores *StoreStack, modes *mode.Registry) *StartupSummary {
	s := &StartupSummary{
		Competition: CompetitionSummary{
			Name:     cfg.Competition.Name,
			Symbol:   cfg.Competition.Symbol,
			Interval: cfg.Competition.CycleInterval().String(),
			Cycles:   cfg.Competition.NumCycles,
			Resume:   cfg.Competition.Resume,
		},
		ActiveMode: cfg.Competition.Mode,
		HTTPAddr:   cfg.App.HTTPAddr,
		Notifier:   "disabled",
	}
	if modes != nil {
		s.Modes = modes.Names()
	}
	if stores != nil && stores.State != nil {
		s.StatePath = cfg.Store.StatePath
	}
	if stores != nil && stores.Decisions != nil {
		s.DecisionLog = cfg.Store.DecisionLogPath
		if cfg.Store.ShareStateDB {
			s.DecisionLog = cfg.Store.StatePath + " (shared)"
		}
	}
	if cfg.Notify.Telegram.Enabled {
		s.Notifier = "telegram"
	}
	if cfg.Market.ContextEnabled {
		s.Context = fmt.Sprintf("%s x%d", cfg.Market.KlineInterval, cfg.Market.KlineLimit)
	}
	for _, seat := range seats {
		ts := TraderSummary{Name: seat.Name, Err: seat.Err}
		if seat.Trader != nil {
			ts.Provider = seat.Trader.Provider
			ts.Model = seat.Trader.Model
			ts.Capital = seat.Trader.Ledger.InitialCapital
		}
		s.Traders = append(s.Traders, ts)
	}
	return s
}

func (s *StartupSummary) Print() {
	if s == nil {
		return
	}
	fmt.Println(strings.Repeat("=", 72))
	fmt.Printf("%*s\n", 36+len("ARENA STARTUP SUMMARY")/2, "ARENA STARTUP SUMMARY")
	fmt.Println(strings.Repeat("=", 72))

	fmt.Println("[COMPETITION]")
	fmt.Printf("  Name:     %s\n", s.Competition.Name)
	fmt.Printf("  Symbol:   %s\n", s.Competition.Symbol)
	fmt.Printf("  Interval: %s\n", s.Competition.Interval)
	if s.Competition.Cycles > 0 {
		fmt.Printf("  Cycles:   %d\n", s.Competition.Cycles)
	} else {
		fmt.Println("  Cycles:   unbounded (runs until stopped)")
	}
	fmt.Printf("  Resume:   %v\n", s.Competition.Resume)
	fmt.Printf("  Mode:     %s (catalog: %s)\n", s.ActiveMode, formatList(s.Modes))
	fmt.Println()

	fmt.Println("[TRADERS]")
	if len(s.Traders) == 0 {
		fmt.Println("  (none)")
	}
	for _, t := range s.Traders {
		if t.Err != "" {
			fmt.Printf("  x %s: unavailable (%s)\n", t.Name, t.Err)
			continue
		}
		fmt.Printf("  > %s: %s/%s capital=$%s\n", t.Name, t.Provider, t.Model, format.Money(t.Capital))
	}
	fmt.Println()

	fmt.Println("[INFRA]")
	fmt.Printf("  State store:  %s\n", orDash(s.StatePath))
	fmt.Printf("  Decision log: %s\n", orDash(s.DecisionLog))
	fmt.Printf("  Notifier:     %s\n", s.Notifier)
	fmt.Printf("  HTTP API:     %s\n", orDash(s.HTTPAddr))
	fmt.Printf("  Mkt context:  %s\n", orDash(s.Context))
	fmt.Println(strings.Repeat("=", 72))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
