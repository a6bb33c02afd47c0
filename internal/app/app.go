// Package app assembles the configured pieces into a runnable arena: the
// competition loop, its stores and notifier, and the HTTP API around it.
package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"ludus/internal/arena"
	ludcfg "ludus/internal/config"
	"ludus/internal/logger"
	arenahttp "ludus/internal/transport/http/arena"
)

// App owns the wired components and their shutdown order.
type App struct {
	cfg         *ludcfg.Config
	competition *arena.Competition
	httpSrv     *arenahttp.Server
	closers     []func()
	Summary     *StartupSummary
}

// NewApp builds the application from config without starting anything.
func NewApp(cfg *ludcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run starts the HTTP server and the competition loop and blocks until
// both wind down. Finishing the configured cycle count shuts the server
// down too, so a bounded run exits by itself.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.competition == nil {
		return fmt.Errorf("competition not initialized")
	}
	defer a.Close()

	if a.Summary != nil {
		a.Summary.Print()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, runCtx := errgroup.WithContext(runCtx)

	if a.httpSrv != nil {
		group.Go(func() error {
			if err := a.httpSrv.Start(runCtx); err != nil {
				return fmt.Errorf("arena http server error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		defer cancel()
		return a.competition.Start(runCtx)
	})

	return group.Wait()
}

// Close releases stores and other held resources. Run calls it on the way
// out; calling it again is harmless.
func (a *App) Close() {
	if a == nil {
		return
	}
	for _, fn := range a.closers {
		if fn != nil {
			fn()
		}
	}
	a.closers = nil
}

// Competition exposes the wired competition for harnesses.
func (a *App) Competition() *arena.Competition {
	if a == nil {
		return nil
	}
	return a.competition
}
