package app

import (
	"context"
	"fmt"
	"strings"

	"ludus/internal/arena"
	ludcfg "ludus/internal/config"
	"ludus/internal/gateway/binance"
	"ludus/internal/gateway/notifier"
	"ludus/internal/gateway/provider"
	"ludus/internal/logger"
	"ludus/internal/market"
	"ludus/internal/mode"
	"ludus/internal/store"
	"ludus/internal/store/decisionlog"
	"ludus/internal/store/gormstore"
	arenahttp "ludus/internal/transport/http/arena"
)

// MarketStack bundles the exchange-facing pieces.
type MarketStack struct {
	Quotes  market.QuoteSource
	Context *market.ContextBuilder
}

// StoreStack bundles the durable pieces. Either field may be nil when its
// path is configured empty.
type StoreStack struct {
	State     *gormstore.Store
	Decisions *decisionlog.Store
}

// AppBuilder assembles an App. The function fields exist so tests can
// swap a single stage without faking the whole build.
type AppBuilder struct {
	cfg *ludcfg.Config

	marketStackFn func(*ludcfg.Config) (*MarketStack, error)
	modesFn       func(ludcfg.CompetitionConfig) (*mode.Registry, error)
	seatsFn       func(*ludcfg.Config, provider.Capabilities) []arena.Seat
	storesFn      func(*ludcfg.Config) (*StoreStack, error)
	notifierFn    func(ludcfg.NotifyConfig) arena.TextNotifier
	httpServerFn  func(ludcfg.AppConfig, *arena.Competition, *StoreStack) (*arenahttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *ludcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:           cfg,
		marketStackFn: buildMarketStack,
		modesFn:       buildModeRegistry,
		seatsFn:       buildSeats,
		storesFn:      buildStores,
		notifierFn:    buildNotifier,
		httpServerFn:  buildHTTPServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Build wires every component. Trader construction failures do not abort
// the build; a missing mode catalog or store path does.
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	caps := provider.DetectCapabilities(credentialEnvNames(cfg))
	logger.InfoBlock(caps.Summary())

	marketStack, err := b.marketStackFn(cfg)
	if err != nil {
		return nil, err
	}

	modes, err := b.modesFn(cfg.Competition)
	if err != nil {
		return nil, fmt.Errorf("load mode catalog: %w", err)
	}

	seats := b.seatsFn(cfg, caps)

	stores, err := b.storesFn(cfg)
	if err != nil {
		return nil, err
	}

	deps := arena.Deps{
		Quotes:  marketStack.Quotes,
		Context: marketStack.Context,
		Modes:   modes,
		Seats:   seats,
	}
	if stores.State != nil {
		deps.Store = stores.State
	}
	if stores.Decisions != nil {
		deps.Decisions = stores.Decisions
	}
	if tn := b.notifierFn(cfg.Notify); tn != nil {
		deps.Notifier = tn
	}

	competition, err := arena.NewCompetition(arena.Params{
		CompetitionID: cfg.Competition.ID,
		Name:          cfg.Competition.Name,
		Symbol:        cfg.Competition.Symbol,
		CycleInterval: cfg.Competition.CycleInterval(),
		ModelDelay:    cfg.Competition.ModelDelay(),
		NumCycles:     cfg.Competition.NumCycles,
		Mode:          cfg.Competition.Mode,
		Resume:        cfg.Competition.Resume,
		HistoryLimit:  cfg.Competition.HistoryLimit,
	}, deps)
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("build competition: %w", err)
	}

	httpSrv, err := b.httpServerFn(cfg.App, competition, stores)
	if err != nil {
		stores.Close()
		return nil, err
	}

	return &App{
		cfg:         cfg,
		competition: competition,
		httpSrv:     httpSrv,
		closers:     []func(){stores.Close},
		Summary:     buildStartupSummary(cfg, seats, stores, modes),
	}, nil
}

// credentialEnvNames collects the env var names the roster references, so
// capability detection reads exactly those.
func credentialEnvNames(cfg *ludcfg.Config) []string {
	seen := make(map[string]struct{})
	names := make([]string, 0, len(cfg.Models))
	for _, m := range cfg.ResolveModels() {
		env := strings.TrimSpace(m.APIKeyEnv)
		if env == "" {
			continue
		}
		if _, dup := seen[env]; dup {
			continue
		}
		seen[env] = struct{}{}
		names = append(names, env)
	}
	return names
}

func buildMarketStack(cfg *ludcfg.Config) (*MarketStack, error) {
	source := binance.New(binance.Config{RESTBaseURL: cfg.Market.RESTBaseURL})
	stack := &MarketStack{Quotes: source}
	if cfg.Market.ContextEnabled {
		cache := store.NewMemoryKlineStore()
		stack.Context = market.NewContextBuilder(source, cache, cfg.Market.KlineInterval, cfg.Market.KlineLimit)
		logger.Infof("Market context enabled: interval=%s limit=%d", cfg.Market.KlineInterval, cfg.Market.KlineLimit)
	}
	return stack, nil
}

func buildModeRegistry(cfg ludcfg.CompetitionConfig) (*mode.Registry, error) {
	return mode.NewRegistry(cfg.ModesPath)
}

func buildSeats(cfg *ludcfg.Config, caps provider.Capabilities) []arena.Seat {
	models := cfg.ResolveModels()
	specs := make([]arena.TraderSpec, 0, len(models))
	for _, m := range models {
		specs = append(specs, arena.TraderSpec{
			Backend: provider.BackendSpec{
				Trader:      m.Name,
				Provider:    m.Provider,
				Model:       m.Model,
				APIURL:      m.APIURL,
				APIKeyEnv:   m.APIKeyEnv,
				Headers:     m.Headers,
				Temperature: m.Temperature,
				Timeout:     cfg.LLM.RequestTimeout(),
				MaxRetries:  cfg.LLM.MaxRetries,
			},
			InitialCapital: m.InitialCapital,
		})
	}
	return arena.BuildTraders(specs, caps, arena.TraderOptions{
		HistoryLimit:     cfg.Competition.HistoryLimit,
		RequestTimeout:   cfg.LLM.RequestTimeout(),
		BreakerThreshold: cfg.LLM.BreakerThreshold,
		BreakerCooldown:  cfg.LLM.BreakerCooldown(),
	})
}

func buildStores(cfg *ludcfg.Config) (*StoreStack, error) {
	out := &StoreStack{}
	statePath := strings.TrimSpace(cfg.Store.StatePath)
	if statePath != "" {
		st, err := gormstore.NewStore(statePath)
		if err != nil {
			return nil, fmt.Errorf("open state store: %w", err)
		}
		out.State = st
	}
	logPath := strings.TrimSpace(cfg.Store.DecisionLogPath)
	if logPath != "" {
		dl, err := decisionlog.New(logPath)
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("open decision log: %w", err)
		}
		out.Decisions = dl
		if cfg.Store.ShareStateDB && out.State != nil {
			sqlDB, err := out.State.SQLDB()
			if err != nil {
				out.Close()
				return nil, fmt.Errorf("share state db: %w", err)
			}
			if err := dl.UseExternalDB(sqlDB); err != nil {
				out.Close()
				return nil, fmt.Errorf("bind decision log to state db: %w", err)
			}
		}
	}
	return out, nil
}

// Close releases both stores. Order matters when they share a database:
// the decision log detaches first.
func (s *StoreStack) Close() {
	if s == nil {
		return
	}
	if s.Decisions != nil {
		if err := s.Decisions.Close(); err != nil {
			logger.Warnf("Close decision log: %v", err)
		}
	}
	if s.State != nil {
		if err := s.State.Close(); err != nil {
			logger.Warnf("Close state store: %v", err)
		}
	}
}

func buildNotifier(cfg ludcfg.NotifyConfig) arena.TextNotifier {
	if !cfg.Telegram.Enabled {
		return nil
	}
	return notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
}

func buildHTTPServer(cfg ludcfg.AppConfig, competition *arena.Competition, stores *StoreStack) (*arenahttp.Server, error) {
	serverCfg := arenahttp.ServerConfig{
		Addr:  cfg.HTTPAddr,
		Arena: competition,
	}
	if stores != nil && stores.Decisions != nil {
		serverCfg.Decisions = stores.Decisions
	}
	if stores != nil && stores.State != nil {
		serverCfg.Snapshots = stores.State
	}
	return arenahttp.NewServer(serverCfg)
}
