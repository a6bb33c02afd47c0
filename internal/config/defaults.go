package config

import (
	"strings"
)

const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":9984"
	defaultAppLogPath  = "/data/logs/ludus-arena.log"
	defaultAppLLMLog   = "/data/logs/ludus-llm.log"

	defaultCompetitionName = "Alpha Arena"
	defaultSymbol          = "BTC/USDT"
	defaultCycleInterval   = 150
	defaultModelDelay      = 1
	defaultInitialCapital  = 10000
	defaultMode            = "balanced"
	defaultModesPath       = "configs/modes.yaml"
	defaultHistoryLimit    = 500

	defaultMarketREST    = "https://fapi.binance.com"
	defaultKlineInterval = "15m"
	defaultKlineLimit    = 100

	defaultRequestTimeout  = 120
	defaultMaxRetries      = 2
	defaultBreakerFailures = 3
	defaultBreakerCooldown = 300

	defaultStatePath       = "/data/arena/state.db"
	defaultDecisionLogPath = "/data/arena/decisions.db"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Competition.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.LLM.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.llm_log_path", &a.LLMLog, defaultAppLLMLog),
	)
}

func (c *CompetitionConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("competition.name", &c.Name, defaultCompetitionName),
		stringFieldDefault("competition.symbol", &c.Symbol, defaultSymbol),
		stringFieldDefault("competition.mode", &c.Mode, defaultMode),
		stringFieldDefault("competition.modes_path", &c.ModesPath, defaultModesPath),
		intFieldDefault("competition.cycle_interval_seconds", &c.CycleIntervalSeconds, defaultCycleInterval),
		intFieldDefault("competition.model_delay_seconds", &c.ModelDelaySeconds, defaultModelDelay),
		intFieldDefault("competition.history_limit", &c.HistoryLimit, defaultHistoryLimit),
		fieldDefault{
			key:   "competition.initial_capital",
			need:  func() bool { return c.InitialCapital <= 0 },
			apply: func() { c.InitialCapital = defaultInitialCapital },
		},
		boolFieldDefault("competition.resume", &c.Resume, true),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("market.rest_base_url", &m.RESTBaseURL, defaultMarketREST),
		stringFieldDefault("market.kline_interval", &m.KlineInterval, defaultKlineInterval),
		intFieldDefault("market.kline_limit", &m.KlineLimit, defaultKlineLimit),
	)
}

func (l *LLMConfig) applyDefaults(keys keySet) {
	if l == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("llm.request_timeout_seconds", &l.RequestTimeoutSeconds, defaultRequestTimeout),
		intFieldDefault("llm.max_retries", &l.MaxRetries, defaultMaxRetries),
		intFieldDefault("llm.breaker_threshold", &l.BreakerThreshold, defaultBreakerFailures),
		intFieldDefault("llm.breaker_cooldown_seconds", &l.BreakerCooldownSeconds, defaultBreakerCooldown),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.state_path", &s.StatePath, defaultStatePath),
		stringFieldDefault("store.decision_log_path", &s.DecisionLogPath, defaultDecisionLogPath),
	)
}

// applyFieldDefaults runs each rule unless the key was set explicitly in a
// config file.
func applyFieldDefaults(keys keySet, defaults ...fieldDefault) {
	for _, def := range defaults {
		if keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
