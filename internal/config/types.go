package config

import (
	"strings"
	"time"
)

// Config is the top-level configuration carrier for the arena process.
type Config struct {
	App         AppConfig                 `toml:"app"`
	Competition CompetitionConfig         `toml:"competition"`
	Market      MarketConfig              `toml:"market"`
	LLM         LLMConfig                 `toml:"llm"`
	Providers   map[string]ProviderPreset `toml:"providers"`
	Models      []ModelConfig             `toml:"models"`
	Store       StoreConfig               `toml:"store"`
	Notify      NotifyConfig              `toml:"notify"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
	LLMLog   string `toml:"llm_log_path"`
	LLMDump  bool   `toml:"llm_dump_payload"`
}

// CompetitionConfig describes one competition run. ID is generated when
// left blank; a stable ID is what lets a run resume after a restart.
type CompetitionConfig struct {
	ID                   string  `toml:"id"`
	Name                 string  `toml:"name"`
	Symbol               string  `toml:"symbol"`
	CycleIntervalSeconds int     `toml:"cycle_interval_seconds"`
	ModelDelaySeconds    int     `toml:"model_delay_seconds"`
	NumCycles            int     `toml:"num_cycles"`
	InitialCapital       float64 `toml:"initial_capital"`
	Mode                 string  `toml:"mode"`
	ModesPath            string  `toml:"modes_path"`
	Resume               bool    `toml:"resume"`
	HistoryLimit         int     `toml:"history_limit"`
}

func (c CompetitionConfig) CycleInterval() time.Duration {
	return time.Duration(c.CycleIntervalSeconds) * time.Second
}

func (c CompetitionConfig) ModelDelay() time.Duration {
	return time.Duration(c.ModelDelaySeconds) * time.Second
}

type MarketConfig struct {
	RESTBaseURL    string `toml:"rest_base_url"`
	ContextEnabled bool   `toml:"context_enabled"`
	KlineInterval  string `toml:"kline_interval"`
	KlineLimit     int    `toml:"kline_limit"`
}

type LLMConfig struct {
	RequestTimeoutSeconds  int `toml:"request_timeout_seconds"`
	MaxRetries             int `toml:"max_retries"`
	BreakerThreshold       int `toml:"breaker_threshold"`
	BreakerCooldownSeconds int `toml:"breaker_cooldown_seconds"`
}

func (l LLMConfig) RequestTimeout() time.Duration {
	return time.Duration(l.RequestTimeoutSeconds) * time.Second
}

func (l LLMConfig) BreakerCooldown() time.Duration {
	return time.Duration(l.BreakerCooldownSeconds) * time.Second
}

// ProviderPreset is a reusable backend endpoint definition. Credentials are
// named, not stored: APIKeyEnv is the environment variable to read at
// trader construction time.
type ProviderPreset struct {
	APIURL    string            `toml:"api_url"`
	APIKeyEnv string            `toml:"api_key_env"`
	Headers   map[string]string `toml:"headers"`
}

// ModelConfig is one competing trader. Preset defaults to the provider tag
// when empty.
type ModelConfig struct {
	Name           string  `toml:"name"`
	Provider       string  `toml:"provider"`
	Preset         string  `toml:"preset"`
	Model          string  `toml:"model"`
	InitialCapital float64 `toml:"initial_capital"`
	Temperature    float64 `toml:"temperature"`
}

// ResolvedModel is a ModelConfig merged with its provider preset.
type ResolvedModel struct {
	Name           string
	Provider       string
	Model          string
	APIURL         string
	APIKeyEnv      string
	Headers        map[string]string
	InitialCapital float64
	Temperature    float64
}

// ResolveModels merges each model entry with its preset and applies the
// competition-wide initial capital where the entry does not set its own.
func (c *Config) ResolveModels() []ResolvedModel {
	out := make([]ResolvedModel, 0, len(c.Models))
	for _, m := range c.Models {
		presetName := strings.TrimSpace(m.Preset)
		if presetName == "" {
			presetName = strings.TrimSpace(m.Provider)
		}
		preset := c.Providers[presetName]
		capital := m.InitialCapital
		if capital <= 0 {
			capital = c.Competition.InitialCapital
		}
		out = append(out, ResolvedModel{
			Name:           strings.TrimSpace(m.Name),
			Provider:       strings.ToLower(strings.TrimSpace(m.Provider)),
			Model:          strings.TrimSpace(m.Model),
			APIURL:         strings.TrimSpace(preset.APIURL),
			APIKeyEnv:      strings.TrimSpace(preset.APIKeyEnv),
			Headers:        preset.Headers,
			InitialCapital: capital,
			Temperature:    m.Temperature,
		})
	}
	return out
}

type StoreConfig struct {
	StatePath       string `toml:"state_path"`
	DecisionLogPath string `toml:"decision_log_path"`
	ShareStateDB    bool   `toml:"share_state_db"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// keySet tracks which config paths the files set explicitly, so defaults
// never clobber a deliberate zero value.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes the default rule for a single field.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
