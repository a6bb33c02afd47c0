package config

import (
	"fmt"
	"strings"

	"ludus/internal/pkg/symbol"
)

func validate(c *Config) error {
	if err := c.Competition.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.validateModels(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (c *CompetitionConfig) validate() error {
	if !symbol.IsValid(c.Symbol) {
		return fmt.Errorf("competition.symbol is not a recognizable pair: %q", c.Symbol)
	}
	if c.CycleIntervalSeconds < 10 {
		return fmt.Errorf("competition.cycle_interval_seconds must be >= 10")
	}
	if c.ModelDelaySeconds < 0 {
		return fmt.Errorf("competition.model_delay_seconds must be >= 0")
	}
	if c.NumCycles < 0 {
		return fmt.Errorf("competition.num_cycles must be >= 0 (0 runs until stopped)")
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("competition.initial_capital must be > 0")
	}
	if strings.TrimSpace(c.Mode) == "" {
		return fmt.Errorf("competition.mode cannot be empty")
	}
	if c.HistoryLimit < 10 {
		return fmt.Errorf("competition.history_limit must be >= 10")
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if strings.TrimSpace(m.RESTBaseURL) == "" {
		return fmt.Errorf("market.rest_base_url cannot be empty")
	}
	if !IsValidInterval(m.KlineInterval) {
		return fmt.Errorf("market.kline_interval is not a valid interval: %q", m.KlineInterval)
	}
	if m.KlineLimit < 30 || m.KlineLimit > 1000 {
		return fmt.Errorf("market.kline_limit must be in [30,1000]")
	}
	return nil
}

// validateModels checks the trader roster. A missing credential is not a
// config error; the trader just fails construction later and the run keeps
// going without it.
func (c *Config) validateModels() error {
	if len(c.Models) == 0 {
		return fmt.Errorf("models requires at least one entry")
	}
	seen := make(map[string]struct{}, len(c.Models))
	for i, m := range c.Models {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return fmt.Errorf("models[%d] missing name", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("models contains duplicate name: %s", name)
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(m.Provider) == "" {
			return fmt.Errorf("models.%s missing provider", name)
		}
		if strings.TrimSpace(m.Model) == "" {
			return fmt.Errorf("models.%s missing model", name)
		}
		preset := strings.TrimSpace(m.Preset)
		if preset == "" {
			preset = strings.TrimSpace(m.Provider)
		}
		if _, ok := c.Providers[preset]; !ok {
			return fmt.Errorf("models.%s references unknown provider preset: %s", name, preset)
		}
		if m.InitialCapital < 0 {
			return fmt.Errorf("models.%s initial_capital must be >= 0 (0 inherits the competition default)", name)
		}
		if m.Temperature < 0 || m.Temperature > 2 {
			return fmt.Errorf("models.%s temperature must be in [0,2]", name)
		}
	}
	for name, preset := range c.Providers {
		if strings.TrimSpace(preset.APIURL) == "" {
			return fmt.Errorf("providers.%s missing api_url", name)
		}
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("telegram notification enabled but missing bot_token or chat_id")
		}
	}
	return nil
}

// IsValidInterval accepts digits followed by m/h/d/w, e.g. 15m or 4h.
func IsValidInterval(s string) bool {
	if len(s) < 2 {
		return false
	}
	suf := s[len(s)-1]
	if suf != 'm' && suf != 'h' && suf != 'd' && suf != 'w' {
		return false
	}
	for i := 0; i < len(s)-1; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
