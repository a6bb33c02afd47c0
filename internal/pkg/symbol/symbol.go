// Package symbol normalizes trading-pair spellings. Config may say
// "BTC/USDT", "btcusdt" or just "BTC"; the exchange wants "BTCUSDT" and
// display wants "BTC/USDT".
package symbol

import (
	"strings"
)

type Symbol struct {
	Base  string
	Quote string
}

func (s Symbol) Internal() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + "/" + s.Quote
}

func (s Symbol) Exchange() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

// Parse accepts BASE/QUOTE, concatenated BASEQUOTE with a known quote
// suffix, or a bare base asset which defaults to USDT.
func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{
			Base:  strings.TrimSpace(parts[0]),
			Quote: strings.TrimSpace(parts[1]),
		}
	}
	quotes := []string{"USDT", "USDC", "BUSD", "TUSD"}
	for _, quote := range quotes {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{Base: s[:len(s)-len(quote)], Quote: quote}
		}
	}
	return Symbol{Base: s, Quote: "USDT"}
}

func Normalize(s string) string {
	return Parse(s).Internal()
}

// ToExchange renders any accepted spelling in the concatenated form the
// exchange API expects.
func ToExchange(s string) string {
	return Parse(s).Exchange()
}

func IsValid(s string) bool {
	sym := Parse(s)
	return sym.Base != "" && sym.Quote != ""
}
