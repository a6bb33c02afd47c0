// Package convert holds the loose-typing helpers used at the system's
// edges, where exchange tickers and model output deliver numbers as
// strings and strings as numbers.
package convert

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ToFloat64 reads v as a float64, tolerating quoted numbers. Unparseable
// or unsupported values come back as 0.
func ToFloat64(v any) float64 {
	f, _ := Float64(v)
	return f
}

// Float64 is ToFloat64 plus an ok flag, for callers that must tell a real
// zero apart from an absent or broken value.
func Float64(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// ToString renders scalar values the way a prompt or log line wants them:
// trimmed strings, plain decimal numbers, true/false. Everything else is
// empty.
func ToString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}
