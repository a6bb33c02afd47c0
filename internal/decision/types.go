// Package decision turns raw model output into executable trading decisions:
// prompt assembly, JSON extraction and coercion, schema validation and the
// uniform error-decision fallback that keeps every cycle row comparable.
package decision

import (
	"encoding/json"

	"ludus/internal/pkg/convert"
)

// Canonical actions after normalization.
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
	ActionHold = "hold"
)

// Decision is one model's answer for one cycle.
type Decision struct {
	Action     string  `json:"action"`
	Symbol     string  `json:"symbol,omitempty"`
	Quantity   float64 `json:"quantity,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// UnmarshalJSON tolerates the loose typing models produce: numbers quoted
// as strings, confidence on a 0-100 scale, unknown extra fields.
func (d *Decision) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	d.Action = convert.ToString(m["action"])
	d.Symbol = convert.ToString(m["symbol"])
	d.Quantity = convert.ToFloat64(m["quantity"])
	d.Confidence = convert.ToFloat64(m["confidence"])
	d.Reasoning = convert.ToString(m["reasoning"])
	return nil
}

// Result pairs a decision with the text it was parsed from. Err is set when
// the model could not produce a usable decision; the Decision is then the
// uniform hold fallback so downstream recording never branches.
type Result struct {
	Decision  Decision
	RawOutput string
	RawJSON   string
	Err       string
}

// Errored reports whether this result is the fallback for a failed request
// or parse rather than a genuine model decision.
func (r Result) Errored() bool { return r.Err != "" }
