package decision

import (
	"encoding/json"
	"fmt"
	"strings"

	"ludus/internal/pkg/jsonutil"
)

// Parser extracts one decision from raw model output. Stateless; a single
// instance is shared across traders.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse runs the full chain: locate the JSON block, coerce to a single
// object, validate the shape, decode and normalize. On error the returned
// Result still carries whatever text was recovered, so callers can record
// it alongside the failure.
func (p *Parser) Parse(raw string) (Result, error) {
	res := Result{RawOutput: raw}

	block, ok := jsonutil.ExtractJSON(raw)
	if !ok {
		return res, fmt.Errorf("no JSON found in model output")
	}

	obj, err := CoerceDecisionJSON(block)
	if err != nil {
		res.RawJSON = strings.TrimSpace(block)
		return res, err
	}
	res.RawJSON = obj

	if err := validateDecisionDoc(obj); err != nil {
		return res, err
	}

	var d Decision
	if err := json.Unmarshal([]byte(obj), &d); err != nil {
		return res, err
	}

	d.Action = NormalizeAction(d.Action)
	if err := Validate(&d); err != nil {
		return res, err
	}
	d.Symbol = strings.ToUpper(strings.TrimSpace(d.Symbol))
	d.Confidence = normalizeConfidence(d.Confidence)

	res.Decision = d
	return res, nil
}

// normalizeConfidence maps onto [0,1]. Models prompted for a 0-1 score
// still answer 85 now and then; treat anything in (1,100] as a percentage.
func normalizeConfidence(c float64) float64 {
	if c > 1 && c <= 100 {
		c /= 100
	}
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
