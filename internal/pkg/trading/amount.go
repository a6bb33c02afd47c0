// Package trading provides trade sizing arithmetic shared by the executor
// and the prompt builder.
package trading

// ClampQuantity bounds a requested order size to [min, max]. Zero, negative
// and NaN-ish requests land on min so a sloppy model still trades.
func ClampQuantity(q, min, max float64) float64 {
	if !(q > min) {
		return min
	}
	if q > max {
		return max
	}
	return q
}

// CloseQuantity caps an offsetting order at the open position size.
func CloseQuantity(requested, held float64) float64 {
	if held <= 0 || requested <= 0 {
		return 0
	}
	if requested > held {
		return held
	}
	return requested
}
