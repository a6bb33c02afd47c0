// Package format renders numbers for prompts, logs and notifications.
// Decimal keeps the output free of float artifacts like 0.30000000000000004.
package format

import (
	"time"

	"github.com/shopspring/decimal"
)

// Float renders v rounded to the given decimal places with trailing zeros
// trimmed.
func Float(v float64, places int32) string {
	return decimal.NewFromFloat(v).Round(places).String()
}

// Price keeps two decimals above 1.0 and six below, which covers both
// majors and sub-dollar alts without scientific notation.
func Price(v float64) string {
	d := decimal.NewFromFloat(v)
	places := int32(2)
	if d.Abs().LessThan(decimal.NewFromInt(1)) {
		places = 6
	}
	return d.Round(places).String()
}

func Quantity(v float64) string {
	return decimal.NewFromFloat(v).Round(6).String()
}

func Money(v float64) string {
	return decimal.NewFromFloat(v).Round(2).StringFixed(2)
}

// SignedMoney prefixes gains with + so P&L reads unambiguously.
func SignedMoney(v float64) string {
	s := Money(v)
	if v > 0 {
		return "+" + s
	}
	return s
}

// Percent renders a ratio (0.05 == 5%) with an explicit sign.
func Percent(ratio float64) string {
	d := decimal.NewFromFloat(ratio * 100).Round(2)
	s := d.StringFixed(2) + "%"
	if d.Sign() > 0 {
		return "+" + s
	}
	return s
}

// Duration renders a millisecond span as the largest whole units,
// e.g. 5400000 -> "1h30m".
func Duration(ms int64) string {
	if ms <= 0 {
		return "0s"
	}
	d := time.Duration(ms) * time.Millisecond
	d = d.Round(time.Second)
	if d >= time.Hour {
		d = d.Round(time.Minute)
	}
	return d.String()
}
