package convert

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloat64(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want float64
		ok   bool
	}{
		{"Float64", 1.5, 1.5, true},
		{"Float32", float32(2), 2, true},
		{"Int", 7, 7, true},
		{"Int64", int64(-3), -3, true},
		{"Uint64", uint64(9), 9, true},
		{"JSONNumber", json.Number("0.25"), 0.25, true},
		{"QuotedNumber", "0.5", 0.5, true},
		{"PaddedString", "  42 ", 42, true},
		{"EmptyString", "", 0, false},
		{"Garbage", "lots", 0, false},
		{"Nil", nil, 0, false},
		{"Bool", true, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Float64(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestToFloat64DropsFlag(t *testing.T) {
	assert.Equal(t, 0.5, ToFloat64("0.5"))
	assert.Equal(t, 0.0, ToFloat64("nope"))
}

func TestToString(t *testing.T) {
	assert.Equal(t, "buy", ToString("  buy "))
	assert.Equal(t, "0.5", ToString(0.5))
	assert.Equal(t, "42", ToString(42.0))
	assert.Equal(t, "0.25", ToString(json.Number("0.25")))
	assert.Equal(t, "true", ToString(true))
	assert.Equal(t, "false", ToString(false))
	assert.Equal(t, "", ToString(nil))
	assert.Equal(t, "", ToString([]string{"x"}))
}
