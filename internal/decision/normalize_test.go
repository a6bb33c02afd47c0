package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAction(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"buy", ActionBuy},
		{"BUY", ActionBuy},
		{"long", ActionBuy},
		{"open long", ActionBuy},
		{"open-long", ActionBuy},
		{"go_long", ActionBuy},
		{"buy long", ActionBuy},
		{"sell", ActionSell},
		{"short", ActionSell},
		{"open short", ActionSell},
		{"sell-short", ActionSell},
		{"hold", ActionHold},
		{"WAIT", ActionHold},
		{"stay", ActionHold},
		{"neutral", ActionHold},
		{"none", ActionHold},
		{"no action", ActionHold},
		{" hold ", ActionHold},
		{"liquidate", "liquidate"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeAction(tc.in), "input %q", tc.in)
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(&Decision{Action: ActionBuy}))
	assert.NoError(t, Validate(&Decision{Action: ActionSell}))
	assert.NoError(t, Validate(&Decision{Action: ActionHold}))

	err := Validate(&Decision{Action: "liquidate"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid action")

	assert.Error(t, Validate(&Decision{}))
}
