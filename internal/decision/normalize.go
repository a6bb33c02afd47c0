package decision

import (
	"fmt"
	"strings"
)

// NormalizeAction folds the synonyms models reach for onto the three
// canonical actions. Unknown verbs pass through and fail validation.
func NormalizeAction(a string) string {
	replacer := strings.NewReplacer(" ", "_", "-", "_")
	a = strings.ToLower(strings.TrimSpace(a))
	a = replacer.Replace(a)
	switch a {
	case "hold", "wait", "stay", "neutral", "none", "no_action":
		return ActionHold
	case "buy", "long", "open_long", "go_long", "enter_long", "buy_long":
		return ActionBuy
	case "sell", "short", "open_short", "go_short", "enter_short", "sell_short":
		return ActionSell
	default:
		return a
	}
}

var validActions = map[string]bool{
	ActionBuy: true, ActionSell: true, ActionHold: true,
}

// Validate rejects decisions whose action is outside the canonical set.
// Everything else (missing symbol, oversized quantity, unaffordable cost)
// is the executor's call: those surface as first-class rejections, not
// parse errors.
func Validate(d *Decision) error {
	if !validActions[d.Action] {
		return fmt.Errorf("invalid action: %q", d.Action)
	}
	return nil
}
