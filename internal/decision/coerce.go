package decision

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// CoerceDecisionJSON reduces whatever JSON shape the model produced to a
// single decision object. Models wrap the object in `decision`/`trade`
// envelopes or emit a one-element `decisions` array often enough that
// rejecting those shapes would throw away otherwise valid answers.
func CoerceDecisionJSON(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty JSON block")
	}
	if !gjson.Valid(raw) {
		return "", fmt.Errorf("invalid JSON")
	}
	parsed := gjson.Parse(raw)
	if parsed.IsObject() {
		if parsed.Get("action").Exists() {
			return raw, nil
		}
		for _, key := range []string{"decision", "trade"} {
			if inner := parsed.Get(key); inner.Exists() && inner.IsObject() {
				return inner.Raw, nil
			}
		}
		if arr := parsed.Get("decisions"); arr.Exists() && arr.IsArray() {
			return firstDecisionObject(arr)
		}
		return "", fmt.Errorf("JSON object carries no action field")
	}
	if parsed.IsArray() {
		return firstDecisionObject(parsed)
	}
	return "", fmt.Errorf("JSON root must be an object")
}

func firstDecisionObject(arr gjson.Result) (string, error) {
	var first gjson.Result
	found := false
	arr.ForEach(func(_, value gjson.Result) bool {
		if value.IsObject() {
			first = value
			found = true
			return false
		}
		return true
	})
	if !found {
		return "", fmt.Errorf("decision array holds no object")
	}
	return first.Raw, nil
}
