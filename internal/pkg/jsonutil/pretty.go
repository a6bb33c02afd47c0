package jsonutil

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Pretty reindents a JSON document for transcripts and dumps, preserving
// key order. Anything that is not valid JSON passes through unchanged.
func Pretty(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err != nil {
		return raw
	}
	return buf.String()
}
