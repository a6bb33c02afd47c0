package notifier

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRenderMarkdownFullMessage(t *testing.T) {
	msg := StructuredMessage{
		Icon:  "📊",
		Title: "Alpha Arena cycle 3",
		Sections: []MessageSection{
			{Title: "Market", Lines: []string{"BTC/USDT @ 58000"}},
			{Title: "Decisions", Lines: []string{"gpt-5: buy 0.5 BTC/USDT @ 58000 (executed)", "deepseek-chat: hold"}},
		},
		Footer:    "competition comp-1",
		Timestamp: time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC),
	}

	out := msg.RenderMarkdown()

	assert.True(t, strings.HasPrefix(out, "📊 Alpha Arena cycle 3\n\n"))
	assert.Contains(t, out, "```\nMarket\n- BTC/USDT @ 58000\n\nDecisions\n- gpt-5: buy 0.5 BTC/USDT @ 58000 (executed)\n- deepseek-chat: hold\n```")
	assert.Contains(t, out, "competition comp-1")
	assert.Contains(t, out, "Time: 2025-10-20 12:00:00 UTC")
}

func TestRenderMarkdownSkipsEmptySections(t *testing.T) {
	msg := StructuredMessage{
		Title: "Alpha Arena cycle 1",
		Sections: []MessageSection{
			{Title: "Market", Lines: nil},
			{Title: "Decisions", Lines: []string{"  ", ""}},
		},
	}

	out := msg.RenderMarkdown()

	assert.Equal(t, "Alpha Arena cycle 1", out)
	assert.NotContains(t, out, "```")
}

func TestRenderMarkdownHeaderOptional(t *testing.T) {
	msg := StructuredMessage{
		Sections: []MessageSection{{Lines: []string{"standalone line"}}},
	}

	out := msg.RenderMarkdown()

	assert.True(t, strings.HasPrefix(out, "```"))
	assert.Contains(t, out, "- standalone line")
}

func TestRenderMarkdownSanitizesFences(t *testing.T) {
	msg := StructuredMessage{
		Title: "Report",
		Sections: []MessageSection{
			{Title: "Decisions", Lines: []string{"gpt-5 said ```drop table```"}},
		},
	}

	out := msg.RenderMarkdown()

	assert.Contains(t, out, "'''drop table'''")
	assert.Equal(t, 2, strings.Count(out, "```"))
}

func TestRenderMarkdownTruncatesLongBody(t *testing.T) {
	lines := make([]string, 400)
	for i := range lines {
		lines[i] = strings.Repeat("x", 20)
	}
	msg := StructuredMessage{
		Title:    "Report",
		Sections: []MessageSection{{Title: "Dump", Lines: lines}},
	}

	out := msg.RenderMarkdown()

	assert.Len(t, out, maxStructuredMessageLen+3)
	assert.True(t, strings.HasSuffix(out, "..."))
}
