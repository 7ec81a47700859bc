package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/sessionseek/internal/highlight"
	"github.com/asheshgoplani/sessionseek/internal/query"
	"github.com/asheshgoplani/sessionseek/internal/search"
)

func TestFormatParseErrorCaret(t *testing.T) {
	q := `paris "tower`
	res := query.Validate(q)
	require.False(t, res.Valid)

	out := formatParseError(q, res.Error)
	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Equal(t, "Error: unterminated quote", lines[0])
	assert.Equal(t, "  "+q, lines[1])
	assert.Equal(t, "  "+strings.Repeat(" ", 6)+"^", lines[2])
}

func TestFormatParseErrorWideRunes(t *testing.T) {
	pe := &query.ParseError{Message: "unexpected token", Position: 2}
	out := formatParseError("東京)", pe)
	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	// Two wide runes occupy four cells.
	assert.Equal(t, "      ^", lines[2])
}

func TestRenderSegmentsPlain(t *testing.T) {
	segs := highlight.Highlight("Trip to Paris", []string{"paris"}, highlight.ContextTitle)
	assert.Equal(t, "Trip to [Paris]", renderSegments(segs, false))
}

func TestFormatResults(t *testing.T) {
	h := highlight.New(highlight.DefaultOptions())
	results := []search.SearchResult{
		{
			SessionID:    "a1b2c3d4e5f6a7b8",
			Topic:        "Trip to Paris",
			LastUpdate:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			MatchType:    search.MatchMultiple,
			MatchedTerms: []string{"paris"},
			MatchedMessages: []search.Message{
				{ID: "m1", Role: "user", Content: "what to see in paris"},
				{ID: "m2", Role: "assistant", Content: "paris has the louvre"},
			},
		},
		{
			SessionID:            "9f8e7d6c5b4a3210",
			Topic:                "Guide",
			MatchType:            search.MatchSystem,
			MatchedTerms:         []string{"paris"},
			MatchedSystemMessage: &search.SystemPromptData{Text: "you know paris well"},
		},
	}
	stats := search.SearchStats{TotalMatches: 2, MultipleMatches: 1, SystemMatches: 1}

	out := formatResults(h, results, stats, false, 100)
	assert.Contains(t, out, "Trip to [Paris]  [multiple] a1b2c3d4e5f6")
	assert.Contains(t, out, "user: what to see in [paris]")
	assert.Contains(t, out, "(+1 more)")
	assert.Contains(t, out, "system: you know [paris] well")
	assert.Contains(t, out, "2 sessions (title 0, message 0, system 1, multiple 1)")
}

func TestFormatResultsEmpty(t *testing.T) {
	out := formatResults(highlight.New(highlight.DefaultOptions()), nil, search.SearchStats{}, false, 80)
	assert.Equal(t, "No matching sessions.\n", out)
}

func TestStringListFlag(t *testing.T) {
	fs := newFlagSet("highlight", "<text>", "")
	var terms stringList
	fs.Var(&terms, "term", "")
	require.NoError(t, fs.Parse(normalizeArgs(fs, []string{"some text", "--term", "a", "--term=b c"})))
	assert.Equal(t, stringList{"a", "b c"}, terms)
	assert.Equal(t, "some text", fs.Arg(0))
}
