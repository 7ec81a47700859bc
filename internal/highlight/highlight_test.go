package highlight

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHighlightTitle(t *testing.T) {
	segs := Highlight("Trip to Paris", []string{"paris"}, ContextTitle)
	assert.Equal(t, []Segment{
		{Text: "Trip to "},
		{Text: "Paris", Highlighted: true, Type: TypeTitle, OriginalTerm: "paris"},
	}, segs)
}

func TestHighlightShortMessage(t *testing.T) {
	segs := Highlight("loved the Eiffel Tower", []string{"tower"}, ContextMessage)
	assert.Equal(t, []Segment{
		{Text: "loved the Eiffel "},
		{Text: "Tower", Highlighted: true, Type: TypeWord, OriginalTerm: "tower"},
	}, segs)
}

func TestHighlightEmptyInputs(t *testing.T) {
	assert.Equal(t, []Segment{{Text: ""}}, Highlight("", []string{"x"}, ContextMessage))
	assert.Equal(t, []Segment{{Text: "some text"}}, Highlight("some text", nil, ContextMessage))
}

func TestHighlightTruncatesAroundFirstMatch(t *testing.T) {
	text := strings.Repeat("a", 100) + " needle " + strings.Repeat("b", 100)
	segs := Highlight(text, []string{"needle"}, ContextSystem)

	want := Ellipsis + strings.Repeat("a", 32) + " needle " + strings.Repeat("b", 80) + Ellipsis
	assert.Equal(t, want, Join(segs))

	require.Len(t, segs, 3)
	assert.Equal(t, "needle", segs[1].Text)
	assert.True(t, segs[1].Highlighted)
	assert.False(t, segs[0].Highlighted)
	assert.False(t, segs[2].Highlighted)
}

func TestHighlightClipsLaterMatches(t *testing.T) {
	text := "needle x " + strings.Repeat("b", 78) + " needle"
	segs := Highlight(text, []string{"needle"}, ContextMessage)

	require.Len(t, segs, 4)
	assert.Equal(t, "needle", segs[0].Text)
	assert.True(t, segs[0].Highlighted)
	assert.Equal(t, "n", segs[2].Text)
	assert.True(t, segs[2].Highlighted)
	assert.Equal(t, Ellipsis, segs[3].Text)
	assert.Equal(t, "needle x "+strings.Repeat("b", 78)+" n"+Ellipsis, Join(segs))
}

func TestHighlightConcatenationReproducesDisplay(t *testing.T) {
	long := strings.Repeat("lorem ipsum ", 30)
	tests := []struct {
		name  string
		text  string
		terms []string
		ctx   ContextType
	}{
		{"title", "Paris trip, paris notes", []string{"paris"}, ContextTitle},
		{"message start", "paris " + long, []string{"paris"}, ContextMessage},
		{"message middle", long + "paris" + long, []string{"paris", "ipsum"}, ContextMessage},
		{"cjk", strings.Repeat("东京", 30) + "旅行" + strings.Repeat("大阪", 30), []string{"旅行"}, ContextSystem},
		{"no occurrence", long, []string{"zzz"}, ContextMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs := Highlight(tt.text, tt.terms, tt.ctx)
			joined := Join(segs)
			if tt.ctx == ContextTitle {
				assert.Equal(t, tt.text, joined)
				return
			}
			core := strings.TrimSuffix(strings.TrimPrefix(joined, Ellipsis), Ellipsis)
			assert.Contains(t, tt.text, core)
		})
	}
}

func TestHighlightCJKWindow(t *testing.T) {
	text := strings.Repeat("东", 30) + "旅行" + strings.Repeat("西", 60)
	segs := Highlight(text, []string{"旅行"}, ContextMessage)

	want := Ellipsis + strings.Repeat("东", 16) + "旅行" + strings.Repeat("西", 40) + Ellipsis
	assert.Equal(t, want, Join(segs))
}

func TestMergeEqualPriorityFirstRegisteredWins(t *testing.T) {
	segs := Highlight("EiffelTower", []string{"tower", "eiffel"}, ContextTitle)
	require.Len(t, segs, 1)
	assert.Equal(t, Segment{
		Text:         "EiffelTower",
		Highlighted:  true,
		Type:         TypeTitle,
		OriginalTerm: "tower, eiffel",
	}, segs[0])
}

func TestMergeKeepsHigherPriority(t *testing.T) {
	segs := Highlight("paris agreement now", []string{"paris", "paris agreement"}, ContextMessage)
	assert.Equal(t, []Segment{
		{Text: "paris agreement", Highlighted: true, Type: TypeExact, OriginalTerm: "paris, paris agreement"},
		{Text: " now"},
	}, segs)
}

func TestHighlightSeparateMatches(t *testing.T) {
	segs := Highlight("a cat and a dog", []string{"cat", "dog"}, ContextMessage)
	assert.Equal(t, []Segment{
		{Text: "a "},
		{Text: "cat", Highlighted: true, Type: TypeWord, OriginalTerm: "cat"},
		{Text: " and a "},
		{Text: "dog", Highlighted: true, Type: TypeWord, OriginalTerm: "dog"},
	}, segs)
}

func TestHighlightFallback(t *testing.T) {
	text := strings.Repeat("x", 200)

	segs := Highlight(text, []string{"zzz"}, ContextMessage)
	require.Len(t, segs, 1)
	assert.False(t, segs[0].Highlighted)
	assert.Equal(t, strings.Repeat("x", 112)+Ellipsis, segs[0].Text)

	segs = Highlight(text, []string{"zzz"}, ContextTitle)
	assert.Equal(t, []Segment{{Text: text}}, segs)
}

func TestWhitespaceTermNeverHighlights(t *testing.T) {
	segs := Highlight("a b c", []string{" ", ""}, ContextMessage)
	assert.Equal(t, []Segment{{Text: "a b c"}}, segs)
}

func TestCaseSensitive(t *testing.T) {
	h := New(Options{CaseSensitive: true, LeftContext: 16, RightContext: 40, MaxLength: 56})
	segs := h.Highlight("Paris paris", []string{"paris"}, ContextTitle)
	assert.Equal(t, []Segment{
		{Text: "Paris "},
		{Text: "paris", Highlighted: true, Type: TypeTitle, OriginalTerm: "paris"},
	}, segs)
}

func TestDisplayWidth(t *testing.T) {
	tests := []struct {
		r    rune
		want float64
	}{
		{'中', 1},
		{'あ', 1},
		{'한', 1},
		{'ア', 1},
		{'😀', 0},
		{'，', 0},
		{'！', 0},
		{'a', 0.5},
		{'7', 0.5},
		{'é', 0.5},
		{' ', 0},
		{'!', 0},
		{'-', 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.r), func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayWidth(tt.r))
		})
	}
	assert.Equal(t, 3.5, StringWidth("東京 abc!"))
}

func TestNewClampsOptions(t *testing.T) {
	h := New(Options{LeftContext: -1, RightContext: -5})
	opts := h.Options()
	assert.Equal(t, 0.0, opts.LeftContext)
	assert.Equal(t, 0.0, opts.RightContext)
	assert.Equal(t, 56.0, opts.MaxLength)
}

func TestRuneOffsets(t *testing.T) {
	s := "a東\xffb"
	assert.Equal(t, []int{0, 1, 1, 1, 2, 3, 4}, runeOffsets(s))
	assert.Equal(t, []int{0}, runeOffsets(""))
}

func TestHighlightManyMatchesInMultibyteText(t *testing.T) {
	text := strings.Repeat("東京 tokyo ", 50)
	segs := Highlight(text, []string{"東京", "TOKYO"}, ContextTitle)
	assert.Equal(t, text, Join(segs))

	highlighted := 0
	for _, s := range segs {
		if s.Highlighted {
			highlighted++
			assert.Contains(t, []string{"東京", "tokyo"}, s.Text)
		}
	}
	assert.Equal(t, 100, highlighted)
}

func TestHighlightFoldsLikeFold(t *testing.T) {
	// Kelvin sign lowers to k; long s has no lower-case mapping to s.
	segs := Highlight("5 \u212A", []string{"k"}, ContextTitle)
	require.Len(t, segs, 2)
	assert.True(t, segs[1].Highlighted)

	segs = Highlight("ſun", []string{"sun"}, ContextTitle)
	assert.Equal(t, []Segment{{Text: "ſun"}}, segs)
	assert.NotContains(t, Fold("ſun"), Fold("sun"))
}
