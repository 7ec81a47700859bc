package ui

import (
	"strings"
	"sync"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/asheshgoplani/sessionseek/internal/highlight"
	"github.com/asheshgoplani/sessionseek/internal/search"
)

// Theme represents the current color scheme
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

type palette struct {
	Bg, Surface, Border, Text, TextDim  lipgloss.Color
	Accent, Purple, Cyan, Green, Yellow lipgloss.Color
	Orange, Red                         lipgloss.Color
}

// Tokyo Night
var darkColors = palette{
	Bg:      lipgloss.Color("#1a1b26"),
	Surface: lipgloss.Color("#24283b"),
	Border:  lipgloss.Color("#414868"),
	Text:    lipgloss.Color("#c0caf5"),
	TextDim: lipgloss.Color("#787fa0"),
	Accent:  lipgloss.Color("#7aa2f7"),
	Purple:  lipgloss.Color("#bb9af7"),
	Cyan:    lipgloss.Color("#7dcfff"),
	Green:   lipgloss.Color("#9ece6a"),
	Yellow:  lipgloss.Color("#e0af68"),
	Orange:  lipgloss.Color("#ff9e64"),
	Red:     lipgloss.Color("#f7768e"),
}

// Tokyo Night Light
var lightColors = palette{
	Bg:      lipgloss.Color("#d5d6db"),
	Surface: lipgloss.Color("#e9e9ec"),
	Border:  lipgloss.Color("#9699a3"),
	Text:    lipgloss.Color("#343b58"),
	TextDim: lipgloss.Color("#6a6d7c"),
	Accent:  lipgloss.Color("#34548a"),
	Purple:  lipgloss.Color("#7847bd"),
	Cyan:    lipgloss.Color("#166775"),
	Green:   lipgloss.Color("#485e30"),
	Yellow:  lipgloss.Color("#8f5e15"),
	Orange:  lipgloss.Color("#965027"),
	Red:     lipgloss.Color("#8c4351"),
}

var (
	currentTheme = ThemeDark
	colors       palette

	// themeMu protects the palette and styles during live theme switches.
	themeMu sync.RWMutex
)

var (
	headerStyle    lipgloss.Style
	searchBoxStyle lipgloss.Style
	resultStyle    lipgloss.Style
	selectedStyle  lipgloss.Style
	metaStyle      lipgloss.Style
	dimStyle       lipgloss.Style
	errorStyle     lipgloss.Style
	badgeStyles    map[search.MatchType]lipgloss.Style
	markStyles     map[highlight.HighlightType]lipgloss.Style
)

// InitTheme sets the active palette. Anything other than "light" selects
// the dark palette.
func InitTheme(theme string) {
	themeMu.Lock()
	defer themeMu.Unlock()
	if theme == string(ThemeLight) {
		currentTheme = ThemeLight
		colors = lightColors
	} else {
		currentTheme = ThemeDark
		colors = darkColors
	}
	initStyles()
}

// CurrentTheme returns the active theme.
func CurrentTheme() Theme {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return currentTheme
}

func init() {
	InitTheme(string(ThemeDark))
}

func initStyles() {
	headerStyle = lipgloss.NewStyle().Foreground(colors.Cyan).Bold(true)
	searchBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colors.Cyan).
		Padding(0, 1)
	resultStyle = lipgloss.NewStyle().Foreground(colors.Text).Padding(0, 2)
	selectedStyle = lipgloss.NewStyle().
		Padding(0, 2).
		Background(colors.Surface).
		Foreground(colors.Text).
		Bold(true)
	metaStyle = lipgloss.NewStyle().Foreground(colors.Purple)
	dimStyle = lipgloss.NewStyle().Foreground(colors.TextDim)
	errorStyle = lipgloss.NewStyle().Foreground(colors.Red)

	badgeStyles = map[search.MatchType]lipgloss.Style{
		search.MatchTitle:    lipgloss.NewStyle().Foreground(colors.Accent),
		search.MatchMessage:  lipgloss.NewStyle().Foreground(colors.Green),
		search.MatchSystem:   lipgloss.NewStyle().Foreground(colors.Orange),
		search.MatchMultiple: lipgloss.NewStyle().Foreground(colors.Purple),
	}

	mark := lipgloss.NewStyle().Foreground(colors.Bg).Bold(true)
	markStyles = map[highlight.HighlightType]lipgloss.Style{
		highlight.TypeExact:   mark.Background(colors.Orange),
		highlight.TypeWord:    mark.Background(colors.Yellow),
		highlight.TypeTitle:   mark.Background(colors.Cyan),
		highlight.TypePartial: mark.Background(colors.Yellow).Underline(true),
	}
}

// RenderSegments styles highlighted segments and leaves the rest untouched.
func RenderSegments(segs []highlight.Segment) string {
	themeMu.RLock()
	defer themeMu.RUnlock()
	var b strings.Builder
	for _, s := range segs {
		if !s.Highlighted {
			b.WriteString(s.Text)
			continue
		}
		style, ok := markStyles[s.Type]
		if !ok {
			style = markStyles[highlight.TypeWord]
		}
		b.WriteString(style.Render(s.Text))
	}
	return b.String()
}

// TruncateSegments cuts segments to at most width terminal cells, appending
// an ellipsis when anything was dropped. Newlines are flattened to spaces.
func TruncateSegments(segs []highlight.Segment, width int) []highlight.Segment {
	if width <= 0 {
		return nil
	}
	out := make([]highlight.Segment, 0, len(segs))
	used := 0
	for _, s := range segs {
		text := flatten(s.Text)
		if text == "" {
			continue
		}
		w := runewidth.StringWidth(text)
		if used+w > width {
			s.Text = runewidth.Truncate(text, width-used, "…")
			if s.Text != "" {
				out = append(out, s)
			}
			return out
		}
		s.Text = text
		out = append(out, s)
		used += w
	}
	return out
}

func badge(t search.MatchType) string {
	themeMu.RLock()
	defer themeMu.RUnlock()
	style, ok := badgeStyles[t]
	if !ok {
		return string(t)
	}
	return style.Render(string(t))
}

// flatten collapses whitespace runs to single spaces, keeping a space at
// either edge so adjacent segments stay separated.
func flatten(s string) string {
	if s == "" {
		return ""
	}
	if strings.TrimSpace(s) == "" {
		return " "
	}
	out := strings.Join(strings.Fields(s), " ")
	if unicode.IsSpace(rune(s[0])) {
		out = " " + out
	}
	if unicode.IsSpace(rune(s[len(s)-1])) {
		out += " "
	}
	return out
}
