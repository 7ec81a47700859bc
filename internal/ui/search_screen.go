package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/asheshgoplani/sessionseek/internal/clipboard"
	"github.com/asheshgoplani/sessionseek/internal/highlight"
	"github.com/asheshgoplani/sessionseek/internal/logging"
	"github.com/asheshgoplani/sessionseek/internal/query"
	"github.com/asheshgoplani/sessionseek/internal/search"
)

var uiLog = logging.ForComponent(logging.CompUI)

const debounceInterval = 250 * time.Millisecond

// Searcher is the part of the search service the screen needs.
type Searcher interface {
	Search(ctx context.Context, q string, opts search.SearchOptions) (*search.Response, error)
	Validate(q string) query.ValidationResult
	CancelCurrentSearch()
	Highlight(text string, terms []string, ctxType highlight.ContextType) []highlight.Segment
}

// Options configures the search screen.
type Options struct {
	Search search.SearchOptions
	// Limit caps displayed results; 0 shows all.
	Limit int
	// InitialQuery is typed into the input on start.
	InitialQuery string
	// Changes signals that the underlying data changed and the current query
	// should be re-run. May be nil.
	Changes <-chan struct{}
	// ThemeChanges carries OS dark mode updates. May be nil.
	ThemeChanges <-chan bool
}

type debounceMsg struct{ query string }

type resultsMsg struct {
	query string
	resp  *search.Response
	err   error
}

type dataChangedMsg struct{}

type themeChangedMsg struct{ dark bool }

type copiedMsg struct {
	id     string
	result *clipboard.CopyResult
	err    error
}

var (
	keyQuit   = key.NewBinding(key.WithKeys("esc", "ctrl+c"))
	keyUp     = key.NewBinding(key.WithKeys("up", "ctrl+p"))
	keyDown   = key.NewBinding(key.WithKeys("down", "ctrl+n"))
	keyEnter  = key.NewBinding(key.WithKeys("enter"))
	keyCase   = key.NewBinding(key.WithKeys("ctrl+s"))
	keySystem = key.NewBinding(key.WithKeys("ctrl+y"))
	keyCopy   = key.NewBinding(key.WithKeys("ctrl+o"))
)

// SearchScreen is the interactive search view.
type SearchScreen struct {
	svc  Searcher
	opts Options
	ctx  context.Context

	input     textinput.Model
	results   []search.SearchResult
	stats     search.SearchStats
	cursor    int
	expanded  bool
	searching bool
	lastQuery string
	parseErr  *query.ParseError
	errMsg    string
	status    string
	width     int
	height    int

	selected *search.SearchResult
	copyFn   func(text string) (*clipboard.CopyResult, error)
}

// NewSearchScreen creates the screen. ctx bounds every search it starts.
func NewSearchScreen(ctx context.Context, svc Searcher, opts Options) *SearchScreen {
	ti := textinput.New()
	ti.Placeholder = `Search sessions... (try: title:paris "eiffel tower" | louvre)`
	ti.Prompt = "› "
	ti.CharLimit = 256
	ti.Width = 60
	ti.Focus()
	if opts.InitialQuery != "" {
		ti.SetValue(opts.InitialQuery)
	}
	return &SearchScreen{
		svc:    svc,
		opts:   opts,
		ctx:    ctx,
		input:  ti,
		width:  100,
		copyFn: copyToClipboard,
	}
}

// copyToClipboard falls back to OSC 52 so copying works over SSH.
func copyToClipboard(text string) (*clipboard.CopyResult, error) {
	return clipboard.Copy(text, true)
}

// Init implements tea.Model.
func (s *SearchScreen) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, s.listenForChanges(), s.listenForTheme()}
	if q := s.input.Value(); strings.TrimSpace(q) != "" {
		s.searching = true
		cmds = append(cmds, s.runSearch(q))
	}
	return tea.Batch(cmds...)
}

// Selected returns the result chosen with Enter, if any.
func (s *SearchScreen) Selected() *search.SearchResult {
	return s.selected
}

// Update implements tea.Model.
func (s *SearchScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.input.Width = max(20, msg.Width-8)
		return s, nil

	case debounceMsg:
		if msg.query != s.input.Value() || strings.TrimSpace(msg.query) == "" {
			return s, nil
		}
		return s, s.runSearch(msg.query)

	case resultsMsg:
		// Results for a query the user has already changed are stale.
		if msg.query != s.input.Value() {
			return s, nil
		}
		s.applyResults(msg)
		return s, nil

	case dataChangedMsg:
		uiLog.Debug("ui_data_changed")
		cmds := []tea.Cmd{s.listenForChanges()}
		if q := s.input.Value(); strings.TrimSpace(q) != "" {
			cmds = append(cmds, s.runSearch(q))
		}
		return s, tea.Batch(cmds...)

	case themeChangedMsg:
		InitTheme(themeFor(msg.dark))
		return s, s.listenForTheme()

	case copiedMsg:
		if msg.err != nil {
			uiLog.Warn("ui_copy_failed", slog.String("error", msg.err.Error()))
			s.status = "Copy failed: " + msg.err.Error()
		} else {
			s.status = fmt.Sprintf("Copied %s (%s)", msg.id, msg.result.Method)
		}
		return s, nil

	case tea.KeyMsg:
		return s.handleKey(msg)
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *SearchScreen) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keyQuit):
		s.svc.CancelCurrentSearch()
		return s, tea.Quit

	case key.Matches(msg, keyUp):
		if s.cursor > 0 {
			s.cursor--
			s.expanded = false
		}
		return s, nil

	case key.Matches(msg, keyDown):
		if s.cursor < len(s.results)-1 {
			s.cursor++
			s.expanded = false
		}
		return s, nil

	case key.Matches(msg, keyEnter):
		if len(s.results) == 0 {
			return s, nil
		}
		if s.expanded {
			r := s.results[s.cursor]
			s.selected = &r
			return s, tea.Quit
		}
		s.expanded = true
		return s, nil

	case key.Matches(msg, keyCopy):
		if len(s.results) == 0 {
			return s, nil
		}
		id, copyFn := s.results[s.cursor].SessionID, s.copyFn
		return s, func() tea.Msg {
			res, err := copyFn(id)
			return copiedMsg{id: id, result: res, err: err}
		}

	case key.Matches(msg, keyCase):
		s.opts.Search.CaseSensitive = !s.opts.Search.CaseSensitive
		return s, s.rerun()

	case key.Matches(msg, keySystem):
		s.opts.Search.ExcludeSystemMessages = !s.opts.Search.ExcludeSystemMessages
		return s, s.rerun()
	}

	var cmd tea.Cmd
	before := s.input.Value()
	s.input, cmd = s.input.Update(msg)
	q := s.input.Value()
	if q == before {
		return s, cmd
	}

	if strings.TrimSpace(q) == "" {
		s.svc.CancelCurrentSearch()
		s.results = nil
		s.stats = search.SearchStats{}
		s.parseErr = nil
		s.errMsg = ""
		s.searching = false
		s.cursor = 0
		return s, cmd
	}

	// Live syntax feedback while typing; the search itself is debounced.
	s.parseErr = s.svc.Validate(q).Error
	if s.parseErr != nil {
		return s, cmd
	}
	s.searching = true
	debounce := tea.Tick(debounceInterval, func(time.Time) tea.Msg {
		return debounceMsg{query: q}
	})
	return s, tea.Batch(cmd, debounce)
}

func (s *SearchScreen) rerun() tea.Cmd {
	q := s.input.Value()
	if strings.TrimSpace(q) == "" {
		return nil
	}
	s.searching = true
	return s.runSearch(q)
}

func (s *SearchScreen) runSearch(q string) tea.Cmd {
	svc, ctx, opts := s.svc, s.ctx, s.opts.Search
	return func() tea.Msg {
		resp, err := svc.Search(ctx, q, opts)
		return resultsMsg{query: q, resp: resp, err: err}
	}
}

func (s *SearchScreen) applyResults(msg resultsMsg) {
	s.searching = false
	s.lastQuery = msg.query
	s.errMsg = ""
	s.parseErr = nil
	if msg.err != nil {
		var pe *query.ParseError
		if errors.As(msg.err, &pe) {
			s.parseErr = pe
		} else {
			s.errMsg = msg.err.Error()
		}
		s.results = nil
		s.cursor = 0
		return
	}
	results := msg.resp.Results
	if s.opts.Limit > 0 && len(results) > s.opts.Limit {
		results = results[:s.opts.Limit]
	}
	s.results = results
	s.stats = msg.resp.Stats
	if s.cursor >= len(s.results) {
		s.cursor = max(0, len(s.results)-1)
	}
	uiLog.Debug("ui_results_applied",
		slog.String("query", msg.query),
		slog.Int("results", len(s.results)))
}

func (s *SearchScreen) listenForChanges() tea.Cmd {
	ch := s.opts.Changes
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return dataChangedMsg{}
	}
}

func (s *SearchScreen) listenForTheme() tea.Cmd {
	ch := s.opts.ThemeChanges
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		isDark, ok := <-ch
		if !ok {
			return nil
		}
		return themeChangedMsg{dark: isDark}
	}
}

// View implements tea.Model.
func (s *SearchScreen) View() string {
	width := max(40, s.width)
	var b strings.Builder

	b.WriteString(headerStyle.Render("sessionseek") + "  " + dimStyle.Render(s.flagsLine()) + "\n")
	b.WriteString(searchBoxStyle.Width(width-4).Render(s.input.View()) + "\n")

	switch {
	case s.parseErr != nil:
		b.WriteString(s.renderParseError() + "\n")
	case s.errMsg != "":
		b.WriteString(errorStyle.Render("  "+s.errMsg) + "\n")
	case s.searching && len(s.results) == 0:
		b.WriteString(lipgloss.NewStyle().Foreground(colors.Yellow).Render("  Searching...") + "\n")
	case len(s.results) == 0 && strings.TrimSpace(s.input.Value()) != "":
		b.WriteString(dimStyle.Render("  No results") + "\n")
	case len(s.results) == 0:
		b.WriteString(dimStyle.Italic(true).Render("  Type to search...") + "\n")
	default:
		b.WriteString(s.renderResults(width))
		b.WriteString(dimStyle.Render(s.statsLine()) + "\n")
	}

	if s.status != "" {
		b.WriteString(metaStyle.Render("  "+s.status) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("[↑↓] Select  [Enter] Expand/Open  [Ctrl+O] Copy ID  [Ctrl+S] Case  [Ctrl+Y] System  [Esc] Quit"))
	return b.String()
}

func (s *SearchScreen) flagsLine() string {
	caseText := "ignore case"
	if s.opts.Search.CaseSensitive {
		caseText = "match case"
	}
	sysText := "system prompts on"
	if s.opts.Search.ExcludeSystemMessages {
		sysText = "system prompts off"
	}
	return caseText + " · " + sysText
}

func (s *SearchScreen) statsLine() string {
	st := s.stats
	return fmt.Sprintf("  %d results (title %d · message %d · system %d · multiple %d) in %s · %s",
		st.TotalMatches, st.TitleMatches, st.MessageMatches, st.SystemMatches, st.MultipleMatches,
		st.Elapsed.Round(time.Millisecond), st.Complexity)
}

// renderParseError puts a caret under the offending position of the query.
func (s *SearchScreen) renderParseError() string {
	pe := s.parseErr
	line := "  " + errorStyle.Render(pe.Error())
	if pe.Suggestion != "" {
		line += "\n  " + dimStyle.Render(pe.Suggestion)
	}
	if pe.Position < 0 {
		return line
	}
	// Input prompt "› " occupies two cells plus the box border and padding.
	caret := strings.Repeat(" ", 4+pe.Position) + errorStyle.Render("^")
	return caret + "\n" + line
}

// visibleRange returns the window of results that fits the screen height,
// keeping the cursor in view.
func (s *SearchScreen) visibleRange() (int, int) {
	rows := len(s.results)
	if s.height <= 0 {
		return 0, rows
	}
	// Each result takes two lines; header, input box, stats and hints take ~8.
	capacity := max(1, (s.height-8)/2)
	if s.expanded {
		capacity = max(1, capacity-3)
	}
	if rows <= capacity {
		return 0, rows
	}
	start := s.cursor - capacity/2
	start = max(0, min(start, rows-capacity))
	return start, start + capacity
}

func (s *SearchScreen) renderResults(width int) string {
	var b strings.Builder
	start, end := s.visibleRange()
	for i := start; i < end; i++ {
		r := s.results[i]
		title := r.Topic
		if strings.TrimSpace(title) == "" {
			title = r.SessionID
		}
		segs := s.svc.Highlight(title, r.MatchedTerms, highlight.ContextTitle)
		meta := fmt.Sprintf("%s · %s", formatRelativeTime(r.LastUpdate), badge(r.MatchType))
		line := "› " + RenderSegments(TruncateSegments(segs, width-30))
		if i == s.cursor {
			b.WriteString(selectedStyle.Render(line) + "  " + metaStyle.Render(meta) + "\n")
		} else {
			b.WriteString(resultStyle.Render(line) + "  " + dimStyle.Render(meta) + "\n")
		}
		for _, snippet := range s.snippets(r, i == s.cursor && s.expanded) {
			b.WriteString("      " + RenderSegments(TruncateSegments(snippet, width-10)) + "\n")
		}
	}
	return b.String()
}

// snippets returns highlighted excerpts for a result: the first matched
// message (or the system prompt) normally, every match when expanded.
func (s *SearchScreen) snippets(r search.SearchResult, all bool) [][]highlight.Segment {
	var out [][]highlight.Segment
	for _, m := range r.MatchedMessages {
		out = append(out, s.svc.Highlight(m.Content, r.MatchedTerms, highlight.ContextMessage))
		if !all {
			return out
		}
	}
	if r.MatchedSystemMessage != nil && (all || len(out) == 0) {
		segs := s.svc.Highlight(r.MatchedSystemMessage.Text, r.MatchedTerms, highlight.ContextSystem)
		out = append(out, append([]highlight.Segment{{Text: "[system] "}}, segs...))
	}
	return out
}

// formatRelativeTime formats time as relative (e.g., "2h ago", "3d ago")
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	case diff < 30*24*time.Hour:
		return fmt.Sprintf("%dw ago", int(diff.Hours()/(24*7)))
	default:
		return t.Format("Jan 2")
	}
}

// Run shows the search screen until the user quits. It returns the result
// opened with Enter, or nil.
func Run(ctx context.Context, svc Searcher, opts Options) (*search.SearchResult, error) {
	screen := NewSearchScreen(ctx, svc, opts)
	p := tea.NewProgram(screen, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return nil, fmt.Errorf("run search screen: %w", err)
	}
	return screen.Selected(), nil
}
