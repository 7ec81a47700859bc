package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/asheshgoplani/sessionseek/internal/highlight"
	"github.com/asheshgoplani/sessionseek/internal/query"
	"github.com/asheshgoplani/sessionseek/internal/search"
	"github.com/asheshgoplani/sessionseek/internal/statedb"
	"github.com/asheshgoplani/sessionseek/internal/ui"
)

// newFlagSet creates a subcommand flag set with a usage line.
func newFlagSet(name, positional, summary string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Printf("Usage: sessionseek %s [options] %s\n", name, positional)
		fmt.Println()
		fmt.Println(summary)
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}
	return fs
}

// searchJSON is the machine-readable search output.
type searchJSON struct {
	Query   string                `json:"query"`
	Results []search.SearchResult `json:"results"`
	Stats   searchStatsJSON       `json:"stats"`
}

type searchStatsJSON struct {
	search.SearchStats
	ElapsedMs int64 `json:"elapsed_ms"`
}

func handleSearch(ctx context.Context, env *cliEnv, args []string) int {
	fs := newFlagSet("search", "<query>", "Search sessions by title, message content and system prompt.")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	limit := fs.Int("limit", env.cfg.Search.GetResultLimit(), "Maximum results to show (0 = all)")
	caseSensitive := fs.Bool("case", env.cfg.Search.CaseSensitive, "Case-sensitive matching")
	noSystem := fs.Bool("no-system", !env.cfg.Search.GetSearchSystemMessages(), "Do not search system prompts")
	watch := fs.Bool("watch", false, "Re-run the search whenever the database changes")
	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		return 2
	}
	out := NewCLIOutput(*jsonOutput, false)

	q := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(q) == "" {
		out.Error("query is required", ErrCodeInvalidOperation)
		return 2
	}

	db, err := env.openDB()
	if err != nil {
		out.Error(fmt.Sprintf("failed to open database: %v", err), ErrCodeInvalidOperation)
		return 1
	}
	defer db.Close()

	svc := env.newService(db, *caseSensitive)
	opts := search.SearchOptions{
		CaseSensitive:         *caseSensitive,
		ExcludeSystemMessages: *noSystem,
	}
	code := runSearch(ctx, svc, out, q, opts, *limit, *jsonOutput)
	if !*watch || code != 0 {
		return code
	}

	w := statedb.NewWatcher(db)
	w.Start()
	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			return 0
		case _, ok := <-w.Changes():
			if !ok {
				return 0
			}
			if !*jsonOutput {
				fmt.Printf("\n-- database changed at %s --\n", time.Now().Format("15:04:05"))
			}
			if code := runSearch(ctx, svc, out, q, opts, *limit, *jsonOutput); code != 0 && code != 130 {
				return code
			}
		}
	}
}

// runSearch executes one search and prints it. It returns the exit code.
func runSearch(ctx context.Context, svc *search.Service, out *CLIOutput, q string, opts search.SearchOptions, limit int, jsonOutput bool) int {
	resp, err := svc.Search(ctx, q, opts)
	if err != nil {
		var pe *query.ParseError
		if errors.As(err, &pe) {
			if jsonOutput {
				out.printJSON(map[string]any{"success": false, "code": ErrCodeParseError, "error": pe})
			} else {
				fmt.Fprint(os.Stderr, formatParseError(q, pe))
			}
			return 1
		}
		out.Error(err.Error(), ErrCodeInvalidOperation)
		return 1
	}
	if ctx.Err() != nil {
		return 130
	}

	results := resp.Results
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	out.Print(formatResults(svc, results, resp.Stats, isTerminal(), terminalWidth(100)), searchJSON{
		Query:   q,
		Results: results,
		Stats:   searchStatsJSON{SearchStats: resp.Stats, ElapsedMs: resp.Stats.Elapsed.Milliseconds()},
	})
	return 0
}

// segmentHighlighter is the part of the service used for rendering.
type segmentHighlighter interface {
	Highlight(text string, terms []string, ctxType highlight.ContextType) []highlight.Segment
}

// formatResults renders results for humans: title line, match type and age,
// then the first matching excerpt.
func formatResults(h segmentHighlighter, results []search.SearchResult, stats search.SearchStats, color bool, width int) string {
	if len(results) == 0 {
		return "No matching sessions.\n"
	}
	var b strings.Builder
	for _, r := range results {
		title := r.Topic
		if strings.TrimSpace(title) == "" {
			title = "(untitled)"
		}
		segs := h.Highlight(title, r.MatchedTerms, highlight.ContextTitle)
		fmt.Fprintf(&b, "%s %s  [%s] %s  %s\n",
			bulletSymbol,
			renderSegments(ui.TruncateSegments(segs, max(20, width-40)), color),
			r.MatchType,
			TruncateID(r.SessionID),
			r.LastUpdate.Local().Format("2006-01-02 15:04"))

		switch {
		case len(r.MatchedMessages) > 0:
			m := r.MatchedMessages[0]
			segs := h.Highlight(m.Content, r.MatchedTerms, highlight.ContextMessage)
			fmt.Fprintf(&b, "    %s: %s\n", m.Role, renderSegments(ui.TruncateSegments(segs, max(20, width-12)), color))
			if extra := len(r.MatchedMessages) - 1; extra > 0 {
				fmt.Fprintf(&b, "    (+%d more)\n", extra)
			}
		case r.MatchedSystemMessage != nil:
			segs := h.Highlight(r.MatchedSystemMessage.Text, r.MatchedTerms, highlight.ContextSystem)
			fmt.Fprintf(&b, "    system: %s\n", renderSegments(ui.TruncateSegments(segs, max(20, width-12)), color))
		}
	}
	fmt.Fprintf(&b, "\n%d sessions (title %d, message %d, system %d, multiple %d) in %s\n",
		stats.TotalMatches, stats.TitleMatches, stats.MessageMatches, stats.SystemMatches,
		stats.MultipleMatches, stats.Elapsed.Round(time.Millisecond))
	return b.String()
}

// renderSegments styles highlights on a terminal and brackets them otherwise.
func renderSegments(segs []highlight.Segment, color bool) string {
	if color {
		return ui.RenderSegments(segs)
	}
	var b strings.Builder
	for _, s := range segs {
		if s.Highlighted {
			b.WriteString("[" + s.Text + "]")
		} else {
			b.WriteString(s.Text)
		}
	}
	return b.String()
}

// formatParseError shows the query with a caret under the error position.
func formatParseError(q string, pe *query.ParseError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error: %s\n", pe.Message)
	normalized := query.Normalize(q)
	fmt.Fprintf(&b, "  %s\n", normalized)
	if pe.Position >= 0 && pe.Position <= len([]rune(normalized)) {
		prefix := string([]rune(normalized)[:pe.Position])
		fmt.Fprintf(&b, "  %s^\n", strings.Repeat(" ", runewidth.StringWidth(prefix)))
	}
	if pe.Suggestion != "" {
		fmt.Fprintf(&b, "Hint: %s\n", pe.Suggestion)
	}
	return b.String()
}

func handleValidate(env *cliEnv, args []string) int {
	fs := newFlagSet("validate", "<query>", "Check query syntax without searching.")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		return 2
	}
	out := NewCLIOutput(*jsonOutput, false)
	q := strings.Join(fs.Args(), " ")

	res := query.Validate(q)
	if *jsonOutput {
		out.printJSON(res)
	} else if res.Valid {
		out.Success(fmt.Sprintf("valid query (%s)", query.Classify(q)), res)
	} else {
		fmt.Fprint(os.Stderr, formatParseError(q, res.Error))
	}
	if !res.Valid {
		return 1
	}
	return 0
}

func handleHighlight(env *cliEnv, args []string) int {
	fs := newFlagSet("highlight", "<text>", "Highlight search terms in text, as shown in results.")
	jsonOutput := fs.Bool("json", false, "Output segments as JSON")
	var terms stringList
	fs.Var(&terms, "term", "Term to highlight (repeatable)")
	ctxType := fs.String("context", string(highlight.ContextMessage), "Display context: title, message or system")
	caseSensitive := fs.Bool("case", env.cfg.Search.CaseSensitive, "Case-sensitive matching")
	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		return 2
	}
	out := NewCLIOutput(*jsonOutput, false)

	switch highlight.ContextType(*ctxType) {
	case highlight.ContextTitle, highlight.ContextMessage, highlight.ContextSystem:
	default:
		out.Error(fmt.Sprintf("unknown context %q", *ctxType), ErrCodeInvalidOperation)
		return 2
	}

	text := strings.Join(fs.Args(), " ")
	h := highlight.New(env.cfg.Highlight.Options(*caseSensitive))
	segs := h.Highlight(text, terms, highlight.ContextType(*ctxType))
	out.Print(renderSegments(segs, isTerminal())+"\n", segs)
	return 0
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}
