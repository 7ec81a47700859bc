package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/asheshgoplani/sessionseek/internal/highlight"
	"github.com/asheshgoplani/sessionseek/internal/statedb"
)

// Table column widths for list command output
const (
	tableColTitle = 40
	tableColID    = 12
)

type sessionJSON struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	LastUpdate time.Time `json:"last_update"`
	CreatedAt  time.Time `json:"created_at"`
}

func toSessionJSON(row *statedb.SessionRow) sessionJSON {
	return sessionJSON{ID: row.ID, Title: row.Title, LastUpdate: row.LastUpdate, CreatedAt: row.CreatedAt}
}

func handleList(ctx context.Context, env *cliEnv, args []string) int {
	fs := newFlagSet("list", "", "List sessions, most recently updated first.")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	limit := fs.Int("limit", 0, "Maximum sessions to list (0 = all)")
	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		return 2
	}
	out := NewCLIOutput(*jsonOutput, false)

	db, err := env.openDB()
	if err != nil {
		out.Error(fmt.Sprintf("failed to open database: %v", err), ErrCodeInvalidOperation)
		return 1
	}
	defer db.Close()

	rows, err := db.LoadSessions(ctx)
	if err != nil {
		out.Error(fmt.Sprintf("failed to load sessions: %v", err), ErrCodeInvalidOperation)
		return 1
	}
	if *limit > 0 && len(rows) > *limit {
		rows = rows[:*limit]
	}

	items := make([]sessionJSON, len(rows))
	for i, row := range rows {
		items[i] = toSessionJSON(row)
	}
	out.Print(formatSessionTable(rows), items)
	return 0
}

// formatSessionTable renders sessions as aligned columns.
func formatSessionTable(rows []*statedb.SessionRow) string {
	if len(rows) == 0 {
		return "No sessions found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  %s\n", truncateCells("TITLE", tableColTitle), truncateCells("ID", tableColID), "UPDATED")
	for _, row := range rows {
		title := row.Title
		if strings.TrimSpace(title) == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(&b, "%s  %s  %s\n",
			truncateCells(title, tableColTitle),
			truncateCells(TruncateID(row.ID), tableColID),
			row.LastUpdate.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&b, "\nTotal: %d sessions\n", len(rows))
	return b.String()
}

type messageJSON struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type showJSON struct {
	sessionJSON
	SystemPrompt *systemPromptJSON `json:"system_prompt,omitempty"`
	Messages     []messageJSON     `json:"messages"`
}

type systemPromptJSON struct {
	Text   string   `json:"text"`
	Images []string `json:"images,omitempty"`
}

func handleShow(ctx context.Context, env *cliEnv, args []string) int {
	fs := newFlagSet("show", "<id|title>", "Show a session. Accepts an ID, a unique ID prefix or a title.")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	var terms stringList
	fs.Var(&terms, "term", "Term to highlight in the transcript (repeatable)")
	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		return 2
	}
	out := NewCLIOutput(*jsonOutput, false)

	db, err := env.openDB()
	if err != nil {
		out.Error(fmt.Sprintf("failed to open database: %v", err), ErrCodeInvalidOperation)
		return 1
	}
	defer db.Close()

	rows, err := db.LoadSessions(ctx)
	if err != nil {
		out.Error(fmt.Sprintf("failed to load sessions: %v", err), ErrCodeInvalidOperation)
		return 1
	}
	row, errMsg, code := ResolveSession(strings.Join(fs.Args(), " "), rows)
	if row == nil {
		out.Error(errMsg, code)
		return 1
	}

	msgs, err := db.LoadMessages(ctx, row.ID)
	if err != nil {
		out.Error(fmt.Sprintf("failed to load messages: %v", err), ErrCodeInvalidOperation)
		return 1
	}
	sp, err := db.LoadSystemPrompt(ctx, row.ID)
	if err != nil {
		out.Error(fmt.Sprintf("failed to load system prompt: %v", err), ErrCodeInvalidOperation)
		return 1
	}

	data := showJSON{sessionJSON: toSessionJSON(row), Messages: make([]messageJSON, len(msgs))}
	for i, m := range msgs {
		data.Messages[i] = messageJSON{ID: m.ID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt}
	}
	if sp != nil {
		data.SystemPrompt = &systemPromptJSON{Text: sp.Text, Images: sp.Images}
	}

	h := highlight.New(env.cfg.Highlight.Options(env.cfg.Search.CaseSensitive))
	out.Print(formatTranscript(data, terms, h, isTerminal()), data)
	return 0
}

// formatTranscript prints a session with every term occurrence marked. The
// full text is shown, so the title context is used for messages too.
func formatTranscript(data showJSON, terms []string, h *highlight.Highlighter, color bool) string {
	mark := func(text string) string {
		if len(terms) == 0 {
			return text
		}
		return renderSegments(h.Highlight(text, terms, highlight.ContextTitle), color)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", mark(data.Title))
	fmt.Fprintf(&b, "ID:      %s\n", data.ID)
	fmt.Fprintf(&b, "Updated: %s\n", data.LastUpdate.Local().Format("2006-01-02 15:04"))
	if data.SystemPrompt != nil {
		fmt.Fprintf(&b, "\n[system]\n%s\n", mark(data.SystemPrompt.Text))
		for _, img := range data.SystemPrompt.Images {
			fmt.Fprintf(&b, "  %s image: %s\n", bulletSymbol, img)
		}
	}
	for _, m := range data.Messages {
		fmt.Fprintf(&b, "\n[%s] %s\n%s\n", m.Role, m.CreatedAt.Local().Format("15:04"), mark(m.Content))
	}
	return b.String()
}

func handleImport(ctx context.Context, env *cliEnv, args []string) int {
	fs := newFlagSet("import", "<file.json|->", "Import sessions from a JSON export. Existing sessions with the same ID are replaced.")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	quiet := fs.Bool("q", false, "Quiet mode")
	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		return 2
	}
	out := NewCLIOutput(*jsonOutput, *quiet)
	if fs.NArg() != 1 {
		out.Error("exactly one export file is required", ErrCodeInvalidOperation)
		return 2
	}

	db, err := env.openDB()
	if err != nil {
		out.Error(fmt.Sprintf("failed to open database: %v", err), ErrCodeInvalidOperation)
		return 1
	}
	defer db.Close()

	var stats statedb.ImportStats
	if path := fs.Arg(0); path == "-" {
		stats, err = db.ImportJSON(ctx, os.Stdin)
	} else {
		stats, err = db.ImportJSONFile(ctx, path)
	}
	if err != nil {
		out.Error(fmt.Sprintf("import failed: %v", err), ErrCodeInvalidOperation)
		return 1
	}

	msg := fmt.Sprintf("imported %d sessions, %d messages, %d system prompts", stats.Sessions, stats.Messages, stats.SystemPrompts)
	if skipped := stats.SkippedSessions + stats.SkippedMessages; skipped > 0 {
		msg += fmt.Sprintf(" (skipped %d sessions, %d messages without an id)", stats.SkippedSessions, stats.SkippedMessages)
	}
	out.Success(msg, map[string]any{"success": true, "stats": stats})
	return 0
}
