package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"
	"golang.org/x/term"

	"github.com/asheshgoplani/sessionseek/internal/statedb"
)

// normalizeArgs reorders args so flags come before positional arguments.
// Go's flag package stops parsing at the first non-flag argument, which means
// `search paris --json` would silently ignore --json.
func normalizeArgs(fs *flag.FlagSet, args []string) []string {
	boolFlags := make(map[string]bool)
	fs.VisitAll(func(f *flag.Flag) {
		if bf, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && bf.IsBoolFlag() {
			boolFlags[f.Name] = true
		}
	})

	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]

		// "--" terminates flag processing
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}

		if strings.HasPrefix(arg, "-") && arg != "-" {
			flags = append(flags, arg)
			name := strings.TrimLeft(arg, "-")
			if strings.Contains(name, "=") {
				continue
			}
			// Non-bool flags take the next arg as their value
			if !boolFlags[name] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, arg)
		}
	}
	return append(flags, positional...)
}

// CLIOutput handles consistent output formatting across all CLI commands
type CLIOutput struct {
	jsonMode  bool
	quietMode bool
}

// NewCLIOutput creates a new CLI output handler
func NewCLIOutput(jsonMode, quietMode bool) *CLIOutput {
	return &CLIOutput{
		jsonMode:  jsonMode,
		quietMode: quietMode,
	}
}

// Success prints a success message or JSON response
func (c *CLIOutput) Success(message string, data any) {
	if c.quietMode {
		return
	}
	if c.jsonMode {
		c.printJSON(data)
		return
	}
	fmt.Printf("%s %s\n", successSymbol, message)
}

// Error prints an error message or JSON error response
func (c *CLIOutput) Error(message string, code string) {
	if c.jsonMode {
		c.printJSON(map[string]any{
			"success": false,
			"error":   message,
			"code":    code,
		})
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
}

// Print prints data (human-readable or JSON)
func (c *CLIOutput) Print(humanOutput string, jsonData any) {
	if c.quietMode {
		return
	}
	if c.jsonMode {
		c.printJSON(jsonData)
		return
	}
	fmt.Print(humanOutput)
}

func (c *CLIOutput) printJSON(data any) {
	output, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to format JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(output))
}

// Symbols for human-readable output
const (
	successSymbol = "✓"
	bulletSymbol  = "•"
)

// Error codes
const (
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAmbiguous        = "AMBIGUOUS"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeParseError       = "PARSE_ERROR"
)

// minPrefixLen is the shortest ID prefix accepted when resolving sessions.
const minPrefixLen = 4

type titleSource []*statedb.SessionRow

func (s titleSource) String(i int) string { return s[i].Title }
func (s titleSource) Len() int            { return len(s) }

// ResolveSession finds a session by exact ID, unique ID prefix, exact title
// or, failing those, the best fuzzy title match. Returns the session or an
// error message and code.
func ResolveSession(identifier string, sessions []*statedb.SessionRow) (*statedb.SessionRow, string, string) {
	if identifier == "" {
		return nil, "session identifier is required", ErrCodeNotFound
	}

	for _, s := range sessions {
		if s.ID == identifier {
			return s, "", ""
		}
	}

	if len(identifier) >= minPrefixLen {
		var matches []*statedb.SessionRow
		for _, s := range sessions {
			if strings.HasPrefix(s.ID, identifier) {
				matches = append(matches, s)
			}
		}
		if len(matches) == 1 {
			return matches[0], "", ""
		}
		if len(matches) > 1 {
			return nil, ambiguous(identifier, matches), ErrCodeAmbiguous
		}
	}

	for _, s := range sessions {
		if strings.EqualFold(s.Title, identifier) {
			return s, "", ""
		}
	}

	matches := fuzzy.FindFrom(identifier, titleSource(sessions))
	switch {
	case len(matches) == 1:
		return sessions[matches[0].Index], "", ""
	case len(matches) > 1 && matches[0].Score > matches[1].Score:
		return sessions[matches[0].Index], "", ""
	case len(matches) > 1:
		candidates := make([]*statedb.SessionRow, 0, len(matches))
		for _, m := range matches {
			candidates = append(candidates, sessions[m.Index])
		}
		return nil, ambiguous(identifier, candidates), ErrCodeAmbiguous
	}

	return nil, fmt.Sprintf("session '%s' not found", identifier), ErrCodeNotFound
}

func ambiguous(identifier string, matches []*statedb.SessionRow) string {
	var names []string
	for _, m := range matches {
		names = append(names, fmt.Sprintf("%s (%s)", m.Title, TruncateID(m.ID)))
	}
	return fmt.Sprintf("'%s' matches multiple sessions:\n  - %s\nUse the full ID or a more specific title.",
		identifier, strings.Join(names, "\n  - "))
}

// TruncateID returns a shortened ID for display
func TruncateID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// truncateCells cuts s to width terminal cells, padding shorter strings so
// table columns line up.
func truncateCells(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "...")
	}
	return runewidth.FillRight(s, width)
}

// isTerminal reports whether stdout is a terminal.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// terminalWidth returns the stdout width, or fallback when unknown.
func terminalWidth(fallback int) int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}
