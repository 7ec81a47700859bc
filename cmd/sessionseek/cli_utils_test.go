package main

import (
	"flag"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/asheshgoplani/sessionseek/internal/statedb"
)

func TestNormalizeArgs(t *testing.T) {
	searchFlags := func() *flag.FlagSet {
		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		fs.Bool("json", false, "")
		fs.Bool("case", false, "")
		fs.Int("limit", 0, "")
		return fs
	}

	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{"flags already first", []string{"--json", "paris"}, []string{"--json", "paris"}},
		{"bool flag after query", []string{"paris", "--json"}, []string{"--json", "paris"}},
		{"value flag after query", []string{"paris", "--limit", "5"}, []string{"--limit", "5", "paris"}},
		{"equals syntax", []string{"paris", "--limit=5"}, []string{"--limit=5", "paris"}},
		{"multi word query", []string{"eiffel", "tower", "--case"}, []string{"--case", "eiffel", "tower"}},
		{"quoted phrase stays whole", []string{`"eiffel tower"`, "--json"}, []string{"--json", `"eiffel tower"`}},
		{"double dash terminator", []string{"--", "--json", "paris"}, []string{"--json", "paris"}},
		{"empty args", []string{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := normalizeArgs(searchFlags(), tt.args)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("normalizeArgs() = %v, want %v", result, tt.expected)
			}
		})
	}
}

// TestNormalizeArgsIntegration verifies that after normalizeArgs + fs.Parse,
// flags are parsed regardless of their position.
func TestNormalizeArgsIntegration(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	jsonOutput := fs.Bool("json", false, "")
	limit := fs.Int("limit", 50, "")

	if err := fs.Parse(normalizeArgs(fs, []string{"title:paris", "--limit", "3", "tower", "--json"})); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !*jsonOutput || *limit != 3 {
		t.Errorf("json=%v limit=%d", *jsonOutput, *limit)
	}
	if got := strings.Join(fs.Args(), " "); got != "title:paris tower" {
		t.Errorf("query = %q", got)
	}
}

func TestExtractDBFlag(t *testing.T) {
	tests := []struct {
		args     []string
		wantPath string
		wantRest []string
	}{
		{[]string{"--db", "/tmp/a.db", "search", "paris"}, "/tmp/a.db", []string{"search", "paris"}},
		{[]string{"search", "--db=/tmp/b.db", "paris"}, "/tmp/b.db", []string{"search", "paris"}},
		{[]string{"list"}, "", []string{"list"}},
	}
	for _, tt := range tests {
		path, rest := extractDBFlag(tt.args)
		if path != tt.wantPath || !reflect.DeepEqual(rest, tt.wantRest) {
			t.Errorf("extractDBFlag(%v) = %q, %v", tt.args, path, rest)
		}
	}
}

func sampleRows() []*statedb.SessionRow {
	now := time.Now()
	return []*statedb.SessionRow{
		{ID: "a1b2c3d4e5f6a7b8", Title: "Trip to Paris", LastUpdate: now},
		{ID: "a1b2ffff00001111", Title: "Paris Agreement notes", LastUpdate: now.Add(-time.Hour)},
		{ID: "9f8e7d6c5b4a3210", Title: "Grocery list", LastUpdate: now.Add(-2 * time.Hour)},
	}
}

func TestResolveSession(t *testing.T) {
	rows := sampleRows()

	tests := []struct {
		name       string
		identifier string
		wantID     string
		wantCode   string
	}{
		{"exact id", "9f8e7d6c5b4a3210", "9f8e7d6c5b4a3210", ""},
		{"unique prefix", "9f8e", "9f8e7d6c5b4a3210", ""},
		{"ambiguous prefix", "a1b2", "", ErrCodeAmbiguous},
		{"exact title ignores case", "grocery LIST", "9f8e7d6c5b4a3210", ""},
		{"fuzzy title", "grcry", "9f8e7d6c5b4a3210", ""},
		{"not found", "zzzzzz", "", ErrCodeNotFound},
		{"empty", "", "", ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, msg, code := ResolveSession(tt.identifier, rows)
			if tt.wantID == "" {
				if row != nil {
					t.Fatalf("expected no match, got %s", row.ID)
				}
				if code != tt.wantCode {
					t.Errorf("code = %q (%s), want %q", code, msg, tt.wantCode)
				}
				return
			}
			if row == nil {
				t.Fatalf("expected %s, got error %q (%s)", tt.wantID, msg, code)
			}
			if row.ID != tt.wantID {
				t.Errorf("resolved %s, want %s", row.ID, tt.wantID)
			}
		})
	}
}

func TestTruncateID(t *testing.T) {
	if got := TruncateID("a1b2c3d4e5f6a7b8"); got != "a1b2c3d4e5f6" {
		t.Errorf("TruncateID = %q", got)
	}
	if got := TruncateID("short"); got != "short" {
		t.Errorf("TruncateID = %q", got)
	}
}

func TestTruncateCells(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"abc", 5, "abc  "},
		{"abcdefghij", 6, "abc..."},
		{"multi\nline", 12, "multi line  "},
		{"東京旅行メモ", 8, "東京..."},
	}
	for _, tt := range tests {
		got := truncateCells(tt.in, tt.width)
		if strings.TrimRight(got, " ") != strings.TrimRight(tt.want, " ") {
			t.Errorf("truncateCells(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
		if w := runewidth.StringWidth(got); w != tt.width {
			t.Errorf("truncateCells(%q, %d) width = %d", tt.in, tt.width, w)
		}
	}
}
