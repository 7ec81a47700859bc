package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/sessionseek/internal/config"
	"github.com/asheshgoplani/sessionseek/internal/highlight"
	"github.com/asheshgoplani/sessionseek/internal/search"
)

const exportFixture = `{
  "sessions": [
    {
      "id": "s1",
      "title": "Trip to Paris",
      "last_update": "2026-03-01T10:00:00Z",
      "messages": [
        {"id": "m1", "role": "user", "content": "I loved the Eiffel Tower", "created_at": "2026-03-01T09:00:00Z"}
      ]
    },
    {
      "id": "s2",
      "title": "Notes",
      "last_update": "2026-03-01T11:00:00Z",
      "system_prompt": {"text": "Summarize the Paris Agreement"},
      "messages": []
    }
  ]
}`

func newTestEnv(t *testing.T) *cliEnv {
	t.Helper()
	return &cliEnv{
		cfg:    &config.Config{},
		dbPath: filepath.Join(t.TempDir(), "sessions.db"),
	}
}

func TestImportThenSearch(t *testing.T) {
	env := newTestEnv(t)
	exportPath := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(exportPath, []byte(exportFixture), 0o600))

	require.Equal(t, 0, handleImport(context.Background(), env, []string{"-q", exportPath}))

	db, err := env.openDB()
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.LoadSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "s2", rows[0].ID, "most recently updated first")

	svc := env.newService(db, false)
	resp, err := svc.Search(context.Background(), "paris", search.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, search.MatchSystem, resp.Results[0].MatchType)
	assert.Equal(t, search.MatchTitle, resp.Results[1].MatchType)

	resp, err = svc.Search(context.Background(), "paris", search.SearchOptions{ExcludeSystemMessages: true})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "s1", resp.Results[0].SessionID)
}

func TestImportRequiresOneFile(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, 2, handleImport(context.Background(), env, []string{"-q"}))
}

func TestFormatSessionTable(t *testing.T) {
	out := formatSessionTable(sampleRows())
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.True(t, strings.HasPrefix(lines[0], "TITLE"))
	assert.Contains(t, lines[1], "Trip to Paris")
	assert.Contains(t, lines[1], "a1b2c3d4e5f6")
	assert.Contains(t, out, "Total: 3 sessions")

	assert.Equal(t, "No sessions found.\n", formatSessionTable(nil))
}

func TestFormatTranscript(t *testing.T) {
	data := showJSON{
		sessionJSON: sessionJSON{ID: "s1", Title: "Trip to Paris", LastUpdate: time.Now()},
		SystemPrompt: &systemPromptJSON{
			Text:   "You plan trips to Paris",
			Images: []string{"map.png"},
		},
		Messages: []messageJSON{
			{ID: "m1", Role: "user", Content: "Is the Louvre open on Tuesday? I land in Paris at noon."},
		},
	}
	h := highlight.New(highlight.DefaultOptions())

	out := formatTranscript(data, []string{"paris"}, h, false)
	assert.Contains(t, out, "Trip to [Paris]")
	assert.Contains(t, out, "You plan trips to [Paris]")
	assert.Contains(t, out, "image: map.png")
	// Transcripts are never windowed.
	assert.Contains(t, out, "Is the Louvre open on Tuesday? I land in [Paris] at noon.")

	plain := formatTranscript(data, nil, h, false)
	assert.NotContains(t, plain, "[Paris]")
}
