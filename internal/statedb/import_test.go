package statedb

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleExport = `{
  "sessions": [
    {
      "id": "S1",
      "title": "Trip to Paris",
      "last_update": "2026-03-01T10:00:00Z",
      "messages": [
        {"id": "m1", "role": "user", "content": "loved the Eiffel Tower", "created_at": "2026-03-01T09:00:00Z"}
      ]
    },
    {
      "id": "S2",
      "title": "Notes",
      "last_update": "2026-03-01T08:00:00Z",
      "system_prompt": {"text": "you summarize treaties", "images": ["seal.png"]},
      "messages": [
        {"id": "m2", "content": "Paris Agreement review", "created_at": "2026-03-01T12:00:00Z"},
        {"id": "", "content": "orphan"}
      ]
    },
    {"id": "", "title": "broken"}
  ]
}`

func TestImportJSON(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	stats, err := db.ImportJSON(ctx, strings.NewReader(sampleExport))
	require.NoError(t, err)
	assert.Equal(t, ImportStats{
		Sessions:        2,
		Messages:        2,
		SystemPrompts:   1,
		SkippedSessions: 1,
		SkippedMessages: 1,
	}, stats)

	rows, err := db.LoadSessions(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// S2's newest message moves its last_update past S1.
	assert.Equal(t, "S2", rows[0].ID)
	assert.True(t, rows[0].LastUpdate.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))

	msgs, err := db.LoadMessages(ctx, "S2")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Role)

	sp, err := db.LoadSystemPrompt(ctx, "S2")
	require.NoError(t, err)
	require.NotNil(t, sp)
	assert.Equal(t, []string{"seal.png"}, sp.Images)

	ts, err := db.LastModified()
	require.NoError(t, err)
	assert.NotZero(t, ts)
}

func TestImportJSONOverwrites(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, err := db.ImportJSON(ctx, strings.NewReader(sampleExport))
	require.NoError(t, err)

	update := `{"sessions":[{"id":"S2","title":"Renamed","last_update":"2026-04-01T00:00:00Z","messages":[]}]}`
	_, err = db.ImportJSON(ctx, strings.NewReader(update))
	require.NoError(t, err)

	row, err := db.LoadSession(ctx, "S2")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", row.Title)

	msgs, err := db.LoadMessages(ctx, "S2")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	sp, err := db.LoadSystemPrompt(ctx, "S2")
	require.NoError(t, err)
	assert.Nil(t, sp)
}

func TestImportJSONRejectsMalformed(t *testing.T) {
	db := newTestDB(t)
	_, err := db.ImportJSON(context.Background(), strings.NewReader(`{"sessions": [`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statedb: parse export")

	n, err := db.CountSessions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImportJSONFile(t *testing.T) {
	db := newTestDB(t)
	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleExport), 0o600))

	stats, err := db.ImportJSONFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Sessions)

	_, err = db.ImportJSONFile(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
