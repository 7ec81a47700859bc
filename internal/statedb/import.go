package statedb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// exportFile is the JSON export format accepted by ImportJSON.
type exportFile struct {
	Sessions []exportSession `json:"sessions"`
}

type exportSession struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	LastUpdate   time.Time       `json:"last_update"`
	CreatedAt    time.Time       `json:"created_at,omitempty"`
	SystemPrompt *exportPrompt   `json:"system_prompt,omitempty"`
	Messages     []exportMessage `json:"messages"`
}

type exportPrompt struct {
	Text   string   `json:"text"`
	Images []string `json:"images,omitempty"`
}

type exportMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ImportStats reports what ImportJSON stored and skipped.
type ImportStats struct {
	Sessions        int `json:"sessions"`
	Messages        int `json:"messages"`
	SystemPrompts   int `json:"system_prompts"`
	SkippedSessions int `json:"skipped_sessions"`
	SkippedMessages int `json:"skipped_messages"`
}

// ImportJSON loads an export into the database in one transaction. Sessions
// already present are overwritten along with their messages. Records without
// an id are skipped and counted.
func (s *StateDB) ImportJSON(ctx context.Context, r io.Reader) (ImportStats, error) {
	var stats ImportStats
	var file exportFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return stats, fmt.Errorf("statedb: parse export: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("statedb: begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, es := range file.Sessions {
		if strings.TrimSpace(es.ID) == "" {
			stats.SkippedSessions++
			continue
		}

		lastUpdate := es.LastUpdate
		msgs := make([]*MessageRow, 0, len(es.Messages))
		for i, em := range es.Messages {
			if strings.TrimSpace(em.ID) == "" {
				stats.SkippedMessages++
				continue
			}
			role := em.Role
			if role == "" {
				role = "user"
			}
			msgs = append(msgs, &MessageRow{
				ID:        em.ID,
				SessionID: es.ID,
				Seq:       i + 1,
				Role:      role,
				Content:   em.Content,
				CreatedAt: em.CreatedAt,
			})
			if em.CreatedAt.After(lastUpdate) {
				lastUpdate = em.CreatedAt
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, title, last_update, created_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				last_update = excluded.last_update,
				created_at = excluded.created_at
		`, es.ID, es.Title, toMillis(lastUpdate), toMillis(es.CreatedAt)); err != nil {
			return stats, fmt.Errorf("statedb: import session %s: %w", es.ID, err)
		}

		if err := replaceMessagesTx(ctx, tx, es.ID, msgs); err != nil {
			return stats, err
		}
		stats.Messages += len(msgs)

		if _, err := tx.ExecContext(ctx, "DELETE FROM system_prompts WHERE session_id = ?", es.ID); err != nil {
			return stats, fmt.Errorf("statedb: clear system prompt %s: %w", es.ID, err)
		}
		if es.SystemPrompt != nil {
			images, err := marshalImages(es.SystemPrompt.Images)
			if err != nil {
				return stats, err
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO system_prompts (session_id, text, images) VALUES (?, ?, ?)",
				es.ID, es.SystemPrompt.Text, images,
			); err != nil {
				return stats, fmt.Errorf("statedb: import system prompt %s: %w", es.ID, err)
			}
			stats.SystemPrompts++
		}
		stats.Sessions++
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO metadata (key, value) VALUES ('last_modified', ?)",
		fmt.Sprintf("%d", time.Now().UnixNano()),
	); err != nil {
		return stats, fmt.Errorf("statedb: touch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("statedb: commit import: %w", err)
	}
	return stats, nil
}

// ImportJSONFile is ImportJSON over a file path.
func (s *StateDB) ImportJSONFile(ctx context.Context, path string) (ImportStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportStats{}, fmt.Errorf("statedb: open export: %w", err)
	}
	defer f.Close()
	return s.ImportJSON(ctx, f)
}
