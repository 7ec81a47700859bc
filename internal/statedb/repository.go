package statedb

import (
	"context"

	"github.com/asheshgoplani/sessionseek/internal/search"
)

// Repository exposes the database as the read-only corpus the search engine
// works on.
type Repository struct {
	db *StateDB
}

var _ search.Repository = (*Repository)(nil)

// NewRepository wraps db.
func NewRepository(db *StateDB) *Repository {
	return &Repository{db: db}
}

// Sessions returns the session snapshot, most recently updated first.
func (r *Repository) Sessions(ctx context.Context) ([]search.Session, error) {
	rows, err := r.db.LoadSessions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]search.Session, len(rows))
	for i, row := range rows {
		out[i] = search.Session{ID: row.ID, Title: row.Title, LastUpdate: row.LastUpdate}
	}
	return out, nil
}

// Messages returns the messages of one session.
func (r *Repository) Messages(ctx context.Context, sessionID string) ([]search.Message, error) {
	rows, err := r.db.LoadMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]search.Message, len(rows))
	for i, row := range rows {
		out[i] = search.Message{
			ID:        row.ID,
			Role:      row.Role,
			Content:   row.Content,
			CreatedAt: row.CreatedAt,
		}
	}
	return out, nil
}

// SystemPrompt returns the system prompt of one session, or nil.
func (r *Repository) SystemPrompt(ctx context.Context, sessionID string) (*search.SystemPromptData, error) {
	row, err := r.db.LoadSystemPrompt(ctx, sessionID)
	if err != nil || row == nil {
		return nil, err
	}
	return &search.SystemPromptData{Text: row.Text, Images: row.Images}, nil
}
