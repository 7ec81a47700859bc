package statedb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// SchemaVersion tracks the current database schema version.
// Bump this when adding migrations.
const SchemaVersion = 1

// ErrNotFound is returned when a requested session does not exist.
var ErrNotFound = errors.New("statedb: not found")

// StateDB wraps the SQLite store of chat sessions.
// Safe for concurrent use; other processes may write through WAL mode.
type StateDB struct {
	db   *sql.DB
	path string
}

// SessionRow is one chat session.
type SessionRow struct {
	ID         string
	Title      string
	LastUpdate time.Time
	CreatedAt  time.Time
}

// MessageRow is one chat message. Seq orders messages within a session.
type MessageRow struct {
	ID        string
	SessionID string
	Seq       int
	Role      string
	Content   string
	CreatedAt time.Time
}

// SystemPromptRow is the system prompt of a session.
type SystemPromptRow struct {
	SessionID string
	Text      string
	Images    []string
}

// Open creates or opens a SQLite database at dbPath with WAL mode and busy timeout.
func Open(dbPath string) (*StateDB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("statedb: mkdir: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("statedb: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("statedb: ping: %w", err)
	}

	return &StateDB{db: db, path: dbPath}, nil
}

// Close checkpoints WAL and closes the database.
func (s *StateDB) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// DB returns the underlying sql.DB for tests.
func (s *StateDB) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *StateDB) Path() string {
	return s.path
}

// Migrate creates tables if they don't exist and records the schema version.
func (s *StateDB) Migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("statedb: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	tables := []struct{ name, ddl string }{
		{"metadata", `
			CREATE TABLE IF NOT EXISTS metadata (
				key   TEXT PRIMARY KEY,
				value TEXT NOT NULL
			)`},
		{"sessions", `
			CREATE TABLE IF NOT EXISTS sessions (
				id          TEXT PRIMARY KEY,
				title       TEXT NOT NULL DEFAULT '',
				last_update INTEGER NOT NULL DEFAULT 0,
				created_at  INTEGER NOT NULL DEFAULT 0
			)`},
		{"messages", `
			CREATE TABLE IF NOT EXISTS messages (
				id         TEXT PRIMARY KEY,
				session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				seq        INTEGER NOT NULL DEFAULT 0,
				role       TEXT NOT NULL DEFAULT 'user',
				content    TEXT NOT NULL DEFAULT '',
				created_at INTEGER NOT NULL DEFAULT 0
			)`},
		{"messages index", `
			CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq)`},
		{"system_prompts", `
			CREATE TABLE IF NOT EXISTS system_prompts (
				session_id TEXT PRIMARY KEY REFERENCES sessions(id) ON DELETE CASCADE,
				text       TEXT NOT NULL DEFAULT '',
				images     TEXT NOT NULL DEFAULT '[]'
			)`},
	}
	for _, tbl := range tables {
		if _, err := tx.Exec(tbl.ddl); err != nil {
			return fmt.Errorf("statedb: create %s: %w", tbl.name, err)
		}
	}

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)`,
		strconv.Itoa(SchemaVersion),
	); err != nil {
		return fmt.Errorf("statedb: set schema version: %w", err)
	}

	return tx.Commit()
}

// --- Sessions ---

// CountSessions returns the number of stored sessions.
func (s *StateDB) CountSessions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&n); err != nil {
		return 0, fmt.Errorf("statedb: count sessions: %w", err)
	}
	return n, nil
}

// SaveSession inserts or updates a session. Its messages and system prompt
// are kept.
func (s *StateDB) SaveSession(ctx context.Context, row *SessionRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, title, last_update, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			last_update = excluded.last_update,
			created_at = excluded.created_at
	`, row.ID, row.Title, toMillis(row.LastUpdate), toMillis(row.CreatedAt))
	if err != nil {
		return fmt.Errorf("statedb: save session %s: %w", row.ID, err)
	}
	return nil
}

// LoadSessions returns every session, most recently updated first.
func (s *StateDB) LoadSessions(ctx context.Context) ([]*SessionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, last_update, created_at
		FROM sessions ORDER BY last_update DESC, rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("statedb: load sessions: %w", err)
	}
	defer rows.Close()

	var result []*SessionRow
	for rows.Next() {
		r := &SessionRow{}
		var updated, created int64
		if err := rows.Scan(&r.ID, &r.Title, &updated, &created); err != nil {
			return nil, fmt.Errorf("statedb: scan session: %w", err)
		}
		r.LastUpdate = fromMillis(updated)
		r.CreatedAt = fromMillis(created)
		result = append(result, r)
	}
	return result, rows.Err()
}

// LoadSession returns one session or ErrNotFound.
func (s *StateDB) LoadSession(ctx context.Context, id string) (*SessionRow, error) {
	r := &SessionRow{}
	var updated, created int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, last_update, created_at FROM sessions WHERE id = ?", id,
	).Scan(&r.ID, &r.Title, &updated, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("statedb: load session %s: %w", id, err)
	}
	r.LastUpdate = fromMillis(updated)
	r.CreatedAt = fromMillis(created)
	return r, nil
}

// DeleteSession removes a session with its messages and system prompt.
func (s *StateDB) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("statedb: delete session %s: %w", id, err)
	}
	return nil
}

// --- Messages ---

// ReplaceMessages swaps the full message list of a session in one transaction.
func (s *StateDB) ReplaceMessages(ctx context.Context, sessionID string, msgs []*MessageRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("statedb: begin replace messages: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := replaceMessagesTx(ctx, tx, sessionID, msgs); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceMessagesTx(ctx context.Context, tx *sql.Tx, sessionID string, msgs []*MessageRow) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("statedb: clear messages %s: %w", sessionID, err)
	}
	if len(msgs) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO messages (id, session_id, seq, role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("statedb: prepare messages: %w", err)
	}
	defer stmt.Close()

	for i, m := range msgs {
		seq := m.Seq
		if seq == 0 {
			seq = i + 1
		}
		if _, err := stmt.ExecContext(ctx,
			m.ID, sessionID, seq, m.Role, m.Content, toMillis(m.CreatedAt),
		); err != nil {
			return fmt.Errorf("statedb: insert message %s: %w", m.ID, err)
		}
	}
	return nil
}

// LoadMessages returns the messages of a session in conversation order.
func (s *StateDB) LoadMessages(ctx context.Context, sessionID string) ([]*MessageRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, seq, role, content, created_at
		FROM messages WHERE session_id = ? ORDER BY seq, rowid
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("statedb: load messages %s: %w", sessionID, err)
	}
	defer rows.Close()

	var result []*MessageRow
	for rows.Next() {
		m := &MessageRow{}
		var created int64
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Seq, &m.Role, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("statedb: scan message: %w", err)
		}
		m.CreatedAt = fromMillis(created)
		result = append(result, m)
	}
	return result, rows.Err()
}

// --- System prompts ---

// SaveSystemPrompt inserts or replaces the system prompt of a session.
func (s *StateDB) SaveSystemPrompt(ctx context.Context, row *SystemPromptRow) error {
	images, err := marshalImages(row.Images)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO system_prompts (session_id, text, images) VALUES (?, ?, ?)",
		row.SessionID, row.Text, images,
	); err != nil {
		return fmt.Errorf("statedb: save system prompt %s: %w", row.SessionID, err)
	}
	return nil
}

// LoadSystemPrompt returns the system prompt of a session, or nil when the
// session has none.
func (s *StateDB) LoadSystemPrompt(ctx context.Context, sessionID string) (*SystemPromptRow, error) {
	row := &SystemPromptRow{SessionID: sessionID}
	var images string
	err := s.db.QueryRowContext(ctx,
		"SELECT text, images FROM system_prompts WHERE session_id = ?", sessionID,
	).Scan(&row.Text, &images)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("statedb: load system prompt %s: %w", sessionID, err)
	}
	if images != "" {
		if err := json.Unmarshal([]byte(images), &row.Images); err != nil {
			return nil, fmt.Errorf("statedb: decode images %s: %w", sessionID, err)
		}
	}
	return row, nil
}

func marshalImages(images []string) (string, error) {
	if len(images) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(images)
	if err != nil {
		return "", fmt.Errorf("statedb: encode images: %w", err)
	}
	return string(data), nil
}

// --- Metadata ---

// SetMeta sets a key-value pair in the metadata table.
func (s *StateDB) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta gets a value from the metadata table. Returns "" if not found.
func (s *StateDB) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// --- Change detection ---

// Touch bumps the change stamp that watchers poll.
func (s *StateDB) Touch() error {
	return s.SetMeta("last_modified", strconv.FormatInt(time.Now().UnixNano(), 10))
}

// LastModified returns the change stamp, or 0 if nothing was written yet.
func (s *StateDB) LastModified() (int64, error) {
	val, err := s.GetMeta("last_modified")
	if err != nil || val == "" {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
