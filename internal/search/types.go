package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/asheshgoplani/sessionseek/internal/query"
)

// Domain errors for records crossing the repository boundary
var (
	ErrInvalidSession = errors.New("session must have a non-empty id")
	ErrInvalidMessage = errors.New("message must have a non-empty id")
)

// Session is one entry of the corpus snapshot.
type Session struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	LastUpdate time.Time `json:"last_update"`
}

// Validate checks a session read from a repository.
func (s Session) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return ErrInvalidSession
	}
	return nil
}

// Message is a single chat message of a session.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks a message read from a repository.
func (m Message) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return ErrInvalidMessage
	}
	return nil
}

// SystemPromptData is the system prompt stored alongside (not inside) a session.
type SystemPromptData struct {
	Text   string   `json:"text"`
	Images []string `json:"images,omitempty"`
}

// Repository is the read-only view of the session store the engine searches.
type Repository interface {
	// Sessions returns the corpus snapshot.
	Sessions(ctx context.Context) ([]Session, error)
	// Messages returns the messages of one session.
	Messages(ctx context.Context, sessionID string) ([]Message, error)
	// SystemPrompt returns the system prompt of one session, or nil when it has none.
	SystemPrompt(ctx context.Context, sessionID string) (*SystemPromptData, error)
}

// MatchType classifies where a session matched.
type MatchType string

const (
	MatchTitle    MatchType = "title"
	MatchMessage  MatchType = "message"
	MatchSystem   MatchType = "system"
	MatchMultiple MatchType = "multiple"
)

// SearchResult is one matching session.
type SearchResult struct {
	SessionID            string            `json:"session_id"`
	Topic                string            `json:"topic"`
	LastUpdate           time.Time         `json:"last_update"`
	MatchedMessages      []Message         `json:"matched_messages,omitempty"`
	MatchedSystemMessage *SystemPromptData `json:"matched_system_message,omitempty"`
	MatchType            MatchType         `json:"match_type"`
	MatchedTerms         []string          `json:"matched_terms"`
}

// SearchStats summarizes one search call.
type SearchStats struct {
	TitleMatches    int              `json:"title_matches"`
	MessageMatches  int              `json:"message_matches"`
	SystemMatches   int              `json:"system_matches"`
	MultipleMatches int              `json:"multiple_matches"`
	TotalMatches    int              `json:"total_matches"`
	Elapsed         time.Duration    `json:"elapsed"`
	Complexity      query.Complexity `json:"complexity"`
}

// Response is what Service.Search returns.
type Response struct {
	Results []SearchResult `json:"results"`
	Stats   SearchStats    `json:"stats"`
}

// SearchOptions tune a single search call. The zero value searches
// case-insensitively and includes system prompts.
type SearchOptions struct {
	CaseSensitive         bool
	ExcludeSystemMessages bool
}

// SessionSet is a set of session ids.
type SessionSet map[string]struct{}

// Has reports membership.
func (s SessionSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s SessionSet) intersect(other SessionSet) SessionSet {
	out := make(SessionSet)
	for id := range s {
		if other.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

func (s SessionSet) union(other SessionSet) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// MatchResult is the evaluation of one AST node.
type MatchResult struct {
	Matched  bool
	Sessions SessionSet
	Terms    []string
}

func noMatch() MatchResult {
	return MatchResult{Sessions: make(SessionSet)}
}

// mergeTerms appends terms from src not already in dst, preserving order.
func mergeTerms(dst, src []string) []string {
	for _, t := range src {
		dup := false
		for _, d := range dst {
			if d == t {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, t)
		}
	}
	return dst
}
