package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/asheshgoplani/sessionseek/internal/highlight"
	"github.com/asheshgoplani/sessionseek/internal/logging"
	"github.com/asheshgoplani/sessionseek/internal/query"
)

// Service is the entry point used by the CLI and the TUI. At most one search
// is live per Service: starting a search cancels the previous one.
type Service struct {
	repo        Repository
	cfg         Config
	highlighter *highlight.Highlighter

	mu      sync.Mutex
	current *searchToken
}

// searchToken is the cancellation handle of the live search.
type searchToken struct {
	cancel context.CancelFunc
}

// Option configures a Service.
type Option func(*Service)

// WithConfig overrides the engine tunables.
func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.cfg = cfg.withDefaults()
	}
}

// WithHighlightOptions overrides the highlighter tunables.
func WithHighlightOptions(opts highlight.Options) Option {
	return func(s *Service) {
		s.highlighter = highlight.New(opts)
	}
}

// NewService creates a search service over repo.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		cfg:         DefaultConfig(),
		highlighter: highlight.New(highlight.DefaultOptions()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs q against the current corpus. A malformed query returns a
// *query.ParseError. A search that gets canceled, either through ctx, through
// CancelCurrentSearch, or by a newer Search call, returns an empty response
// and a nil error.
func (s *Service) Search(ctx context.Context, q string, opts SearchOptions) (*Response, error) {
	start := time.Now()
	q = strings.TrimSpace(q)

	ctx, cancel := context.WithCancel(ctx)
	tok := &searchToken{cancel: cancel}
	s.replaceToken(tok)
	defer s.release(tok)

	if q == "" {
		return emptyResponse(query.ComplexitySimple, 0), nil
	}

	complexity := query.Classify(q)
	node, err := query.Parse(q)
	if err != nil {
		searchLog.Debug("parse_failed", slog.String("error", err.Error()))
		return nil, err
	}

	sessions, err := s.snapshot(ctx)
	if err != nil {
		if ctx.Err() == nil {
			searchLog.Warn("snapshot_failed", slog.String("error", err.Error()))
		}
		return emptyResponse(complexity, time.Since(start)), nil
	}

	exec := NewExecutor(sessions, s.repo, s.cfg, opts)
	match, err := exec.Evaluate(ctx, node)
	if err != nil {
		return s.abandoned(ctx, err, complexity, start)
	}

	var results []SearchResult
	if match.Matched {
		results, err = exec.BuildResults(ctx, match.Sessions, query.Terms(node))
		if err != nil {
			return s.abandoned(ctx, err, complexity, start)
		}
	}
	// A newer search may have taken over after the last checkpoint.
	if ctx.Err() != nil {
		return emptyResponse(complexity, time.Since(start)), nil
	}

	resp := &Response{Results: results, Stats: computeStats(results, complexity, time.Since(start))}
	if resp.Results == nil {
		resp.Results = []SearchResult{}
	}

	searchLog.Info("search_complete",
		slog.String("complexity", string(complexity)),
		slog.Int("sessions", len(sessions)),
		slog.Int("results", resp.Stats.TotalMatches),
		slog.Duration("elapsed", resp.Stats.Elapsed))
	return resp, nil
}

// Validate compiles q without executing it.
func (s *Service) Validate(q string) query.ValidationResult {
	return query.Validate(q)
}

// CancelCurrentSearch abandons the running search, if any.
func (s *Service) CancelCurrentSearch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.cancel()
		s.current = nil
	}
}

// Highlight splits text into highlighted and plain segments for display.
func (s *Service) Highlight(text string, terms []string, ctxType highlight.ContextType) []highlight.Segment {
	return s.highlighter.Highlight(text, terms, ctxType)
}

func (s *Service) replaceToken(tok *searchToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.cancel()
	}
	s.current = tok
}

// release cancels tok and clears it if it is still the live search.
func (s *Service) release(tok *searchToken) {
	tok.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == tok {
		s.current = nil
	}
}

func (s *Service) abandoned(ctx context.Context, err error, complexity query.Complexity, start time.Time) (*Response, error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		searchLog.Debug("search_canceled", slog.String("complexity", string(complexity)))
		return emptyResponse(complexity, time.Since(start)), nil
	}
	searchLog.Error("search_failed", slog.String("error", err.Error()))
	return emptyResponse(complexity, time.Since(start)), nil
}

// snapshot reads the session list and drops entries that fail validation or
// repeat an earlier id.
func (s *Service) snapshot(ctx context.Context) ([]Session, error) {
	raw, err := s.repo.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(raw))
	sessions := make([]Session, 0, len(raw))
	for _, sess := range raw {
		if err := sess.Validate(); err != nil {
			logging.Aggregate(logging.CompSearch, "invalid_session_dropped")
			continue
		}
		if _, dup := seen[sess.ID]; dup {
			logging.Aggregate(logging.CompSearch, "duplicate_session_dropped")
			continue
		}
		seen[sess.ID] = struct{}{}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

func emptyResponse(complexity query.Complexity, elapsed time.Duration) *Response {
	return &Response{
		Results: []SearchResult{},
		Stats:   SearchStats{Complexity: complexity, Elapsed: elapsed},
	}
}

func computeStats(results []SearchResult, complexity query.Complexity, elapsed time.Duration) SearchStats {
	stats := SearchStats{
		TotalMatches: len(results),
		Elapsed:      elapsed,
		Complexity:   complexity,
	}
	for _, r := range results {
		switch r.MatchType {
		case MatchTitle:
			stats.TitleMatches++
		case MatchMessage:
			stats.MessageMatches++
		case MatchSystem:
			stats.SystemMatches++
		case MatchMultiple:
			stats.MultipleMatches++
		}
	}
	return stats
}
