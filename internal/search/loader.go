package search

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/asheshgoplani/sessionseek/internal/logging"
)

// sessionContent is the fetched body of one session. failed marks a session
// whose fetch errored or timed out; it can only match on its title.
type sessionContent struct {
	messages []Message
	system   *SystemPromptData
	failed   bool
}

// contentLoader fetches message lists and system prompts on demand and keeps
// them for the duration of one search call only.
type contentLoader struct {
	repo          Repository
	timeout       time.Duration
	limiter       *rate.Limiter
	includeSystem bool

	group singleflight.Group
	mu    sync.Mutex
	cache map[string]*sessionContent
}

func newContentLoader(repo Repository, cfg Config, includeSystem bool) *contentLoader {
	l := &contentLoader{
		repo:          repo,
		timeout:       cfg.FetchTimeout,
		includeSystem: includeSystem,
		cache:         make(map[string]*sessionContent),
	}
	if cfg.FetchRateLimit > 0 {
		burst := cfg.BatchSize
		if burst < 1 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(cfg.FetchRateLimit), burst)
	}
	return l
}

// load returns the content of a session. The only error it returns is the
// cancellation of ctx; fetch failures are absorbed into content.failed.
func (l *contentLoader) load(ctx context.Context, sessionID string) (*sessionContent, error) {
	l.mu.Lock()
	if c, ok := l.cache[sessionID]; ok {
		l.mu.Unlock()
		return c, nil
	}
	l.mu.Unlock()

	v, err, _ := l.group.Do(sessionID, func() (interface{}, error) {
		c, err := l.fetch(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.cache[sessionID] = c
		l.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sessionContent), nil
}

func (l *contentLoader) fetch(ctx context.Context, sessionID string) (*sessionContent, error) {
	c := &sessionContent{}

	msgs, err := l.fetchMessages(ctx, sessionID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		l.logFailure(sessionID, "messages", err)
		c.failed = true
		return c, nil
	}
	c.messages = msgs

	if !l.includeSystem {
		return c, nil
	}
	sys, err := l.fetchSystem(ctx, sessionID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		l.logFailure(sessionID, "system_prompt", err)
		c.failed = true
		return c, nil
	}
	c.system = sys
	return c, nil
}

func (l *contentLoader) fetchMessages(ctx context.Context, sessionID string) ([]Message, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	fctx, cancel := l.withTimeout(ctx)
	defer cancel()

	msgs, err := l.repo.Messages(fctx, sessionID)
	if err != nil {
		return nil, err
	}
	if fctx.Err() != nil {
		// Repository ignored the deadline; treat the late answer as a timeout.
		return nil, fctx.Err()
	}

	valid := msgs[:0:0]
	for _, m := range msgs {
		if err := m.Validate(); err != nil {
			logging.Aggregate(logging.CompSearch, "invalid_message_dropped",
				slog.String("session_id", sessionID))
			continue
		}
		valid = append(valid, m)
	}
	return valid, nil
}

func (l *contentLoader) fetchSystem(ctx context.Context, sessionID string) (*SystemPromptData, error) {
	if err := l.wait(ctx); err != nil {
		return nil, err
	}
	fctx, cancel := l.withTimeout(ctx)
	defer cancel()

	sys, err := l.repo.SystemPrompt(fctx, sessionID)
	if err != nil {
		return nil, err
	}
	if fctx.Err() != nil {
		return nil, fctx.Err()
	}
	return sys, nil
}

func (l *contentLoader) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.timeout)
}

func (l *contentLoader) wait(ctx context.Context) error {
	if l.limiter == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

func (l *contentLoader) logFailure(sessionID, what string, err error) {
	searchLog.Debug("fetch_failed",
		slog.String("session_id", sessionID),
		slog.String("what", what),
		slog.String("error", err.Error()))
	logging.Aggregate(logging.CompSearch, "fetch_failed",
		slog.String("what", what))
}
