package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// fakeRepo is an in-memory Repository with injectable failures and delays.
type fakeRepo struct {
	mu       sync.Mutex
	sessions []Session
	messages map[string][]Message
	system   map[string]*SystemPromptData

	failMessages map[string]bool
	delay        map[string]time.Duration
	sessionsErr  error

	// blockFirst makes the first Messages call wait for ctx cancellation.
	blockFirst bool
	started    chan struct{}
	startOnce  sync.Once

	sessionCalls atomic.Int32
	fetches      atomic.Int32
	inflight     atomic.Int32
	maxInflight  atomic.Int32
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		messages:     make(map[string][]Message),
		system:       make(map[string]*SystemPromptData),
		failMessages: make(map[string]bool),
		delay:        make(map[string]time.Duration),
		started:      make(chan struct{}),
	}
}

func (r *fakeRepo) add(id, title string, updated time.Time, contents ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, Session{ID: id, Title: title, LastUpdate: updated})
	for i, c := range contents {
		r.messages[id] = append(r.messages[id], Message{
			ID:      id + "-m" + string(rune('a'+i)),
			Role:    "user",
			Content: c,
		})
	}
}

func (r *fakeRepo) Sessions(ctx context.Context) ([]Session, error) {
	r.sessionCalls.Add(1)
	if r.sessionsErr != nil {
		return nil, r.sessionsErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Session(nil), r.sessions...), nil
}

func (r *fakeRepo) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	n := r.inflight.Add(1)
	defer r.inflight.Add(-1)
	for {
		peak := r.maxInflight.Load()
		if n <= peak || r.maxInflight.CompareAndSwap(peak, n) {
			break
		}
	}
	call := r.fetches.Add(1)

	if r.blockFirst && call == 1 {
		r.startOnce.Do(func() { close(r.started) })
		<-ctx.Done()
		return nil, ctx.Err()
	}

	r.mu.Lock()
	delay := r.delay[sessionID]
	fail := r.failMessages[sessionID]
	msgs := append([]Message(nil), r.messages[sessionID]...)
	r.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("disk on fire")
	}
	return msgs, nil
}

func (r *fakeRepo) SystemPrompt(ctx context.Context, sessionID string) (*SystemPromptData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.system[sessionID], nil
}
