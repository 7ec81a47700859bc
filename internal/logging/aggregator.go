package logging

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

type aggregateKey struct {
	component string
	event     string
}

type aggregateEntry struct {
	count  int64
	fields []slog.Attr
}

// Aggregator counts high-frequency events (per-session fetch failures,
// dropped records) and logs one summary per event every interval instead of
// one line per occurrence.
type Aggregator struct {
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	entries map[aggregateKey]*aggregateEntry

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAggregator creates an aggregator flushing every intervalSecs seconds.
// With a nil logger, recorded events are counted and then dropped.
func NewAggregator(logger *slog.Logger, intervalSecs int) *Aggregator {
	if intervalSecs <= 0 {
		intervalSecs = 30
	}
	return &Aggregator{
		logger:   logger,
		interval: time.Duration(intervalSecs) * time.Second,
		entries:  make(map[aggregateKey]*aggregateEntry),
		stop:     make(chan struct{}),
	}
}

// Start launches the periodic flush.
func (a *Aggregator) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.flush()
			case <-a.stop:
				return
			}
		}
	}()
}

// Stop ends the periodic flush and writes whatever is pending.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() { close(a.stop) })
	a.wg.Wait()
	a.flush()
}

// Record counts one occurrence. The fields of the latest call are reported
// with the summary.
func (a *Aggregator) Record(component, event string, fields ...slog.Attr) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := aggregateKey{component: component, event: event}
	e := a.entries[key]
	if e == nil {
		e = &aggregateEntry{}
		a.entries[key] = e
	}
	e.count++
	if len(fields) > 0 {
		e.fields = fields
	}
}

// Pending returns the unflushed count of one event.
func (a *Aggregator) Pending(component, event string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e := a.entries[aggregateKey{component: component, event: event}]; e != nil {
		return e.count
	}
	return 0
}

func (a *Aggregator) flush() {
	a.mu.Lock()
	entries := a.entries
	a.entries = make(map[aggregateKey]*aggregateEntry)
	a.mu.Unlock()

	if a.logger == nil || len(entries) == 0 {
		return
	}

	keys := make([]aggregateKey, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].component != keys[j].component {
			return keys[i].component < keys[j].component
		}
		return keys[i].event < keys[j].event
	})

	for _, k := range keys {
		e := entries[k]
		attrs := []any{
			slog.String("component", k.component),
			slog.String("event", k.event),
			slog.Int64("count", e.count),
			slog.Int("window_seconds", int(a.interval.Seconds())),
		}
		for _, f := range e.fields {
			attrs = append(attrs, f)
		}
		a.logger.Info("event_summary", attrs...)
	}
}
