package statedb

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/asheshgoplani/sessionseek/internal/logging"
	"github.com/asheshgoplani/sessionseek/internal/platform"
)

var watcherLog = logging.ForComponent(logging.CompStorage)

const (
	defaultPollInterval = 2 * time.Second
	debounceDelay       = 150 * time.Millisecond
)

// Watcher signals when the database changes on disk. It listens for file
// events on the database and its WAL, and also polls the last_modified stamp
// because file events are unreliable on some filesystems (9p, NFS, WSL).
type Watcher struct {
	db           *StateDB
	fs           *fsnotify.Watcher
	pollInterval time.Duration

	changes   chan struct{}
	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu           sync.Mutex
	lastModified int64
	debounce     *time.Timer
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithPollInterval overrides how often the change stamp is polled.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// NewWatcher creates a watcher for db. If file events are unavailable, or
// the database lives on a filesystem where they are unreliable, the watcher
// falls back to polling.
func NewWatcher(db *StateDB, opts ...WatcherOption) *Watcher {
	lastMod, _ := db.LastModified()
	w := &Watcher{
		db:           db,
		pollInterval: defaultPollInterval,
		changes:      make(chan struct{}, 1),
		closeCh:      make(chan struct{}),
		lastModified: lastMod,
	}
	for _, opt := range opts {
		opt(w)
	}

	if ok, reason := platform.FileEventsReliable(db.Path()); !ok {
		watcherLog.Info("watcher_polling_only", slog.String("reason", reason))
		return w
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		watcherLog.Debug("watcher_fsnotify_unavailable", slog.String("error", err.Error()))
		return w
	}
	if err := fsw.Add(filepath.Dir(db.Path())); err != nil {
		watcherLog.Debug("watcher_add_failed",
			slog.String("dir", filepath.Dir(db.Path())),
			slog.String("error", err.Error()))
		_ = fsw.Close()
		return w
	}
	w.fs = fsw
	return w
}

// Start begins watching (non-blocking).
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.pollLoop()
	if w.fs != nil {
		w.wg.Add(1)
		go w.eventLoop()
	}
}

// Changes delivers one signal per detected change; bursts are coalesced.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Close stops the watcher. Safe to call multiple times.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closeCh)
		if w.fs != nil {
			err = w.fs.Close()
		}
		w.mu.Lock()
		if w.debounce != nil {
			w.debounce.Stop()
		}
		w.mu.Unlock()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) pollLoop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.closeCh:
			return
		case <-ticker.C:
			w.checkStamp()
		}
	}
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()
	base := filepath.Base(w.db.Path())

	for {
		select {
		case <-w.closeCh:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			name := filepath.Base(ev.Name)
			if !strings.HasPrefix(name, base) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleNotify()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			watcherLog.Warn("watcher_error", slog.String("error", err.Error()))
		}
	}
}

// scheduleNotify coalesces bursts of file events into one signal.
func (w *Watcher) scheduleNotify() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(debounceDelay, func() {
		if ts, err := w.db.LastModified(); err == nil {
			w.mu.Lock()
			if ts > w.lastModified {
				w.lastModified = ts
			}
			w.mu.Unlock()
		}
		watcherLog.Debug("watcher_file_changed")
		w.notify()
	})
}

func (w *Watcher) checkStamp() {
	ts, err := w.db.LastModified()
	if err != nil {
		watcherLog.Debug("watcher_poll_failed", slog.String("error", err.Error()))
		return
	}

	w.mu.Lock()
	changed := ts > w.lastModified
	if changed {
		w.lastModified = ts
	}
	w.mu.Unlock()

	if changed {
		watcherLog.Debug("watcher_db_changed", slog.Int64("timestamp", ts))
		w.notify()
	}
}

func (w *Watcher) notify() {
	select {
	case <-w.closeCh:
		return
	default:
	}
	select {
	case w.changes <- struct{}{}:
	default:
	}
}
