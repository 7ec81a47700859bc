package ui

import (
	"context"
	"log/slog"
	"sync"

	dark "github.com/thiagokokada/dark-mode-go"
)

// ThemeWatcher follows the OS dark mode setting while the theme is "system".
type ThemeWatcher struct {
	changeCh  chan bool // true=dark
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewThemeWatcher starts watching. It returns nil when the platform cannot
// report dark mode changes.
func NewThemeWatcher(parentCtx context.Context) *ThemeWatcher {
	ctx, cancel := context.WithCancel(parentCtx)

	events, errs, err := dark.WatchDarkMode(ctx)
	if err != nil {
		cancel()
		uiLog.Warn("theme_watcher_init_failed", slog.String("error", err.Error()))
		return nil
	}

	tw := &ThemeWatcher{
		changeCh: make(chan bool, 1),
		closeCh:  make(chan struct{}),
	}
	go tw.watchLoop(cancel, events, errs)
	return tw
}

func (tw *ThemeWatcher) watchLoop(cancel context.CancelFunc, events <-chan bool, errs <-chan error) {
	defer cancel()
	for {
		select {
		case <-tw.closeCh:
			return
		case isDark, ok := <-events:
			if !ok {
				return
			}
			select {
			case tw.changeCh <- isDark:
			default:
			}
		case err, ok := <-errs:
			if ok && err != nil {
				uiLog.Warn("theme_watcher_error", slog.String("error", err.Error()))
			}
		}
	}
}

// Changes delivers dark mode changes; unread values are dropped.
func (tw *ThemeWatcher) Changes() <-chan bool {
	return tw.changeCh
}

// Close stops the watcher. Safe to call multiple times.
func (tw *ThemeWatcher) Close() {
	tw.closeOnce.Do(func() {
		close(tw.closeCh)
	})
}

func themeFor(isDark bool) string {
	if isDark {
		return string(ThemeDark)
	}
	return string(ThemeLight)
}
