package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	dark "github.com/thiagokokada/dark-mode-go"

	"github.com/asheshgoplani/sessionseek/internal/highlight"
	"github.com/asheshgoplani/sessionseek/internal/logging"
	"github.com/asheshgoplani/sessionseek/internal/search"
)

const (
	// HomeEnv overrides the data directory (default ~/.sessionseek).
	HomeEnv = "SESSIONSEEK_HOME"

	ConfigFileName   = "config.toml"
	DatabaseFileName = "sessions.db"
)

// Config is the user configuration in config.toml. Zero values mean "use the
// default"; read settings through the getters.
type Config struct {
	// Theme is "dark", "light" or "system"
	Theme string `toml:"theme"`

	Search    SearchSettings    `toml:"search"`
	Highlight HighlightSettings `toml:"highlight"`
	Logs      LogSettings       `toml:"logs"`
}

// SearchSettings configures the search engine.
type SearchSettings struct {
	// CaseSensitive makes matching case-sensitive (default: false)
	CaseSensitive bool `toml:"case_sensitive"`

	// SearchSystemMessages includes system prompts in matching (default: true)
	SearchSystemMessages *bool `toml:"search_system_messages,omitempty"`

	// BatchSize is how many sessions are fetched concurrently (default: 8)
	BatchSize int `toml:"batch_size"`

	// FetchTimeoutMs bounds each repository fetch (default: 3000)
	FetchTimeoutMs int `toml:"fetch_timeout_ms"`

	// FetchRateLimit caps fetches per second, 0 = unlimited
	FetchRateLimit float64 `toml:"fetch_rate_limit"`

	// ResultLimit caps results printed by the CLI, 0 = all (default: 50)
	ResultLimit int `toml:"result_limit"`
}

// HighlightSettings configures snippet windows, in display-width units.
type HighlightSettings struct {
	LeftContext  float64 `toml:"left_context"`
	RightContext float64 `toml:"right_context"`
	MaxLength    float64 `toml:"max_length"`
}

// LogSettings configures debug logging.
type LogSettings struct {
	// DebugLevel is "debug", "info" (default), "warn" or "error"
	DebugLevel string `toml:"debug_level"`

	// DebugFormat is "json" (default) or "text"
	DebugFormat string `toml:"debug_format"`

	// DebugMaxMB is the size of debug.log before rotation (default: 10)
	DebugMaxMB int `toml:"debug_max_mb"`

	// DebugBackups is the number of rotated files kept (default: 5)
	DebugBackups int `toml:"debug_backups"`

	// DebugRetentionDays is how long rotated files are kept (default: 10)
	DebugRetentionDays int `toml:"debug_retention_days"`

	// DebugCompress gzips rotated files
	DebugCompress bool `toml:"debug_compress"`

	// RingBufferMB is the in-memory crash dump buffer (default: 4)
	RingBufferMB int `toml:"ring_buffer_mb"`

	// AggregateIntervalSeconds is the event summary interval (default: 30)
	AggregateIntervalSeconds int `toml:"aggregate_interval_seconds"`

	// PprofEnabled serves pprof on localhost:6060 in debug mode
	PprofEnabled bool `toml:"pprof_enabled"`
}

// Dir returns the data directory.
func Dir() (string, error) {
	if d := os.Getenv(HomeEnv); d != "" {
		return d, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".sessionseek"), nil
}

// Path returns the path of config.toml.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// DatabasePath returns the default session database path.
func DatabasePath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DatabaseFileName), nil
}

var (
	cache   *Config
	cacheMu sync.RWMutex
)

// Load reads config.toml once and caches it. A missing file yields the
// defaults. On a parse error the defaults are cached and the error returned
// so the caller can show it.
func Load() (*Config, error) {
	cacheMu.RLock()
	if cache != nil {
		defer cacheMu.RUnlock()
		return cache, nil
	}
	cacheMu.RUnlock()

	cacheMu.Lock()
	defer cacheMu.Unlock()
	if cache != nil {
		return cache, nil
	}

	path, err := Path()
	if err != nil {
		cache = &Config{}
		return cache, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cache = &Config{}
		return cache, nil
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		cache = &Config{}
		return cache, fmt.Errorf("config.toml parse error: %w", err)
	}
	cache = &cfg
	return cache, nil
}

// Reload drops the cache and reads config.toml again.
func Reload() (*Config, error) {
	ClearCache()
	return Load()
}

// ClearCache forgets the cached config; the next Load reads from disk.
func ClearCache() {
	cacheMu.Lock()
	cache = nil
	cacheMu.Unlock()
}

// Save writes cfg to config.toml atomically (temp file, fsync, rename) and
// clears the cache.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# sessionseek configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	_ = syncFile(tmpPath)
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize config save: %w", err)
	}

	ClearCache()
	return nil
}

func syncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// GetTheme returns the configured theme, defaulting to "dark".
func (c *Config) GetTheme() string {
	switch c.Theme {
	case "dark", "light", "system":
		return c.Theme
	default:
		return "dark"
	}
}

// ResolveTheme resolves "system" to "dark" or "light" using the OS setting,
// falling back to dark when detection fails.
func (c *Config) ResolveTheme() string {
	theme := c.GetTheme()
	if theme != "system" {
		return theme
	}
	isDark, err := dark.IsDarkMode()
	if err != nil || isDark {
		return "dark"
	}
	return "light"
}

// GetSearchSystemMessages defaults to true.
func (s *SearchSettings) GetSearchSystemMessages() bool {
	if s.SearchSystemMessages == nil {
		return true
	}
	return *s.SearchSystemMessages
}

// GetResultLimit defaults to 50; a negative value means no limit.
func (s *SearchSettings) GetResultLimit() int {
	switch {
	case s.ResultLimit < 0:
		return 0
	case s.ResultLimit == 0:
		return 50
	default:
		return s.ResultLimit
	}
}

// EngineConfig converts the settings into engine tunables.
func (s *SearchSettings) EngineConfig() search.Config {
	cfg := search.DefaultConfig()
	if s.BatchSize > 0 {
		cfg.BatchSize = s.BatchSize
	}
	if s.FetchTimeoutMs > 0 {
		cfg.FetchTimeout = time.Duration(s.FetchTimeoutMs) * time.Millisecond
	}
	if s.FetchRateLimit > 0 {
		cfg.FetchRateLimit = s.FetchRateLimit
	}
	return cfg
}

// SearchOptions returns the per-call defaults.
func (s *SearchSettings) SearchOptions() search.SearchOptions {
	return search.SearchOptions{
		CaseSensitive:         s.CaseSensitive,
		ExcludeSystemMessages: !s.GetSearchSystemMessages(),
	}
}

// Options converts the settings into highlighter tunables. Unset values use
// the highlighter defaults; case sensitivity follows the search settings.
func (h *HighlightSettings) Options(caseSensitive bool) highlight.Options {
	opts := highlight.DefaultOptions()
	opts.CaseSensitive = caseSensitive
	if h.LeftContext > 0 {
		opts.LeftContext = h.LeftContext
	}
	if h.RightContext > 0 {
		opts.RightContext = h.RightContext
	}
	if h.MaxLength > 0 {
		opts.MaxLength = h.MaxLength
	}
	return opts
}

// LoggingConfig converts the settings into a logging config writing to dir.
func (l *LogSettings) LoggingConfig(dir string, debug bool) logging.Config {
	ring := l.RingBufferMB
	if ring <= 0 {
		ring = 4
	}
	return logging.Config{
		LogDir:                dir,
		Level:                 l.DebugLevel,
		Format:                l.DebugFormat,
		MaxSizeMB:             l.DebugMaxMB,
		MaxBackups:            l.DebugBackups,
		MaxAgeDays:            l.DebugRetentionDays,
		Compress:              l.DebugCompress,
		RingBufferSize:        ring * 1024 * 1024,
		AggregateIntervalSecs: l.AggregateIntervalSeconds,
		PprofEnabled:          l.PprofEnabled && debug,
		Debug:                 debug,
	}
}
