package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)
	ClearCache()
	t.Cleanup(ClearCache)
	return dir
}

func TestDirHonorsEnv(t *testing.T) {
	dir := withHome(t)

	got, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	db, err := DatabasePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DatabaseFileName), db)
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	withHome(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dark", cfg.GetTheme())
	assert.True(t, cfg.Search.GetSearchSystemMessages())
	assert.Equal(t, 50, cfg.Search.GetResultLimit())

	engine := cfg.Search.EngineConfig()
	assert.Equal(t, 8, engine.BatchSize)
	assert.Equal(t, 3*time.Second, engine.FetchTimeout)

	opts := cfg.Highlight.Options(false)
	assert.Equal(t, 16.0, opts.LeftContext)
	assert.Equal(t, 40.0, opts.RightContext)
	assert.Equal(t, 56.0, opts.MaxLength)
}

func TestLoadParsesFile(t *testing.T) {
	dir := withHome(t)
	content := `
theme = "light"

[search]
case_sensitive = true
search_system_messages = false
batch_size = 4
fetch_timeout_ms = 500
fetch_rate_limit = 20.5
result_limit = -1

[highlight]
left_context = 10.0
max_length = 30.0

[logs]
debug_level = "debug"
ring_buffer_mb = 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "light", cfg.GetTheme())
	assert.Equal(t, "light", cfg.ResolveTheme())

	opts := cfg.Search.SearchOptions()
	assert.True(t, opts.CaseSensitive)
	assert.True(t, opts.ExcludeSystemMessages)
	assert.Equal(t, 0, cfg.Search.GetResultLimit())

	engine := cfg.Search.EngineConfig()
	assert.Equal(t, 4, engine.BatchSize)
	assert.Equal(t, 500*time.Millisecond, engine.FetchTimeout)
	assert.Equal(t, 20.5, engine.FetchRateLimit)

	hl := cfg.Highlight.Options(true)
	assert.True(t, hl.CaseSensitive)
	assert.Equal(t, 10.0, hl.LeftContext)
	assert.Equal(t, 40.0, hl.RightContext)
	assert.Equal(t, 30.0, hl.MaxLength)

	lc := cfg.Logs.LoggingConfig(dir, true)
	assert.Equal(t, "debug", lc.Level)
	assert.Equal(t, 2*1024*1024, lc.RingBufferSize)
	assert.True(t, lc.Debug)
}

func TestLoadParseErrorCachesDefaults(t *testing.T) {
	dir := withHome(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("theme = ["), 0o600))

	cfg, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config.toml parse error")
	assert.Equal(t, "dark", cfg.GetTheme())

	again, err := Load()
	require.NoError(t, err)
	assert.Same(t, cfg, again)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := withHome(t)
	off := false
	cfg := &Config{
		Theme:  "system",
		Search: SearchSettings{BatchSize: 3, SearchSystemMessages: &off},
	}
	require.NoError(t, Save(cfg))

	_, err := os.Stat(filepath.Join(dir, ConfigFileName+".tmp"))
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "system", loaded.GetTheme())
	assert.Equal(t, 3, loaded.Search.BatchSize)
	assert.False(t, loaded.Search.GetSearchSystemMessages())
}

func TestUnknownThemeFallsBack(t *testing.T) {
	cfg := &Config{Theme: "neon"}
	assert.Equal(t, "dark", cfg.GetTheme())
	assert.Equal(t, "dark", cfg.ResolveTheme())
}
