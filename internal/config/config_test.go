package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("missing file falls back to defaults", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())

		cfg, v, err := Load("")

		require.NoError(t, err)
		require.NotNil(t, v)
		assert.Equal(t, "http://localhost:8096", cfg.Server.URL)
		assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
		assert.True(t, cfg.Playback.SyncProgress)
		assert.True(t, cfg.Playback.Autoplay)
		assert.True(t, cfg.Playback.VideoTitle)
		assert.False(t, cfg.Playback.LoadUserConfig)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.True(t, cfg.Database.WALMode)
	})

	t.Run("values from file override defaults", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		content := `
server:
  url: https://media.example.com
  token: secret-token
playback:
  autoplay: false
logging:
  level: debug
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, _, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, "https://media.example.com", cfg.Server.URL)
		assert.Equal(t, "secret-token", cfg.Server.Token)
		assert.False(t, cfg.Playback.Autoplay)
		// Untouched keys keep their defaults
		assert.True(t, cfg.Playback.SyncProgress)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("malformed file is an error", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0644))

		_, _, err := Load(path)
		require.Error(t, err)
	})
}

func TestFlags(t *testing.T) {
	t.Run("reflects the seeded playback config", func(t *testing.T) {
		flags := NewFlags(&Config{Playback: PlaybackConfig{
			SyncProgress:      true,
			Autoplay:          false,
			ShowNotifications: true,
			VideoTitle:        false,
		}})

		assert.True(t, flags.SyncProgress())
		assert.False(t, flags.Autoplay())
		assert.True(t, flags.ShowNotifications())
		assert.False(t, flags.VideoTitle())
	})

	t.Run("update replaces the values", func(t *testing.T) {
		flags := NewFlags(&Config{Playback: PlaybackConfig{Autoplay: true}})
		require.True(t, flags.Autoplay())

		flags.Update(PlaybackConfig{Autoplay: false, SyncProgress: true})

		assert.False(t, flags.Autoplay())
		assert.True(t, flags.SyncProgress())
	})
}

func TestInitializeDirs(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	require.NoError(t, InitializeDirs())

	for _, dir := range []string{
		filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "nextup"),
		filepath.Join(os.Getenv("XDG_DATA_HOME"), "nextup"),
		filepath.Join(os.Getenv("XDG_STATE_HOME"), "nextup"),
	} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestDefaultConfigPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	assert.Equal(t, filepath.Join(dir, "nextup", "config.yaml"), DefaultConfigPath())
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("info"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	// Unknown levels fall back to info
	assert.Equal(t, slog.LevelInfo, parseLogLevel("nonsense"))
}
