package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Playback PlaybackConfig `mapstructure:"playback"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Advanced AdvancedConfig `mapstructure:"advanced"`
}

// ServerConfig identifies the Jellyfin server and credential
type ServerConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	UserID  string        `mapstructure:"user_id"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PlaybackConfig holds the playback preference flags
type PlaybackConfig struct {
	SyncProgress      bool `mapstructure:"sync_progress"`
	Autoplay          bool `mapstructure:"autoplay"`
	ShowNotifications bool `mapstructure:"show_notifications"`
	VideoTitle        bool `mapstructure:"video_title"`
	LoadUserConfig    bool `mapstructure:"load_user_config"` // load the user's mpv.conf
}

// DatabaseConfig holds local sqlite settings
type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
	WALMode        bool   `mapstructure:"wal_mode"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // text or json
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// AdvancedConfig holds debugging options
type AdvancedConfig struct {
	Debug bool `mapstructure:"debug"`
}

// SetDefaults registers default values on the given viper instance
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.url", "http://localhost:8096")
	v.SetDefault("server.token", "")
	v.SetDefault("server.user_id", "")
	v.SetDefault("server.timeout", 30*time.Second)

	v.SetDefault("playback.sync_progress", true)
	v.SetDefault("playback.autoplay", true)
	v.SetDefault("playback.show_notifications", true)
	v.SetDefault("playback.video_title", true)
	v.SetDefault("playback.load_user_config", false)

	v.SetDefault("database.path", filepath.Join(getDataDir(), "nextup", "nextup.db"))
	v.SetDefault("database.max_connections", 4)
	v.SetDefault("database.wal_mode", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", filepath.Join(getStateDir(), "nextup", "nextup.log"))
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)
}

// Load reads configuration from the given file (or the default location when
// empty) and returns the parsed config along with the viper instance so the
// caller can watch for changes.
func Load(cfgFile string) (*Config, *viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(getConfigDir(), "nextup"))
	}

	v.SetEnvPrefix("NEXTUP")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env vars apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, v, nil
}

// InitializeDirs creates the config, data and state directories
func InitializeDirs() error {
	dirs := []string{
		filepath.Join(getConfigDir(), "nextup"),
		filepath.Join(getDataDir(), "nextup"),
		filepath.Join(getStateDir(), "nextup"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// DefaultConfigPath returns the path where "config init" writes the config
func DefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "nextup", "config.yaml")
}

// Flags is a concurrency-safe view of the playback preference flags. The
// config watcher updates it on reload so long-lived components observe
// preference changes without restarting.
type Flags struct {
	mu sync.RWMutex
	pb PlaybackConfig
}

// NewFlags creates a Flags view seeded from cfg
func NewFlags(cfg *Config) *Flags {
	return &Flags{pb: cfg.Playback}
}

// Update replaces the flag values (called on config reload)
func (f *Flags) Update(pb PlaybackConfig) {
	f.mu.Lock()
	f.pb = pb
	f.mu.Unlock()
}

// SyncProgress reports whether server progress sync is enabled
func (f *Flags) SyncProgress() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.pb.SyncProgress
}

// Autoplay reports whether next-episode autoplay is enabled
func (f *Flags) Autoplay() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.pb.Autoplay
}

// ShowNotifications reports whether OSD notifications are enabled
func (f *Flags) ShowNotifications() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.pb.ShowNotifications
}

// VideoTitle reports whether queued entries get an explicit display title
func (f *Flags) VideoTitle() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.pb.VideoTitle
}

// getConfigDir returns the platform config directory (XDG on Linux)
func getConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config")
}

// getDataDir returns the platform data directory
func getDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share")
}

// getStateDir returns the platform state directory (logs live here)
func getStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state")
}
