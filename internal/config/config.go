// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jmylchreest/nudge/internal/feed"
)

// UserEnv overrides the configured user id.
const UserEnv = "NUDGE_USER"

// Default configuration values.
const (
	DefaultBackend          = feed.BackendFile
	DefaultCountdown        = 5000 * time.Millisecond
	DefaultProgressInterval = 50 * time.Millisecond
	DefaultExitDuration     = 500 * time.Millisecond
	DefaultCelebration      = 3000 * time.Millisecond
	DefaultRecentDismissTTL = 10 * time.Minute
	DefaultDismissTimeout   = 10 * time.Second
	DefaultMinBackoff       = 500 * time.Millisecond
	DefaultMaxBackoff       = 30 * time.Second
	DefaultBackoffFactor    = 2.0
	DefaultRedisAddr        = "localhost:6379"
	DefaultRedisPrefix      = "nudge"
	DefaultCollection       = "notifications"
	DefaultClaimsCollection = "claims"
	DefaultToolsPrefix      = "/tools/"
	DefaultReferralPath     = "/referrals"
	DefaultAppName          = "nudge"
	DefaultVolume           = 80
)

// Config represents the nudge configuration.
// Loaded from ~/.config/nudge/nudge.toml
type Config struct {
	User        UserConfig        `toml:"user"`
	Engine      EngineConfig      `toml:"engine"`
	Feed        FeedConfig        `toml:"feed"`
	Firestore   FirestoreConfig   `toml:"firestore"`
	Redis       RedisConfig       `toml:"redis"`
	File        FileConfig        `toml:"file"`
	Routes      RoutesConfig      `toml:"routes"`
	Desktop     DesktopConfig     `toml:"desktop"`
	Celebration CelebrationConfig `toml:"celebration"`
	Metrics     MetricsConfig     `toml:"metrics"`
}

// UserConfig identifies whose notifications are presented.
type UserConfig struct {
	ID string `toml:"id"`
}

// EngineConfig holds presentation timings.
type EngineConfig struct {
	Countdown        Duration `toml:"countdown"`          // Auto-dismiss deadline
	ProgressInterval Duration `toml:"progress_interval"`  // Progress sampling, display only
	ExitDuration     Duration `toml:"exit_duration"`      // Exit transition length
	Celebration      Duration `toml:"celebration"`        // Celebration effect for achievements and rewards
	RecentDismissTTL Duration `toml:"recent_dismiss_ttl"` // 0 = until the feed stops delivering the id
	DismissTimeout   Duration `toml:"dismiss_timeout"`    // Per remote dismissal call
}

// FeedConfig selects the backend and its resubscription policy.
type FeedConfig struct {
	Backend       string   `toml:"backend"` // file, redis, firestore
	MinBackoff    Duration `toml:"min_backoff"`
	MaxBackoff    Duration `toml:"max_backoff"`
	BackoffFactor float64  `toml:"backoff_factor"`
	Jitter        bool     `toml:"jitter"`
}

// FirestoreConfig holds Cloud Firestore settings.
type FirestoreConfig struct {
	ProjectID        string `toml:"project_id"`
	CredentialsFile  string `toml:"credentials_file"` // Empty = application default credentials
	Collection       string `toml:"collection"`
	ClaimsCollection string `toml:"claims_collection"`
}

// RedisConfig holds Redis settings.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// FileConfig holds the local JSONL backend settings.
type FileConfig struct {
	Dir string `toml:"dir"` // Empty = XDG data directory
}

// RoutesConfig maps actions to in-app paths.
type RoutesConfig struct {
	ToolsPrefix string `toml:"tools_prefix"`
	Referral    string `toml:"referral"`
	BaseURL     string `toml:"base_url"` // When set, paths are opened as BaseURL+path
	Opener      string `toml:"opener"`   // URL opener command, auto-detected if empty
}

// DesktopConfig controls the freedesktop notification mirror.
type DesktopConfig struct {
	Enabled bool   `toml:"enabled"`
	AppName string `toml:"app_name"`
	Icon    string `toml:"icon"`
}

// CelebrationConfig controls the celebration chime.
type CelebrationConfig struct {
	Sound  string `toml:"sound"` // Empty = no chime
	Volume int    `toml:"volume"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `toml:"addr"` // Empty = disabled
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Countdown:        Duration(DefaultCountdown),
			ProgressInterval: Duration(DefaultProgressInterval),
			ExitDuration:     Duration(DefaultExitDuration),
			Celebration:      Duration(DefaultCelebration),
			RecentDismissTTL: Duration(DefaultRecentDismissTTL),
			DismissTimeout:   Duration(DefaultDismissTimeout),
		},
		Feed: FeedConfig{
			Backend:       DefaultBackend,
			MinBackoff:    Duration(DefaultMinBackoff),
			MaxBackoff:    Duration(DefaultMaxBackoff),
			BackoffFactor: DefaultBackoffFactor,
			Jitter:        true,
		},
		Firestore: FirestoreConfig{
			Collection:       DefaultCollection,
			ClaimsCollection: DefaultClaimsCollection,
		},
		Redis: RedisConfig{
			Addr:   DefaultRedisAddr,
			Prefix: DefaultRedisPrefix,
		},
		Routes: RoutesConfig{
			ToolsPrefix: DefaultToolsPrefix,
			Referral:    DefaultReferralPath,
		},
		Desktop: DesktopConfig{
			Enabled: false,
			AppName: DefaultAppName,
		},
		Celebration: CelebrationConfig{
			Volume: DefaultVolume,
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "nudge", "nudge.toml")
}

// DataPath returns the path to the data directory.
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share.
func DataPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "nudge")
}

// Load loads configuration from path, overlaying it on the defaults.
// If path is empty, uses the default config path. A missing file is not
// an error. NUDGE_USER, when set, overrides user.id.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// No config file, use defaults
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if user := os.Getenv(UserEnv); user != "" {
		cfg.User.ID = user
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	validBackend := false
	for _, b := range feed.Backends() {
		if c.Feed.Backend == b {
			validBackend = true
			break
		}
	}
	if !validBackend {
		return fmt.Errorf("invalid backend %q, must be one of: %v", c.Feed.Backend, feed.Backends())
	}

	positive := map[string]Duration{
		"engine.countdown":         c.Engine.Countdown,
		"engine.progress_interval": c.Engine.ProgressInterval,
		"engine.exit_duration":     c.Engine.ExitDuration,
		"engine.celebration":       c.Engine.Celebration,
		"engine.dismiss_timeout":   c.Engine.DismissTimeout,
		"feed.min_backoff":         c.Feed.MinBackoff,
		"feed.max_backoff":         c.Feed.MaxBackoff,
	}
	for name, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d.Duration())
		}
	}
	if c.Engine.RecentDismissTTL < 0 {
		return fmt.Errorf("engine.recent_dismiss_ttl must not be negative, got %s", c.Engine.RecentDismissTTL.Duration())
	}
	if c.Engine.ProgressInterval > c.Engine.Countdown {
		return fmt.Errorf("engine.progress_interval (%s) exceeds engine.countdown (%s)",
			c.Engine.ProgressInterval.Duration(), c.Engine.Countdown.Duration())
	}
	if c.Feed.MaxBackoff < c.Feed.MinBackoff {
		return fmt.Errorf("feed.max_backoff (%s) is below feed.min_backoff (%s)",
			c.Feed.MaxBackoff.Duration(), c.Feed.MinBackoff.Duration())
	}
	if c.Feed.BackoffFactor < 1 {
		return fmt.Errorf("feed.backoff_factor must be at least 1, got %g", c.Feed.BackoffFactor)
	}

	if c.Feed.Backend == feed.BackendRedis && c.Redis.Addr == "" {
		return errors.New("redis.addr is required for the redis backend")
	}
	if c.Celebration.Volume < 0 || c.Celebration.Volume > 100 {
		return fmt.Errorf("celebration.volume must be between 0 and 100, got %d", c.Celebration.Volume)
	}
	return nil
}

// FileDir returns the file backend directory, defaulting to the data path.
func (c *Config) FileDir() string {
	if c.File.Dir == "" {
		return DataPath()
	}
	return expandPath(c.File.Dir)
}

// SoundPath returns the celebration sound with ~ expanded.
func (c *Config) SoundPath() string {
	return expandPath(c.Celebration.Sound)
}

// CredentialsPath returns the Firestore credentials file with ~ expanded.
func (c *Config) CredentialsPath() string {
	return expandPath(c.Firestore.CredentialsFile)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
