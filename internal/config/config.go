// Package config provides the configuration schema and loader for vibeo.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// NotesBackend selects where reviewer notes are persisted.
type NotesBackend string

const (
	// NotesSQLite stores notes next to the imported session data.
	NotesSQLite NotesBackend = "sqlite"

	// NotesRedis stores notes in a Redis hash per session.
	NotesRedis NotesBackend = "redis"

	// NotesMemory keeps notes for the lifetime of the process only.
	NotesMemory NotesBackend = "memory"
)

// IsValid reports whether b is a recognised notes backend.
func (b NotesBackend) IsValid() bool {
	switch b {
	case NotesSQLite, NotesRedis, NotesMemory:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Store   StoreConfig   `yaml:"store"`
	Player  PlayerConfig  `yaml:"player"`
	Media   MediaConfig   `yaml:"media"`
	Notes   NotesConfig   `yaml:"notes"`
	Metrics MetricsConfig `yaml:"metrics"`
	Review  ReviewConfig  `yaml:"review"`
}

// LogConfig controls where and how much is logged. The TUI owns the
// terminal, so logs always go to a file.
type LogConfig struct {
	// Level controls verbosity.
	Level LogLevel `yaml:"level"`

	// File is the log destination. Defaults to $XDG_STATE_HOME/vibeo/vibeo.log.
	File string `yaml:"file"`
}

// StoreConfig locates the session database.
type StoreConfig struct {
	// Path is the SQLite database file. Defaults to $XDG_DATA_HOME/vibeo/vibeo.db.
	Path string `yaml:"path"`
}

// PlayerConfig controls the external media player.
type PlayerConfig struct {
	// Binary is the mpv executable (default "mpv").
	Binary string `yaml:"binary"`

	// Socket is the IPC socket path. Defaults to $XDG_RUNTIME_DIR/vibeo-mpv.sock.
	Socket string `yaml:"socket"`

	// Args are extra command-line arguments passed to the player.
	Args []string `yaml:"args"`

	// Simulate replaces the player with a wall-clock simulation.
	Simulate bool `yaml:"simulate"`

	// SimDuration is the length reported by the simulated player when the
	// session has no themes to derive one from.
	SimDuration float64 `yaml:"sim_duration"`
}

// MediaConfig controls how media URLs are resolved.
type MediaConfig struct {
	// ProxyBase is the same-origin proxy endpoint, e.g.
	// "http://127.0.0.1:8089/proxy". Empty disables proxying.
	ProxyBase string `yaml:"proxy_base"`

	// ProxiedHosts lists the hosts whose media goes through ProxyBase.
	ProxiedHosts []string `yaml:"proxied_hosts"`
}

// NotesConfig selects the notes backend.
type NotesConfig struct {
	Backend NotesBackend `yaml:"backend"`

	// RedisAddr is host:port of the Redis server when Backend is redis.
	RedisAddr string `yaml:"redis_addr"`

	// RedisPrefix namespaces every key written to Redis.
	RedisPrefix string `yaml:"redis_prefix"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics (e.g., "127.0.0.1:9464").
	// Empty disables the endpoint.
	Addr string `yaml:"addr"`
}

// ReviewConfig tunes the review TUI.
type ReviewConfig struct {
	// SeekStep is how far the arrow keys seek.
	SeekStep time.Duration `yaml:"seek_step"`

	// TickHz caps the render rate of the TUI in frames per second.
	TickHz int `yaml:"tick_hz"`
}

// Defaults used by [ApplyDefaults].
const (
	DefaultPlayerBinary = "mpv"
	DefaultSeekStep     = 5 * time.Second
	DefaultTickHz       = 30
	DefaultSimDuration  = 600
	DefaultRedisPrefix  = "vibeo:"
)

// ApplyDefaults fills every unset field of cfg with its default.
func ApplyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = LogInfo
	}
	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(xdgDir("XDG_STATE_HOME", ".local/state"), "vibeo", "vibeo.log")
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	if cfg.Player.Binary == "" {
		cfg.Player.Binary = DefaultPlayerBinary
	}
	if cfg.Player.SimDuration == 0 {
		cfg.Player.SimDuration = DefaultSimDuration
	}
	if cfg.Notes.Backend == "" {
		cfg.Notes.Backend = NotesSQLite
	}
	if cfg.Notes.RedisPrefix == "" {
		cfg.Notes.RedisPrefix = DefaultRedisPrefix
	}
	if cfg.Review.SeekStep == 0 {
		cfg.Review.SeekStep = DefaultSeekStep
	}
	if cfg.Review.TickHz == 0 {
		cfg.Review.TickHz = DefaultTickHz
	}
}

// DefaultStorePath returns $XDG_DATA_HOME/vibeo/vibeo.db.
func DefaultStorePath() string {
	return filepath.Join(xdgDir("XDG_DATA_HOME", ".local/share"), "vibeo", "vibeo.db")
}

// DefaultPath returns $XDG_CONFIG_HOME/vibeo/config.yaml.
func DefaultPath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "vibeo", "config.yaml")
}

func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return filepath.Join(home, fallback)
}
