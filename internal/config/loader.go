package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. A missing file is not an error when
// allowMissing is set; the defaults are returned instead.
func Load(path string, allowMissing bool) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if allowMissing && errors.Is(err, os.ErrNotExist) {
			cfg := &Config{}
			ApplyDefaults(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, validates it and applies
// defaults. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Log.Level != "" && !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}

	if cfg.Player.SimDuration < 0 {
		errs = append(errs, fmt.Errorf("player.sim_duration %.2f must not be negative", cfg.Player.SimDuration))
	}
	if cfg.Player.Simulate && len(cfg.Player.Args) > 0 {
		slog.Warn("player.args are ignored when player.simulate is set")
	}

	if cfg.Media.ProxyBase != "" {
		u, err := url.Parse(cfg.Media.ProxyBase)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("media.proxy_base %q must be an absolute URL", cfg.Media.ProxyBase))
		}
		if len(cfg.Media.ProxiedHosts) == 0 {
			slog.Warn("media.proxy_base is set but media.proxied_hosts is empty; nothing will be proxied")
		}
	}
	for i, h := range cfg.Media.ProxiedHosts {
		if h == "" {
			errs = append(errs, fmt.Errorf("media.proxied_hosts[%d] is empty", i))
		}
	}

	if cfg.Notes.Backend != "" && !cfg.Notes.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("notes.backend %q is invalid; valid values: sqlite, redis, memory", cfg.Notes.Backend))
	}
	if cfg.Notes.Backend == NotesRedis && cfg.Notes.RedisAddr == "" {
		errs = append(errs, errors.New("notes.redis_addr is required when notes.backend is redis"))
	}

	if cfg.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Addr); err != nil {
			errs = append(errs, fmt.Errorf("metrics.addr %q: %w", cfg.Metrics.Addr, err))
		}
	}

	if cfg.Review.SeekStep < 0 {
		errs = append(errs, fmt.Errorf("review.seek_step %s must not be negative", cfg.Review.SeekStep))
	}
	if cfg.Review.TickHz < 0 || cfg.Review.TickHz > 120 {
		errs = append(errs, fmt.Errorf("review.tick_hz %d is out of range [0, 120]", cfg.Review.TickHz))
	}

	return errors.Join(errs...)
}
