package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jwulff/vibeo/internal/config"
)

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	yaml := `
log:
  level: debug
  file: /tmp/vibeo.log
player:
  binary: /usr/local/bin/mpv
  args: ["--no-audio-display"]
media:
  proxy_base: http://127.0.0.1:8089/proxy
  proxied_hosts: [storage.googleapis.com]
notes:
  backend: redis
  redis_addr: localhost:6379
metrics:
  addr: 127.0.0.1:9464
review:
  seek_step: 10s
  tick_hz: 8
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Log.Level != config.LogDebug {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, config.LogDebug)
	}
	if cfg.Player.Binary != "/usr/local/bin/mpv" {
		t.Errorf("Player.Binary = %q", cfg.Player.Binary)
	}
	if len(cfg.Player.Args) != 1 {
		t.Errorf("Player.Args = %v, want 1 arg", cfg.Player.Args)
	}
	if cfg.Notes.Backend != config.NotesRedis {
		t.Errorf("Notes.Backend = %q, want redis", cfg.Notes.Backend)
	}
	if cfg.Notes.RedisPrefix != config.DefaultRedisPrefix {
		t.Errorf("Notes.RedisPrefix = %q, want default", cfg.Notes.RedisPrefix)
	}
	if cfg.Review.SeekStep != 10*time.Second {
		t.Errorf("Review.SeekStep = %v, want 10s", cfg.Review.SeekStep)
	}
	if cfg.Review.TickHz != 8 {
		t.Errorf("Review.TickHz = %d, want 8", cfg.Review.TickHz)
	}
}

func TestLoadFromReader_EmptyAppliesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Log.Level != config.LogInfo {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Player.Binary != config.DefaultPlayerBinary {
		t.Errorf("Player.Binary = %q, want %q", cfg.Player.Binary, config.DefaultPlayerBinary)
	}
	if cfg.Notes.Backend != config.NotesSQLite {
		t.Errorf("Notes.Backend = %q, want sqlite", cfg.Notes.Backend)
	}
	if cfg.Review.SeekStep != config.DefaultSeekStep {
		t.Errorf("Review.SeekStep = %v, want %v", cfg.Review.SeekStep, config.DefaultSeekStep)
	}
	if cfg.Store.Path == "" || cfg.Log.File == "" {
		t.Error("expected default store path and log file")
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("player:\n  binnary: mpv\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
	if !strings.Contains(err.Error(), "binnary") {
		t.Errorf("error should mention the unknown field, got: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("log:\n  level: verbose\n"))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log.level") {
		t.Errorf("error should mention log.level, got: %v", err)
	}
}

func TestValidate_RedisRequiresAddr(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("notes:\n  backend: redis\n"))
	if err == nil {
		t.Fatal("expected error for redis backend without address, got nil")
	}
	if !strings.Contains(err.Error(), "notes.redis_addr") {
		t.Errorf("error should mention notes.redis_addr, got: %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Log:     config.LogConfig{Level: "loud"},
		Notes:   config.NotesConfig{Backend: "postgres"},
		Media:   config.MediaConfig{ProxyBase: "not a url"},
		Metrics: config.MetricsConfig{Addr: "9464"},
		Review:  config.ReviewConfig{TickHz: 500},
	}
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	for _, want := range []string{"log.level", "notes.backend", "media.proxy_base", "metrics.addr", "review.tick_hz"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "absent.yaml")

	if _, err := config.Load(path, false); err == nil {
		t.Error("expected error for missing file")
	}

	cfg, err := config.Load(path, true)
	if err != nil {
		t.Fatalf("Load(allowMissing): %v", err)
	}
	if cfg.Review.TickHz != config.DefaultTickHz {
		t.Errorf("TickHz = %d, want default %d", cfg.Review.TickHz, config.DefaultTickHz)
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("player:\n  simulate: true\n  sim_duration: 90\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Player.Simulate || cfg.Player.SimDuration != 90 {
		t.Errorf("Player = %+v, want simulate with 90s", cfg.Player)
	}
}

func TestNotesBackendIsValid(t *testing.T) {
	t.Parallel()
	for _, b := range []config.NotesBackend{config.NotesSQLite, config.NotesRedis, config.NotesMemory} {
		if !b.IsValid() {
			t.Errorf("%q.IsValid() = false", b)
		}
	}
	if config.NotesBackend("file").IsValid() {
		t.Error(`"file".IsValid() = true`)
	}
}
