// Command vibeo reviews recorded research sessions in the terminal: the
// video plays in mpv while the transcript, theme timeline, insights and
// notes follow the playback position.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jwulff/vibeo/internal/config"
	"github.com/jwulff/vibeo/internal/db"
	"github.com/jwulff/vibeo/internal/observe"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const usage = `usage: vibeo [command] [flags]

commands:
  review     open a session in the review TUI (default)
  import     load upstream analysis JSON into the session store
  sessions   list imported sessions
  mcp        serve read-only session tools over MCP stdio
  proxy      serve the media proxy and /metrics

run "vibeo <command> -h" for the flags of a command.
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := "review"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "review":
		return runReview(args)
	case "import":
		return runImport(args)
	case "sessions":
		return runSessions(args)
	case "mcp":
		return runMCP(args)
	case "proxy":
		return runProxy(args)
	case "help":
		fmt.Fprint(os.Stdout, usage)
		return 0
	case "version":
		fmt.Println("vibeo", version)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "vibeo: unknown command %q\n\n%s", cmd, usage)
		return 2
	}
}

// env is what every command needs after start-up.
type env struct {
	cfg     *config.Config
	metrics *observe.Metrics
	close   func()
}

// setup loads the configuration, installs the file logger and the metrics
// provider. The default config path may be missing; an explicit one may not.
func setup(ctx context.Context, configPath string) (*env, error) {
	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(configPath, configPath == config.DefaultPath())
	if err != nil {
		return nil, err
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, logFile, err := newLogger(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	slog.Info("vibeo starting", "version", version, "config", configPath, "log_level", cfg.Log.Level)

	// ── Metrics ───────────────────────────────────────────────────────────────
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return &env{
		cfg:     cfg,
		metrics: observe.DefaultMetrics(),
		close: func() {
			if err := shutdown(context.Background()); err != nil {
				slog.Warn("metrics shutdown", "err", err)
			}
			logFile.Close()
		},
	}, nil
}

// openStore opens the session database, creating its directory.
func openStore(path string) (*db.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return db.Open(path)
}

// newLogger writes text logs to file. The TUI and the MCP transport both
// own stdout, so nothing is logged to the terminal.
func newLogger(level config.LogLevel, file string) (*slog.Logger, io.Closer, error) {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: lvl})), f, nil
}

// fail prints err to stderr and returns the exit code for it.
func fail(err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	fmt.Fprintf(os.Stderr, "vibeo: %v\n", err)
	return 1
}
