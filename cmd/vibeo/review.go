package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/jwulff/vibeo/internal/app"
	"github.com/jwulff/vibeo/internal/config"
	"github.com/jwulff/vibeo/internal/db"
	"github.com/jwulff/vibeo/internal/media"
	"github.com/jwulff/vibeo/internal/media/sim"
	"github.com/jwulff/vibeo/internal/mpv"
	"github.com/jwulff/vibeo/internal/notes"
	"github.com/jwulff/vibeo/internal/observe"
	"github.com/jwulff/vibeo/internal/playback"
	"github.com/jwulff/vibeo/internal/proxy"
	"github.com/jwulff/vibeo/internal/seekbus"
	"github.com/jwulff/vibeo/internal/timesource"
)

func runReview(args []string) int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	fs := flag.NewFlagSet("review", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultPath(), "path to the YAML configuration file")
	sessionID := fs.String("session", "", "session to review (default: most recent import)")
	simulate := fs.Bool("simulate", false, "drive the session with a simulated clock instead of mpv")
	if err := fs.Parse(args); err != nil {
		return fail(err)
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := setup(ctx, *configPath)
	if err != nil {
		return fail(err)
	}
	defer e.close()
	cfg := e.cfg
	if *simulate {
		cfg.Player.Simulate = true
	}

	// ── Session data ──────────────────────────────────────────────────────────
	store, err := openStore(cfg.Store.Path)
	if err != nil {
		return fail(err)
	}
	defer store.Close()

	sess, err := pickSession(store, *sessionID)
	if err != nil {
		return fail(err)
	}
	idx, err := store.Index(sess.ID)
	if err != nil {
		return fail(err)
	}
	cites, err := store.Citations(sess.ID)
	if err != nil {
		return fail(err)
	}
	insights, err := store.Insights(sess.ID)
	if err != nil {
		return fail(err)
	}
	slog.Info("session loaded", "session", sess.ID, "themes", idx.Len(), "transcript", idx.TranscriptLen())

	// ── Notes backend ─────────────────────────────────────────────────────────
	var noteStore notes.Store
	switch cfg.Notes.Backend {
	case config.NotesRedis:
		r, err := notes.ConnectRedis(ctx, cfg.Notes.RedisAddr, cfg.Notes.RedisPrefix)
		if err != nil {
			return fail(err)
		}
		defer r.Close()
		noteStore = r
	case config.NotesMemory:
		noteStore = notes.NewMemory()
	default:
		noteStore = store
	}

	// ── Player ────────────────────────────────────────────────────────────────
	resolver := media.Resolver{ProxyBase: cfg.Media.ProxyBase, Hosts: cfg.Media.ProxiedHosts}
	ref := resolver.ResolveRef(media.Ref{SessionID: sess.ID, URL: sess.VideoURL})

	var driver media.Driver
	if cfg.Player.Simulate {
		duration := sess.Duration
		if duration <= 0 {
			duration = cfg.Player.SimDuration
		}
		driver = sim.Driver{Duration: duration}
		if ref.URL == "" {
			ref.URL = "sim://" + sess.ID
		}
		slog.Info("using simulated player", "duration", duration)
	} else {
		if ref.URL == "" {
			return fail(fmt.Errorf("session %s has no video url; rerun with -simulate", sess.ID))
		}
		socket := cfg.Player.Socket
		if socket == "" {
			socket = defaultSocket()
		}
		proc, err := mpv.Launch(ctx, cfg.Player.Binary, socket, cfg.Player.Args)
		if err != nil {
			return fail(err)
		}
		defer proc.Stop()
		driver = mpv.Driver{Socket: proc.Socket}
		slog.Info("mpv started", "socket", proc.Socket)
	}

	// ── Engine ────────────────────────────────────────────────────────────────
	bus := seekbus.New()
	defer bus.Dispose()
	coord, err := playback.New(timesource.New(driver), bus, idx, playback.WithMetrics(e.metrics))
	if err != nil {
		return fail(err)
	}
	defer coord.Detach()

	model := app.New(app.Options{
		Coordinator: coord,
		Bus:         bus,
		Session:     *sess,
		Ref:         ref,
		Notes:       noteStore,
		Citations:   cites,
		Insights:    insights,
		SeekStep:    cfg.Review.SeekStep,
	})

	// ── Run ───────────────────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           proxy.Mux(&proxy.Handler{Hosts: cfg.Media.ProxiedHosts}, observe.Handler(), e.metrics),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error { return serve(gctx, srv) })
	}

	g.Go(func() error {
		defer cancel()
		p := tea.NewProgram(model,
			tea.WithAltScreen(),
			tea.WithMouseAllMotion(),
			tea.WithFPS(cfg.Review.TickHz),
			tea.WithContext(gctx),
		)
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) && gctx.Err() != nil {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		slog.Error("review exited", "err", err)
		return fail(err)
	}
	slog.Info("review finished", "session", sess.ID)
	return 0
}

// pickSession returns the session named by id, or the latest import.
func pickSession(store *db.Store, id string) (*db.Session, error) {
	if id != "" {
		return store.Session(id)
	}
	sess, err := store.LatestSession()
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, errors.New(`no sessions imported yet; run "vibeo import" first`)
	}
	return sess, nil
}

// serve runs srv until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// defaultSocket places the mpv IPC socket in the user's runtime dir.
func defaultSocket() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "vibeo-mpv.sock")
}
