package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/jwulff/vibeo/internal/config"
	"github.com/jwulff/vibeo/internal/db"
	"github.com/jwulff/vibeo/internal/mcpserver"
	"github.com/jwulff/vibeo/internal/observe"
	"github.com/jwulff/vibeo/internal/proxy"
	"github.com/jwulff/vibeo/internal/timeline"
	"github.com/jwulff/vibeo/internal/ui"
)

func runImport(args []string) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultPath(), "path to the YAML configuration file")
	id := fs.String("id", "", "session id (default: session_id of the first transcript record)")
	title := fs.String("title", "", "session title")
	videoURL := fs.String("video-url", "", "URL or path of the session recording")
	duration := fs.Float64("duration", 0, "recording length in seconds (default: furthest end time)")
	transcript := fs.String("transcript", "", "transcript JSON file")
	themes := fs.String("themes", "", "theme spans JSON file")
	insights := fs.String("insights", "", "insights JSON file")
	citations := fs.String("citations", "", "citation id to timestamp JSON file")
	if err := fs.Parse(args); err != nil {
		return fail(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := setup(ctx, *configPath)
	if err != nil {
		return fail(err)
	}
	defer e.close()

	var files db.Files
	for _, f := range []struct {
		path string
		dst  *[]byte
	}{
		{*transcript, &files.Transcript},
		{*themes, &files.Themes},
		{*insights, &files.Insights},
		{*citations, &files.Citations},
	} {
		if f.path == "" {
			continue
		}
		data, err := os.ReadFile(f.path)
		if err != nil {
			return fail(err)
		}
		*f.dst = data
	}

	bundle, err := db.ParseBundle(db.Session{
		ID:        *id,
		Title:     *title,
		VideoURL:  *videoURL,
		Duration:  *duration,
		CreatedAt: time.Now(),
	}, files)
	if err != nil {
		return fail(err)
	}

	store, err := openStore(e.cfg.Store.Path)
	if err != nil {
		return fail(err)
	}
	defer store.Close()

	if err := store.Import(ctx, bundle); err != nil {
		return fail(err)
	}
	c, err := store.Counts(bundle.Session.ID)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("imported %s: %d transcript entries, %d themes, %d insights, %d citations\n",
		bundle.Session.ID, c.Transcript, c.Themes, c.Insights, c.Citations)
	return 0
}

func runSessions(args []string) int {
	fs := flag.NewFlagSet("sessions", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultPath(), "path to the YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return fail(err)
	}

	e, err := setup(context.Background(), *configPath)
	if err != nil {
		return fail(err)
	}
	defer e.close()

	store, err := openStore(e.cfg.Store.Path)
	if err != nil {
		return fail(err)
	}
	defer store.Close()

	sessions, err := store.Sessions()
	if err != nil {
		return fail(err)
	}
	if len(sessions) == 0 {
		fmt.Println("no sessions imported")
		return 0
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(ui.DividerStyle).
		Headers("ID", "TITLE", "LENGTH", "THEMES", "NOTES", "IMPORTED").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return ui.PanelTitleStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, s := range sessions {
		c, err := store.Counts(s.ID)
		if err != nil {
			return fail(err)
		}
		t.Row(s.ID, s.Title, timeline.FormatTime(s.Duration),
			strconv.Itoa(c.Themes), strconv.Itoa(c.Notes),
			s.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Println(t)
	return 0
}

func runMCP(args []string) int {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultPath(), "path to the YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return fail(err)
	}

	e, err := setup(context.Background(), *configPath)
	if err != nil {
		return fail(err)
	}
	defer e.close()

	store, err := openStore(e.cfg.Store.Path)
	if err != nil {
		return fail(err)
	}
	defer store.Close()

	if err := mcpserver.New(store, e.metrics).ServeStdio(version); err != nil {
		return fail(err)
	}
	return 0
}

func runProxy(args []string) int {
	fs := flag.NewFlagSet("proxy", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultPath(), "path to the YAML configuration file")
	addr := fs.String("addr", "", "listen address (default: metrics.addr, else 127.0.0.1:8089)")
	if err := fs.Parse(args); err != nil {
		return fail(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := setup(ctx, *configPath)
	if err != nil {
		return fail(err)
	}
	defer e.close()

	listen := *addr
	if listen == "" {
		listen = e.cfg.Metrics.Addr
	}
	if listen == "" {
		listen = "127.0.0.1:8089"
	}

	srv := &http.Server{
		Addr:              listen,
		Handler:           proxy.Mux(&proxy.Handler{Hosts: e.cfg.Media.ProxiedHosts}, observe.Handler(), e.metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}
	fmt.Fprintf(os.Stderr, "vibeo: proxy listening on http://%s/proxy\n", listen)
	if err := serve(ctx, srv); err != nil {
		return fail(err)
	}
	return 0
}
