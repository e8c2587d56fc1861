// Package proxy serves remote media through a local same-origin endpoint so
// that players which cannot reach a storage host directly (or need CORS)
// can still stream and seek it.
package proxy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/jwulff/vibeo/internal/observe"
)

// DefaultHosts is the allow-list used when none is configured.
var DefaultHosts = []string{"storage.googleapis.com"}

// Forwarded response headers. Range requests depend on all of them.
var copyHeaders = []string{"Content-Type", "Content-Length", "Accept-Ranges", "Content-Range", "Last-Modified", "ETag"}

// Handler proxies GET /proxy?url=<absolute url> for allow-listed hosts,
// forwarding the Range header upstream.
type Handler struct {
	// Hosts is the allow-list. Empty means DefaultHosts.
	Hosts []string

	// Client performs upstream requests. Nil means http.DefaultClient.
	Client *http.Client
}

func (h *Handler) allowed(host string) bool {
	hosts := h.Hosts
	if len(hosts) == 0 {
		hosts = DefaultHosts
	}
	return slices.Contains(hosts, strings.ToLower(host))
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET,HEAD,OPTIONS")

	switch r.Method {
	case http.MethodGet, http.MethodHead:
	case http.MethodOptions:
		w.Header().Set("Access-Control-Allow-Headers", "Range")
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		w.Header().Set("Allow", "GET, HEAD, OPTIONS")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw := r.URL.Query().Get("url")
	if raw == "" {
		http.Error(w, "Missing url", http.StatusBadRequest)
		return
	}
	target, err := url.Parse(raw)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
		http.Error(w, "Invalid url", http.StatusBadRequest)
		return
	}
	if !h.allowed(target.Host) {
		slog.Warn("proxy request rejected", "host", target.Host)
		http.Error(w, "URL not allowed", http.StatusForbidden)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rng := r.Header.Get("Range"); rng != "" {
		req.Header.Set("Range", rng)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		slog.Error("proxy upstream failed", "url", target.Redacted(), "err", err)
		http.Error(w, "proxy error: "+err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for _, k := range copyHeaders {
		if v := resp.Header.Get(k); v != "" {
			w.Header().Set(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, resp.Body); err != nil && !errors.Is(err, context.Canceled) {
		slog.Debug("proxy copy ended", "url", target.Redacted(), "err", err)
	}
}

// Mux mounts the proxy at /proxy and, when metrics is non-nil, the
// Prometheus handler at /metrics. Every route is wrapped in the request
// metrics middleware.
func Mux(p http.Handler, metrics http.Handler, m *observe.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/proxy", p)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok")
	})
	return observe.Middleware(m)(mux)
}
