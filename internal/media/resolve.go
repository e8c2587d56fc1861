package media

import (
	"net/url"
	"slices"
	"strings"
)

// Resolver rewrites media URLs that point at hosts the player cannot reach
// directly so that they go through a same-origin proxy.
type Resolver struct {
	// ProxyBase is the proxy endpoint, e.g. "http://127.0.0.1:8089/proxy".
	// An empty base disables rewriting.
	ProxyBase string

	// Hosts lists the hosts whose URLs are proxied.
	Hosts []string
}

// Resolve returns the URL the player should open for raw.
func (r Resolver) Resolve(raw string) string {
	if r.ProxyBase == "" || raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	if !slices.Contains(r.Hosts, strings.ToLower(u.Host)) {
		return raw
	}
	sep := "?"
	if strings.Contains(r.ProxyBase, "?") {
		sep = "&"
	}
	return r.ProxyBase + sep + "url=" + url.QueryEscape(raw)
}

// ResolveRef applies Resolve to ref.URL.
func (r Resolver) ResolveRef(ref Ref) Ref {
	ref.URL = r.Resolve(ref.URL)
	return ref
}
