package engine

import (
	"net/http"
	"net/url"
	"path"
	"strings"
)

// Discipline is the caching algorithm used to resolve one request.
type Discipline int

const (
	// Bypass passes the request straight to the network, no caching.
	Bypass Discipline = iota

	// NetworkFirst favors freshness: network, then cache on failure.
	NetworkFirst

	// CacheFirst favors zero-latency reuse: cache, refreshed in the
	// background.
	CacheFirst

	// StaleWhileRevalidate returns cache immediately while refreshing
	// concurrently.
	StaleWhileRevalidate
)

// String returns a human-readable representation of the discipline.
func (d Discipline) String() string {
	switch d {
	case Bypass:
		return "bypass"
	case NetworkFirst:
		return "network-first"
	case CacheFirst:
		return "cache-first"
	case StaleWhileRevalidate:
		return "stale-while-revalidate"
	default:
		return "unknown"
	}
}

// Router classifies each intercepted request into exactly one discipline.
// Classification is a fixed, total function of request shape: rules are
// checked in priority order and the first match wins.
type Router struct {
	apiPrefixes   []string
	assetPrefixes []string
	mediaExts     map[string]struct{}
	assetExts     map[string]struct{}
}

// NewRouter creates a router with the given classification rules.
func NewRouter(apiPrefixes, assetPrefixes, mediaExts, assetExts []string) *Router {
	return &Router{
		apiPrefixes:   apiPrefixes,
		assetPrefixes: assetPrefixes,
		mediaExts:     toSet(mediaExts),
		assetExts:     toSet(assetExts),
	}
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		out[strings.ToLower(it)] = struct{}{}
	}
	return out
}

// Classify routes a request to its discipline:
//
//  1. Non-GET requests or non-HTTP(S) schemes bypass the engine.
//  2. API paths resolve NetworkFirst.
//  3. Large media and versioned static assets resolve CacheFirst.
//  4. Full HTML documents resolve StaleWhileRevalidate.
//  5. Everything else defaults to NetworkFirst.
func (r *Router) Classify(method, rawURL string, header http.Header) Discipline {
	if method != http.MethodGet {
		return Bypass
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return Bypass
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return Bypass
	}

	p := u.Path
	if p == "" {
		p = "/"
	}

	for _, prefix := range r.apiPrefixes {
		if strings.HasPrefix(p, prefix) {
			return NetworkFirst
		}
	}

	ext := strings.ToLower(path.Ext(p))
	if _, ok := r.mediaExts[ext]; ok {
		return CacheFirst
	}
	for _, prefix := range r.assetPrefixes {
		if strings.HasPrefix(p, prefix) {
			return CacheFirst
		}
	}
	if _, ok := r.assetExts[ext]; ok {
		return CacheFirst
	}

	if IsNavigation(header) {
		return StaleWhileRevalidate
	}

	return NetworkFirst
}

// IsNavigation reports whether the request asks for a full HTML document.
func IsNavigation(header http.Header) bool {
	return strings.Contains(header.Get("Accept"), "text/html")
}
