// Package httpapi implements the origin-facing ports over HTTP: request
// replay, sync event delivery, and the reachability probe.
package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/skillforge/edgecache/internal/domain"
	"github.com/skillforge/edgecache/internal/ports"
)

// Fetcher implements ports.OriginFetcher against a single origin base URL.
type Fetcher struct {
	origin string
	client ports.HTTPClient
	logger ports.Logger
}

// NewFetcher creates a fetcher for the given origin base URL (no trailing
// slash).
func NewFetcher(origin string, client ports.HTTPClient, logger ports.Logger) *Fetcher {
	return &Fetcher{
		origin: strings.TrimRight(origin, "/"),
		client: client,
		logger: logger,
	}
}

// Fetch replays the request against the origin and captures the response.
func (f *Fetcher) Fetch(ctx context.Context, freq ports.FetchRequest) (domain.Entry, error) {
	target := freq.URL
	if strings.HasPrefix(target, "/") {
		target = f.origin + target
	}

	var payload io.Reader
	if len(freq.Body) > 0 {
		payload = bytes.NewReader(freq.Body)
	}
	req, err := http.NewRequestWithContext(ctx, freq.Method, target, payload)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("build request: %w", err)
	}
	copyHeader(req.Header, freq.Header)
	// Capture decoded bodies so replays from cache need no transfer coding.
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("%w: %v", domain.ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("%w: read body: %v", domain.ErrNetworkUnavailable, err)
	}

	entry := domain.Entry{
		Status:   resp.StatusCode,
		Header:   cloneHeader(resp.Header),
		Body:     body,
		StoredAt: time.Now().UTC(),
	}
	// Stored bodies are served verbatim; a stale length would corrupt replays.
	entry.Header.Del("Content-Length")
	return entry, nil
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		if strings.EqualFold(k, "Host") {
			continue
		}
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

func cloneHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, vs := range h {
		vv := make([]string, len(vs))
		copy(vv, vs)
		out[k] = vv
	}
	return out
}
