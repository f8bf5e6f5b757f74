package ports

import (
	"context"
	"net/http"

	"github.com/skillforge/edgecache/internal/domain"
)

// FetchRequest is the transport-neutral identity of one intercepted request:
// what the engine needs to replay it against the origin.
type FetchRequest struct {
	Method string
	URL    string
	Header http.Header

	// Body carries the request payload for mutating methods; nil for GET.
	Body []byte
}

// OriginFetcher replays an intercepted request against the origin API and
// captures the full response. Implementations handle connection reuse and
// timeouts.
type OriginFetcher interface {
	// Fetch performs the request and captures the response.
	// A reachable origin always yields an Entry, whatever the status code;
	// the caller decides cacheability. An unreachable origin yields an
	// error wrapping domain.ErrNetworkUnavailable.
	Fetch(ctx context.Context, req FetchRequest) (domain.Entry, error)
}
