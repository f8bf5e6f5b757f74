package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/skillforge/edgecache/internal/ports"
)

const probeTimeout = 5 * time.Second

// Probe implements ports.Probe by issuing a lightweight request against the
// origin health endpoint.
type Probe struct {
	url    string
	client ports.HTTPClient
}

// NewProbe creates a probe against origin + healthPath.
func NewProbe(origin, healthPath string, client ports.HTTPClient) *Probe {
	return &Probe{url: origin + healthPath, client: client}
}

// Online reports whether the origin answered the health check. Any response
// counts; an origin that replies 500 is reachable, just unhappy.
func (p *Probe) Online(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
