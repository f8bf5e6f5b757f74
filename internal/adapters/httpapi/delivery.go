package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/skillforge/edgecache/internal/domain"
	"github.com/skillforge/edgecache/internal/ports"
)

// Sync replay targets on the origin, keyed by sync tag.
const (
	progressEndpoint  = "/v1/sync/progress"
	analyticsEndpoint = "/v1/sync/analytics"
)

// EventSender implements ports.EventSender over HTTP, routing events to the
// origin's sync endpoints by tag.
type EventSender struct {
	origin  string
	authKey string
	client  ports.HTTPClient
	logger  ports.Logger
}

// NewEventSender creates a sender delivering to the given origin base URL.
func NewEventSender(origin, authKey string, client ports.HTTPClient, logger ports.Logger) *EventSender {
	return &EventSender{
		origin:  origin,
		authKey: authKey,
		client:  client,
		logger:  logger,
	}
}

// Deliver posts one queued event's JSON payload to its sync endpoint.
func (s *EventSender) Deliver(ctx context.Context, event domain.QueuedEvent) error {
	endpoint, err := endpointFor(event.Tag)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.origin+endpoint, bytes.NewReader(event.Payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Id", event.ID)
	if s.authKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.authKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s returned %d: %s",
			domain.ErrDeliveryRejected, endpoint, resp.StatusCode, string(respBody))
	}
	return nil
}

// endpointFor maps a sync tag to its replay target.
func endpointFor(tag string) (string, error) {
	switch tag {
	case domain.TagProgress:
		return progressEndpoint, nil
	case domain.TagAnalytics:
		return analyticsEndpoint, nil
	default:
		return "", fmt.Errorf("%w: unknown sync tag %q", domain.ErrDeliveryRejected, tag)
	}
}
