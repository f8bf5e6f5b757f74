package engine

import (
	"context"

	"github.com/skillforge/edgecache/internal/domain"
	"github.com/skillforge/edgecache/internal/ports"
)

// Dispatcher parses incoming push payloads, renders them as user-visible
// notifications, and handles the user's interaction with them.
type Dispatcher struct {
	sink   ports.NotificationSink
	opener ports.WindowOpener
	logger ports.Logger
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(sink ports.NotificationSink, opener ports.WindowOpener, logger ports.Logger) *Dispatcher {
	return &Dispatcher{sink: sink, opener: opener, logger: logger}
}

// HandlePush processes one raw push payload: parse, render, show.
// A malformed payload is a safe no-op, never an error to the push service.
func (d *Dispatcher) HandlePush(ctx context.Context, raw []byte) error {
	msg := domain.ParsePushMessage(raw)
	n, ok := msg.Render()
	if !ok {
		d.logger.Warn("ignoring unrecognized push payload", ports.Int("bytes", len(raw)))
		return nil
	}

	d.logger.Debug("push rendered",
		ports.String("kind", msg.Kind.String()),
		ports.String("tag", n.Tag))
	return d.sink.Show(ctx, n)
}

// ClickData carries the payload data echoed back with a notification
// interaction.
type ClickData struct {
	URL      string `json:"url,omitempty"`
	CourseID string `json:"courseId,omitempty"`
}

// HandleClick processes a user interaction with a notification. Dismiss
// does nothing; any other action (including the default body click)
// resolves the target URL and focuses or opens a window showing it.
func (d *Dispatcher) HandleClick(ctx context.Context, action string, data ClickData) error {
	if action == domain.ActionDismiss {
		return nil
	}

	target := domain.PushMessage{URL: data.URL, CourseID: data.CourseID}.TargetURL()
	d.logger.Debug("notification click",
		ports.String("action", action),
		ports.String("target", target))
	return d.opener.OpenOrFocus(ctx, target)
}
