package ports

import (
	"context"

	"github.com/skillforge/edgecache/internal/domain"
)

// NotificationSink presents a rendered notification to the user. The control
// channel implements it by broadcasting to connected foreground clients.
type NotificationSink interface {
	// Show presents the notification. A notification with the same tag as a
	// previous one replaces it rather than stacking.
	Show(ctx context.Context, n domain.Notification) error
}

// WindowOpener navigates the foreground to a target URL after a notification
// interaction: focus an existing window already at that URL, or open a new one.
type WindowOpener interface {
	// OpenOrFocus navigates to url.
	OpenOrFocus(ctx context.Context, url string) error
}
