package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"nhooyr.io/websocket"

	"github.com/skillforge/edgecache/internal/domain"
	"github.com/skillforge/edgecache/internal/ports"
)

// Control message types. Inbound messages come from foreground clients;
// outbound ones are replies or broadcasts from the engine.
const (
	// Inbound.
	MsgSkipWaiting       = "SKIP_WAITING"
	MsgGetVersion        = "GET_VERSION"
	MsgCacheURLs         = "CACHE_URLS"
	MsgSync              = "SYNC"
	MsgNotificationClick = "NOTIFICATION_CLICK"

	// Outbound.
	MsgVersion          = "VERSION"
	MsgControllerChange = "CONTROLLER_CHANGE"
	MsgNotification     = "NOTIFICATION"
	MsgOpenWindow       = "OPEN_WINDOW"
	MsgSyncReport       = "SYNC_REPORT"
)

// ControlMessage is the wire format of the foreground/engine protocol.
// Fields beyond Type are populated per message type.
type ControlMessage struct {
	Type string `json:"type"`

	// GET_VERSION reply / CONTROLLER_CHANGE broadcast.
	Version string `json:"version,omitempty"`

	// CACHE_URLS request.
	URLs []string `json:"urls,omitempty"`

	// SYNC request / SYNC_REPORT broadcast.
	Tag    string              `json:"tag,omitempty"`
	Report *domain.FlushReport `json:"report,omitempty"`

	// NOTIFICATION_CLICK request.
	Action string     `json:"action,omitempty"`
	Data   *ClickData `json:"data,omitempty"`

	// NOTIFICATION broadcast.
	Notification *domain.Notification `json:"notification,omitempty"`

	// OPEN_WINDOW broadcast.
	URL string `json:"url,omitempty"`
}

// ControlHandler is what the control channel needs from the rest of the
// engine to answer messages.
type ControlHandler interface {
	// SkipWaiting forces activation of a waiting generation.
	SkipWaiting(ctx context.Context) error

	// Version returns the current generation identifier.
	Version() string

	// CacheURLs eagerly populates the current generation with the given
	// URLs.
	CacheURLs(ctx context.Context, urls []string) error

	// Sync flushes one tag on demand.
	Sync(ctx context.Context, tag string) domain.FlushReport

	// NotificationClick handles a notification interaction.
	NotificationClick(ctx context.Context, action string, data ClickData) error
}

// Hub is the engine end of the control channel: it answers inbound
// messages and broadcasts engine-driven ones (notifications, takeovers,
// sync reports) to every connected foreground client.
//
// Hub implements ports.NotificationSink and ports.WindowOpener by
// broadcasting, which is how the engine "renders" notifications: the
// foreground shows them.
type Hub struct {
	handler ControlHandler
	logger  ports.Logger

	mu      sync.Mutex
	clients map[*hubClient]struct{}
}

type hubClient struct {
	send chan ControlMessage
}

// NewHub creates a control channel hub.
func NewHub(handler ControlHandler, logger ports.Logger) *Hub {
	return &Hub{
		handler: handler,
		logger:  logger,
		clients: make(map[*hubClient]struct{}),
	}
}

// SetHandler binds the engine-side handler. The hub is constructed before
// the component that answers its messages, so binding happens late; it must
// complete before the first client connects.
func (h *Hub) SetHandler(handler ControlHandler) {
	h.handler = handler
}

// HandleMessage answers one inbound control message. A nil reply means the
// message needs no response. Unknown types are logged and ignored.
func (h *Hub) HandleMessage(ctx context.Context, msg ControlMessage) (*ControlMessage, error) {
	if h.handler == nil {
		return nil, fmt.Errorf("control channel not ready")
	}
	switch msg.Type {
	case MsgSkipWaiting:
		if err := h.handler.SkipWaiting(ctx); err != nil {
			return nil, err
		}
		return &ControlMessage{Type: MsgVersion, Version: h.handler.Version()}, nil

	case MsgGetVersion:
		return &ControlMessage{Type: MsgVersion, Version: h.handler.Version()}, nil

	case MsgCacheURLs:
		if len(msg.URLs) == 0 {
			return nil, fmt.Errorf("CACHE_URLS without urls")
		}
		if err := h.handler.CacheURLs(ctx, msg.URLs); err != nil {
			return nil, err
		}
		return nil, nil

	case MsgSync:
		report := h.handler.Sync(ctx, msg.Tag)
		return &ControlMessage{Type: MsgSyncReport, Tag: report.Tag, Report: &report}, nil

	case MsgNotificationClick:
		var data ClickData
		if msg.Data != nil {
			data = *msg.Data
		}
		return nil, h.handler.NotificationClick(ctx, msg.Action, data)

	default:
		h.logger.Warn("unknown control message", ports.String("type", msg.Type))
		return nil, nil
	}
}

// Broadcast queues a message for every connected client. Slow clients drop
// messages rather than block the engine.
func (h *Hub) Broadcast(msg ControlMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("control client lagging, message dropped",
				ports.String("type", msg.Type))
		}
	}
}

// Show implements ports.NotificationSink by broadcasting the notification
// to connected clients.
func (h *Hub) Show(_ context.Context, n domain.Notification) error {
	h.Broadcast(ControlMessage{Type: MsgNotification, Notification: &n})
	return nil
}

// OpenOrFocus implements ports.WindowOpener by telling clients to focus an
// existing window at the URL or open a new one.
func (h *Hub) OpenOrFocus(_ context.Context, url string) error {
	h.Broadcast(ControlMessage{Type: MsgOpenWindow, URL: url})
	return nil
}

// AnnounceTakeover broadcasts that a new generation controls all clients.
func (h *Hub) AnnounceTakeover(generation string) {
	h.Broadcast(ControlMessage{Type: MsgControllerChange, Version: generation})
}

// ClientCount returns the number of connected control clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register(c *hubClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *hubClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// ServeConn runs the message loop for one websocket client until the
// connection closes or the context is canceled.
func (h *Hub) ServeConn(ctx context.Context, conn *websocket.Conn) {
	client := &hubClient{send: make(chan ControlMessage, 16)}
	h.register(client)
	defer h.unregister(client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Writer: replies and broadcasts share the send channel so a single
	// goroutine owns all writes to the connection.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-client.send:
				b, err := json.Marshal(msg)
				if err != nil {
					continue
				}
				wctx, wcancel := context.WithTimeout(ctx, 10*time.Second)
				err = conn.Write(wctx, websocket.MessageText, b)
				wcancel()
				if err != nil {
					cancel()
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		var msg ControlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Warn("malformed control message", ports.Err(err))
			continue
		}
		reply, err := h.HandleMessage(ctx, msg)
		if err != nil {
			h.logger.Warn("control message failed",
				ports.String("type", msg.Type),
				ports.Err(err))
			continue
		}
		if reply != nil {
			select {
			case client.send <- *reply:
			case <-ctx.Done():
			}
		}
	}

	cancel()
	wg.Wait()
}
