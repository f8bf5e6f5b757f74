package engine

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"nhooyr.io/websocket"

	json "github.com/goccy/go-json"

	"github.com/skillforge/edgecache/internal/domain"
	"github.com/skillforge/edgecache/internal/ports"
)

// Diagnostic response header: which outcome produced the response.
const outcomeHeader = "X-Edge-Outcome"

// Server is the worker's HTTP surface: the fetch-interception catch-all,
// the push receiver, and the control channel endpoint.
type Server struct {
	cfg        Config
	echo       *echo.Echo
	router     *Router
	resolver   *Resolver
	store      *CacheStore
	queue      *SyncQueue
	trigger    *Trigger
	lifecycle  *Lifecycle
	dispatcher *Dispatcher
	hub        *Hub
	fetcher    ports.OriginFetcher
	logger     ports.Logger

	wg sync.WaitGroup
}

// NewServer wires the HTTP surface over the given components.
func NewServer(cfg Config, router *Router, resolver *Resolver, store *CacheStore, queue *SyncQueue, trigger *Trigger, lifecycle *Lifecycle, dispatcher *Dispatcher, hub *Hub, fetcher ports.OriginFetcher, logger ports.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		router:     router,
		resolver:   resolver,
		store:      store,
		queue:      queue,
		trigger:    trigger,
		lifecycle:  lifecycle,
		dispatcher: dispatcher,
		hub:        hub,
		fetcher:    fetcher,
		logger:     logger,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET("/_edge/healthz", s.handleHealth)
	e.POST("/_edge/push", s.handlePush)
	e.GET("/_edge/control", s.handleControl)
	e.Any("/*", s.handleIntercept)

	s.echo = e
	return s
}

// Echo exposes the underlying echo instance for serving.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start serves on the configured address until Shutdown.
func (s *Server) Start() error {
	err := s.echo.Start(s.cfg.ListenAddr)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP surface and waits for detached work.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	s.resolver.Wait()
	s.wg.Wait()
	return err
}

func (s *Server) handleHealth(c echo.Context) error {
	generation := s.lifecycle.CurrentGeneration()
	entries, err := s.store.Count(generation)
	if err != nil {
		s.logger.Warn("generation entry count unavailable", ports.Err(err))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"generation": generation,
		"phase":      s.lifecycle.Phase().String(),
		"entries":    entries,
		"online":     s.trigger.Online(),
		"clients":    s.hub.ClientCount(),
	})
}

// handlePush receives a push payload and dispatches it. Malformed payloads
// are acknowledged and dropped; the push service should not retry them.
func (s *Server) handlePush(c echo.Context) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, 64<<10))
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	if err := s.dispatcher.HandlePush(c.Request().Context(), raw); err != nil {
		s.logger.Error("push dispatch failed", ports.Err(err))
		return c.NoContent(http.StatusInternalServerError)
	}
	return c.NoContent(http.StatusAccepted)
}

// handleControl upgrades to a websocket and runs the control protocol.
func (s *Server) handleControl(c echo.Context) error {
	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true, // same-host foreground clients only
	})
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	s.hub.ServeConn(c.Request().Context(), conn)
	return nil
}

// handleIntercept is the fetch-interception contract: every outbound
// request from the application lands here, is classified, and is resolved
// by a strategy or passed through.
func (s *Server) handleIntercept(c echo.Context) error {
	req := c.Request()
	freq := ports.FetchRequest{
		Method: req.Method,
		URL:    req.URL.RequestURI(),
		Header: req.Header,
	}

	disc := s.router.Classify(req.Method, freq.URL, req.Header)
	if disc == Bypass {
		return s.passThrough(c, freq)
	}

	navigation := IsNavigation(req.Header)
	entry, outcome, err := s.resolver.Resolve(req.Context(), disc, freq, navigation)
	if err != nil {
		// The engine never fabricates a fake success: a strategy that
		// exhausted its fallbacks surfaces as a failed fetch.
		s.logger.Debug("request failed",
			ports.String("url", freq.URL),
			ports.String("discipline", disc.String()),
			ports.Err(err))
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		return c.JSON(status, map[string]string{"error": "origin unavailable"})
	}

	return s.writeEntry(c, entry, string(outcome))
}

// passThrough forwards a request the engine does not cache. A mutating
// call to a sync endpoint that fails for network reasons is not lost: it
// becomes a queued event, acknowledged with 202.
func (s *Server) passThrough(c echo.Context, freq ports.FetchRequest) error {
	req := c.Request()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	entry, err := s.fetcher.Fetch(req.Context(), ports.FetchRequest{
		Method: freq.Method,
		URL:    freq.URL,
		Header: freq.Header,
		Body:   body,
	})
	if err == nil {
		return s.writeEntry(c, entry, "bypass")
	}

	if IsOffline(err) && req.Method == http.MethodPost {
		if tag, ok := s.cfg.SyncTagFor(req.URL.Path); ok {
			return s.enqueueForReplay(c, tag, body)
		}
	}
	return c.JSON(http.StatusBadGateway, map[string]string{"error": "origin unavailable"})
}

func (s *Server) enqueueForReplay(c echo.Context, tag string, body []byte) error {
	if !json.Valid(body) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "payload must be JSON"})
	}
	ev, err := s.queue.Enqueue(domain.QueuedEvent{Tag: tag, Payload: body})
	if err != nil {
		s.logger.Error("enqueue failed", ports.String("tag", tag), ports.Err(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "queue unavailable"})
	}
	return c.JSON(http.StatusAccepted, map[string]string{"queued": ev.ID, "tag": tag})
}

func (s *Server) writeEntry(c echo.Context, entry domain.Entry, outcome string) error {
	h := c.Response().Header()
	// Clone: the slices land in the response header map, which echo's
	// middleware may mutate.
	for k, vs := range entry.CloneHeader() {
		h[k] = vs
	}
	h.Set(outcomeHeader, outcome)
	c.Response().WriteHeader(entry.Status)
	_, err := c.Response().Write(entry.Body)
	return err
}

// The server is the control channel's handler: messages act on the
// lifecycle, the cache, and the queue.

// SkipWaiting forces activation of a waiting generation.
func (s *Server) SkipWaiting(ctx context.Context) error {
	return s.lifecycle.Activate(ctx)
}

// Version returns the current generation identifier.
func (s *Server) Version() string {
	return s.lifecycle.CurrentGeneration()
}

// CacheURLs eagerly adds the given URLs to the current generation.
// Individual fetch failures skip that URL, matching install semantics.
func (s *Server) CacheURLs(ctx context.Context, urls []string) error {
	gen := s.lifecycle.CurrentGeneration()
	if gen == "" {
		return errors.New("no active generation")
	}
	for _, u := range urls {
		entry, err := s.fetcher.Fetch(ctx, ports.FetchRequest{Method: http.MethodGet, URL: u})
		if err != nil || !entry.OK() {
			s.logger.Warn("eager cache skipped", ports.String("url", u), ports.Err(err))
			continue
		}
		if err := s.store.Put(gen, domain.EntryKey(http.MethodGet, u), entry); err != nil {
			s.logger.Warn("eager cache write failed", ports.String("url", u), ports.Err(err))
		}
	}
	return nil
}

// Sync flushes one tag on demand.
func (s *Server) Sync(ctx context.Context, tag string) domain.FlushReport {
	return s.trigger.Flush(ctx, tag)
}

// NotificationClick handles a notification interaction from a client.
func (s *Server) NotificationClick(ctx context.Context, action string, data ClickData) error {
	return s.dispatcher.HandleClick(ctx, action, data)
}
