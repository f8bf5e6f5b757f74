// Package edgecache provides an embeddable offline-first cache and sync
// engine for e-learning web clients.
//
// The engine runs as a local daemon fronting the platform origin: it
// intercepts every request, resolves it through a caching discipline,
// queues mutations that fail while offline, and replays them when
// connectivity returns. Foreground clients talk to it over a websocket
// control channel.
//
// Example usage:
//
//	cfg := edgecache.DefaultConfig()
//	cfg.OriginURL = "https://lms.example.com"
//	cfg.DataDir = "/var/lib/edgecache"
//	cfg.ManifestPath = "/etc/edgecache/manifest.toml"
//
//	eng, err := edgecache.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := eng.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
package edgecache

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/skillforge/edgecache/internal/adapters/httpapi"
	"github.com/skillforge/edgecache/internal/adapters/leveldb"
	"github.com/skillforge/edgecache/internal/domain"
	"github.com/skillforge/edgecache/internal/engine"
	"github.com/skillforge/edgecache/internal/ports"
)

// Config holds the engine configuration.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = engine.Config

// Manifest describes one deployable generation of static assets.
type Manifest = engine.Manifest

// ShutdownTimeout bounds how long Stop waits for in-flight work.
const ShutdownTimeout = 30 * time.Second

// DefaultConfig returns a Config with sensible default values.
// At minimum, set OriginURL, DataDir, and ManifestPath before calling New.
func DefaultConfig() Config {
	return engine.DefaultConfig()
}

// LoadManifest reads a TOML asset manifest from disk.
func LoadManifest(path string) (Manifest, error) {
	return engine.LoadManifest(path)
}

// Engine is the cache and sync engine. Use New() to create an instance,
// then Start() to begin serving.
type Engine struct {
	config Config
	opts   options

	kv         *leveldb.Store
	store      *engine.CacheStore
	queue      *engine.SyncQueue
	trigger    *engine.Trigger
	lifecycle  *engine.Lifecycle
	hub        *engine.Hub
	server     *engine.Server
	dispatcher *engine.Dispatcher
	logger     ports.Logger

	plugins []Plugin

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates an Engine with the given configuration. The persistent store
// is opened here, so events queued by a previous run are visible
// immediately; call Start() to begin serving.
func New(cfg Config, opts ...Option) (*Engine, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	o := defaultOptions(httpClient)
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger

	kv, err := leveldb.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	emitter := &eventEmitterWrapper{handler: o.eventHandler}

	store := engine.NewCacheStore(kv, logger)
	fetcher := httpapi.NewFetcher(cfg.OriginURL, o.httpClient, logger)
	sender := httpapi.NewEventSender(cfg.OriginURL, cfg.AuthKey, o.httpClient, logger)
	probe := httpapi.NewProbe(cfg.OriginURL, cfg.HealthPath, o.httpClient)

	queue, err := engine.NewSyncQueue(kv, sender, cfg.MaxSyncAttempts,
		cfg.SyncBackoffInitial, cfg.SyncBackoffMax, logger)
	if err != nil {
		kv.Close()
		return nil, err
	}

	// The hub doubles as the notification sink and window opener: the
	// engine has no screen of its own, foreground clients render for it.
	hub := engine.NewHub(nil, logger)
	lifecycle := engine.NewLifecycle(store, fetcher, emitter, hub.AnnounceTakeover, logger)
	resolver := engine.NewResolver(store, fetcher, lifecycle, cfg.OfflinePath, cfg.RefreshConcurrency, logger)
	router := engine.NewRouter(cfg.APIPrefixes, cfg.AssetPrefixes, cfg.MediaExtensions, cfg.AssetExtensions)
	dispatcher := engine.NewDispatcher(hub, hub, logger)

	onReport := func(report domain.FlushReport) {
		hub.Broadcast(engine.ControlMessage{Type: engine.MsgSyncReport, Tag: report.Tag, Report: &report})
		emitter.OnFlush(report)
	}
	trigger := engine.NewTrigger(queue, probe, cfg.ProbeInterval, onReport, logger)

	server := engine.NewServer(cfg, router, resolver, store, queue, trigger, lifecycle, dispatcher, hub, fetcher, logger)
	hub.SetHandler(server)

	return &Engine{
		config:     cfg,
		opts:       o,
		kv:         kv,
		store:      store,
		queue:      queue,
		trigger:    trigger,
		lifecycle:  lifecycle,
		hub:        hub,
		server:     server,
		dispatcher: dispatcher,
		logger:     logger,
		plugins:    o.plugins,
	}, nil
}

// Start installs and activates the manifest generation, then begins
// serving and probing in the background. Returns once the engine is up.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return domain.ErrAlreadyRunning
	}

	manifest, err := engine.LoadManifest(e.config.ManifestPath)
	if err != nil {
		return err
	}
	if err := e.lifecycle.Install(ctx, manifest); err != nil {
		return err
	}
	// Startup always activates: there are no clients attached to an older
	// generation yet, so there is nothing to wait for.
	if err := e.lifecycle.Activate(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)

	pluginCfg := PluginConfig{
		OriginURL:    e.config.OriginURL,
		DataDir:      e.config.DataDir,
		ManifestPath: e.config.ManifestPath,
		Logger:       e.logger,
		Engine:       e,
	}
	for _, p := range e.plugins {
		if err := p.Initialize(runCtx, pluginCfg); err != nil {
			e.logger.Error("plugin initialization failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			cancel()
			return err
		}
		e.logger.Info("plugin initialized", ports.String("plugin", p.Name()))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if serr := e.server.Start(); serr != nil {
			e.logger.Error("server stopped", ports.Err(serr))
		}
	}()
	go e.trigger.Run(runCtx)

	e.cancel = cancel
	e.done = done
	e.running = true
	e.logger.Info("engine started",
		ports.String("listen", e.config.ListenAddr),
		ports.String("generation", e.lifecycle.CurrentGeneration()))
	return nil
}

// Stop gracefully shuts the engine down: the HTTP surface drains, detached
// refreshes finish, plugins shut down in reverse order, and the store
// closes. Returns ErrShutdownTimeout when draining exceeds the budget.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return domain.ErrNotRunning
	}
	e.running = false
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()

	cancel()

	ctx, cancelShutdown := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancelShutdown()

	err := e.server.Shutdown(ctx)

	select {
	case <-done:
	case <-ctx.Done():
		err = domain.ErrShutdownTimeout
	}

	shutdownCtx := context.Background()
	for i := len(e.plugins) - 1; i >= 0; i-- {
		p := e.plugins[i]
		if serr := p.Shutdown(shutdownCtx); serr != nil {
			e.logger.Error("plugin shutdown failed",
				ports.String("plugin", p.Name()),
				ports.Err(serr))
		} else {
			e.logger.Info("plugin shutdown complete", ports.String("plugin", p.Name()))
		}
	}

	if cerr := e.kv.Close(); cerr != nil && err == nil {
		err = cerr
	}
	e.logger.Info("engine stopped")
	return err
}

// ReloadManifest re-reads the asset manifest and installs it as a new
// generation. When ActivateOnDeploy is set (or the version is unchanged)
// the generation activates immediately; otherwise it waits for a
// SKIP_WAITING control message.
func (e *Engine) ReloadManifest(ctx context.Context) error {
	manifest, err := engine.LoadManifest(e.config.ManifestPath)
	if err != nil {
		return err
	}
	if err := e.lifecycle.Install(ctx, manifest); err != nil {
		return err
	}
	if e.config.ActivateOnDeploy || manifest.Version == e.lifecycle.CurrentGeneration() {
		return e.lifecycle.Activate(ctx)
	}
	e.logger.Info("generation waiting for activation",
		ports.String("generation", manifest.Version))
	return nil
}

// Status reports the engine's current state.
// Safe to call concurrently from any goroutine.
func (e *Engine) Status() Status {
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()

	return Status{
		Running:           running,
		Phase:             e.lifecycle.Phase().String(),
		Generation:        e.lifecycle.CurrentGeneration(),
		WaitingGeneration: e.lifecycle.WaitingGeneration(),
		Online:            e.trigger.Online(),
		Clients:           e.hub.ClientCount(),
	}
}

// Status is a point-in-time snapshot of the engine.
type Status struct {
	Running           bool
	Phase             string
	Generation        string
	WaitingGeneration string
	Online            bool
	Clients           int
}
