// Package manifestwatch provides deploy detection for edgecache.
// When enabled, it watches the asset manifest for changes and installs the
// new generation into the running engine, so a redeploy of the web client
// reaches offline users without restarting the daemon.
package manifestwatch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	edgecache "github.com/skillforge/edgecache"
	"github.com/skillforge/edgecache/pkg/log"
)

// Plugin implements manifest watching. It monitors the manifest file's
// directory (editors and deploy tools usually replace the file rather than
// write it in place) and triggers a reload when the manifest changes.
type Plugin struct {
	mu sync.Mutex

	// Configuration
	debounceDelay time.Duration
	retryInterval time.Duration

	// Runtime state
	manifestPath string
	engine       *edgecache.Engine
	logger       log.Logger
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	debounce     *time.Timer
}

// Config holds configuration options for the manifest watcher plugin.
type Config struct {
	// DebounceDelay is the delay to wait after a file change before
	// reloading, so a deploy writing the file in chunks triggers once.
	// Default: 250 milliseconds
	DebounceDelay time.Duration

	// RetryInterval is the delay between reload retries on failure.
	// Default: 5 seconds
	RetryInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 250 * time.Millisecond,
		RetryInterval: 5 * time.Second,
	}
}

// New creates a new manifest watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 250 * time.Millisecond
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 5 * time.Second
	}
	return &Plugin{
		debounceDelay: cfg.DebounceDelay,
		retryInterval: cfg.RetryInterval,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "manifestwatch"
}

// Initialize sets up the plugin and starts the manifest watcher.
func (p *Plugin) Initialize(ctx context.Context, cfg edgecache.PluginConfig) error {
	p.mu.Lock()
	p.manifestPath = cfg.ManifestPath
	p.engine = cfg.Engine
	p.logger = cfg.Logger
	p.mu.Unlock()

	if p.manifestPath == "" || p.engine == nil {
		p.logger.Warn("manifest watcher disabled: no manifest path or engine")
		return nil
	}

	// The watch must be in place before Initialize returns, or a deploy
	// landing right after startup goes unnoticed.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(p.manifestPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch manifest directory: %w", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("manifest watcher initialized",
		log.String("manifest", p.manifestPath))

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	return nil
}

// Shutdown stops the manifest watcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

// watchLoop drains the watcher's events until the context is cancelled.
func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	name := filepath.Base(p.manifestPath)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			p.debounceReload(ctx)

		case werr, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("manifest watcher: watcher error", log.Err(werr))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		p.reloadWithRetry(ctx)
	})
}

// reloadWithRetry retries until success or context cancellation. A deploy
// may briefly leave a truncated manifest on disk; retrying rides it out.
func (p *Plugin) reloadWithRetry(ctx context.Context) {
	for {
		err := p.engine.ReloadManifest(ctx)
		if err == nil {
			p.logger.Info("manifest reloaded")
			return
		}
		p.logger.Warn("manifest reload failed", log.Err(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.retryInterval):
		}
	}
}

// WithManifestWatch returns an engine option that registers the plugin.
func WithManifestWatch(cfg Config) edgecache.Option {
	return edgecache.WithPlugin(New(cfg))
}

// Ensure Plugin implements edgecache.Plugin.
var _ edgecache.Plugin = (*Plugin)(nil)
