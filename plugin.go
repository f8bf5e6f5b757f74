package edgecache

import (
	"context"

	"github.com/skillforge/edgecache/internal/ports"
)

// Plugin extends the engine with optional background functionality, such as
// the manifest deploy watcher. Plugins are initialized when the engine
// starts and shut down when it stops.
type Plugin interface {
	// Name returns a short identifier used in logs.
	Name() string

	// Initialize starts the plugin. The context is canceled when the
	// engine stops.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown stops the plugin and releases its resources.
	Shutdown(ctx context.Context) error
}

// PluginConfig is passed to every plugin at initialization.
type PluginConfig struct {
	OriginURL    string
	DataDir      string
	ManifestPath string
	Logger       ports.Logger

	// Engine is the running engine, for plugins that drive it (deploy
	// watchers calling ReloadManifest, for instance).
	Engine *Engine
}
