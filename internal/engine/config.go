package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/skillforge/edgecache/internal/domain"
)

// Config holds the engine configuration. Use DefaultConfig() for sensible
// defaults; OriginURL and DataDir are required.
type Config struct {
	// ListenAddr is the local address the worker serves on.
	ListenAddr string

	// OriginURL is the base URL of the origin API the engine fronts.
	OriginURL string

	// DataDir is where the persistent store (cache + queue) lives.
	DataDir string

	// ManifestPath points to the TOML asset manifest.
	ManifestPath string

	// OfflinePath is the pre-cached route served when navigation fails
	// with no cached alternative.
	OfflinePath string

	// HealthPath is the origin route probed for connectivity.
	HealthPath string

	// AuthKey authenticates sync replays against the origin.
	AuthKey string

	// Classification rules.
	APIPrefixes     []string
	AssetPrefixes   []string
	MediaExtensions []string
	AssetExtensions []string

	// Paths whose failed POSTs are queued for replay, mapped by sync tag.
	ProgressPath  string
	AnalyticsPath string

	// HTTPTimeout bounds each origin fetch.
	HTTPTimeout time.Duration

	// ProbeInterval is how often connectivity is checked.
	ProbeInterval time.Duration

	// Retry policy for failed sync deliveries.
	MaxSyncAttempts    int
	SyncBackoffInitial time.Duration
	SyncBackoffMax     time.Duration

	// RefreshConcurrency bounds detached cache refreshes.
	RefreshConcurrency int

	// ActivateOnDeploy activates a freshly installed generation
	// immediately instead of waiting for a SKIP_WAITING signal.
	ActivateOnDeploy bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ListenAddr:         ":8787",
		OfflinePath:        "/offline",
		HealthPath:         "/healthz",
		APIPrefixes:        []string{"/api/"},
		AssetPrefixes:      []string{"/assets/", "/static/"},
		MediaExtensions:    []string{".mp4", ".webm", ".m3u8", ".ts", ".m4s"},
		AssetExtensions:    []string{".js", ".css", ".woff", ".woff2", ".svg", ".png", ".jpg", ".webp"},
		ProgressPath:       "/api/progress",
		AnalyticsPath:      "/api/analytics",
		HTTPTimeout:        30 * time.Second,
		ProbeInterval:      15 * time.Second,
		MaxSyncAttempts:    DefaultMaxSyncAttempts,
		SyncBackoffInitial: DefaultBackoffInitial,
		SyncBackoffMax:     DefaultBackoffMax,
		RefreshConcurrency: 8,
	}
}

// SetDefaults fills zero-valued fields with defaults.
func (c *Config) SetDefaults() {
	d := DefaultConfig()
	if c.ListenAddr == "" {
		c.ListenAddr = d.ListenAddr
	}
	if c.OfflinePath == "" {
		c.OfflinePath = d.OfflinePath
	}
	if c.HealthPath == "" {
		c.HealthPath = d.HealthPath
	}
	if len(c.APIPrefixes) == 0 {
		c.APIPrefixes = d.APIPrefixes
	}
	if len(c.AssetPrefixes) == 0 {
		c.AssetPrefixes = d.AssetPrefixes
	}
	if len(c.MediaExtensions) == 0 {
		c.MediaExtensions = d.MediaExtensions
	}
	if len(c.AssetExtensions) == 0 {
		c.AssetExtensions = d.AssetExtensions
	}
	if c.ProgressPath == "" {
		c.ProgressPath = d.ProgressPath
	}
	if c.AnalyticsPath == "" {
		c.AnalyticsPath = d.AnalyticsPath
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = d.HTTPTimeout
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = d.ProbeInterval
	}
	if c.MaxSyncAttempts <= 0 {
		c.MaxSyncAttempts = d.MaxSyncAttempts
	}
	if c.SyncBackoffInitial <= 0 {
		c.SyncBackoffInitial = d.SyncBackoffInitial
	}
	if c.SyncBackoffMax <= 0 {
		c.SyncBackoffMax = d.SyncBackoffMax
	}
	if c.RefreshConcurrency <= 0 {
		c.RefreshConcurrency = d.RefreshConcurrency
	}
}

// Validate checks the configuration for errors and normalizes derived
// fields.
func (c *Config) Validate() error {
	if c.OriginURL == "" {
		return fmt.Errorf("%w: origin-url is required", domain.ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.OriginURL, "http://") && !strings.HasPrefix(c.OriginURL, "https://") {
		return fmt.Errorf("%w: origin-url must be http(s)", domain.ErrInvalidConfig)
	}
	c.OriginURL = strings.TrimRight(c.OriginURL, "/")

	if c.DataDir == "" {
		return fmt.Errorf("%w: data-dir is required", domain.ErrInvalidConfig)
	}
	if c.ManifestPath == "" {
		return fmt.Errorf("%w: manifest is required", domain.ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.OfflinePath, "/") {
		return fmt.Errorf("%w: offline-path must start with /", domain.ErrInvalidConfig)
	}
	return nil
}

// SyncTagFor maps a request path to its sync tag; ok is false when the
// path is not a sync replay target.
func (c *Config) SyncTagFor(path string) (string, bool) {
	switch path {
	case c.ProgressPath:
		return domain.TagProgress, true
	case c.AnalyticsPath:
		return domain.TagAnalytics, true
	default:
		return "", false
	}
}
