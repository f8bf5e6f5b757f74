package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/skillforge/edgecache/internal/engine"
)

// FileConfig mirrors engine.Config but uses strings for durations to make
// TOML friendly. Classification rules are file-only: they are lists and do
// not map cleanly onto flags or environment variables.
type FileConfig struct {
	ListenAddr   string `toml:"listen_addr"`
	OriginURL    string `toml:"origin_url"`
	DataDir      string `toml:"data_dir"`
	ManifestPath string `toml:"manifest"`
	OfflinePath  string `toml:"offline_path"`
	HealthPath   string `toml:"health_path"`
	AuthKey      string `toml:"auth_key"`

	APIPrefixes     []string `toml:"api_prefixes"`
	AssetPrefixes   []string `toml:"asset_prefixes"`
	MediaExtensions []string `toml:"media_extensions"`
	AssetExtensions []string `toml:"asset_extensions"`

	ProgressPath  string `toml:"progress_path"`
	AnalyticsPath string `toml:"analytics_path"`

	HTTPTimeout   string `toml:"http_timeout"`
	ProbeInterval string `toml:"probe_interval"`

	MaxSyncAttempts    int    `toml:"max_sync_attempts"`
	SyncBackoffInitial string `toml:"sync_backoff_initial"`
	SyncBackoffMax     string `toml:"sync_backoff_max"`

	RefreshConcurrency int   `toml:"refresh_concurrency"`
	ActivateOnDeploy   *bool `toml:"activate_on_deploy"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.edgecache/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".edgecache", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *engine.Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("listen", fc.ListenAddr, &cfg.ListenAddr)
	s.setString("origin-url", fc.OriginURL, &cfg.OriginURL)
	s.setString("data-dir", fc.DataDir, &cfg.DataDir)
	s.setString("manifest", fc.ManifestPath, &cfg.ManifestPath)
	s.setString("offline-path", fc.OfflinePath, &cfg.OfflinePath)
	s.setString("health-path", fc.HealthPath, &cfg.HealthPath)
	s.setString("auth-key", fc.AuthKey, &cfg.AuthKey)
	s.setString("progress-path", fc.ProgressPath, &cfg.ProgressPath)
	s.setString("analytics-path", fc.AnalyticsPath, &cfg.AnalyticsPath)

	s.setStrings("api-prefixes", fc.APIPrefixes, &cfg.APIPrefixes)
	s.setStrings("asset-prefixes", fc.AssetPrefixes, &cfg.AssetPrefixes)
	s.setStrings("media-extensions", fc.MediaExtensions, &cfg.MediaExtensions)
	s.setStrings("asset-extensions", fc.AssetExtensions, &cfg.AssetExtensions)

	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("probe-interval", fc.ProbeInterval, &cfg.ProbeInterval); err != nil {
		return err
	}
	if err := s.setDuration("sync-backoff-initial", fc.SyncBackoffInitial, &cfg.SyncBackoffInitial); err != nil {
		return err
	}
	if err := s.setDuration("sync-backoff-max", fc.SyncBackoffMax, &cfg.SyncBackoffMax); err != nil {
		return err
	}

	s.setInt("max-sync-attempts", fc.MaxSyncAttempts, &cfg.MaxSyncAttempts)
	s.setInt("refresh-concurrency", fc.RefreshConcurrency, &cfg.RefreshConcurrency)

	s.setBool("activate-on-deploy", fc.ActivateOnDeploy, &cfg.ActivateOnDeploy)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
