package cliconfig

import (
	"os"

	"github.com/skillforge/edgecache/internal/engine"
)

// ApplyEnvConfig applies configuration from environment variables
// (EDGECACHE_*). It respects flags that have been explicitly set (changed
// map). Environment variables take precedence over config file values.
func ApplyEnvConfig(cfg *engine.Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("listen", os.Getenv("EDGECACHE_LISTEN_ADDR"), &cfg.ListenAddr)
	s.setString("origin-url", os.Getenv("EDGECACHE_ORIGIN_URL"), &cfg.OriginURL)
	s.setString("data-dir", os.Getenv("EDGECACHE_DATA_DIR"), &cfg.DataDir)
	s.setString("manifest", os.Getenv("EDGECACHE_MANIFEST"), &cfg.ManifestPath)
	s.setString("offline-path", os.Getenv("EDGECACHE_OFFLINE_PATH"), &cfg.OfflinePath)
	s.setString("health-path", os.Getenv("EDGECACHE_HEALTH_PATH"), &cfg.HealthPath)
	s.setString("auth-key", os.Getenv("EDGECACHE_AUTH_KEY"), &cfg.AuthKey)
	s.setString("progress-path", os.Getenv("EDGECACHE_PROGRESS_PATH"), &cfg.ProgressPath)
	s.setString("analytics-path", os.Getenv("EDGECACHE_ANALYTICS_PATH"), &cfg.AnalyticsPath)

	if err := s.setDuration("timeout", os.Getenv("EDGECACHE_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("probe-interval", os.Getenv("EDGECACHE_PROBE_INTERVAL"), &cfg.ProbeInterval); err != nil {
		return err
	}
	if err := s.setDuration("sync-backoff-initial", os.Getenv("EDGECACHE_SYNC_BACKOFF_INITIAL"), &cfg.SyncBackoffInitial); err != nil {
		return err
	}
	if err := s.setDuration("sync-backoff-max", os.Getenv("EDGECACHE_SYNC_BACKOFF_MAX"), &cfg.SyncBackoffMax); err != nil {
		return err
	}

	if err := s.setIntFromString("max-sync-attempts", os.Getenv("EDGECACHE_MAX_SYNC_ATTEMPTS"), &cfg.MaxSyncAttempts); err != nil {
		return err
	}
	if err := s.setIntFromString("refresh-concurrency", os.Getenv("EDGECACHE_REFRESH_CONCURRENCY"), &cfg.RefreshConcurrency); err != nil {
		return err
	}

	s.setBoolFromString("activate-on-deploy", os.Getenv("EDGECACHE_ACTIVATE_ON_DEPLOY"), &cfg.ActivateOnDeploy)

	return nil
}
