package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/skillforge/edgecache/internal/domain"
)

func validConfig() Config {
	c := DefaultConfig()
	c.OriginURL = "https://lms.example.com"
	c.DataDir = "/var/lib/edgecache"
	c.ManifestPath = "/etc/edgecache/manifest.toml"
	return c
}

func TestConfig_SetDefaults(t *testing.T) {
	c := Config{OriginURL: "https://lms.example.com"}
	c.SetDefaults()

	if c.ListenAddr != ":8787" {
		t.Errorf("ListenAddr = %q", c.ListenAddr)
	}
	if c.OfflinePath != "/offline" {
		t.Errorf("OfflinePath = %q", c.OfflinePath)
	}
	if c.HTTPTimeout != 30*time.Second {
		t.Errorf("HTTPTimeout = %v", c.HTTPTimeout)
	}
	if c.MaxSyncAttempts != DefaultMaxSyncAttempts {
		t.Errorf("MaxSyncAttempts = %d", c.MaxSyncAttempts)
	}
	if len(c.APIPrefixes) == 0 || len(c.MediaExtensions) == 0 {
		t.Error("classification rules not defaulted")
	}
	// Explicit values survive.
	c2 := Config{ListenAddr: ":9999", HTTPTimeout: time.Second}
	c2.SetDefaults()
	if c2.ListenAddr != ":9999" || c2.HTTPTimeout != time.Second {
		t.Error("SetDefaults overwrote explicit values")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing origin", func(c *Config) { c.OriginURL = "" }, true},
		{"non-http origin", func(c *Config) { c.OriginURL = "ftp://example.com" }, true},
		{"missing data dir", func(c *Config) { c.DataDir = "" }, true},
		{"missing manifest", func(c *Config) { c.ManifestPath = "" }, true},
		{"relative offline path", func(c *Config) { c.OfflinePath = "offline" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfig_Validate_TrimsOriginSlash(t *testing.T) {
	c := validConfig()
	c.OriginURL = "https://lms.example.com/"
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	if c.OriginURL != "https://lms.example.com" {
		t.Errorf("OriginURL = %q", c.OriginURL)
	}
}

func TestConfig_SyncTagFor(t *testing.T) {
	c := validConfig()

	tag, ok := c.SyncTagFor("/api/progress")
	if !ok || tag != domain.TagProgress {
		t.Errorf("SyncTagFor(progress) = %q, %v", tag, ok)
	}
	tag, ok = c.SyncTagFor("/api/analytics")
	if !ok || tag != domain.TagAnalytics {
		t.Errorf("SyncTagFor(analytics) = %q, %v", tag, ok)
	}
	if _, ok := c.SyncTagFor("/api/courses"); ok {
		t.Error("SyncTagFor matched a non-sync path")
	}
}
