package engine

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/skillforge/edgecache/internal/domain"
)

// Manifest is the static asset manifest: the generation version and the
// critical routes pre-populated into the cache at install time. It is
// configuration shipped with each deploy, not code.
type Manifest struct {
	Version string   `toml:"version"`
	Routes  []string `toml:"routes"`
}

// LoadManifest reads and parses a TOML asset manifest.
func LoadManifest(path string) (Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := toml.Unmarshal(b, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Version == "" {
		return Manifest{}, fmt.Errorf("%w: manifest version is required", domain.ErrInvalidConfig)
	}
	return m, nil
}
