// ABOUTME: Install manifest listing the app-shell assets to pre-cache
// ABOUTME: Parsed from TOML and validated before any install runs

package cache

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultOfflinePage is the path the built-in offline page is stored under.
const DefaultOfflinePage = "/offline.html"

// Manifest lists the assets an install pre-caches.
type Manifest struct {
	// Assets are origin-relative paths fetched during install, in order.
	Assets []string `toml:"assets"`
	// OfflinePage is served for navigations that fail with nothing cached.
	// When empty, the built-in page is stored at DefaultOfflinePage.
	OfflinePage string `toml:"offline_page"`
}

// DefaultManifest returns the built-in app-shell manifest.
func DefaultManifest() *Manifest {
	return &Manifest{
		Assets: []string{"/", "/index.html", "/manifest.json"},
	}
}

// LoadManifest reads and validates a TOML manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest parses and validates TOML manifest data.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := m.Normalize(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Normalize makes every path absolute, drops duplicates and checks that a
// custom offline page is one of the fetched assets.
func (m *Manifest) Normalize() error {
	if len(m.Assets) == 0 {
		return errors.New("manifest: assets must not be empty")
	}

	assets := make([]string, 0, len(m.Assets))
	for _, a := range m.Assets {
		a = strings.TrimSpace(a)
		if a == "" {
			return errors.New("manifest: empty asset path")
		}
		if strings.Contains(a, "://") || strings.Contains(a, "..") {
			return fmt.Errorf("manifest: asset %q must be an origin-relative path", a)
		}
		a = absolutePath(a)
		if !slices.Contains(assets, a) {
			assets = append(assets, a)
		}
	}
	m.Assets = assets

	if m.OfflinePage != "" {
		m.OfflinePage = absolutePath(strings.TrimSpace(m.OfflinePage))
		if !slices.Contains(m.Assets, m.OfflinePage) {
			return fmt.Errorf("manifest: offline_page %q is not listed in assets", m.OfflinePage)
		}
	}
	return nil
}

// OfflinePath returns the path the offline page is cached under.
func (m *Manifest) OfflinePath() string {
	if m.OfflinePage == "" {
		return DefaultOfflinePage
	}
	return m.OfflinePage
}

// BuiltinOffline reports whether the offline page comes from the embedded assets.
func (m *Manifest) BuiltinOffline() bool {
	return m.OfflinePage == ""
}

// absolutePath turns "./index.html" and "index.html" into "/index.html".
func absolutePath(p string) string {
	p = strings.TrimPrefix(p, ".")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
