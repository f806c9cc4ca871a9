package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrManifestNotFound is returned by LoadManifest when the manifest file
// does not exist. A compare run cannot start without one.
var ErrManifestNotFound = errors.New("manifest not found: run capture first")

// Generation identifies which side of a comparison a capture belongs to.
type Generation string

const (
	// GenerationBaseline is the "before" capture produced by a crawl.
	GenerationBaseline Generation = "baseline"

	// GenerationCandidate is the "after" capture produced by a compare run.
	GenerationCandidate Generation = "candidate"
)

// String returns the generation name.
func (g Generation) String() string {
	return string(g)
}

// CrawlTarget is a pending or visited frontier entry.
type CrawlTarget struct {
	// URL is the absolute URL to render.
	URL string

	// Depth is the number of link hops from the crawl start URL.
	Depth int
}

// CaptureArtifact binds a URL to its rendered raster image on disk.
type CaptureArtifact struct {
	// URL is the page URL as recorded in the manifest.
	URL string `json:"url"`

	// ImagePath is the path of the PNG file.
	ImagePath string `json:"imagePath"`

	// Fingerprint is the hex SHA3-256 digest of the PNG bytes.
	Fingerprint string `json:"fingerprint,omitempty"`

	// Generation is baseline or candidate.
	Generation Generation `json:"generation"`

	// CapturedAt is when the render finished.
	CapturedAt time.Time `json:"capturedAt"`
}

// Manifest is the ordered list of URLs captured by a crawl, in discovery order.
type Manifest []string

// Contains reports whether the manifest lists the URL.
func (m Manifest) Contains(u string) bool {
	for _, v := range m {
		if v == u {
			return true
		}
	}
	return false
}

// Save writes the manifest as an indented JSON array of URL strings.
// Parent directories are created when missing.
func (m Manifest) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create manifest directory: %w", err)
		}
	}

	list := m
	if list == nil {
		list = Manifest{}
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// LoadManifest reads a manifest written by Manifest.Save.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the output layout
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return m, nil
}
