// Package registry tracks named pattern sets and the manifests describing
// compiled scanner files.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"GoScan/internal/storage"
)

var ErrManifestCorrupt = errors.New("manifest checksum verification failed")

// Manifest is the on-disk description of one compiled scanner file.
type Manifest struct {
	Name          string           `json:"name"`
	CreatedAt     time.Time        `json:"created_at"`
	Relocation    string           `json:"relocation"` // "offset" or "absolute"
	Patterns      []PatternEntry   `json:"patterns"`
	ImageChecksum storage.Checksum `json:"image_checksum"`
	Checksum      storage.Checksum `json:"checksum"`
}

// PatternEntry names one regexp within a scanner. RegexpID is the ID the
// scanner reports for it.
type PatternEntry struct {
	Name     string `json:"name"`
	Pattern  string `json:"pattern"`
	RegexpID uint32 `json:"regexp_id"`
}

// MarshalManifest serializes a manifest to JSON and computes its checksum.
func MarshalManifest(m *Manifest) ([]byte, error) {
	sortPatterns(m.Patterns)

	checksum, err := computeManifestChecksum(m)
	if err != nil {
		return nil, fmt.Errorf("compute manifest checksum: %w", err)
	}
	m.Checksum = checksum

	data, err := sonnet.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}

// UnmarshalManifest deserializes a manifest from JSON and verifies its
// checksum.
func UnmarshalManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := sonnet.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}

	saved := m.Checksum
	computed, err := computeManifestChecksum(&m)
	if err != nil {
		return nil, fmt.Errorf("compute manifest checksum for verification: %w", err)
	}
	if computed != saved {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrManifestCorrupt, saved, computed)
	}
	return &m, nil
}

// CompileKey derives the cache key for a pattern set under a relocation
// strategy: the checksum of the canonical encoding of everything that
// affects the compiled image.
func CompileKey(patterns []string, relocation string) storage.Checksum {
	doc := struct {
		Relocation string   `json:"relocation"`
		Patterns   []string `json:"patterns"`
	}{relocation, patterns}
	data, err := sonnet.Marshal(doc)
	if err != nil {
		// Strings and a struct literal cannot fail to encode.
		panic(err)
	}
	return storage.ComputeChecksum(data)
}

// computeManifestChecksum computes the checksum of a manifest by serializing
// it with an empty checksum field.
func computeManifestChecksum(m *Manifest) (storage.Checksum, error) {
	saved := m.Checksum
	m.Checksum = ""
	defer func() { m.Checksum = saved }()

	sortPatterns(m.Patterns)
	data, err := sonnet.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal for checksum: %w", err)
	}
	return storage.ComputeChecksum(data), nil
}

// sortPatterns orders entries by regexp ID for deterministic serialization.
func sortPatterns(patterns []PatternEntry) {
	sort.Slice(patterns, func(i, j int) bool {
		return patterns[i].RegexpID < patterns[j].RegexpID
	})
}
