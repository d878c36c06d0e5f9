package queue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// The manifest records what kind of queue lives in a directory so a later
// open (or the bq CLI) can refuse a flavor mismatch and recover the
// creation-time options. It is advisory metadata next to the store's own
// files, written atomically so a crash never leaves a torn manifest.

// ManifestName is the manifest file name inside a queue directory.
const ManifestName = "queue.json"

const manifestFormat = 1

const (
	flavorBounded = "bounded"
	flavorMpmc    = "mpmc"
)

// Manifest describes the queue stored in a directory.
//
// The file is JSON; hand edits with comments or trailing commas are
// tolerated on read.
type Manifest struct {
	Format int    `json:"format"`
	Flavor string `json:"flavor"`

	// MaxElements is set for bounded queues.
	MaxElements uint64 `json:"max_elements,omitempty"`

	// TTLSeconds is set for mpmc queues.
	TTLSeconds uint64 `json:"ttl_seconds,omitempty"`
}

// ReadManifest loads the manifest from a queue directory.
//
// The second result is false when no manifest exists.
func ReadManifest(dir string) (Manifest, bool, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if errors.Is(err, fs.ErrNotExist) {
		return Manifest{}, false, nil
	}

	if err != nil {
		return Manifest{}, false, fmt.Errorf("read manifest: %w", err)
	}

	std, err := hujson.Standardize(raw)
	if err != nil {
		return Manifest{}, false, fmt.Errorf("parse manifest: %w: %w", ErrDecode, err)
	}

	var m Manifest
	if err := json.Unmarshal(std, &m); err != nil {
		return Manifest{}, false, fmt.Errorf("parse manifest: %w: %w", ErrDecode, err)
	}

	return m, true, nil
}

// checkFlavor verifies that dir is either fresh or already holds a queue of
// the wanted flavor.
func checkFlavor(dir, want string) error {
	m, exists, err := ReadManifest(dir)
	if err != nil {
		return err
	}

	if exists && m.Flavor != want {
		return fmt.Errorf("directory %s holds a %q queue, want %q: %w", dir, m.Flavor, want, ErrIncompatible)
	}

	return nil
}

// writeManifest persists the manifest atomically.
func writeManifest(dir string, m Manifest) error {
	m.Format = manifestFormat

	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	raw = append(raw, '\n')

	path := filepath.Join(dir, ManifestName)
	if err := atomic.WriteFile(path, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}
