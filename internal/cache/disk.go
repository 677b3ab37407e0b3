// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/petar-djukic/gramgen/internal/grammar"
)

// diskStore persists templates as one JSON file per fingerprint, each
// carrying the index-state marker it was last validated against.
type diskStore struct {
	dir    string
	logger *slog.Logger
}

// diskEntry is the on-disk form of a cached template.
type diskEntry struct {
	Template *grammar.Template `json:"template"`
	Marker   string            `json:"marker"`
	SavedAt  time.Time         `json:"savedAt"`
}

func newDiskStore(dir string, logger *slog.Logger) (*diskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory %s: %w", dir, err)
	}
	return &diskStore{dir: dir, logger: logger}, nil
}

func (d *diskStore) path(fingerprint string) string {
	return filepath.Join(d.dir, fingerprint+".json")
}

// save writes the entry atomically: temp file in the same directory,
// then rename.
func (d *diskStore) save(t *grammar.Template, marker string) error {
	data, err := json.MarshalIndent(diskEntry{Template: t, Marker: marker, SavedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling template: %w", err)
	}

	tmp, err := os.CreateTemp(d.dir, ".gramgen-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, d.path(t.Fingerprint)); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	success = true
	return nil
}

func (d *diskStore) load(fingerprint string) (*grammar.Template, string, bool) {
	data, err := os.ReadFile(d.path(fingerprint))
	if err != nil {
		return nil, "", false
	}

	var e diskEntry
	if err := json.Unmarshal(data, &e); err != nil || e.Template == nil {
		// Corrupt entry; drop it rather than fail lookups forever.
		d.remove(fingerprint)
		return nil, "", false
	}
	return e.Template, e.Marker, true
}

func (d *diskStore) remove(fingerprint string) {
	if err := os.Remove(d.path(fingerprint)); err != nil && !os.IsNotExist(err) {
		d.logger.Warn("removing cached template failed", "fingerprint", fingerprint, "error", err)
	}
}

// invalidate removes every persisted entry whose dependency set
// intersects the changed names, returning the number removed.
func (d *diskStore) invalidate(changed []string) int {
	paths, err := filepath.Glob(filepath.Join(d.dir, "*.json"))
	if err != nil {
		return 0
	}

	removed := 0
	for _, p := range paths {
		fingerprint := strings.TrimSuffix(filepath.Base(p), ".json")
		tmpl, _, ok := d.load(fingerprint)
		if !ok {
			continue
		}
		if tmpl.DependsOn(changed) {
			d.remove(fingerprint)
			removed++
		}
	}
	return removed
}
