// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/petar-djukic/gramgen/pkg/types"
)

// persistedSnapshot is the on-disk form of a Snapshot. Hashes are stored
// as fixed-width hex strings so the file is stable and diffable.
type persistedSnapshot struct {
	Language     string            `json:"language"`
	Symbols      []types.Symbol    `json:"symbols"`
	Refs         []Reference       `json:"refs,omitempty"`
	Hashes       map[string]string `json:"hashes"`
	SkippedFiles []persistedSkip   `json:"skippedFiles,omitempty"`
	Root         string            `json:"root"`
	HeadCommit   string            `json:"headCommit,omitempty"`
	Dirty        bool              `json:"dirty,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

type persistedSkip struct {
	Path  string `json:"path"`
	Cause string `json:"cause"`
}

// saveSnapshot writes a snapshot to disk using an atomic write strategy:
// write to a temp file in the same directory, then rename. This prevents
// corruption from partial writes.
func saveSnapshot(path string, snap *Snapshot) error {
	ps := persistedSnapshot{
		Language:   snap.Language.String(),
		Symbols:    snap.Symbols,
		Refs:       snap.Refs,
		Hashes:     make(map[string]string, len(snap.Hashes)),
		Root:       snap.Meta.Root,
		HeadCommit: snap.Meta.HeadCommit,
		Dirty:      snap.Meta.Dirty,
		CreatedAt:  snap.Meta.CreatedAt,
	}
	for p, h := range snap.Hashes {
		ps.Hashes[p] = fmt.Sprintf("%016x", h)
	}
	for _, sk := range snap.SkippedFiles {
		ps.SkippedFiles = append(ps.SkippedFiles, persistedSkip{Path: sk.Path, Cause: sk.Err.Error()})
	}

	data, err := json.MarshalIndent(ps, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling index: %w", err)
	}

	return atomicWrite(path, data)
}

// loadSnapshot reads a persisted snapshot from disk.
func loadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var ps persistedSnapshot
	if err := json.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("decoding index %s: %w", path, err)
	}

	lang, err := types.ParseLanguage(ps.Language)
	if err != nil {
		return nil, fmt.Errorf("decoding index %s: %w", path, err)
	}

	hashes := make(map[string]uint64, len(ps.Hashes))
	for p, hexStr := range ps.Hashes {
		h, err := strconv.ParseUint(hexStr, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("decoding index %s: bad hash for %s: %w", path, p, err)
		}
		hashes[p] = h
	}

	var skipped []FileError
	for _, sk := range ps.SkippedFiles {
		skipped = append(skipped, FileError{Path: sk.Path, Err: errors.New(sk.Cause)})
	}

	meta := Meta{Root: ps.Root, HeadCommit: ps.HeadCommit, Dirty: ps.Dirty, CreatedAt: ps.CreatedAt}
	return newSnapshot(lang, ps.Symbols, ps.Refs, hashes, skipped, meta), nil
}

// atomicWrite writes data to path via a temp file and rename.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".gramgen-*.tmp")
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
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	success = true
	return nil
}
