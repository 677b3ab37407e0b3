// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package index

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/gramgen/pkg/types"
)

func TestSnapshotPersistence_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "typescript.json")

	original := newSnapshot(
		types.LangTypeScript,
		[]types.Symbol{
			sym("add", types.Function, "a.ts", 1, "function add(a: number): number {"),
		},
		[]Reference{{Name: "add", FilePath: "b.ts", Line: 4}},
		map[string]uint64{"a.ts": 0xdeadbeef, "b.ts": 42},
		[]FileError{{Path: "bad.ts", Err: errors.New("parse failed")}},
		Meta{Root: "/proj", HeadCommit: "abc123", Dirty: true, CreatedAt: time.Now().UTC().Truncate(time.Second)},
	)

	require.NoError(t, saveSnapshot(path, original))

	loaded, err := loadSnapshot(path)
	require.NoError(t, err)

	assert.Equal(t, original.Language, loaded.Language)
	assert.Equal(t, original.Symbols, loaded.Symbols)
	assert.Equal(t, original.Refs, loaded.Refs)
	assert.Equal(t, original.Hashes, loaded.Hashes)
	assert.Equal(t, original.Meta, loaded.Meta)
	require.Len(t, loaded.SkippedFiles, 1)
	assert.Equal(t, "bad.ts", loaded.SkippedFiles[0].Path)

	// Lookup maps are rebuilt on load.
	assert.True(t, loaded.Has("add"))
	assert.Equal(t, original.HashDigest(), loaded.HashDigest())
}

func TestLoadSnapshot_Missing(t *testing.T) {
	_, err := loadSnapshot(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadSnapshot_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := loadSnapshot(path)
	assert.Error(t, err)
}

func TestAtomicWrite_NoTempResidue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	require.NoError(t, atomicWrite(path, []byte(`{}`)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.json", entries[0].Name())
}
