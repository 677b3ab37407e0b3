// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package index extracts structural and type facts from a project tree
// into immutable snapshots, incrementally maintained via per-file content
// hashes.
package index

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/petar-djukic/gramgen/pkg/types"
)

// FileError records a file the indexer could not process. The scan
// continues past these; they are carried on the snapshot for diagnostics.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Reference records a symbol usage site, used to build the dependency
// graph for ranking and template invalidation.
type Reference struct {
	Name     string // Referenced symbol name
	FilePath string // File containing the reference
	Line     int    // 1-based line of the reference
}

// Meta describes the project state a snapshot was taken against.
type Meta struct {
	Root       string    // Absolute project root
	HeadCommit string    // Git HEAD hash at index time, empty outside git
	Dirty      bool      // Working tree had uncommitted changes
	CreatedAt  time.Time // When the snapshot was built
}

// Snapshot is an immutable index of one project tree: the extracted
// symbols, the reference sites, and the per-file content hash table.
// A reindex produces a new Snapshot; it never mutates an existing one.
type Snapshot struct {
	Language     types.Language
	Symbols      []types.Symbol
	Refs         []Reference
	Hashes       map[string]uint64 // relative path -> xxhash of content
	SkippedFiles []FileError
	Meta         Meta

	byName map[string][]int
	byFile map[string][]int
}

// newSnapshot builds the lookup maps over a sorted symbol slice.
// Symbols must already be sorted by (FilePath, Line, Name) so that
// identical inputs produce identical snapshots.
func newSnapshot(lang types.Language, symbols []types.Symbol, refs []Reference, hashes map[string]uint64, skipped []FileError, meta Meta) *Snapshot {
	s := &Snapshot{
		Language:     lang,
		Symbols:      symbols,
		Refs:         refs,
		Hashes:       hashes,
		SkippedFiles: skipped,
		Meta:         meta,
		byName:       make(map[string][]int),
		byFile:       make(map[string][]int),
	}
	for i, sym := range symbols {
		s.byName[sym.Name] = append(s.byName[sym.Name], i)
		s.byFile[sym.FilePath] = append(s.byFile[sym.FilePath], i)
	}
	return s
}

// LookupName returns all symbols declared with the given name.
func (s *Snapshot) LookupName(name string) []types.Symbol {
	return s.lookup(s.byName[name])
}

// Has reports whether any symbol with the given name exists.
func (s *Snapshot) Has(name string) bool {
	return len(s.byName[name]) > 0
}

// SymbolsInFile returns all symbols declared in the given file.
func (s *Snapshot) SymbolsInFile(path string) []types.Symbol {
	return s.lookup(s.byFile[path])
}

// Names returns the sorted set of all declared symbol names.
func (s *Snapshot) Names() []string {
	names := make([]string, 0, len(s.byName))
	for n := range s.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// HashDigest returns a stable digest of the hash table, used as the
// index-state marker for persisted grammar cache entries.
func (s *Snapshot) HashDigest() string {
	paths := make([]string, 0, len(s.Hashes))
	for p := range s.Hashes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		fmt.Fprintf(h, "%s=%016x\n", p, s.Hashes[p])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Snapshot) lookup(indices []int) []types.Symbol {
	if len(indices) == 0 {
		return nil
	}
	result := make([]types.Symbol, len(indices))
	for i, idx := range indices {
		result[i] = s.Symbols[idx]
	}
	return result
}

// Changes lists the symbol names whose declarations differ between two
// snapshots. Changed and Removed names invalidate cached grammar
// templates that depend on them.
type Changes struct {
	Changed []string // Present in both, but signature or kind differs
	Removed []string // Present in old only
	Added   []string // Present in new only
}

// Empty reports whether the two snapshots declare the same symbols.
func (c Changes) Empty() bool {
	return len(c.Changed) == 0 && len(c.Removed) == 0 && len(c.Added) == 0
}

// Invalidating returns the names that must evict dependent cache entries.
func (c Changes) Invalidating() []string {
	out := make([]string, 0, len(c.Changed)+len(c.Removed))
	out = append(out, c.Changed...)
	out = append(out, c.Removed...)
	sort.Strings(out)
	return out
}

// Diff compares the declared symbols of two snapshots by name. A nil old
// snapshot reports every name in new as Added.
func Diff(old, new *Snapshot) Changes {
	var c Changes
	if old == nil {
		if new != nil {
			c.Added = new.Names()
		}
		return c
	}

	oldShape := shapeByName(old)
	newShape := shapeByName(new)

	for name, shape := range oldShape {
		newSh, ok := newShape[name]
		if !ok {
			c.Removed = append(c.Removed, name)
			continue
		}
		if newSh != shape {
			c.Changed = append(c.Changed, name)
		}
	}
	for name := range newShape {
		if _, ok := oldShape[name]; !ok {
			c.Added = append(c.Added, name)
		}
	}

	sort.Strings(c.Changed)
	sort.Strings(c.Removed)
	sort.Strings(c.Added)
	return c
}

// shapeByName folds all declarations of each name into one comparable
// string, so overloads and redeclarations compare as a set.
func shapeByName(s *Snapshot) map[string]string {
	shapes := make(map[string]string, len(s.byName))
	for name, indices := range s.byName {
		parts := make([]string, 0, len(indices))
		for _, idx := range indices {
			sym := s.Symbols[idx]
			parts = append(parts, sym.Kind.String()+"|"+sym.Signature)
		}
		sort.Strings(parts)
		shapes[name] = strings.Join(parts, "\x00")
	}
	return shapes
}
