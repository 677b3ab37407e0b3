// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package index

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/petar-djukic/gramgen/pkg/types"
)

const maxFileSize = 1 << 20 // Files larger than 1 MiB are skipped.

// skipDirs contains directory names the scanner skips by default.
var skipDirs = map[string]bool{
	"vendor":       true,
	".git":         true,
	"testdata":     true,
	"node_modules": true,
}

// Config configures an Indexer.
type Config struct {
	Root        string         // Project root directory (required)
	Language    types.Language // Language to index
	CacheDir    string         // Directory for the persisted index; empty disables persistence
	Concurrency int            // Parallel parse workers; <= 0 means NumCPU
	Logger      *slog.Logger   // Optional; nil discards
}

// Indexer builds and maintains index snapshots for one project tree.
// It is safe for concurrent use; the current snapshot is swapped under a
// single writer while readers proceed against the previous one.
type Indexer struct {
	root        string
	lang        types.Language
	indexPath   string
	concurrency int
	logger      *slog.Logger

	mu      sync.RWMutex
	current *Snapshot

	head  string
	dirty bool
}

// New creates an Indexer. If a persisted index exists under CacheDir it is
// loaded so the first Index call can resume incrementally.
func New(cfg Config) (*Indexer, error) {
	absRoot, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", absRoot)
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ix := &Indexer{
		root:        absRoot,
		lang:        cfg.Language,
		concurrency: concurrency,
		logger:      logger,
	}

	if cfg.CacheDir != "" {
		ix.indexPath = filepath.Join(cfg.CacheDir, "index", cfg.Language.String()+".json")
		if snap, err := loadSnapshot(ix.indexPath); err == nil {
			ix.current = snap
			logger.Debug("loaded persisted index",
				"path", ix.indexPath, "symbols", len(snap.Symbols), "files", len(snap.Hashes))
		}
	}

	return ix, nil
}

// SetProjectState records the git HEAD and dirty flag stamped into the
// metadata of subsequently built snapshots.
func (ix *Indexer) SetProjectState(head string, dirty bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.head = head
	ix.dirty = dirty
}

// Current returns the latest snapshot, or nil before the first index pass.
func (ix *Indexer) Current() *Snapshot {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.current
}

// Fresh reports whether the current snapshot still matches the tree:
// same candidate file set with identical content hashes.
func (ix *Indexer) Fresh(ctx context.Context) bool {
	snap := ix.Current()
	if snap == nil {
		return false
	}

	paths, err := ix.collectPaths(ctx)
	if err != nil || len(paths) != len(snap.Hashes) {
		return false
	}
	for _, p := range paths {
		content, err := os.ReadFile(filepath.Join(ix.root, p))
		if err != nil {
			return false
		}
		if h, ok := snap.Hashes[p]; !ok || h != xxhash.Sum64(content) {
			return false
		}
	}
	return true
}

// Index runs a full or incremental index pass. Files whose content hash
// matches the previous snapshot are not reparsed; symbols of deleted
// files are dropped. An unchanged tree returns the previous snapshot
// untouched. Unparseable files are recorded on the snapshot and skipped.
func (ix *Indexer) Index(ctx context.Context) (*Snapshot, Changes, error) {
	started := time.Now()

	prev := ix.Current()

	paths, err := ix.collectPaths(ctx)
	if err != nil {
		return nil, Changes{}, err
	}

	type fileResult struct {
		path    string
		hash    uint64
		symbols []types.Symbol
		refs    []Reference
		reused  bool
		err     error
	}

	jobs := make(chan string, len(paths))
	results := make(chan fileResult, len(paths))

	var wg sync.WaitGroup
	for i := 0; i < ix.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				content, err := os.ReadFile(filepath.Join(ix.root, p))
				if err != nil {
					results <- fileResult{path: p, err: err}
					continue
				}
				hash := xxhash.Sum64(content)
				if prev != nil {
					if prevHash, ok := prev.Hashes[p]; ok && prevHash == hash {
						results <- fileResult{path: p, hash: hash, reused: true}
						continue
					}
				}
				symbols, refs, err := extractFile(ctx, content, p, ix.lang)
				results <- fileResult{path: p, hash: hash, symbols: symbols, refs: refs, err: err}
			}
		}()
	}

	for _, p := range paths {
		jobs <- p
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	// Single aggregation point: merge worker results into one snapshot.
	hashes := make(map[string]uint64, len(paths))
	var symbols []types.Symbol
	var refs []Reference
	var skipped []FileError
	reusedFiles := 0

	for r := range results {
		if r.err != nil {
			// No hash for a failed file: the next pass re-attempts it
			// instead of treating it as reused, and the snapshot keeps
			// carrying the annotation.
			skipped = append(skipped, FileError{Path: r.path, Err: r.err})
			continue
		}
		hashes[r.path] = r.hash
		if r.reused {
			reusedFiles++
			symbols = append(symbols, prev.SymbolsInFile(r.path)...)
			refs = append(refs, refsInFile(prev, r.path)...)
			continue
		}
		symbols = append(symbols, r.symbols...)
		refs = append(refs, r.refs...)
	}

	if err := ctx.Err(); err != nil {
		return nil, Changes{}, err
	}

	// Unchanged tree: keep the previous snapshot byte for byte.
	if prev != nil && reusedFiles == len(paths) && len(paths) == len(prev.Hashes) && len(skipped) == 0 {
		ix.logger.Debug("index unchanged", "files", len(paths), "elapsed", time.Since(started))
		return prev, Changes{}, nil
	}

	sortSymbols(symbols)
	sortRefs(refs)
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].Path < skipped[j].Path })

	ix.mu.Lock()
	meta := Meta{Root: ix.root, HeadCommit: ix.head, Dirty: ix.dirty, CreatedAt: time.Now().UTC()}
	snap := newSnapshot(ix.lang, symbols, refs, hashes, skipped, meta)
	ix.current = snap
	ix.mu.Unlock()

	if ix.indexPath != "" {
		if err := saveSnapshot(ix.indexPath, snap); err != nil {
			ix.logger.Warn("persisting index failed", "path", ix.indexPath, "error", err)
		}
	}

	changes := Diff(prev, snap)
	ix.logger.Info("index pass complete",
		"files", len(paths), "reused", reusedFiles, "symbols", len(symbols),
		"skipped", len(skipped), "changed", len(changes.Changed),
		"removed", len(changes.Removed), "added", len(changes.Added),
		"elapsed", time.Since(started))

	return snap, changes, nil
}

// collectPaths walks the tree and returns candidate files relative to the
// root, sorted. It honors skipDirs and root .gitignore patterns.
func (ix *Indexer) collectPaths(ctx context.Context) ([]string, error) {
	exts := make(map[string]bool)
	for _, e := range ix.lang.Extensions() {
		exts[e] = true
	}

	ignorer := loadGitignore(ix.root)

	var paths []string
	err := filepath.WalkDir(ix.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip inaccessible entries.
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if skipDirs[d.Name()] && path != ix.root {
				return filepath.SkipDir
			}
			return nil
		}
		if !exts[filepath.Ext(path)] {
			return nil
		}
		if info, err := d.Info(); err != nil || info.Size() > maxFileSize {
			return nil
		}
		relPath, relErr := filepath.Rel(ix.root, path)
		if relErr != nil {
			relPath = path
		}
		if ignorer.isIgnored(relPath) {
			return nil
		}
		paths = append(paths, filepath.ToSlash(relPath))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", ix.root, err)
	}

	sort.Strings(paths)
	return paths, nil
}

func refsInFile(s *Snapshot, path string) []Reference {
	var out []Reference
	for _, r := range s.Refs {
		if r.FilePath == path {
			out = append(out, r)
		}
	}
	return out
}

func sortSymbols(symbols []types.Symbol) {
	sort.Slice(symbols, func(i, j int) bool {
		a, b := symbols[i], symbols[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Name < b.Name
	})
}

func sortRefs(refs []Reference) {
	sort.Slice(refs, func(i, j int) bool {
		a, b := refs[i], refs[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Name < b.Name
	})
}

// gitignorer provides simple .gitignore matching.
type gitignorer struct {
	patterns []string
}

// loadGitignore reads .gitignore from the root directory. If no .gitignore
// exists or it cannot be read, returns an ignorer that matches nothing.
func loadGitignore(root string) gitignorer {
	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return gitignorer{}
	}
	var patterns []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return gitignorer{patterns: patterns}
}

// isIgnored checks whether a relative path matches any .gitignore pattern.
// This implements a simplified subset of gitignore: directory prefixes and
// simple glob patterns via filepath.Match.
func (g gitignorer) isIgnored(relPath string) bool {
	for _, pattern := range g.patterns {
		dirPattern := strings.TrimSuffix(pattern, "/")

		if relPath == dirPattern || strings.HasPrefix(relPath, dirPattern+"/") {
			return true
		}
		if ok, _ := filepath.Match(dirPattern, relPath); ok {
			return true
		}
		if ok, _ := filepath.Match(dirPattern, filepath.Base(relPath)); ok {
			return true
		}
	}
	return false
}
