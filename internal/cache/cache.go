// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package cache stores compiled grammar templates in a bounded LRU with
// an optional on-disk layer for reuse across process restarts. Writes are
// linearized behind a single mutex; entries invalidated by index changes
// are never served.
package cache

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/petar-djukic/gramgen/internal/grammar"
)

const defaultMaxEntries = 256

// Stats holds the cache's observable counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
}

// entry wraps a template with its access time and the index-state marker
// it was validated against.
type entry struct {
	tmpl       *grammar.Template
	lastAccess time.Time
	marker     string
}

// Cache is the grammar-template cache. It implements grammar.TemplateCache.
type Cache struct {
	mu       sync.Mutex // Linearizes mutations; the LRU handles its own reads
	lru      *lru.Cache[string, *entry]
	disk     *diskStore // nil when persistence is disabled
	marker   string
	removing bool // Set under mu while an explicit remove runs
	logger   *slog.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates a Cache bounded to maxEntries templates. A non-empty dir
// enables the on-disk layer under it.
func New(maxEntries int, dir string, logger *slog.Logger) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Cache{logger: logger}

	// The LRU fires this callback on explicit Remove as well as on
	// capacity eviction; the removing flag keeps the counter to the
	// latter. Invalidations are counted by Invalidate's return value.
	l, err := lru.NewWithEvict[string, *entry](maxEntries, func(string, *entry) {
		if !c.removing {
			c.evictions.Add(1)
		}
	})
	if err != nil {
		return nil, err
	}
	c.lru = l

	if dir != "" {
		disk, err := newDiskStore(dir, logger)
		if err != nil {
			return nil, err
		}
		c.disk = disk
	}

	return c, nil
}

// SetMarker records the current index-state marker. Entries validated
// against a different marker are treated as stale and dropped lazily at
// lookup.
func (c *Cache) SetMarker(marker string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.marker = marker
}

// Get returns the cached template for a fingerprint. Stale entries (a
// marker mismatch after a reindex) are evicted, never returned.
func (c *Cache) Get(fingerprint string) (*grammar.Template, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.lru.Get(fingerprint); ok {
		if c.marker != "" && e.marker != "" && e.marker != c.marker {
			c.remove(fingerprint)
			if c.disk != nil {
				c.disk.remove(fingerprint)
			}
			c.misses.Add(1)
			return nil, false
		}
		e.lastAccess = time.Now()
		c.hits.Add(1)
		return e.tmpl, true
	}

	if c.disk != nil {
		if tmpl, marker, ok := c.disk.load(fingerprint); ok {
			if c.marker != "" && marker != c.marker {
				c.disk.remove(fingerprint)
				c.misses.Add(1)
				return nil, false
			}
			c.lru.Add(fingerprint, &entry{tmpl: tmpl, lastAccess: time.Now(), marker: marker})
			c.hits.Add(1)
			return tmpl, true
		}
	}

	c.misses.Add(1)
	return nil, false
}

// Put stores a freshly compiled template under the current marker.
func (c *Cache) Put(t *grammar.Template) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(t.Fingerprint, &entry{tmpl: t, lastAccess: time.Now(), marker: c.marker})
	if c.disk != nil {
		if err := c.disk.save(t, c.marker); err != nil {
			c.logger.Warn("persisting grammar template failed",
				"fingerprint", t.Fingerprint, "error", err)
		}
	}
}

// Invalidate evicts exactly the entries whose dependency set intersects
// the changed symbol names, and returns how many were evicted.
func (c *Cache) Invalidate(changed []string) int {
	if len(changed) == 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for _, fp := range c.lru.Keys() {
		e, ok := c.lru.Peek(fp)
		if !ok {
			continue
		}
		if e.tmpl.DependsOn(changed) {
			c.remove(fp)
			if c.disk != nil {
				c.disk.remove(fp)
			}
			evicted++
		}
	}

	if c.disk != nil {
		evicted += c.disk.invalidate(changed)
	}

	if evicted > 0 {
		c.logger.Debug("invalidated grammar templates", "evicted", evicted, "changed", len(changed))
	}
	return evicted
}

// remove drops an in-memory entry without counting it as a capacity
// eviction. Callers must hold c.mu.
func (c *Cache) remove(fingerprint string) {
	c.removing = true
	c.lru.Remove(fingerprint)
	c.removing = false
}

// Stats returns the observable counters. Evictions counts capacity
// evictions; invalidations are reported by Invalidate's return value.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	entries := c.lru.Len()
	c.mu.Unlock()
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   entries,
	}
}
