// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package grammar

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/gramgen/internal/index"
	"github.com/petar-djukic/gramgen/pkg/types"
)

// mapCache is an unbounded TemplateCache for compiler tests.
type mapCache struct {
	entries map[string]*Template
	gets    int
	hits    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]*Template)}
}

func (m *mapCache) Get(fp string) (*Template, bool) {
	m.gets++
	t, ok := m.entries[fp]
	if ok {
		m.hits++
	}
	return t, ok
}

func (m *mapCache) Put(t *Template) {
	m.entries[t.Fingerprint] = t
}

// snapshotFor indexes a temp project containing the given TypeScript files.
func snapshotFor(t *testing.T, files map[string]string) *index.Snapshot {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	ix, err := index.New(index.Config{Root: dir, Language: types.LangTypeScript})
	require.NoError(t, err)
	snap, _, err := ix.Index(context.Background())
	require.NoError(t, err)
	return snap
}

const calcSource = `export function multiply(a: number, b: number): number {
  return a * b;
}

export function describe(p: Point): string {
  return p.label;
}

interface Point {
  label: string;
}
`

func TestCompile_Deterministic(t *testing.T) {
	snap := snapshotFor(t, map[string]string{"calc.ts": calcSource})
	c := NewCompiler(nil, nil)

	req := types.GenerationRequest{
		Language:     types.LangTypeScript,
		Construct:    types.ConstructFunction,
		ScopeSymbols: []string{"multiply"},
	}

	a, err := c.Compile(snap, req)
	require.NoError(t, err)
	b, err := c.Compile(snap, req)
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.Equal(t, a.GBNF, b.GBNF)
	assert.Equal(t, a.DependencySet, b.DependencySet)
}

func TestCompile_CacheHit(t *testing.T) {
	snap := snapshotFor(t, map[string]string{"calc.ts": calcSource})
	cache := newMapCache()
	c := NewCompiler(cache, nil)

	req := types.GenerationRequest{
		Language:     types.LangTypeScript,
		Construct:    types.ConstructFunction,
		ScopeSymbols: []string{"multiply"},
	}

	first, err := c.Compile(snap, req)
	require.NoError(t, err)
	second, err := c.Compile(snap, req)
	require.NoError(t, err)

	assert.Same(t, first, second, "second compile must come from the cache")
	assert.Equal(t, 1, cache.hits)
}

func TestCompile_MissingScopeSymbol(t *testing.T) {
	snap := snapshotFor(t, map[string]string{"calc.ts": calcSource})
	c := NewCompiler(nil, nil)

	_, err := c.Compile(snap, types.GenerationRequest{
		Language:     types.LangTypeScript,
		Construct:    types.ConstructFunction,
		ScopeSymbols: []string{"multiply", "zeta", "alpha"},
	})

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"alpha", "zeta"}, ce.Missing, "missing names are sorted")
}

func TestCompile_AutoScopeByRank(t *testing.T) {
	snap := snapshotFor(t, map[string]string{
		"calc.ts": calcSource,
		"use.ts":  "const r = multiply(2, 3);\n",
	})
	c := NewCompiler(nil, nil)

	tmpl, err := c.Compile(snap, types.GenerationRequest{
		Language:  types.LangTypeScript,
		Construct: types.ConstructFunction,
	})
	require.NoError(t, err)

	assert.Contains(t, tmpl.Rules.AllowedNames(), "multiply")
}

func TestCompile_TypeEdgesPulledIn(t *testing.T) {
	snap := snapshotFor(t, map[string]string{"calc.ts": calcSource})
	c := NewCompiler(nil, nil)

	// describe's signature mentions Point; the type must ride along.
	tmpl, err := c.Compile(snap, types.GenerationRequest{
		Language:     types.LangTypeScript,
		Construct:    types.ConstructFunction,
		ScopeSymbols: []string{"describe"},
	})
	require.NoError(t, err)

	names := tmpl.Rules.AllowedNames()
	assert.Contains(t, names, "describe")
	assert.Contains(t, names, "Point")
	assert.Contains(t, tmpl.DependencySet, "Point")
}

func TestFingerprint_ScopeOrderInsensitive(t *testing.T) {
	rules := func(names ...string) Rules {
		var r Rules
		for _, n := range names {
			r.Allowed = append(r.Allowed, SymbolRule{Name: n, Kind: types.Function, Signature: n + "() {"})
		}
		return r
	}

	a := fingerprint(types.LangTypeScript, types.ConstructFunction, rules("x", "y"))
	b := fingerprint(types.LangTypeScript, types.ConstructFunction, rules("y", "x"))
	assert.Equal(t, a, b)
}

func TestFingerprint_SensitiveToInputs(t *testing.T) {
	base := Rules{Allowed: []SymbolRule{{Name: "x", Kind: types.Function, Signature: "x() {"}}}
	sig, err := types.ParseSignature("add(a: number): number")
	require.NoError(t, err)
	withTarget := Rules{Allowed: base.Allowed, Target: sig}

	fp := fingerprint(types.LangTypeScript, types.ConstructFunction, base)
	assert.NotEqual(t, fp, fingerprint(types.LangTypeScript, types.ConstructMethod, base))
	assert.NotEqual(t, fp, fingerprint(types.LangJavaScript, types.ConstructFunction, base))
	assert.NotEqual(t, fp, fingerprint(types.LangTypeScript, types.ConstructFunction, withTarget))
}

func TestTemplate_DependsOn(t *testing.T) {
	tmpl := &Template{DependencySet: []string{"add", "Point"}}
	assert.True(t, tmpl.DependsOn([]string{"Point", "other"}))
	assert.False(t, tmpl.DependsOn([]string{"other"}))
	assert.False(t, tmpl.DependsOn(nil))
}
