// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package index

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/petar-djukic/gramgen/pkg/types"
)

func snapOf(symbols []types.Symbol, refs []Reference, hashes map[string]uint64) *Snapshot {
	if hashes == nil {
		hashes = map[string]uint64{}
	}
	return newSnapshot(types.LangTypeScript, symbols, refs, hashes, nil, Meta{})
}

func sym(name string, kind types.SymbolKind, file string, line int, sig string) types.Symbol {
	return types.Symbol{
		Name: name, Kind: kind, Language: types.LangTypeScript,
		FilePath: file, Line: line, Signature: sig, Exported: true,
	}
}

func TestDiff(t *testing.T) {
	old := snapOf([]types.Symbol{
		sym("add", types.Function, "a.ts", 1, "function add(a: number): number {"),
		sym("gone", types.Function, "a.ts", 5, "function gone() {"),
	}, nil, nil)

	updated := snapOf([]types.Symbol{
		sym("add", types.Function, "a.ts", 1, "function add(a: number, b: number): number {"),
		sym("fresh", types.Function, "b.ts", 1, "function fresh() {"),
	}, nil, nil)

	c := Diff(old, updated)
	assert.Equal(t, []string{"add"}, c.Changed)
	assert.Equal(t, []string{"gone"}, c.Removed)
	assert.Equal(t, []string{"fresh"}, c.Added)
	assert.Equal(t, []string{"add", "gone"}, c.Invalidating())
	assert.False(t, c.Empty())
}

func TestDiff_NilOld(t *testing.T) {
	updated := snapOf([]types.Symbol{
		sym("add", types.Function, "a.ts", 1, "function add() {"),
	}, nil, nil)

	c := Diff(nil, updated)
	assert.Equal(t, []string{"add"}, c.Added)
	assert.Empty(t, c.Changed)
	assert.Empty(t, c.Removed)
}

func TestDiff_SameShape(t *testing.T) {
	build := func() *Snapshot {
		return snapOf([]types.Symbol{
			sym("add", types.Function, "a.ts", 1, "function add() {"),
		}, nil, nil)
	}
	assert.True(t, Diff(build(), build()).Empty())
}

func TestHashDigest_OrderIndependent(t *testing.T) {
	a := snapOf(nil, nil, map[string]uint64{"a.ts": 1, "b.ts": 2})
	b := snapOf(nil, nil, map[string]uint64{"b.ts": 2, "a.ts": 1})
	c := snapOf(nil, nil, map[string]uint64{"a.ts": 1, "b.ts": 3})

	assert.Equal(t, a.HashDigest(), b.HashDigest())
	assert.NotEqual(t, a.HashDigest(), c.HashDigest())
}

func TestSnapshot_Lookups(t *testing.T) {
	s := snapOf([]types.Symbol{
		sym("add", types.Function, "a.ts", 1, "function add() {"),
		sym("add", types.Method, "b.ts", 3, "add() {"),
		sym("mul", types.Function, "b.ts", 9, "function mul() {"),
	}, nil, nil)

	assert.Len(t, s.LookupName("add"), 2)
	assert.True(t, s.Has("mul"))
	assert.False(t, s.Has("div"))
	assert.Len(t, s.SymbolsInFile("b.ts"), 2)
	assert.Equal(t, []string{"add", "mul"}, s.Names())
}
