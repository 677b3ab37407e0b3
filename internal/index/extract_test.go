// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/gramgen/pkg/types"
)

func TestExtract_TypeScript(t *testing.T) {
	src := []byte(`export function add(a: number, b: number): number {
  return a + b;
}

interface Shape {
  area(): number;
}

class Circle {
  radius: number;
  area(): number {
    return 3.14 * this.radius * this.radius;
  }
}

type Meters = number;

const origin = { x: 0, y: 0 };
`)

	symbols, _, err := Extract(context.Background(), src, "shapes.ts", types.LangTypeScript)
	require.NoError(t, err)

	byName := make(map[string]types.Symbol)
	for _, s := range symbols {
		byName[s.Name] = s
	}

	add, ok := byName["add"]
	require.True(t, ok)
	assert.Equal(t, types.Function, add.Kind)
	assert.Equal(t, 1, add.Line)

	assert.Equal(t, types.Interface, byName["Shape"].Kind)
	assert.Equal(t, types.Class, byName["Circle"].Kind)
	assert.Equal(t, types.Method, byName["area"].Kind)
	assert.Equal(t, types.TypeAlias, byName["Meters"].Kind)
	assert.Equal(t, types.Variable, byName["origin"].Kind)
}

func TestExtract_Python(t *testing.T) {
	src := []byte(`def add(a: int, b: int) -> int:
    return a + b

class Circle:
    def area(self) -> float:
        return 3.14
`)

	symbols, _, err := Extract(context.Background(), src, "shapes.py", types.LangPython)
	require.NoError(t, err)

	names := make(map[string]types.SymbolKind)
	for _, s := range symbols {
		names[s.Name] = s.Kind
	}
	assert.Equal(t, types.Function, names["add"])
	assert.Equal(t, types.Class, names["Circle"])
	assert.Contains(t, names, "area")
}

func TestExtract_References(t *testing.T) {
	src := []byte(`function caller(): number {
  return helper(1) + helper(2);
}
`)

	symbols, refs, err := Extract(context.Background(), src, "caller.ts", types.LangTypeScript)
	require.NoError(t, err)

	require.Len(t, symbols, 1)
	assert.Equal(t, "caller", symbols[0].Name)

	// helper is referenced but not defined here; dedup is by name and line.
	var helperRefs []Reference
	for _, r := range refs {
		if r.Name == "helper" {
			helperRefs = append(helperRefs, r)
		}
	}
	require.Len(t, helperRefs, 1)
	assert.Equal(t, 2, helperRefs[0].Line)
}

func TestExtract_UnsupportedLanguage(t *testing.T) {
	_, _, err := Extract(context.Background(), []byte("x"), "x.zig", types.Language(99))
	assert.Error(t, err)
}

func TestIsExported(t *testing.T) {
	assert.True(t, isExported("Add", types.LangGo))
	assert.False(t, isExported("add", types.LangGo))
	assert.True(t, isExported("add", types.LangTypeScript))
	assert.False(t, isExported("_internal", types.LangPython))
}
