// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package index

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/petar-djukic/gramgen/pkg/types"
)

const maxSignatureLen = 120

// kindQuery pairs a tree-sitter query with the symbol kind its captures
// produce. Each query captures the declaration name as @name.
type kindQuery struct {
	kind  types.SymbolKind
	query string
}

// langSpec holds the tree-sitter language and queries for one Language.
type langSpec struct {
	lang *sitter.Language
	defQ []kindQuery
	refQ string
}

var langSpecs = map[types.Language]*langSpec{
	types.LangGo: {
		lang: golang.GetLanguage(),
		defQ: []kindQuery{
			{types.Function, `(function_declaration name: (identifier) @name)`},
			{types.Method, `(method_declaration name: (field_identifier) @name)`},
			{types.Class, `(type_declaration (type_spec name: (type_identifier) @name type: (struct_type)))`},
			{types.Interface, `(type_declaration (type_spec name: (type_identifier) @name type: (interface_type)))`},
		},
		refQ: `
			(identifier) @ref
			(field_identifier) @ref
			(type_identifier) @ref
		`,
	},
	types.LangTypeScript: {
		lang: typescript.GetLanguage(),
		defQ: []kindQuery{
			{types.Function, `(function_declaration name: (identifier) @name)`},
			{types.Method, `(method_definition name: (property_identifier) @name)`},
			{types.Class, `(class_declaration name: (type_identifier) @name)`},
			{types.Interface, `(interface_declaration name: (type_identifier) @name)`},
			{types.Variable, `(variable_declarator name: (identifier) @name)`},
			{types.TypeAlias, `(type_alias_declaration name: (type_identifier) @name)`},
		},
		refQ: `
			(identifier) @ref
			(type_identifier) @ref
		`,
	},
	types.LangJavaScript: {
		lang: javascript.GetLanguage(),
		defQ: []kindQuery{
			{types.Function, `(function_declaration name: (identifier) @name)`},
			{types.Method, `(method_definition name: (property_identifier) @name)`},
			{types.Class, `(class_declaration name: (identifier) @name)`},
			{types.Variable, `(variable_declarator name: (identifier) @name)`},
		},
		refQ: `(identifier) @ref`,
	},
	types.LangPython: {
		lang: python.GetLanguage(),
		defQ: []kindQuery{
			{types.Function, `(function_definition name: (identifier) @name)`},
			{types.Class, `(class_definition name: (identifier) @name)`},
		},
		refQ: `(identifier) @ref`,
	},
}

// SitterLanguage returns the tree-sitter language for a Language, nil
// if unsupported.
func SitterLanguage(l types.Language) *sitter.Language {
	if spec, ok := langSpecs[l]; ok {
		return spec.lang
	}
	return nil
}

// Extract parses source text and returns its declared symbols and
// reference sites. The path only labels the resulting symbols; the
// validator passes a synthetic one for candidate text.
func Extract(ctx context.Context, content []byte, path string, lang types.Language) ([]types.Symbol, []Reference, error) {
	return extractFile(ctx, content, path, lang)
}

// extractFile parses one file and returns its declared symbols and
// reference sites. Go files get their symbols from go/parser for richer
// signatures; the tree-sitter pass still supplies references.
func extractFile(ctx context.Context, content []byte, relPath string, lang types.Language) ([]types.Symbol, []Reference, error) {
	spec, ok := langSpecs[lang]
	if !ok {
		return nil, nil, fmt.Errorf("no extractor for language %s", lang)
	}

	root, err := sitter.ParseCtx(ctx, content, spec.lang)
	if err != nil || root == nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", relPath, err)
	}

	var symbols []types.Symbol
	if lang == types.LangGo {
		symbols, err = goSymbols(content, relPath)
		if err != nil {
			// Fall back to the tree-sitter captures on go/parser failure;
			// tree-sitter is more tolerant of partial files.
			symbols = sitterSymbols(content, relPath, lang, spec, root)
		}
	} else {
		symbols = sitterSymbols(content, relPath, lang, spec, root)
	}

	var refs []Reference
	if spec.refQ != "" {
		defined := make(map[string]bool, len(symbols))
		for _, s := range symbols {
			defined[s.Name] = true
		}
		for _, c := range runQuery(spec.refQ, spec.lang, root, content) {
			if defined[c.text] {
				continue
			}
			refs = append(refs, Reference{Name: c.text, FilePath: relPath, Line: c.line})
		}
	}

	return symbols, refs, nil
}

// sitterSymbols runs the per-kind definition queries against a parsed tree.
func sitterSymbols(content []byte, relPath string, lang types.Language, spec *langSpec, root *sitter.Node) []types.Symbol {
	lines := strings.Split(string(content), "\n")

	var symbols []types.Symbol
	for _, kq := range spec.defQ {
		for _, c := range runQuery(kq.query, spec.lang, root, content) {
			symbols = append(symbols, types.Symbol{
				Name:      c.text,
				Kind:      kq.kind,
				Language:  lang,
				FilePath:  relPath,
				Line:      c.line,
				Column:    c.column,
				Signature: signatureLine(lines, c.line),
				Exported:  isExported(c.text, lang),
			})
		}
	}
	return symbols
}

// capture holds one query capture with its location.
type capture struct {
	text   string
	line   int
	column int
}

// runQuery executes a tree-sitter query and returns the captured nodes.
func runQuery(pattern string, lang *sitter.Language, root *sitter.Node, content []byte) []capture {
	q, err := sitter.NewQuery([]byte(pattern), lang)
	if err != nil {
		return nil
	}

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, root)

	seen := make(map[string]bool) // Deduplicate by name and line.
	var results []capture

	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			text := c.Node.Content(content)
			line := int(c.Node.StartPoint().Row) + 1
			col := int(c.Node.StartPoint().Column) + 1
			key := fmt.Sprintf("%s:%d", text, line)
			if text == "" || seen[key] {
				continue
			}
			seen[key] = true
			results = append(results, capture{text: text, line: line, column: col})
		}
	}

	return results
}

// signatureLine returns the trimmed source line of a declaration.
func signatureLine(lines []string, line int) string {
	if line < 1 || line > len(lines) {
		return ""
	}
	sig := strings.TrimSpace(lines[line-1])
	if len(sig) > maxSignatureLen {
		sig = sig[:maxSignatureLen-3] + "..."
	}
	return sig
}

// isExported reports visibility by the language's naming convention:
// capitalized names in Go, non-underscore names elsewhere.
func isExported(name string, lang types.Language) bool {
	if name == "" {
		return false
	}
	if lang == types.LangGo {
		return unicode.IsUpper(rune(name[0]))
	}
	return name[0] != '_'
}
