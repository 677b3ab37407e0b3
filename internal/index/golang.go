// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package index

import (
	"go/ast"
	"go/parser"
	"go/token"
	gotypes "go/types"
	"strings"
	"unicode"

	"github.com/petar-djukic/gramgen/pkg/types"
)

// goSymbols extracts symbols from a Go file with go/parser. It recognizes
// functions, methods, structs, interfaces, type aliases, variables, and
// constants, and renders normalized signatures from the AST rather than
// raw source lines.
func goSymbols(content []byte, relPath string) ([]types.Symbol, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, relPath, content, 0)
	if err != nil {
		return nil, err
	}

	var symbols []types.Symbol
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			symbols = append(symbols, goFuncSymbol(fset, relPath, d))
		case *ast.GenDecl:
			symbols = append(symbols, goGenDeclSymbols(fset, relPath, d)...)
		}
	}
	return symbols, nil
}

func goFuncSymbol(fset *token.FileSet, relPath string, fn *ast.FuncDecl) types.Symbol {
	pos := fset.Position(fn.Pos())
	kind := types.Function
	if fn.Recv != nil {
		kind = types.Method
	}
	return types.Symbol{
		Name:      fn.Name.Name,
		Kind:      kind,
		Language:  types.LangGo,
		FilePath:  relPath,
		Line:      pos.Line,
		Column:    pos.Column,
		Signature: goFuncSignature(fn),
		Exported:  unicode.IsUpper(rune(fn.Name.Name[0])),
	}
}

func goGenDeclSymbols(fset *token.FileSet, relPath string, gd *ast.GenDecl) []types.Symbol {
	var symbols []types.Symbol
	for _, spec := range gd.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			symbols = append(symbols, goTypeSymbol(fset, relPath, s))
		case *ast.ValueSpec:
			kind := types.Variable
			if gd.Tok == token.CONST {
				kind = types.Constant
			}
			for _, name := range s.Names {
				if name.Name == "_" {
					continue
				}
				pos := fset.Position(name.Pos())
				sig := name.Name
				if s.Type != nil {
					sig += " " + gotypes.ExprString(s.Type)
				}
				symbols = append(symbols, types.Symbol{
					Name:      name.Name,
					Kind:      kind,
					Language:  types.LangGo,
					FilePath:  relPath,
					Line:      pos.Line,
					Column:    pos.Column,
					Signature: sig,
					Exported:  unicode.IsUpper(rune(name.Name[0])),
				})
			}
		}
	}
	return symbols
}

func goTypeSymbol(fset *token.FileSet, relPath string, ts *ast.TypeSpec) types.Symbol {
	pos := fset.Position(ts.Pos())

	var kind types.SymbolKind
	var sig string
	switch ts.Type.(type) {
	case *ast.StructType:
		kind = types.Class
		sig = "type " + ts.Name.Name + " struct"
	case *ast.InterfaceType:
		kind = types.Interface
		sig = "type " + ts.Name.Name + " interface"
	default:
		kind = types.TypeAlias
		sig = "type " + ts.Name.Name + " " + gotypes.ExprString(ts.Type)
	}

	return types.Symbol{
		Name:      ts.Name.Name,
		Kind:      kind,
		Language:  types.LangGo,
		FilePath:  relPath,
		Line:      pos.Line,
		Column:    pos.Column,
		Signature: sig,
		Exported:  unicode.IsUpper(rune(ts.Name.Name[0])),
	}
}

// goFuncSignature renders "func [(recv)] Name(params) results" from the AST.
func goFuncSignature(fn *ast.FuncDecl) string {
	var buf strings.Builder
	buf.WriteString("func ")
	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		buf.WriteString("(" + fieldString(fn.Recv.List[0]) + ") ")
	}
	buf.WriteString(fn.Name.Name)
	buf.WriteString("(" + fieldListString(fn.Type.Params) + ")")
	if fn.Type.Results != nil && len(fn.Type.Results.List) > 0 {
		results := fieldListString(fn.Type.Results)
		if len(fn.Type.Results.List) == 1 && len(fn.Type.Results.List[0].Names) == 0 {
			buf.WriteString(" " + results)
		} else {
			buf.WriteString(" (" + results + ")")
		}
	}
	return buf.String()
}

func fieldListString(fl *ast.FieldList) string {
	if fl == nil {
		return ""
	}
	parts := make([]string, 0, len(fl.List))
	for _, f := range fl.List {
		parts = append(parts, fieldString(f))
	}
	return strings.Join(parts, ", ")
}

func fieldString(f *ast.Field) string {
	typ := gotypes.ExprString(f.Type)
	if len(f.Names) == 0 {
		return typ
	}
	names := make([]string, len(f.Names))
	for i, n := range f.Names {
		names[i] = n.Name
	}
	return strings.Join(names, ", ") + " " + typ
}
