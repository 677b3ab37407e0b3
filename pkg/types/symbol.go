// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package types defines shared types used across gramgen packages.
package types

import (
	"fmt"
	"strings"
)

// Language identifies a source language the indexer understands.
type Language int

const (
	LangGo Language = iota
	LangTypeScript
	LangJavaScript
	LangPython
)

// String returns the canonical lowercase name of the language.
func (l Language) String() string {
	switch l {
	case LangGo:
		return "go"
	case LangTypeScript:
		return "typescript"
	case LangJavaScript:
		return "javascript"
	case LangPython:
		return "python"
	}
	return "unknown"
}

// ParseLanguage maps a language name to its Language value.
// Accepts the canonical name and common aliases ("ts", "js", "py").
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "go", "golang":
		return LangGo, nil
	case "typescript", "ts":
		return LangTypeScript, nil
	case "javascript", "js":
		return LangJavaScript, nil
	case "python", "py":
		return LangPython, nil
	}
	return 0, fmt.Errorf("unsupported language %q", s)
}

// Extensions returns the file extensions indexed for the language.
func (l Language) Extensions() []string {
	switch l {
	case LangGo:
		return []string{".go"}
	case LangTypeScript:
		return []string{".ts", ".tsx"}
	case LangJavaScript:
		return []string{".js", ".mjs"}
	case LangPython:
		return []string{".py"}
	}
	return nil
}

// SymbolKind identifies the category of a code symbol.
type SymbolKind int

const (
	Function  SymbolKind = iota // Function declaration
	Method                      // Method declaration (has receiver or class owner)
	Class                       // Class or struct type declaration
	Interface                   // Interface type declaration
	Variable                    // Top-level variable declaration
	Constant                    // Top-level constant declaration
	TypeAlias                   // Named type alias
)

// String returns the human-readable name of the symbol kind.
func (k SymbolKind) String() string {
	switch k {
	case Function:
		return "Function"
	case Method:
		return "Method"
	case Class:
		return "Class"
	case Interface:
		return "Interface"
	case Variable:
		return "Variable"
	case Constant:
		return "Constant"
	case TypeAlias:
		return "TypeAlias"
	}
	return "Unknown"
}

// Symbol represents a single declaration extracted from a source file.
// Symbols are immutable once extracted; they belong to the index snapshot
// that produced them.
type Symbol struct {
	Name      string     // Declared name
	Kind      SymbolKind // Category of the declaration
	Language  Language   // Source language
	FilePath  string     // Path relative to the project root
	Line      int        // 1-based line of the declaration
	Column    int        // 1-based column of the declaration
	Signature string     // Declaration header line, trimmed
	Exported  bool       // Visible outside its file/package scope
}

// RankedSymbol is a symbol annotated with its importance score.
type RankedSymbol struct {
	Name      string
	FilePath  string
	Line      int
	Score     float64
	Signature string
}
