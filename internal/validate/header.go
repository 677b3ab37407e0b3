// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package validate

import (
	"fmt"
	"strings"

	"github.com/petar-djukic/gramgen/pkg/types"
)

// parseDeclHeader recovers a Signature from a declaration's recorded
// signature line, per language.
func parseDeclHeader(sig string, lang types.Language) (*types.Signature, error) {
	sig = strings.TrimSuffix(strings.TrimSpace(sig), "{")
	sig = strings.TrimSpace(sig)

	switch lang {
	case types.LangTypeScript, types.LangJavaScript:
		sig = strings.TrimPrefix(sig, "export ")
		sig = strings.TrimPrefix(sig, "async ")
		sig = strings.TrimPrefix(sig, "function ")
		return types.ParseSignature(sig)

	case types.LangPython:
		sig = strings.TrimSuffix(sig, ":")
		sig = strings.TrimPrefix(sig, "async ")
		if !strings.HasPrefix(sig, "def ") {
			return nil, fmt.Errorf("not a def header: %q", sig)
		}
		sig = strings.TrimPrefix(sig, "def ")
		// "add(a: int) -> int" becomes the canonical "add(a: int): int".
		if head, ret, ok := cutLast(sig, "->"); ok {
			sig = strings.TrimSpace(head) + ": " + strings.TrimSpace(ret)
		}
		return types.ParseSignature(sig)

	case types.LangGo:
		return parseGoHeader(sig)
	}
	return nil, fmt.Errorf("no header parser for %s", lang)
}

// parseGoHeader converts "func [(recv)] name(a int, b int) ret" into a
// Signature. Grouped parameters ("a, b int") share the trailing type.
func parseGoHeader(sig string) (*types.Signature, error) {
	if !strings.HasPrefix(sig, "func ") {
		return nil, fmt.Errorf("not a func header: %q", sig)
	}
	rest := strings.TrimSpace(strings.TrimPrefix(sig, "func "))

	// Skip a receiver group.
	if strings.HasPrefix(rest, "(") {
		end := matchingParen(rest, 0)
		if end < 0 {
			return nil, fmt.Errorf("unbalanced receiver in %q", sig)
		}
		rest = strings.TrimSpace(rest[end+1:])
	}

	open := strings.Index(rest, "(")
	if open <= 0 {
		return nil, fmt.Errorf("no parameter list in %q", sig)
	}
	closeIdx := matchingParen(rest, open)
	if closeIdx < 0 {
		return nil, fmt.Errorf("unbalanced parameters in %q", sig)
	}

	out := &types.Signature{Name: strings.TrimSpace(rest[:open])}

	params := strings.TrimSpace(rest[open+1 : closeIdx])
	if params != "" {
		var pending []string
		for _, part := range splitTopLevel(params, ',') {
			part = strings.TrimSpace(part)
			name, typ, hasType := strings.Cut(part, " ")
			if !hasType {
				pending = append(pending, part)
				continue
			}
			for _, p := range pending {
				out.Params = append(out.Params, types.Param{Name: p, Type: strings.TrimSpace(typ)})
			}
			pending = nil
			out.Params = append(out.Params, types.Param{Name: name, Type: strings.TrimSpace(typ)})
		}
		if len(pending) > 0 {
			return nil, fmt.Errorf("untyped parameters in %q", sig)
		}
	}

	ret := strings.TrimSpace(rest[closeIdx+1:])
	ret = strings.TrimPrefix(ret, "(")
	ret = strings.TrimSuffix(ret, ")")
	out.Return = strings.TrimSpace(ret)

	return out, nil
}

// matchingParen returns the index of the parenthesis closing the one at
// start, or -1.
func matchingParen(s string, start int) int {
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitTopLevel splits on sep outside any bracket nesting.
func splitTopLevel(s string, sep rune) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		default:
			if r == sep && depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// cutLast cuts s at the last occurrence of sep.
func cutLast(s, sep string) (before, after string, found bool) {
	idx := strings.LastIndex(s, sep)
	if idx < 0 {
		return s, "", false
	}
	return s[:idx], s[idx+len(sep):], true
}
