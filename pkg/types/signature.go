// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package types

import (
	"fmt"
	"strings"
)

// Param is a single parameter in a declared signature.
type Param struct {
	Name string // Parameter name
	Type string // Declared type, empty if untyped
}

// Signature is a parsed declaration signature used to pin a generation
// target: "add(a: number, b: number): number".
type Signature struct {
	Name   string  // Declared name
	Params []Param // Ordered parameters
	Return string  // Return type, empty for none
}

// String renders the signature in the canonical "name(p: t, ...): ret" form.
func (s Signature) String() string {
	var buf strings.Builder
	buf.WriteString(s.Name)
	buf.WriteString("(")
	for i, p := range s.Params {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(p.Name)
		if p.Type != "" {
			buf.WriteString(": ")
			buf.WriteString(p.Type)
		}
	}
	buf.WriteString(")")
	if s.Return != "" {
		buf.WriteString(": ")
		buf.WriteString(s.Return)
	}
	return buf.String()
}

// Arity returns the number of declared parameters.
func (s Signature) Arity() int {
	return len(s.Params)
}

// ParseSignature parses the canonical "name(a: t1, b: t2): ret" form.
// The return annotation and parameter types are optional.
func ParseSignature(s string) (*Signature, error) {
	s = strings.TrimSpace(s)
	open := strings.Index(s, "(")
	close := strings.LastIndex(s, ")")
	if open <= 0 || close < open {
		return nil, fmt.Errorf("malformed signature %q: expected name(params)", s)
	}

	sig := &Signature{Name: strings.TrimSpace(s[:open])}
	if sig.Name == "" || strings.ContainsAny(sig.Name, " \t") {
		return nil, fmt.Errorf("malformed signature %q: bad name", s)
	}

	paramList := strings.TrimSpace(s[open+1 : close])
	if paramList != "" {
		for _, part := range splitParams(paramList) {
			name, typ, _ := strings.Cut(part, ":")
			name = strings.TrimSpace(name)
			if name == "" {
				return nil, fmt.Errorf("malformed signature %q: empty parameter name", s)
			}
			sig.Params = append(sig.Params, Param{
				Name: name,
				Type: strings.TrimSpace(typ),
			})
		}
	}

	rest := strings.TrimSpace(s[close+1:])
	if rest != "" {
		if !strings.HasPrefix(rest, ":") {
			return nil, fmt.Errorf("malformed signature %q: unexpected trailing %q", s, rest)
		}
		sig.Return = strings.TrimSpace(rest[1:])
	}

	return sig, nil
}

// splitParams splits a parameter list on top-level commas, ignoring commas
// nested inside brackets or angle brackets (generic and tuple types).
func splitParams(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	return parts
}
