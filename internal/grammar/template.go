// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package grammar compiles index facts and a generation request into a
// deterministic, cacheable constraint artifact: the grammar template.
package grammar

import (
	"fmt"
	"strings"
	"time"

	"github.com/petar-djukic/gramgen/pkg/types"
)

// SymbolRule is one symbol admitted into a template's scope, with the
// signature the validator checks usages against.
type SymbolRule struct {
	Name      string           `json:"name"`
	Kind      types.SymbolKind `json:"kind"`
	Signature string           `json:"signature"`
}

// Rules holds the type constraints of a template: the admitted scope
// symbols and the optional pinned target signature.
type Rules struct {
	Allowed []SymbolRule     `json:"allowed"`
	Target  *types.Signature `json:"target,omitempty"`
}

// AllowedNames returns the names of the admitted symbols, in rule order.
func (r Rules) AllowedNames() []string {
	names := make([]string, len(r.Allowed))
	for i, a := range r.Allowed {
		names[i] = a.Name
	}
	return names
}

// Lookup returns the rule for a name, if admitted.
func (r Rules) Lookup(name string) (SymbolRule, bool) {
	for _, a := range r.Allowed {
		if a.Name == name {
			return a, true
		}
	}
	return SymbolRule{}, false
}

// Template is the compiled constraint artifact for one (language,
// construct, symbol scope) key. Identical key inputs always compile to a
// template accepting the same language of strings; Fingerprint is the
// cache key.
type Template struct {
	Language      types.Language      `json:"language"`
	Construct     types.ConstructKind `json:"construct"`
	Fingerprint   string              `json:"fingerprint"`
	GBNF          string              `json:"gbnf"`
	Rules         Rules               `json:"rules"`
	DependencySet []string            `json:"dependencySet"` // Symbol names whose change invalidates this template
	CreatedAt     time.Time           `json:"createdAt"`
}

// HeaderLiteral returns the pinned declaration header the grammar
// enforces, empty when no target signature is set.
func (t *Template) HeaderLiteral() string {
	return headerLiteral(t.Language, t.Construct, t.Rules)
}

// DependsOn reports whether the template's dependency set contains any of
// the given symbol names.
func (t *Template) DependsOn(names []string) bool {
	if len(names) == 0 || len(t.DependencySet) == 0 {
		return false
	}
	set := make(map[string]bool, len(t.DependencySet))
	for _, d := range t.DependencySet {
		set[d] = true
	}
	for _, n := range names {
		if set[n] {
			return true
		}
	}
	return false
}

// CompileError reports that required type information was missing from
// the index, typically a scope symbol that is not declared.
type CompileError struct {
	Missing []string // Symbol names absent from the snapshot
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("grammar compile: undeclared symbols in scope: %s", strings.Join(e.Missing, ", "))
}
