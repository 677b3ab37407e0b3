// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package validate statically checks generated text against a grammar
// template and the index's type facts. Validation is pure: it never
// executes the candidate and touches no shared state, so re-validating
// the same inputs always yields the same report.
package validate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/petar-djukic/gramgen/internal/grammar"
	"github.com/petar-djukic/gramgen/internal/index"
	"github.com/petar-djukic/gramgen/pkg/types"
)

// builtins are the callable names admitted without being in scope.
var builtins = map[types.Language]map[string]bool{
	types.LangGo: setOf("append", "cap", "copy", "delete", "len", "make",
		"new", "panic", "print", "println", "recover", "min", "max", "clear",
		"int", "int64", "float64", "string", "byte", "rune", "bool", "error"),
	types.LangTypeScript: setOf("Array", "Boolean", "Error", "Number",
		"Object", "Promise", "String", "Symbol", "isNaN", "parseFloat", "parseInt"),
	types.LangJavaScript: setOf("Array", "Boolean", "Error", "Number",
		"Object", "Promise", "String", "Symbol", "isNaN", "parseFloat", "parseInt"),
	types.LangPython: setOf("abs", "bool", "dict", "enumerate", "float",
		"int", "isinstance", "len", "list", "max", "min", "print", "range",
		"round", "set", "sorted", "str", "sum", "tuple", "zip"),
}

func setOf(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// Validate checks candidate text against the template's grammar and the
// snapshot's type table. A report with zero violations means the text is
// a member of the language the template defines. The snapshot may be nil
// when only structural checks are wanted.
func Validate(text string, tmpl *grammar.Template, snap *index.Snapshot) *types.ValidationReport {
	report := &types.ValidationReport{}

	prefix, suffix, lineOffset := wrapFor(tmpl.Language, tmpl.Construct)
	content := []byte(prefix + text + suffix)

	lang := index.SitterLanguage(tmpl.Language)
	root, err := sitter.ParseCtx(context.Background(), content, lang)
	if err != nil || root == nil {
		report.Violations = append(report.Violations, types.Violation{
			Kind:    types.SyntaxViolation,
			Line:    1,
			Message: "candidate does not parse",
		})
		return report
	}

	collectSyntaxErrors(root, content, lineOffset, report)

	decls, _, extractErr := index.Extract(context.Background(), content, "candidate", tmpl.Language)
	adjustLines(decls, lineOffset)

	target := findConstruct(decls, tmpl.Construct)
	if target == nil && extractErr == nil {
		report.Violations = append(report.Violations, types.Violation{
			Kind:     types.SyntaxViolation,
			Line:     1,
			Message:  fmt.Sprintf("expected a %s declaration", tmpl.Construct),
			Expected: tmpl.Construct.String(),
			Actual:   topKind(decls),
		})
	}

	if target != nil && tmpl.Rules.Target != nil {
		checkTargetSignature(*target, tmpl, report)
	}

	checkCalls(root, content, lineOffset, tmpl, decls, report)

	sort.SliceStable(report.Violations, func(i, j int) bool {
		a, b := report.Violations[i], report.Violations[j]
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	report.Pass = len(report.Violations) == 0
	return report
}

// wrapFor returns the wrapper that makes a bare construct parseable at
// top level: methods outside a class body do not parse in TypeScript,
// JavaScript, or Python.
func wrapFor(lang types.Language, construct types.ConstructKind) (prefix, suffix string, lineOffset int) {
	if construct != types.ConstructMethod {
		return "", "", 0
	}
	switch lang {
	case types.LangTypeScript, types.LangJavaScript:
		return "class __Wrapper {\n", "\n}", 1
	case types.LangPython:
		return "class __Wrapper:\n", "", 1
	}
	return "", "", 0
}

// collectSyntaxErrors walks the tree for ERROR and MISSING nodes.
func collectSyntaxErrors(node *sitter.Node, content []byte, lineOffset int, report *types.ValidationReport) {
	if node.IsError() || node.IsMissing() {
		line := int(node.StartPoint().Row) + 1 - lineOffset
		if line < 1 {
			line = 1
		}
		msg := "syntax error"
		if node.IsMissing() {
			msg = "missing " + node.Type()
		} else if snippet := nodeSnippet(node, content); snippet != "" {
			msg = "syntax error near " + snippet
		}
		report.Violations = append(report.Violations, types.Violation{
			Kind:    types.SyntaxViolation,
			Line:    line,
			Column:  int(node.StartPoint().Column) + 1,
			Message: msg,
		})
		return // One violation per error subtree is enough.
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		collectSyntaxErrors(node.Child(i), content, lineOffset, report)
	}
}

func nodeSnippet(node *sitter.Node, content []byte) string {
	s := strings.TrimSpace(node.Content(content))
	if len(s) > 20 {
		s = s[:20] + "..."
	}
	if s == "" {
		return ""
	}
	return fmt.Sprintf("%q", s)
}

func adjustLines(decls []types.Symbol, offset int) {
	if offset == 0 {
		return
	}
	for i := range decls {
		decls[i].Line -= offset
		if decls[i].Line < 1 {
			decls[i].Line = 1
		}
	}
}

// findConstruct returns the first declaration matching the construct kind.
func findConstruct(decls []types.Symbol, construct types.ConstructKind) *types.Symbol {
	want := constructKinds(construct)
	for i := range decls {
		if want[decls[i].Kind] {
			return &decls[i]
		}
	}
	return nil
}

func constructKinds(construct types.ConstructKind) map[types.SymbolKind]bool {
	switch construct {
	case types.ConstructFunction:
		return map[types.SymbolKind]bool{types.Function: true}
	case types.ConstructMethod:
		return map[types.SymbolKind]bool{types.Method: true, types.Function: true}
	case types.ConstructClass:
		return map[types.SymbolKind]bool{types.Class: true}
	case types.ConstructInterface:
		return map[types.SymbolKind]bool{types.Interface: true}
	case types.ConstructVariable:
		return map[types.SymbolKind]bool{types.Variable: true, types.Constant: true}
	}
	return nil
}

func topKind(decls []types.Symbol) string {
	if len(decls) == 0 {
		return "no declaration"
	}
	return strings.ToLower(decls[0].Kind.String())
}

// checkTargetSignature compares the declared header against the pinned
// target signature, reporting one TypeMismatch per disagreeing part.
func checkTargetSignature(decl types.Symbol, tmpl *grammar.Template, report *types.ValidationReport) {
	want := tmpl.Rules.Target

	if decl.Name != want.Name {
		report.Violations = append(report.Violations, types.Violation{
			Kind:     types.TypeMismatch,
			Line:     decl.Line,
			Message:  "declared name does not match the target",
			Expected: want.Name,
			Actual:   decl.Name,
		})
		return
	}

	got, err := parseDeclHeader(decl.Signature, tmpl.Language)
	if err != nil {
		// Header not recoverable from the declaration line; compare the
		// whole header against the grammar's pinned literal instead.
		pinned := tmpl.HeaderLiteral()
		if pinned != "" && !headerMatches(decl.Signature, pinned) {
			report.Violations = append(report.Violations, types.Violation{
				Kind:     types.TypeMismatch,
				Line:     decl.Line,
				Message:  "declaration header does not match the target signature",
				Expected: pinned,
				Actual:   decl.Signature,
			})
		}
		return
	}

	if len(got.Params) != len(want.Params) {
		report.Violations = append(report.Violations, types.Violation{
			Kind:     types.TypeMismatch,
			Line:     decl.Line,
			Message:  "parameter count does not match the target",
			Expected: fmt.Sprintf("%d parameters", len(want.Params)),
			Actual:   fmt.Sprintf("%d parameters", len(got.Params)),
		})
		return
	}

	for i, p := range want.Params {
		gp := got.Params[i]
		if gp.Name != p.Name {
			report.Violations = append(report.Violations, types.Violation{
				Kind:     types.TypeMismatch,
				Line:     decl.Line,
				Message:  fmt.Sprintf("parameter %d name does not match", i+1),
				Expected: p.Name,
				Actual:   gp.Name,
			})
		}
		if p.Type != "" && gp.Type != p.Type {
			report.Violations = append(report.Violations, types.Violation{
				Kind:     types.TypeMismatch,
				Line:     decl.Line,
				Message:  fmt.Sprintf("parameter %q type does not match", p.Name),
				Expected: p.Type,
				Actual:   gp.Type,
			})
		}
	}

	if want.Return != "" && got.Return != want.Return {
		report.Violations = append(report.Violations, types.Violation{
			Kind:     types.TypeMismatch,
			Line:     decl.Line,
			Message:  "return type does not match the target",
			Expected: want.Return,
			Actual:   got.Return,
		})
	}
}

// headerMatches compares a declaration line against a pinned header
// literal, tolerating trailing body openers and whitespace runs.
func headerMatches(declLine, pinned string) bool {
	norm := func(s string) string {
		s = strings.TrimSuffix(strings.TrimSpace(s), "{")
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.HasPrefix(norm(declLine), norm(pinned))
}

// checkCalls walks call expressions: the callee must resolve in the
// template scope, the candidate's own declarations, its parameters, or
// the language builtins; calls to scope functions are arity-checked.
func checkCalls(root *sitter.Node, content []byte, lineOffset int, tmpl *grammar.Template, decls []types.Symbol, report *types.ValidationReport) {
	known := make(map[string]bool)
	for _, d := range decls {
		known[d.Name] = true
	}
	for name := range builtins[tmpl.Language] {
		known[name] = true
	}
	collectParamNames(root, content, known)

	scopeNames := tmpl.Rules.AllowedNames()

	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		if isCallNode(node, tmpl.Language) {
			fn := node.ChildByFieldName("function")
			if fn != nil && isIdentifierNode(fn) {
				name := fn.Content(content)
				line := int(fn.StartPoint().Row) + 1 - lineOffset
				if line < 1 {
					line = 1
				}

				rule, inScope := tmpl.Rules.Lookup(name)
				switch {
				case inScope:
					checkArity(node, content, line, name, rule, report)
				case known[name]:
					// Local or builtin; nothing to check.
				default:
					v := types.Violation{
						Kind:    types.UnknownSymbol,
						Line:    line,
						Column:  int(fn.StartPoint().Column) + 1,
						Message: fmt.Sprintf("call to %q, which is not in scope", name),
					}
					if suggestion, ok := closest(name, scopeNames); ok {
						v.Message += fmt.Sprintf("; did you mean %q?", suggestion)
						v.Expected = suggestion
						v.Actual = name
					}
					report.Violations = append(report.Violations, v)
				}
			}
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(i))
		}
	}
	walk(root)
}

// checkArity compares a call's argument count against the arity parsed
// from the scope symbol's recorded signature.
func checkArity(call *sitter.Node, content []byte, line int, name string, rule grammar.SymbolRule, report *types.ValidationReport) {
	want, ok := signatureArity(rule.Signature)
	if !ok {
		return
	}
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return
	}
	got := int(args.NamedChildCount())
	if got != want {
		report.Violations = append(report.Violations, types.Violation{
			Kind:     types.TypeMismatch,
			Line:     line,
			Message:  fmt.Sprintf("call to %q has the wrong number of arguments", name),
			Expected: fmt.Sprintf("%d arguments", want),
			Actual:   fmt.Sprintf("%d arguments", got),
		})
	}
}

// signatureArity parses the parameter count out of a recorded signature
// line. Signatures with variadics or defaults are skipped: their arity
// is not a single number.
func signatureArity(sig string) (int, bool) {
	open := strings.Index(sig, "(")
	if open < 0 {
		return 0, false
	}
	depth := 0
	closeIdx := -1
	for i := open; i < len(sig); i++ {
		switch sig[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				closeIdx = i
			}
		}
		if closeIdx >= 0 {
			break
		}
	}
	if closeIdx < 0 {
		return 0, false
	}

	params := strings.TrimSpace(sig[open+1 : closeIdx])
	if params == "" {
		return 0, true
	}
	if strings.Contains(params, "...") || strings.Contains(params, "*") || strings.Contains(params, "=") {
		return 0, false
	}

	count := 1
	depth = 0
	for _, r := range params {
		switch r {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			depth--
		case ',':
			if depth == 0 {
				count++
			}
		}
	}
	return count, true
}

// collectParamNames adds identifiers declared in parameter positions to
// the known set, so called callbacks are not flagged as unknown.
func collectParamNames(node *sitter.Node, content []byte, known map[string]bool) {
	if strings.Contains(node.Type(), "parameter") {
		addIdentifiers(node, content, known)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		collectParamNames(node.Child(i), content, known)
	}
}

func addIdentifiers(node *sitter.Node, content []byte, known map[string]bool) {
	if isIdentifierNode(node) {
		known[node.Content(content)] = true
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		addIdentifiers(node.Child(i), content, known)
	}
}

func isCallNode(node *sitter.Node, lang types.Language) bool {
	switch lang {
	case types.LangPython:
		return node.Type() == "call"
	default:
		return node.Type() == "call_expression"
	}
}

func isIdentifierNode(node *sitter.Node) bool {
	t := node.Type()
	return t == "identifier" || t == "type_identifier" || t == "field_identifier"
}
