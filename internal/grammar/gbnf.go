// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package grammar

import (
	"sort"
	"strings"

	"github.com/petar-djukic/gramgen/pkg/types"
)

// Primitive type names admitted in annotations, per language.
var primitiveTypes = map[types.Language][]string{
	types.LangGo:         {"any", "bool", "byte", "error", "float64", "int", "int64", "rune", "string"},
	types.LangTypeScript: {"any", "boolean", "null", "number", "string", "unknown", "void"},
	types.LangJavaScript: nil, // No annotations.
	types.LangPython:     {"None", "bool", "float", "int", "str"},
}

// renderGBNF produces the GBNF grammar for one (language, construct,
// rules) key. The grammar pins the construct's surface at declaration
// granularity; when a target signature is pinned, the declaration header
// is emitted as a literal. Emission order is fixed so identical inputs
// render byte-identical grammars.
func renderGBNF(lang types.Language, construct types.ConstructKind, rules Rules) string {
	g := &gbnfBuilder{}

	switch lang {
	case types.LangPython:
		renderPython(g, construct, rules)
	case types.LangGo:
		renderGo(g, construct, rules)
	default:
		renderECMA(g, lang, construct, rules)
	}

	g.rule("ident", `[a-zA-Z_] [a-zA-Z0-9_]*`)
	g.rule("ws", `[ \t\n]*`)
	return g.String()
}

// gbnfBuilder accumulates GBNF rules in emission order.
type gbnfBuilder struct {
	lines []string
	seen  map[string]bool
}

func (g *gbnfBuilder) rule(name, body string) {
	if g.seen == nil {
		g.seen = make(map[string]bool)
	}
	if g.seen[name] {
		return
	}
	g.seen[name] = true
	g.lines = append(g.lines, name+" ::= "+body)
}

func (g *gbnfBuilder) String() string {
	return strings.Join(g.lines, "\n") + "\n"
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// alternation renders sorted alternatives of quoted literals.
func alternation(items []string) string {
	sorted := append([]string(nil), items...)
	sort.Strings(sorted)
	quoted := make([]string, len(sorted))
	for i, it := range sorted {
		quoted[i] = quote(it)
	}
	return strings.Join(quoted, " | ")
}

// typeAlternatives returns the admitted type annotation names: language
// primitives plus scope symbols that name types.
func typeAlternatives(lang types.Language, rules Rules) []string {
	out := append([]string(nil), primitiveTypes[lang]...)
	for _, r := range rules.Allowed {
		switch r.Kind {
		case types.Class, types.Interface, types.TypeAlias:
			out = append(out, r.Name)
		}
	}
	return out
}

// renderECMA emits the grammar for TypeScript and JavaScript constructs.
func renderECMA(g *gbnfBuilder, lang types.Language, construct types.ConstructKind, rules Rules) {
	typed := lang == types.LangTypeScript

	if rules.Target != nil && (construct == types.ConstructFunction || construct == types.ConstructMethod) {
		header := renderHeaderECMA(construct, *rules.Target, typed)
		g.rule("root", "ws "+quote(header)+" ws block ws")
		renderBlock(g)
		return
	}

	switch construct {
	case types.ConstructFunction:
		ret := ""
		if typed {
			ret = ` (":" ws typename)?`
		}
		g.rule("root", `ws "function" ws ident ws "(" paramlist? ")"`+ret+` ws block ws`)
		renderParams(g, lang, rules, typed)
		renderBlock(g)
	case types.ConstructMethod:
		ret := ""
		if typed {
			ret = ` (":" ws typename)?`
		}
		g.rule("root", `ws ident ws "(" paramlist? ")"`+ret+` ws block ws`)
		renderParams(g, lang, rules, typed)
		renderBlock(g)
	case types.ConstructClass:
		name := "ident"
		if rules.Target != nil {
			name = quote(rules.Target.Name)
		}
		g.rule("root", `ws "class" ws `+name+` (ws "extends" ws ident)? ws block ws`)
		renderBlock(g)
	case types.ConstructInterface:
		name := "ident"
		if rules.Target != nil {
			name = quote(rules.Target.Name)
		}
		g.rule("root", `ws "interface" ws `+name+` ws block ws`)
		renderBlock(g)
	case types.ConstructVariable:
		ann := ""
		if typed {
			ann = ` (":" ws typename)?`
			renderTypename(g, lang, rules)
		}
		g.rule("root", `ws ("const" | "let" | "var") ws ident`+ann+` ws "=" ws exprline ";"? ws`)
		g.rule("exprline", `[^;\n]+`)
	}
}

// renderGo emits the grammar for Go constructs.
func renderGo(g *gbnfBuilder, construct types.ConstructKind, rules Rules) {
	if rules.Target != nil && construct == types.ConstructFunction {
		header := renderHeaderGo(*rules.Target)
		g.rule("root", "ws "+quote(header)+" ws block ws")
		renderBlock(g)
		return
	}

	switch construct {
	case types.ConstructFunction:
		g.rule("root", `ws "func" ws ident ws "(" goparamlist? ")" (ws typename)? ws block ws`)
		renderGoParams(g, rules)
		renderBlock(g)
	case types.ConstructMethod:
		g.rule("root", `ws "func" ws "(" goparam ")" ws ident ws "(" goparamlist? ")" (ws typename)? ws block ws`)
		renderGoParams(g, rules)
		renderBlock(g)
	case types.ConstructClass:
		name := "ident"
		if rules.Target != nil {
			name = quote(rules.Target.Name)
		}
		g.rule("root", `ws "type" ws `+name+` ws "struct" ws block ws`)
		renderBlock(g)
	case types.ConstructInterface:
		name := "ident"
		if rules.Target != nil {
			name = quote(rules.Target.Name)
		}
		g.rule("root", `ws "type" ws `+name+` ws "interface" ws block ws`)
		renderBlock(g)
	case types.ConstructVariable:
		g.rule("root", `ws ("var" | "const") ws ident (ws typename)? ws "=" ws exprline ws`)
		renderTypename(g, types.LangGo, rules)
		g.rule("exprline", `[^\n]+`)
	}
}

// renderPython emits the grammar for Python constructs. Bodies are one
// or more indented lines rather than a braced block.
func renderPython(g *gbnfBuilder, construct types.ConstructKind, rules Rules) {
	switch construct {
	case types.ConstructFunction, types.ConstructMethod:
		if rules.Target != nil {
			header := renderHeaderPython(*rules.Target)
			g.rule("root", quote(header)+` "\n" pybody`)
		} else {
			g.rule("root", `"def " ident "(" paramlist? ")" (" -> " typename)? ":" "\n" pybody`)
			renderParams(g, types.LangPython, rules, true)
		}
		g.rule("pybody", `pyline+`)
		g.rule("pyline", `"    " [^\n]* "\n"`)
	case types.ConstructClass, types.ConstructInterface:
		name := "ident"
		if rules.Target != nil {
			name = quote(rules.Target.Name)
		}
		g.rule("root", `"class " `+name+` ("(" ident ")")? ":" "\n" pybody`)
		g.rule("pybody", `pyline+`)
		g.rule("pyline", `"    " [^\n]* "\n"`)
	case types.ConstructVariable:
		g.rule("root", `ident (": " typename)? " = " [^\n]+ "\n"?`)
		renderTypename(g, types.LangPython, rules)
	}
}

func renderParams(g *gbnfBuilder, lang types.Language, rules Rules, typed bool) {
	if typed {
		g.rule("paramlist", `param (ws "," ws param)*`)
		g.rule("param", `ident (":" ws typename)?`)
		renderTypename(g, lang, rules)
	} else {
		g.rule("paramlist", `ident (ws "," ws ident)*`)
	}
}

func renderGoParams(g *gbnfBuilder, rules Rules) {
	g.rule("goparamlist", `goparam (ws "," ws goparam)*`)
	g.rule("goparam", `ident ws typename`)
	renderTypename(g, types.LangGo, rules)
}

func renderTypename(g *gbnfBuilder, lang types.Language, rules Rules) {
	alts := typeAlternatives(lang, rules)
	if len(alts) == 0 {
		g.rule("typename", "ident")
		return
	}
	g.rule("typename", alternation(alts)+" | ident")
}

// renderBlock emits a brace-balanced block; the fine structure of the
// body is checked by the validator, not the decoding grammar.
func renderBlock(g *gbnfBuilder) {
	g.rule("block", `"{" bodychar* "}"`)
	g.rule("bodychar", `[^{}] | block`)
}

// renderHeaderECMA renders a pinned declaration header literal for
// TypeScript or JavaScript.
func renderHeaderECMA(construct types.ConstructKind, sig types.Signature, typed bool) string {
	var buf strings.Builder
	if construct == types.ConstructFunction {
		buf.WriteString("function ")
	}
	buf.WriteString(sig.Name)
	buf.WriteString("(")
	for i, p := range sig.Params {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(p.Name)
		if typed && p.Type != "" {
			buf.WriteString(": " + p.Type)
		}
	}
	buf.WriteString(")")
	if typed && sig.Return != "" {
		buf.WriteString(": " + sig.Return)
	}
	return buf.String()
}

// renderHeaderGo renders a pinned Go function header literal.
func renderHeaderGo(sig types.Signature) string {
	var buf strings.Builder
	buf.WriteString("func " + sig.Name + "(")
	for i, p := range sig.Params {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(p.Name)
		if p.Type != "" {
			buf.WriteString(" " + p.Type)
		}
	}
	buf.WriteString(")")
	if sig.Return != "" {
		buf.WriteString(" " + sig.Return)
	}
	return buf.String()
}

// renderHeaderPython renders a pinned Python def header literal.
func renderHeaderPython(sig types.Signature) string {
	var buf strings.Builder
	buf.WriteString("def " + sig.Name + "(")
	for i, p := range sig.Params {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(p.Name)
		if p.Type != "" {
			buf.WriteString(": " + p.Type)
		}
	}
	buf.WriteString(")")
	if sig.Return != "" {
		buf.WriteString(" -> " + sig.Return)
	}
	buf.WriteString(":")
	return buf.String()
}

// headerLiteral returns the pinned header for a template, empty when no
// target signature is set. The validator compares declarations against
// the same literal the grammar pins.
func headerLiteral(lang types.Language, construct types.ConstructKind, rules Rules) string {
	if rules.Target == nil {
		return ""
	}
	switch lang {
	case types.LangPython:
		return renderHeaderPython(*rules.Target)
	case types.LangGo:
		if construct == types.ConstructFunction {
			return renderHeaderGo(*rules.Target)
		}
	case types.LangTypeScript:
		return renderHeaderECMA(construct, *rules.Target, true)
	case types.LangJavaScript:
		return renderHeaderECMA(construct, *rules.Target, false)
	}
	return rules.Target.Name
}
