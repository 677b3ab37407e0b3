// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package grammar

import (
	"log/slog"
	"regexp"
	"sort"
	"time"

	"github.com/petar-djukic/gramgen/internal/index"
	"github.com/petar-djukic/gramgen/pkg/types"
)

const defaultScopeLimit = 24

// TemplateCache is the cache the compiler consults before compiling.
// Implemented by internal/cache; nil disables caching.
type TemplateCache interface {
	Get(fingerprint string) (*Template, bool)
	Put(t *Template)
}

// Compiler turns an index snapshot plus a generation request into a
// grammar template. Compilation is pure; the injected cache is the only
// shared state it touches.
type Compiler struct {
	cache      TemplateCache
	scopeLimit int
	logger     *slog.Logger
}

// NewCompiler creates a Compiler backed by the given template cache.
func NewCompiler(cache TemplateCache, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Compiler{cache: cache, scopeLimit: defaultScopeLimit, logger: logger}
}

// Compile resolves the request's symbol scope against the snapshot,
// derives type and structural constraints, and returns the template.
// A cached template with the same fingerprint is returned without
// recompiling. Returns *CompileError when a requested scope symbol is
// not declared in the snapshot.
func (c *Compiler) Compile(snap *index.Snapshot, req types.GenerationRequest) (*Template, error) {
	rules, err := c.resolveScope(snap, req)
	if err != nil {
		return nil, err
	}

	fp := fingerprint(req.Language, req.Construct, rules)

	if c.cache != nil {
		if t, ok := c.cache.Get(fp); ok {
			return t, nil
		}
	}

	tmpl := &Template{
		Language:      req.Language,
		Construct:     req.Construct,
		Fingerprint:   fp,
		GBNF:          renderGBNF(req.Language, req.Construct, rules),
		Rules:         rules,
		DependencySet: dependencySet(rules),
		CreatedAt:     time.Now().UTC(),
	}

	if c.cache != nil {
		c.cache.Put(tmpl)
	}
	c.logger.Debug("compiled grammar template",
		"fingerprint", fp, "language", req.Language.String(),
		"construct", req.Construct.String(), "scope", len(rules.Allowed))

	return tmpl, nil
}

// resolveScope maps the request's scope names to symbol rules. Explicit
// names must all be declared; an empty scope auto-selects the top-ranked
// exported symbols. Type edges of the scope are pulled in so signature
// checks have the types they mention.
func (c *Compiler) resolveScope(snap *index.Snapshot, req types.GenerationRequest) (Rules, error) {
	rules := Rules{Target: req.TargetSignature}

	if len(req.ScopeSymbols) > 0 {
		var missing []string
		seen := make(map[string]bool)
		for _, name := range req.ScopeSymbols {
			if seen[name] {
				continue
			}
			seen[name] = true
			syms := snap.LookupName(name)
			if len(syms) == 0 {
				missing = append(missing, name)
				continue
			}
			for _, s := range syms {
				rules.Allowed = append(rules.Allowed, SymbolRule{Name: s.Name, Kind: s.Kind, Signature: s.Signature})
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return Rules{}, &CompileError{Missing: missing}
		}
	} else {
		for _, rs := range index.Rank(snap, nil) {
			if len(rules.Allowed) >= c.scopeLimit {
				break
			}
			for _, s := range snap.LookupName(rs.Name) {
				if s.Line == rs.Line && s.FilePath == rs.FilePath && s.Exported {
					rules.Allowed = append(rules.Allowed, SymbolRule{Name: s.Name, Kind: s.Kind, Signature: s.Signature})
				}
			}
		}
	}

	rules.Allowed = withTypeEdges(snap, rules.Allowed)
	sortRules(rules.Allowed)
	return rules, nil
}

var identRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// withTypeEdges adds the type symbols mentioned in the scope's signatures,
// so a scope of functions carries the types they accept and return.
func withTypeEdges(snap *index.Snapshot, allowed []SymbolRule) []SymbolRule {
	have := make(map[string]bool, len(allowed))
	for _, r := range allowed {
		have[r.Name] = true
	}

	out := allowed
	for _, r := range allowed {
		for _, word := range identRe.FindAllString(r.Signature, -1) {
			if have[word] {
				continue
			}
			for _, s := range snap.LookupName(word) {
				switch s.Kind {
				case types.Class, types.Interface, types.TypeAlias:
					have[word] = true
					out = append(out, SymbolRule{Name: s.Name, Kind: s.Kind, Signature: s.Signature})
				}
			}
		}
	}
	return out
}

func sortRules(rules []SymbolRule) {
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Name != rules[j].Name {
			return rules[i].Name < rules[j].Name
		}
		return rules[i].Signature < rules[j].Signature
	})
}

// dependencySet lists the symbol names the template was compiled from;
// a change to any of them must evict the cached template.
func dependencySet(rules Rules) []string {
	set := make(map[string]bool, len(rules.Allowed))
	for _, r := range rules.Allowed {
		set[r.Name] = true
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
