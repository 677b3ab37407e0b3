// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package grammar

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/petar-djukic/gramgen/pkg/types"
)

// fingerprint derives the cache key from the template's key inputs. The
// serialization is canonical: rules are sorted by name so map iteration
// or caller ordering never leaks into the key.
func fingerprint(lang types.Language, construct types.ConstructKind, rules Rules) string {
	lines := make([]string, 0, len(rules.Allowed)+3)
	lines = append(lines, "lang="+lang.String())
	lines = append(lines, "construct="+construct.String())

	ruleLines := make([]string, 0, len(rules.Allowed))
	for _, r := range rules.Allowed {
		ruleLines = append(ruleLines, fmt.Sprintf("sym=%s|%s|%s", r.Name, r.Kind, r.Signature))
	}
	sort.Strings(ruleLines)
	lines = append(lines, ruleLines...)

	if rules.Target != nil {
		lines = append(lines, "target="+rules.Target.String())
	}

	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}
