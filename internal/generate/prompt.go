// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package generate

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/petar-djukic/gramgen/internal/grammar"
	"github.com/petar-djukic/gramgen/pkg/types"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// charsPerToken approximates prompt size for the context budget.
const charsPerToken = 4

// promptData holds the values injected into the system prompt template.
type promptData struct {
	Language        string
	Construct       string
	TargetSignature string
	Constrained     bool
}

// renderSystemPrompt renders the system prompt for one request.
func renderSystemPrompt(req types.GenerationRequest, tmpl *grammar.Template, constrained bool) (string, error) {
	t, err := template.ParseFS(templateFS, "templates/system.tmpl")
	if err != nil {
		return "", fmt.Errorf("parsing system template: %w", err)
	}

	data := promptData{
		Language:    req.Language.String(),
		Construct:   req.Construct.String(),
		Constrained: constrained,
	}
	if tmpl.Rules.Target != nil {
		data.TargetSignature = tmpl.Rules.Target.String()
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing system template: %w", err)
	}
	return buf.String(), nil
}

// buildMessages constructs the user messages: the scope context rendered
// under a token budget, then the task itself.
func buildMessages(req types.GenerationRequest, tmpl *grammar.Template, contextBudget int) []types.Message {
	var messages []types.Message

	if scope := renderScope(tmpl.Rules, contextBudget); scope != "" {
		messages = append(messages, types.Message{Role: types.RoleUser, Content: scope})
	}

	messages = append(messages, types.Message{
		Role:    types.RoleUser,
		Content: "## Task\n\n" + req.Intent,
	})
	return messages
}

// renderScope lists the in-scope symbols with their signatures, cutting
// off once the character budget derived from the token budget is spent.
// Rules are already sorted, so the rendering is deterministic.
func renderScope(rules grammar.Rules, tokenBudget int) string {
	if len(rules.Allowed) == 0 {
		return ""
	}
	charBudget := tokenBudget * charsPerToken

	var buf strings.Builder
	buf.WriteString("## Symbols In Scope\n\n")
	for _, r := range rules.Allowed {
		line := fmt.Sprintf("- %s %s", strings.ToLower(r.Kind.String()), r.Name)
		if r.Signature != "" {
			line += ": `" + r.Signature + "`"
		}
		line += "\n"
		if buf.Len()+len(line) > charBudget {
			buf.WriteString("- ... (scope truncated)\n")
			break
		}
		buf.WriteString(line)
	}
	return buf.String()
}
