// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package generate

import (
	"strings"

	"github.com/petar-djukic/gramgen/pkg/types"
)

const fenceMarker = "```"

// extractCandidate pulls the code candidate out of a chatty provider
// response. It prefers a fenced block tagged with the target language,
// falls back to the first fenced block, and finally to the whole trimmed
// text when no fences are present.
func extractCandidate(response string, lang types.Language) string {
	blocks := fencedBlocks(response)
	if len(blocks) == 0 {
		return strings.TrimSpace(response)
	}

	for _, b := range blocks {
		if matchesLanguage(b.tag, lang) {
			return b.body
		}
	}
	return blocks[0].body
}

type fencedBlock struct {
	tag  string
	body string
}

// fencedBlocks scans the response line by line for ``` fences.
func fencedBlocks(response string) []fencedBlock {
	lines := strings.Split(response, "\n")
	var blocks []fencedBlock

	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, fenceMarker) {
			i++
			continue
		}

		tag := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, fenceMarker)))
		var body []string
		i++
		for i < len(lines) && strings.TrimSpace(lines[i]) != fenceMarker {
			body = append(body, lines[i])
			i++
		}
		i++ // Skip the closing fence.

		if content := strings.TrimRight(strings.Join(body, "\n"), "\n"); content != "" {
			blocks = append(blocks, fencedBlock{tag: tag, body: content})
		}
	}

	return blocks
}

// matchesLanguage reports whether a fence tag names the target language.
func matchesLanguage(tag string, lang types.Language) bool {
	switch lang {
	case types.LangGo:
		return tag == "go" || tag == "golang"
	case types.LangTypeScript:
		return tag == "typescript" || tag == "ts"
	case types.LangJavaScript:
		return tag == "javascript" || tag == "js"
	case types.LangPython:
		return tag == "python" || tag == "py"
	}
	return false
}
