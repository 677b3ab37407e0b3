// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package types

import (
	"fmt"
	"strings"
)

// ConstructKind identifies the surface construct a generation request targets.
type ConstructKind int

const (
	ConstructFunction ConstructKind = iota
	ConstructMethod
	ConstructClass
	ConstructInterface
	ConstructVariable
)

// String returns the lowercase name of the construct kind.
func (k ConstructKind) String() string {
	switch k {
	case ConstructFunction:
		return "function"
	case ConstructMethod:
		return "method"
	case ConstructClass:
		return "class"
	case ConstructInterface:
		return "interface"
	case ConstructVariable:
		return "variable"
	}
	return "unknown"
}

// ParseConstructKind maps a construct name to its ConstructKind value.
func ParseConstructKind(s string) (ConstructKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "function", "func":
		return ConstructFunction, nil
	case "method":
		return ConstructMethod, nil
	case "class", "struct":
		return ConstructClass, nil
	case "interface":
		return ConstructInterface, nil
	case "variable", "var":
		return ConstructVariable, nil
	}
	return 0, fmt.Errorf("unsupported construct kind %q", s)
}

// GenerationRequest describes one code-generation task. It is immutable
// and created per caller invocation; repair follow-ups derive new requests
// rather than mutating the original.
type GenerationRequest struct {
	Intent            string        // Natural-language description of the task
	Language          Language      // Target language
	Construct         ConstructKind // Target construct kind
	ScopeSymbols      []string      // Symbol names in scope; empty = auto-scope by rank
	TargetSignature   *Signature    // Optional pinned declaration signature
	MaxRepairAttempts int           // Repair budget; 0 uses the configured default
}

// MessageRole identifies the sender of a message in a provider conversation.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message represents a single message in a provider conversation.
type Message struct {
	Role    MessageRole // Who sent the message
	Content string      // Message text
}

// TokenUsage tracks token consumption for provider calls.
type TokenUsage struct {
	InputTokens  int // Tokens in the prompt
	OutputTokens int // Tokens in the response
}

// Total returns the sum of input and output tokens.
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Add accumulates another usage sample.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// GenerationResult holds one candidate produced by the constrained generator.
type GenerationResult struct {
	Text              string     // Extracted candidate text
	Provider          string     // Adapter that produced it
	ConstraintApplied bool       // Grammar was enforced during decoding
	Satisfied         bool       // Candidate passed validation
	Attempt           int        // 0 for the initial request, 1..n for repairs
	Usage             TokenUsage // Tokens consumed by the producing call
}
