// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package provider defines the capability interface to LLM backends and
// the adapters gramgen ships: AWS Bedrock, OpenAI, and a llama.cpp server
// with native grammar-guided decoding.
package provider

import (
	"context"

	"github.com/petar-djukic/gramgen/pkg/types"
)

// Params tunes a single completion call.
type Params struct {
	MaxTokens   int     // Response token ceiling; 0 uses the adapter default
	Temperature float32 // Sampling temperature
}

// SubmitRequest is one completion call. Grammar carries the GBNF
// constraint; adapters without native support ignore it and rely on the
// caller to validate the candidate.
type SubmitRequest struct {
	System   string          // System prompt
	Messages []types.Message // Conversation so far
	Grammar  string          // GBNF constraint, empty for unconstrained
	Params   Params
}

// Completion is the provider's response to one SubmitRequest.
type Completion struct {
	Text  string           // Raw completion text
	Usage types.TokenUsage // Tokens consumed, zero if the backend omits it
}

// Adapter is the uniform capability interface over an LLM backend.
// Adapters are stateless from the caller's perspective; connection
// pooling is their own concern. SupportsGrammar reports whether Submit
// enforces the request grammar during decoding; callers must validate
// candidates from adapters that return false before accepting them.
type Adapter interface {
	Name() string
	SupportsGrammar() bool
	Submit(ctx context.Context, req SubmitRequest) (*Completion, error)
}
