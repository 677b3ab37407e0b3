// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/gramgen/pkg/types"
)

func llamaServer(t *testing.T, handler http.HandlerFunc) *LlamaCpp {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	l, err := NewLlamaCpp(LlamaCppConfig{BaseURL: srv.URL})
	require.NoError(t, err)
	return l
}

func TestLlamaCpp_SubmitPassesGrammar(t *testing.T) {
	var got llamaRequest
	l := llamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/completion", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(llamaResponse{
			Content:         "function add(a, b) { return a + b; }",
			TokensEvaluated: 12,
			TokensPredicted: 9,
		})
	})

	comp, err := l.Submit(context.Background(), SubmitRequest{
		System:   "You produce one declaration.",
		Messages: []types.Message{{Role: types.RoleUser, Content: "add two numbers"}},
		Grammar:  "root ::= ws\n",
		Params:   Params{MaxTokens: 128, Temperature: 0.2},
	})
	require.NoError(t, err)

	assert.Equal(t, "root ::= ws\n", got.Grammar, "grammar must reach the server")
	assert.Equal(t, 128, got.NPredict)
	assert.False(t, got.Stream)
	assert.Contains(t, got.Prompt, "add two numbers")

	assert.Equal(t, "function add(a, b) { return a + b; }", comp.Text)
	assert.Equal(t, 12, comp.Usage.InputTokens)
	assert.Equal(t, 9, comp.Usage.OutputTokens)
}

func TestLlamaCpp_SupportsGrammar(t *testing.T) {
	l, err := NewLlamaCpp(LlamaCppConfig{BaseURL: "http://localhost:1"})
	require.NoError(t, err)
	assert.True(t, l.SupportsGrammar())
	assert.Equal(t, "llamacpp", l.Name())
}

func TestLlamaCpp_ServerErrorIsTransient(t *testing.T) {
	l := llamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	_, err := l.Submit(context.Background(), SubmitRequest{})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestLlamaCpp_RejectedRequestIsFatal(t *testing.T) {
	l := llamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad grammar", http.StatusBadRequest)
	})

	_, err := l.Submit(context.Background(), SubmitRequest{Grammar: "not gbnf"})
	require.Error(t, err)
	assert.False(t, IsTransient(err))
}

func TestLlamaCpp_ConnectionFailureIsTransient(t *testing.T) {
	l, err := NewLlamaCpp(LlamaCppConfig{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = l.Submit(context.Background(), SubmitRequest{})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestLlamaCpp_RequiresBaseURL(t *testing.T) {
	_, err := NewLlamaCpp(LlamaCppConfig{})
	assert.Error(t, err)
}

func TestFlattenPrompt(t *testing.T) {
	prompt := flattenPrompt("system text", []types.Message{
		{Role: types.RoleUser, Content: "first"},
		{Role: types.RoleAssistant, Content: "draft"},
		{Role: types.RoleUser, Content: "fix it"},
	})

	assert.Contains(t, prompt, "system text")
	assert.Contains(t, prompt, "User: first")
	assert.Contains(t, prompt, "Assistant: draft")
	assert.True(t, len(prompt) > 0 && prompt[len(prompt)-len("Assistant: "):] == "Assistant: ")
}
