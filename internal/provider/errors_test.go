// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/gramgen/pkg/types"
)

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(transientErr("x", errors.New("throttled"))))
	assert.False(t, IsTransient(fatalErr("x", errors.New("denied"))))
	assert.False(t, IsTransient(errors.New("plain")))
	assert.False(t, IsTransient(nil))

	// Classification survives wrapping.
	wrapped := fmt.Errorf("call failed: %w", transientErr("x", errors.New("throttled")))
	assert.True(t, IsTransient(wrapped))
}

func TestError_MessageNamesProviderAndClass(t *testing.T) {
	e := transientErr("llamacpp", errors.New("503"))
	assert.Contains(t, e.Error(), "llamacpp")
	assert.Contains(t, e.Error(), "transient")

	f := fatalErr("openai", errors.New("401"))
	assert.Contains(t, f.Error(), "fatal")
}

// fakeOpenAI returns a canned response or error.
type fakeOpenAI struct {
	resp openai.ChatCompletionResponse
	err  error
	last openai.ChatCompletionRequest
}

func (f *fakeOpenAI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.last = req
	return f.resp, f.err
}

func TestOpenAI_Submit(t *testing.T) {
	fake := &fakeOpenAI{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "candidate"}}},
		Usage:   openai.Usage{PromptTokens: 10, CompletionTokens: 5},
	}}
	o := NewOpenAIWithAPI(fake, "gpt-4o-mini")

	comp, err := o.Submit(context.Background(), SubmitRequest{
		System:   "sys",
		Messages: []types.Message{{Role: types.RoleUser, Content: "task"}},
		Params:   Params{MaxTokens: 64},
	})
	require.NoError(t, err)

	assert.Equal(t, "candidate", comp.Text)
	assert.Equal(t, 15, comp.Usage.Total())
	require.Len(t, fake.last.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, fake.last.Messages[0].Role)
	assert.Equal(t, 64, fake.last.MaxCompletionTokens)
	assert.False(t, o.SupportsGrammar())
}

func TestOpenAI_Classification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"rate limited", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, true},
		{"server error", &openai.APIError{HTTPStatusCode: http.StatusBadGateway}, true},
		{"unauthorized", &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}, false},
		{"forbidden", &openai.APIError{HTTPStatusCode: http.StatusForbidden}, false},
		{"bad request", &openai.APIError{HTTPStatusCode: http.StatusBadRequest}, false},
		{"timeout", context.DeadlineExceeded, true},
		{"connection reset", errors.New("connection reset by peer"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOpenAIWithAPI(&fakeOpenAI{err: tt.err}, "gpt-4o-mini")
			_, err := o.Submit(context.Background(), SubmitRequest{})
			require.Error(t, err)
			assert.Equal(t, tt.transient, IsTransient(err))
		})
	}
}

func TestOpenAI_CredentialErrorHidesDetail(t *testing.T) {
	o := NewOpenAIWithAPI(&fakeOpenAI{err: &openai.APIError{
		HTTPStatusCode: http.StatusUnauthorized,
		Message:        "Incorrect API key provided: sk-secret",
	}}, "gpt-4o-mini")

	_, err := o.Submit(context.Background(), SubmitRequest{})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "sk-secret")
}

func TestOpenAI_RequiresCredentials(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{Model: "gpt-4o-mini"})
	assert.Error(t, err)
	_, err = NewOpenAI(OpenAIConfig{APIKey: "k"})
	assert.Error(t, err)
}
