// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/petar-djukic/gramgen/pkg/types"
)

const openaiName = "openai"

// OpenAIConfig configures the OpenAI adapter. The API key is an opaque
// construction parameter; it is never logged.
type OpenAIConfig struct {
	APIKey  string // Required
	Model   string // Required, e.g. "gpt-4o-mini"
	BaseURL string // Optional override for compatible endpoints
}

// OpenAIAPI abstracts the chat completion call for testing.
type OpenAIAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI adapts the OpenAI chat completion API. It has no native
// grammar-guided decoding; candidates must be validated by the caller.
type OpenAI struct {
	api   OpenAIAPI
	model string
}

// NewOpenAI creates the adapter.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fatalErr(openaiName, errors.New("API key is required"))
	}
	if cfg.Model == "" {
		return nil, fatalErr(openaiName, errors.New("model is required"))
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAI{api: openai.NewClientWithConfig(clientCfg), model: cfg.Model}, nil
}

// NewOpenAIWithAPI creates the adapter with a pre-configured API
// implementation. Used for testing with mock clients.
func NewOpenAIWithAPI(api OpenAIAPI, model string) *OpenAI {
	return &OpenAI{api: api, model: model}
}

func (o *OpenAI) Name() string { return openaiName }

func (o *OpenAI) SupportsGrammar() bool { return false }

// Submit sends one chat completion request. Rate limits and server
// errors are transient; authentication and request-shape errors are fatal.
func (o *OpenAI) Submit(ctx context.Context, req SubmitRequest) (*Completion, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == types.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: req.Params.Temperature,
	}
	if req.Params.MaxTokens > 0 {
		chatReq.MaxCompletionTokens = req.Params.MaxTokens
	}

	resp, err := o.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, o.classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, transientErr(openaiName, errors.New("no choices in response"))
	}

	return &Completion{
		Text: resp.Choices[0].Message.Content,
		Usage: types.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// classify maps OpenAI API errors onto the transient/fatal taxonomy by
// HTTP status.
func (o *OpenAI) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return transientErr(openaiName, err)
		case apiErr.HTTPStatusCode >= 500:
			return transientErr(openaiName, err)
		case apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden:
			return fatalErr(openaiName, errors.New("credential or permission issue"))
		default:
			return fatalErr(openaiName, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return transientErr(openaiName, fmt.Errorf("request timed out: %w", err))
	}
	// Connection-level failures are worth retrying.
	return transientErr(openaiName, err)
}
