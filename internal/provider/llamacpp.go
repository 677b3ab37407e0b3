// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/petar-djukic/gramgen/pkg/types"
)

const (
	llamaName           = "llamacpp"
	defaultLlamaTimeout = 5 * time.Minute
)

// LlamaCppConfig configures the llama.cpp server adapter.
type LlamaCppConfig struct {
	BaseURL string        // Server base URL, e.g. "http://localhost:8080" (required)
	Timeout time.Duration // Per-call timeout (default 5m)
}

// LlamaCpp adapts a llama.cpp completion server. It is the one shipped
// adapter with native grammar-guided decoding: the GBNF constraint is
// passed in the request and enforced during token sampling.
type LlamaCpp struct {
	httpClient *http.Client
	baseURL    string
}

// llamaRequest is the llama.cpp /completion request body.
type llamaRequest struct {
	Prompt      string  `json:"prompt"`
	Grammar     string  `json:"grammar,omitempty"`
	NPredict    int     `json:"n_predict,omitempty"`
	Temperature float32 `json:"temperature"`
	Stream      bool    `json:"stream"`
}

// llamaResponse is the llama.cpp /completion response body.
type llamaResponse struct {
	Content            string `json:"content"`
	TokensEvaluated    int    `json:"tokens_evaluated"`
	TokensPredicted    int    `json:"tokens_predicted"`
	StoppedLimit       bool   `json:"stopped_limit"`
	GenerationSettings any    `json:"generation_settings,omitempty"`
}

// NewLlamaCpp creates the adapter.
func NewLlamaCpp(cfg LlamaCppConfig) (*LlamaCpp, error) {
	if cfg.BaseURL == "" {
		return nil, fatalErr(llamaName, errors.New("base URL is required"))
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultLlamaTimeout
	}
	return &LlamaCpp{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
	}, nil
}

func (l *LlamaCpp) Name() string { return llamaName }

func (l *LlamaCpp) SupportsGrammar() bool { return true }

// Submit posts one completion request with the grammar attached.
// Connection failures and 5xx responses are transient; a 4xx response
// means the request (usually the grammar) was rejected and is fatal.
func (l *LlamaCpp) Submit(ctx context.Context, req SubmitRequest) (*Completion, error) {
	body, err := json.Marshal(llamaRequest{
		Prompt:      flattenPrompt(req.System, req.Messages),
		Grammar:     req.Grammar,
		NPredict:    req.Params.MaxTokens,
		Temperature: req.Params.Temperature,
		Stream:      false,
	})
	if err != nil {
		return nil, fatalErr(llamaName, fmt.Errorf("encoding request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		return nil, fatalErr(llamaName, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, transientErr(llamaName, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transientErr(llamaName, fmt.Errorf("reading response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// Fall through to decode.
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, transientErr(llamaName, fmt.Errorf("server returned %d", resp.StatusCode))
	default:
		return nil, fatalErr(llamaName, fmt.Errorf("server rejected request: %d: %s", resp.StatusCode, truncate(string(respBody), 200)))
	}

	var lr llamaResponse
	if err := json.Unmarshal(respBody, &lr); err != nil {
		return nil, transientErr(llamaName, fmt.Errorf("decoding response: %w", err))
	}

	return &Completion{
		Text: lr.Content,
		Usage: types.TokenUsage{
			InputTokens:  lr.TokensEvaluated,
			OutputTokens: lr.TokensPredicted,
		},
	}, nil
}

// flattenPrompt folds the conversation into one text prompt for the
// completion endpoint.
func flattenPrompt(system string, messages []types.Message) string {
	var buf strings.Builder
	if system != "" {
		buf.WriteString(system)
		buf.WriteString("\n\n")
	}
	for _, m := range messages {
		switch m.Role {
		case types.RoleAssistant:
			buf.WriteString("Assistant: ")
		default:
			buf.WriteString("User: ")
		}
		buf.WriteString(m.Content)
		buf.WriteString("\n\n")
	}
	buf.WriteString("Assistant: ")
	return buf.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
