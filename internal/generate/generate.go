// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package generate issues provider calls bound to a grammar template,
// retrying transient provider failures with exponential backoff.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/petar-djukic/gramgen/internal/grammar"
	"github.com/petar-djukic/gramgen/internal/provider"
	"github.com/petar-djukic/gramgen/pkg/types"
)

const (
	defaultMaxRetries    = 3
	baseRetryDelay       = 1 * time.Second
	defaultTemperature   = 0.2
	defaultContextBudget = 2048
)

// Config tunes the generator.
type Config struct {
	MaxRetries    int           // Retry ceiling for transient provider errors (default 3)
	BaseDelay     time.Duration // First backoff delay, doubled per retry (default 1s)
	MaxTokens     int           // Response token ceiling passed to the provider
	Temperature   float32       // Sampling temperature (default 0.2)
	ContextBudget int           // Token budget for the scope context (default 2048)
	Logger        *slog.Logger  // Optional; nil discards
}

// Generator issues constrained generation calls through one provider
// adapter. It mutates no shared cache or index state; the network call
// is its only side effect beyond usage accounting.
type Generator struct {
	adapter provider.Adapter
	cfg     Config

	mu    sync.Mutex
	usage types.TokenUsage
}

// New creates a Generator over the given adapter.
func New(adapter provider.Adapter, cfg Config) *Generator {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = baseRetryDelay
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.ContextBudget == 0 {
		cfg.ContextBudget = defaultContextBudget
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{adapter: adapter, cfg: cfg}
}

// CumulativeUsage returns the total token usage across all calls.
func (g *Generator) CumulativeUsage() types.TokenUsage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.usage
}

// Generate issues one generation call under the template's constraint.
// Adapters with native grammar support decode under the GBNF directly;
// for the rest the candidate is best-effort and the caller must validate
// it before accepting. Transient provider errors are retried with
// exponential backoff up to the configured ceiling; fatal errors surface
// immediately.
func (g *Generator) Generate(ctx context.Context, req types.GenerationRequest, tmpl *grammar.Template) (*types.GenerationResult, error) {
	constrained := g.adapter.SupportsGrammar()

	system, err := renderSystemPrompt(req, tmpl, constrained)
	if err != nil {
		return nil, err
	}

	sreq := provider.SubmitRequest{
		System:   system,
		Messages: buildMessages(req, tmpl, g.cfg.ContextBudget),
		Params: provider.Params{
			MaxTokens:   g.cfg.MaxTokens,
			Temperature: g.cfg.Temperature,
		},
	}
	if constrained {
		sreq.Grammar = tmpl.GBNF
	}

	var lastErr error
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := g.cfg.BaseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			g.cfg.Logger.Debug("retrying provider call",
				"provider", g.adapter.Name(), "attempt", attempt, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		completion, err := g.adapter.Submit(ctx, sreq)
		if err != nil {
			if provider.IsTransient(err) {
				lastErr = err
				continue
			}
			return nil, err
		}

		g.mu.Lock()
		g.usage.Add(completion.Usage)
		g.mu.Unlock()

		text := completion.Text
		if !constrained {
			text = extractCandidate(text, req.Language)
		}

		return &types.GenerationResult{
			Text:              text,
			Provider:          g.adapter.Name(),
			ConstraintApplied: constrained,
			Satisfied:         false, // Set by validation.
			Usage:             completion.Usage,
		}, nil
	}

	return nil, fmt.Errorf("provider %s still failing after %d retries: %w",
		g.adapter.Name(), g.cfg.MaxRetries, lastErr)
}
