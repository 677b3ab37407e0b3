// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/petar-djukic/gramgen/pkg/types"
)

const (
	defaultMaxConcurrent = 4
	defaultRunTimeout    = 10 * time.Minute
)

// ServiceConfig tunes the run service.
type ServiceConfig struct {
	MaxConcurrent int           // In-flight run ceiling (default 4)
	RunTimeout    time.Duration // Wall-clock budget per run (default 10m)
	Logger        *slog.Logger  // Optional; nil discards
}

// Service admits pipeline runs under a concurrency bound. All runs share
// one Runner: one indexer, one template cache, one provider adapter.
type Service struct {
	runner  *Runner
	slots   chan struct{}
	timeout time.Duration
	logger  *slog.Logger
}

// NewService creates a Service over a wired Runner.
func NewService(runner *Runner, cfg ServiceConfig) *Service {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = defaultRunTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		runner:  runner,
		slots:   make(chan struct{}, cfg.MaxConcurrent),
		timeout: cfg.RunTimeout,
		logger:  cfg.Logger,
	}
}

// Run executes one request end to end. It blocks for a slot when the
// service is at its concurrency ceiling; cancellation while waiting
// returns a Failed outcome without starting the run.
func (s *Service) Run(ctx context.Context, req types.GenerationRequest) *Outcome {
	runID := uuid.NewString()

	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	case <-ctx.Done():
		return &Outcome{
			RunID: runID,
			State: StateFailed,
			Err:   runCause(ctx, ctx.Err()),
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	s.logger.Info("run started",
		"run_id", runID, "language", req.Language.String(),
		"construct", req.Construct.String())

	out := s.runner.Run(runCtx, runID, req)

	s.logger.Info("run finished",
		"run_id", runID, "state", out.State.String(),
		"repairs", len(out.Attempts), "elapsed", time.Since(started))
	return out
}

// RunBatch executes the requests concurrently under the service's bound
// and returns the outcomes in request order. Every failure, admission
// included, lands on its outcome's Err.
func (s *Service) RunBatch(ctx context.Context, reqs []types.GenerationRequest) []*Outcome {
	outcomes := make([]*Outcome, len(reqs))

	var g errgroup.Group
	for i, req := range reqs {
		g.Go(func() error {
			outcomes[i] = s.Run(ctx, req)
			return nil
		})
	}
	_ = g.Wait() // Closures never return an error.
	return outcomes
}
