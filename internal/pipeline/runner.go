// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/petar-djukic/gramgen/internal/cache"
	"github.com/petar-djukic/gramgen/internal/generate"
	"github.com/petar-djukic/gramgen/internal/grammar"
	"github.com/petar-djukic/gramgen/internal/index"
	"github.com/petar-djukic/gramgen/internal/repair"
	"github.com/petar-djukic/gramgen/internal/validate"
	"github.com/petar-djukic/gramgen/pkg/types"
)

// Outcome is the result of one pipeline run. Terminal runs always carry
// either a satisfied result or a structured failure: the last candidate,
// its report, and the error that stopped the run.
type Outcome struct {
	RunID    string
	State    State                   // Terminal state: Done or Failed
	Result   *types.GenerationResult // Last candidate produced, nil if none
	Report   *types.ValidationReport // Report for the last candidate, nil if none
	Attempts []types.RepairAttempt   // Repair chain, in order
	Usage    types.TokenUsage        // Cumulative usage across the run's provider calls
	Err      error                   // Cause when State is Failed
}

// Runner executes one request at a time through the state machine. The
// indexer, cache, and compiler it holds are shared across runs; the
// Service layer bounds how many runs drive them concurrently.
type Runner struct {
	indexer   *index.Indexer
	compiler  *grammar.Compiler
	templates *cache.Cache
	generator *generate.Generator
	repairer  *repair.Repairer
	logger    *slog.Logger
}

// NewRunner wires a Runner. The template cache may be nil when caching
// is disabled; everything else is required.
func NewRunner(ix *index.Indexer, compiler *grammar.Compiler, templates *cache.Cache, gen *generate.Generator, rep *repair.Repairer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{
		indexer:   ix,
		compiler:  compiler,
		templates: templates,
		generator: gen,
		repairer:  rep,
		logger:    logger,
	}
}

// Run drives req to a terminal state. Cancellation is honored at every
// state transition; the per-run wall-clock budget is the deadline already
// on ctx. Run never returns a nil Outcome.
func (r *Runner) Run(ctx context.Context, runID string, req types.GenerationRequest) *Outcome {
	out := &Outcome{RunID: runID}

	fail := func(state State, err error) *Outcome {
		out.State = StateFailed
		out.Err = fmt.Errorf("%s: %w", state, err)
		r.logger.Warn("run failed", "run_id", runID, "state", state.String(), "error", err)
		return out
	}

	// Indexing. A fresh snapshot skips the pass entirely.
	if err := transitionErr(ctx); err != nil {
		return fail(StateIndexing, err)
	}
	r.logState(runID, StateIndexing)

	snap := r.indexer.Current()
	if snap == nil || !r.indexer.Fresh(ctx) {
		fresh, changes, err := r.indexer.Index(ctx)
		if err != nil {
			return fail(StateIndexing, runCause(ctx, err))
		}
		snap = fresh
		if r.templates != nil {
			if invalidating := changes.Invalidating(); len(invalidating) > 0 {
				evicted := r.templates.Invalidate(invalidating)
				r.logger.Debug("templates invalidated by reindex",
					"run_id", runID, "changed", len(invalidating), "evicted", evicted)
			}
			r.templates.SetMarker(snap.HashDigest())
		}
	}

	// Compiling.
	if err := transitionErr(ctx); err != nil {
		return fail(StateCompiling, err)
	}
	r.logState(runID, StateCompiling)

	tmpl, err := r.compiler.Compile(snap, req)
	if err != nil {
		return fail(StateCompiling, err)
	}

	// Generate/Validate loop, re-entered from Repairing.
	current := req
	for {
		if err := transitionErr(ctx); err != nil {
			return fail(StateGenerating, err)
		}
		r.logState(runID, StateGenerating)

		result, err := r.generator.Generate(ctx, current, tmpl)
		if err != nil {
			return fail(StateGenerating, runCause(ctx, err))
		}
		result.Attempt = len(out.Attempts)
		out.Result = result
		out.Usage.Add(result.Usage)

		if err := transitionErr(ctx); err != nil {
			return fail(StateValidating, err)
		}
		r.logState(runID, StateValidating)

		report := validate.Validate(result.Text, tmpl, snap)
		out.Report = report

		if report.Pass {
			result.Satisfied = true
			out.State = StateDone
			r.logger.Info("run done",
				"run_id", runID, "provider", result.Provider,
				"constrained", result.ConstraintApplied, "repairs", len(out.Attempts))
			return out
		}

		if err := transitionErr(ctx); err != nil {
			return fail(StateRepairing, err)
		}
		r.logState(runID, StateRepairing)

		followUp, err := r.repairer.Next(&req, result, report, out.Attempts)
		if err != nil {
			return fail(StateRepairing, err)
		}

		out.Attempts = append(out.Attempts, types.RepairAttempt{
			Index:    len(out.Attempts) + 1,
			Report:   report,
			FollowUp: followUp,
		})
		current = *followUp
	}
}

func (r *Runner) logState(runID string, s State) {
	r.logger.Debug("state transition", "run_id", runID, "state", s.String())
}

// transitionErr maps a done context to the pipeline's terminal causes.
func transitionErr(ctx context.Context) error {
	return runCause(ctx, ctx.Err())
}

// runCause rewrites context errors into ErrCancelled/ErrTimedOut so
// callers can classify the stop without knowing about contexts.
func runCause(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimedOut, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	// The context may have expired while the provider surfaced its own error.
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		switch {
		case errors.Is(ctxErr, context.DeadlineExceeded):
			return fmt.Errorf("%w: %v", ErrTimedOut, err)
		case errors.Is(ctxErr, context.Canceled):
			return fmt.Errorf("%w: %v", ErrCancelled, err)
		}
	}
	return err
}
