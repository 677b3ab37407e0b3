// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/gramgen/internal/cache"
	"github.com/petar-djukic/gramgen/internal/generate"
	"github.com/petar-djukic/gramgen/internal/grammar"
	"github.com/petar-djukic/gramgen/internal/index"
	"github.com/petar-djukic/gramgen/internal/provider"
	"github.com/petar-djukic/gramgen/internal/repair"
	"github.com/petar-djukic/gramgen/pkg/types"
)

const (
	goodCandidate = "function add(a: number, b: number): number {\n  return a + b;\n}"
	badCandidate  = "function add(a: number, b: number): string {\n  return \"x\";\n}"
)

// fakeAdapter serves scripted completions and tracks call concurrency.
type fakeAdapter struct {
	grammarSupport bool
	texts          []string // Served in order; the last repeats
	delay          time.Duration
	block          bool // Hold every call until its context is done

	mu      sync.Mutex
	calls   int
	inCall  int
	maxSeen int
}

func (f *fakeAdapter) Name() string          { return "fake" }
func (f *fakeAdapter) SupportsGrammar() bool { return f.grammarSupport }

func (f *fakeAdapter) Submit(ctx context.Context, req provider.SubmitRequest) (*provider.Completion, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.inCall++
	if f.inCall > f.maxSeen {
		f.maxSeen = f.inCall
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inCall--
		f.mu.Unlock()
	}()

	if f.block {
		<-ctx.Done()
		return nil, &provider.Error{Provider: "fake", Err: ctx.Err()}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, &provider.Error{Provider: "fake", Err: ctx.Err()}
		}
	}

	i := call - 1
	if i >= len(f.texts) {
		i = len(f.texts) - 1
	}
	return &provider.Completion{
		Text:  f.texts[i],
		Usage: types.TokenUsage{InputTokens: 10, OutputTokens: 5},
	}, nil
}

// newTestRunner wires a runner over an empty TypeScript project.
func newTestRunner(t *testing.T, adapter provider.Adapter, templates *cache.Cache) *Runner {
	t.Helper()
	ix, err := index.New(index.Config{Root: t.TempDir(), Language: types.LangTypeScript})
	require.NoError(t, err)

	var tc grammar.TemplateCache
	if templates != nil {
		tc = templates
	}
	compiler := grammar.NewCompiler(tc, nil)
	gen := generate.New(adapter, generate.Config{BaseDelay: time.Millisecond})
	rep := repair.New(repair.Config{})
	return NewRunner(ix, compiler, templates, gen, rep, nil)
}

func addRequest(t *testing.T) types.GenerationRequest {
	t.Helper()
	sig, err := types.ParseSignature("add(a: number, b: number): number")
	require.NoError(t, err)
	return types.GenerationRequest{
		Intent:          "add two numbers",
		Language:        types.LangTypeScript,
		Construct:       types.ConstructFunction,
		TargetSignature: sig,
	}
}

func TestRun_CleanFirstAttempt(t *testing.T) {
	adapter := &fakeAdapter{grammarSupport: true, texts: []string{goodCandidate}}
	r := newTestRunner(t, adapter, nil)

	out := r.Run(context.Background(), "run-1", addRequest(t))

	assert.Equal(t, StateDone, out.State)
	require.NoError(t, out.Err)
	require.NotNil(t, out.Result)
	assert.True(t, out.Result.Satisfied)
	assert.True(t, out.Result.ConstraintApplied)
	assert.Empty(t, out.Report.Violations)
	assert.Empty(t, out.Attempts)
	assert.Equal(t, 10, out.Usage.InputTokens)
}

func TestRun_RepairRecoversBadReturnType(t *testing.T) {
	adapter := &fakeAdapter{texts: []string{badCandidate, goodCandidate}}
	r := newTestRunner(t, adapter, nil)

	out := r.Run(context.Background(), "run-1", addRequest(t))

	assert.Equal(t, StateDone, out.State)
	require.Len(t, out.Attempts, 1)

	// The repair attempt keeps the failed report and a corrective follow-up.
	attempt := out.Attempts[0]
	assert.Equal(t, 1, attempt.Index)
	assert.Equal(t, 1, attempt.Report.Count(types.TypeMismatch))
	assert.Contains(t, attempt.FollowUp.Intent, "## Violations")
	assert.Contains(t, attempt.FollowUp.Intent, "add two numbers")

	assert.True(t, out.Report.Pass)
	assert.Equal(t, 1, out.Result.Attempt)
	assert.Equal(t, 20, out.Usage.InputTokens, "usage accumulates across attempts")
}

func TestRun_RepairBudgetExhausted(t *testing.T) {
	adapter := &fakeAdapter{texts: []string{badCandidate}}
	r := newTestRunner(t, adapter, nil)

	req := addRequest(t)
	req.MaxRepairAttempts = 1

	out := r.Run(context.Background(), "run-1", req)

	assert.Equal(t, StateFailed, out.State)
	require.Error(t, out.Err)

	var exhausted *repair.Exhausted
	require.ErrorAs(t, out.Err, &exhausted)
	assert.Equal(t, 1, exhausted.Attempts)

	// The last failing candidate and its report stay on the outcome.
	assert.Len(t, out.Attempts, 1)
	require.NotNil(t, out.Report)
	assert.Equal(t, 1, out.Report.Count(types.TypeMismatch))
	assert.Equal(t, 2, adapter.calls, "one generation per budgeted attempt")
}

func TestRun_UnknownScopeSymbolFailsCompiling(t *testing.T) {
	adapter := &fakeAdapter{texts: []string{goodCandidate}}
	r := newTestRunner(t, adapter, nil)

	req := addRequest(t)
	req.ScopeSymbols = []string{"doesNotExist"}

	out := r.Run(context.Background(), "run-1", req)

	assert.Equal(t, StateFailed, out.State)
	var ce *grammar.CompileError
	assert.ErrorAs(t, out.Err, &ce)
	assert.Zero(t, adapter.calls, "no provider call for an uncompilable request")
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	adapter := &fakeAdapter{texts: []string{goodCandidate}}
	r := newTestRunner(t, adapter, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := r.Run(ctx, "run-1", addRequest(t))

	assert.Equal(t, StateFailed, out.State)
	assert.ErrorIs(t, out.Err, ErrCancelled)
}

func TestRun_TimeoutDuringGeneration(t *testing.T) {
	adapter := &fakeAdapter{block: true}
	r := newTestRunner(t, adapter, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	out := r.Run(ctx, "run-1", addRequest(t))

	assert.Equal(t, StateFailed, out.State)
	assert.ErrorIs(t, out.Err, ErrTimedOut)
}

func TestRun_TemplateCacheReusedAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	templates, err := cache.New(8, filepath.Join(dir, "templates"), nil)
	require.NoError(t, err)

	adapter := &fakeAdapter{texts: []string{goodCandidate}}

	ix, err := index.New(index.Config{Root: dir, Language: types.LangTypeScript})
	require.NoError(t, err)
	compiler := grammar.NewCompiler(templates, nil)
	gen := generate.New(adapter, generate.Config{BaseDelay: time.Millisecond})
	r := NewRunner(ix, compiler, templates, gen, repair.New(repair.Config{}), nil)

	first := r.Run(context.Background(), "run-1", addRequest(t))
	require.Equal(t, StateDone, first.State)

	second := r.Run(context.Background(), "run-2", addRequest(t))
	require.Equal(t, StateDone, second.State)

	stats := templates.Stats()
	assert.Equal(t, int64(1), stats.Hits, "the second run reuses the compiled template")
}

func TestRun_ReindexOnChangeInvalidatesTemplates(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "math.ts")
	require.NoError(t, os.WriteFile(src, []byte("export function multiply(a: number, b: number): number {\n  return a * b;\n}\n"), 0o644))

	templates, err := cache.New(8, filepath.Join(t.TempDir(), "templates"), nil)
	require.NoError(t, err)

	adapter := &fakeAdapter{texts: []string{goodCandidate}}
	ix, err := index.New(index.Config{Root: dir, Language: types.LangTypeScript})
	require.NoError(t, err)
	compiler := grammar.NewCompiler(templates, nil)
	gen := generate.New(adapter, generate.Config{BaseDelay: time.Millisecond})
	r := NewRunner(ix, compiler, templates, gen, repair.New(repair.Config{}), nil)

	req := addRequest(t)
	req.ScopeSymbols = []string{"multiply"}

	first := r.Run(context.Background(), "run-1", req)
	require.Equal(t, StateDone, first.State)
	require.Equal(t, 1, templates.Stats().Entries)

	// Changing multiply's signature forces a reindex and evicts the
	// template compiled against it.
	require.NoError(t, os.WriteFile(src, []byte("export function multiply(a: number, b: number, c: number): number {\n  return a * b * c;\n}\n"), 0o644))

	second := r.Run(context.Background(), "run-2", req)
	require.Equal(t, StateDone, second.State)

	stats := templates.Stats()
	assert.Zero(t, stats.Hits, "the recompiled template must not come from cache")
}

func TestRunCause_ProviderErrorDuringExpiredContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runCause(ctx, errors.New("connection reset"))
	assert.ErrorIs(t, err, ErrCancelled)
}
