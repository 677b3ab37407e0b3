// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/petar-djukic/gramgen/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestService_RunAssignsRunID(t *testing.T) {
	adapter := &fakeAdapter{texts: []string{goodCandidate}}
	svc := NewService(newTestRunner(t, adapter, nil), ServiceConfig{})

	out := svc.Run(context.Background(), addRequest(t))

	assert.Equal(t, StateDone, out.State)
	assert.NotEmpty(t, out.RunID)
}

func TestService_TimeoutBoundsTheRun(t *testing.T) {
	adapter := &fakeAdapter{block: true}
	svc := NewService(newTestRunner(t, adapter, nil), ServiceConfig{RunTimeout: 50 * time.Millisecond})

	out := svc.Run(context.Background(), addRequest(t))

	assert.Equal(t, StateFailed, out.State)
	assert.ErrorIs(t, out.Err, ErrTimedOut)
}

func TestService_CancelledCallerFails(t *testing.T) {
	adapter := &fakeAdapter{texts: []string{goodCandidate}}
	svc := NewService(newTestRunner(t, adapter, nil), ServiceConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := svc.Run(ctx, addRequest(t))

	assert.Equal(t, StateFailed, out.State)
	assert.ErrorIs(t, out.Err, ErrCancelled)
	assert.NotEmpty(t, out.RunID, "denied runs still get an ID for logging")
}

func TestService_ConcurrencyCeiling(t *testing.T) {
	adapter := &fakeAdapter{texts: []string{goodCandidate}, delay: 10 * time.Millisecond}
	svc := NewService(newTestRunner(t, adapter, nil), ServiceConfig{MaxConcurrent: 1})

	reqs := make([]types.GenerationRequest, 4)
	for i := range reqs {
		reqs[i] = addRequest(t)
	}

	outcomes := svc.RunBatch(context.Background(), reqs)

	require.Len(t, outcomes, 4)
	for _, out := range outcomes {
		require.NotNil(t, out)
		assert.Equal(t, StateDone, out.State)
	}
	assert.Equal(t, 1, adapter.maxSeen, "at most one provider call in flight")
}

func TestService_RunBatchAdmissionFailuresOnOutcomes(t *testing.T) {
	adapter := &fakeAdapter{texts: []string{goodCandidate}}
	svc := NewService(newTestRunner(t, adapter, nil), ServiceConfig{MaxConcurrent: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := svc.RunBatch(ctx, []types.GenerationRequest{addRequest(t), addRequest(t)})

	require.Len(t, outcomes, 2)
	for _, out := range outcomes {
		require.NotNil(t, out)
		assert.Equal(t, StateFailed, out.State)
		assert.ErrorIs(t, out.Err, ErrCancelled)
	}
	assert.Zero(t, adapter.calls)
}

func TestService_RunBatchPreservesOrderAndIDs(t *testing.T) {
	adapter := &fakeAdapter{texts: []string{goodCandidate}}
	svc := NewService(newTestRunner(t, adapter, nil), ServiceConfig{MaxConcurrent: 2})

	reqs := []types.GenerationRequest{addRequest(t), addRequest(t), addRequest(t)}
	outcomes := svc.RunBatch(context.Background(), reqs)
	require.Len(t, outcomes, len(reqs))

	seen := make(map[string]bool)
	for i, out := range outcomes {
		require.NotNil(t, out, "outcome %d missing", i)
		assert.False(t, seen[out.RunID], "run IDs must be unique")
		seen[out.RunID] = true
	}
}
