// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package pipeline drives a generation request through the fixed state
// machine: Indexing, Compiling, Generating, Validating, with Repairing
// looping back to Generating until the candidate passes or the repair
// budget runs out. Done and Failed are terminal.
package pipeline

import "errors"

// State identifies a stage of the pipeline.
type State int

const (
	StateIndexing State = iota
	StateCompiling
	StateGenerating
	StateValidating
	StateRepairing
	StateDone
	StateFailed
)

// String returns the state's name.
func (s State) String() string {
	switch s {
	case StateIndexing:
		return "Indexing"
	case StateCompiling:
		return "Compiling"
	case StateGenerating:
		return "Generating"
	case StateValidating:
		return "Validating"
	case StateRepairing:
		return "Repairing"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	}
	return "Unknown"
}

// Terminal reports whether the state accepts no further transitions.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// ErrCancelled marks a run stopped by caller cancellation.
var ErrCancelled = errors.New("run cancelled")

// ErrTimedOut marks a run stopped by its wall-clock budget.
var ErrTimedOut = errors.New("run timed out")
