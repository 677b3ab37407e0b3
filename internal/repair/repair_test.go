// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package repair

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/gramgen/pkg/types"
)

func failingReport() *types.ValidationReport {
	return &types.ValidationReport{
		Violations: []types.Violation{{
			Kind:     types.TypeMismatch,
			Line:     1,
			Message:  "return type does not match the target",
			Expected: "number",
			Actual:   "string",
		}},
	}
}

func baseRequest() *types.GenerationRequest {
	return &types.GenerationRequest{
		Intent:    "add two numbers",
		Language:  types.LangTypeScript,
		Construct: types.ConstructFunction,
	}
}

func failedResult() *types.GenerationResult {
	return &types.GenerationResult{
		Text:     "function add(a: number, b: number): string {\n  return \"x\";\n}",
		Provider: "test",
	}
}

func TestNext_DerivesFollowUp(t *testing.T) {
	r := New(Config{})
	req := baseRequest()

	followUp, err := r.Next(req, failedResult(), failingReport(), nil)
	require.NoError(t, err)

	// The follow-up keeps the request shape but replaces the intent.
	assert.Equal(t, req.Language, followUp.Language)
	assert.Equal(t, req.Construct, followUp.Construct)
	assert.NotEqual(t, req.Intent, followUp.Intent)

	assert.Contains(t, followUp.Intent, "add two numbers", "original task is quoted")
	assert.Contains(t, followUp.Intent, "return type does not match the target")
	assert.Contains(t, followUp.Intent, `function add(a: number, b: number): string {`)
	assert.Contains(t, followUp.Intent, "> ", "violation lines are marked")

	// The original request is untouched.
	assert.Equal(t, "add two numbers", req.Intent)
}

func TestNext_BudgetExhausted(t *testing.T) {
	r := New(Config{MaxAttempts: 2})
	req := baseRequest()
	chain := []types.RepairAttempt{
		{Index: 1, Report: failingReport()},
		{Index: 2, Report: failingReport()},
	}

	_, err := r.Next(req, failedResult(), failingReport(), chain)
	require.Error(t, err)

	var exhausted *Exhausted
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 2, exhausted.Attempts)
	assert.NotNil(t, exhausted.Result)
	assert.NotNil(t, exhausted.Report)
}

func TestNext_RequestBudgetOverridesDefault(t *testing.T) {
	r := New(Config{MaxAttempts: 5})
	req := baseRequest()
	req.MaxRepairAttempts = 1

	assert.Equal(t, 1, r.Budget(req))

	chain := []types.RepairAttempt{{Index: 1, Report: failingReport()}}
	_, err := r.Next(req, failedResult(), failingReport(), chain)

	var exhausted *Exhausted
	assert.ErrorAs(t, err, &exhausted)
}

func TestNext_PassingReportRejected(t *testing.T) {
	r := New(Config{})
	_, err := r.Next(baseRequest(), failedResult(), &types.ValidationReport{Pass: true}, nil)
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	r := New(Config{})
	assert.Equal(t, defaultMaxAttempts, r.maxAttempts)
	assert.Equal(t, defaultContextLines, r.contextLines)
}

func TestAnnotate_ElidesDistantLines(t *testing.T) {
	var lines []string
	for i := 0; i < 40; i++ {
		lines = append(lines, "line")
	}
	lines[29] = "offending line"
	text := ""
	for _, l := range lines {
		text += l + "\n"
	}

	out := annotate(text, []types.Violation{{Line: 30}}, 2)

	assert.Contains(t, out, ">   30 │ offending line")
	assert.Contains(t, out, "...")
	assert.NotContains(t, out, "   1 │", "lines far from the violation are elided")
}

func TestAnnotate_ShortCandidateShownWhole(t *testing.T) {
	out := annotate("a\nb\nc", []types.Violation{{Line: 2}}, 2)

	assert.Contains(t, out, "   1 │ a")
	assert.Contains(t, out, ">    2 │ b")
	assert.Contains(t, out, "   3 │ c")
	assert.NotContains(t, out, "...")
}
