// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package repair derives corrective follow-up requests from validation
// failures. The repairer never talks to a provider itself; it only turns
// a failed candidate and its report into the next GenerationRequest, and
// enforces the repair budget.
package repair

import (
	"fmt"
	"strings"

	"github.com/petar-djukic/gramgen/pkg/types"
)

const (
	defaultMaxAttempts  = 3
	defaultContextLines = 2
)

// Config configures the repairer.
type Config struct {
	MaxAttempts  int // Repair budget per request (default 3)
	ContextLines int // Candidate lines shown around each violation (default 2)
}

// Repairer builds follow-up requests from validation reports.
type Repairer struct {
	maxAttempts  int
	contextLines int
}

// New returns a repairer with defaults applied.
func New(cfg Config) *Repairer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.ContextLines <= 0 {
		cfg.ContextLines = defaultContextLines
	}
	return &Repairer{maxAttempts: cfg.MaxAttempts, contextLines: cfg.ContextLines}
}

// Exhausted reports that the repair budget ran out without a passing
// candidate. It carries the best failing state for the caller to surface.
type Exhausted struct {
	Result   *types.GenerationResult // The last candidate produced
	Report   *types.ValidationReport // Its validation report
	Attempts int                     // Repairs performed before giving up
}

func (e *Exhausted) Error() string {
	return fmt.Sprintf("repair budget exhausted after %d attempts with %d remaining violations",
		e.Attempts, len(e.Report.Violations))
}

// Budget returns the effective repair budget for a request: the request's
// own limit when set, the configured default otherwise.
func (r *Repairer) Budget(req *types.GenerationRequest) int {
	if req.MaxRepairAttempts > 0 {
		return req.MaxRepairAttempts
	}
	return r.maxAttempts
}

// Next derives the follow-up request for a failed candidate. chain holds
// the attempts already made; when it has reached the budget, Next returns
// an *Exhausted error instead.
func (r *Repairer) Next(req *types.GenerationRequest, result *types.GenerationResult, report *types.ValidationReport, chain []types.RepairAttempt) (*types.GenerationRequest, error) {
	if report.Pass {
		return nil, fmt.Errorf("repair requested for a passing report")
	}
	if len(chain) >= r.Budget(req) {
		return nil, &Exhausted{Result: result, Report: report, Attempts: len(chain)}
	}

	followUp := *req
	followUp.Intent = r.formatFollowUp(req, result, report)
	return &followUp, nil
}

// formatFollowUp renders the corrective prompt: the original intent, the
// failed candidate with violation lines marked, and the violations as a
// structured list.
func (r *Repairer) formatFollowUp(req *types.GenerationRequest, result *types.GenerationResult, report *types.ValidationReport) string {
	var buf strings.Builder

	buf.WriteString("The previous attempt did not satisfy the constraints. ")
	buf.WriteString("Produce a corrected version of the same declaration.\n\n")

	buf.WriteString("## Original Task\n\n")
	buf.WriteString(req.Intent)
	buf.WriteString("\n\n")

	buf.WriteString("## Previous Attempt\n\n```\n")
	buf.WriteString(annotate(result.Text, report.Violations, r.contextLines))
	buf.WriteString("```\n\n")

	buf.WriteString("## Violations\n\n")
	for _, v := range report.Violations {
		buf.WriteString(fmt.Sprintf("- %s\n", v.String()))
	}

	return buf.String()
}

// annotate renders the candidate with line numbers, keeping contextLines
// around each violation and marking violation lines with "> ". Short
// candidates are shown whole.
func annotate(text string, violations []types.Violation, contextLines int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")

	flagged := make(map[int]bool, len(violations))
	keep := make(map[int]bool)
	for _, v := range violations {
		flagged[v.Line] = true
		for i := v.Line - contextLines; i <= v.Line+contextLines; i++ {
			keep[i] = true
		}
	}

	// Below this size, elision costs more than it saves.
	showAll := len(lines) <= 2*contextLines+8

	var buf strings.Builder
	elided := false
	for i, line := range lines {
		lineNum := i + 1
		if !showAll && !keep[lineNum] {
			if !elided {
				buf.WriteString("   ...\n")
				elided = true
			}
			continue
		}
		elided = false
		marker := "  "
		if flagged[lineNum] {
			marker = "> "
		}
		buf.WriteString(fmt.Sprintf("%s%4d │ %s\n", marker, lineNum, line))
	}

	return buf.String()
}
