// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package types

import "fmt"

// ViolationKind distinguishes the classes of validation failures.
type ViolationKind int

const (
	SyntaxViolation ViolationKind = iota // Text does not parse under the template grammar
	TypeMismatch                         // Declared or used type disagrees with the index
	UnknownSymbol                        // Referenced symbol is not in scope
)

// String returns the human-readable name of the violation kind.
func (k ViolationKind) String() string {
	switch k {
	case SyntaxViolation:
		return "SyntaxViolation"
	case TypeMismatch:
		return "TypeMismatch"
	case UnknownSymbol:
		return "UnknownSymbol"
	}
	return "Unknown"
}

// Violation records a single constraint violation found by the validator.
type Violation struct {
	Kind     ViolationKind // Machine-distinguishable class
	Line     int           // 1-based line in the candidate text
	Column   int           // 1-based column, 0 if not available
	Message  string        // What went wrong
	Expected string        // Expected form, empty if not applicable
	Actual   string        // Observed form, empty if not applicable
}

func (v Violation) String() string {
	loc := fmt.Sprintf("line %d", v.Line)
	if v.Column > 0 {
		loc = fmt.Sprintf("line %d, col %d", v.Line, v.Column)
	}
	if v.Expected != "" || v.Actual != "" {
		return fmt.Sprintf("%s: %s: %s (expected %q, got %q)", loc, v.Kind, v.Message, v.Expected, v.Actual)
	}
	return fmt.Sprintf("%s: %s: %s", loc, v.Kind, v.Message)
}

// ValidationReport holds the ordered violations for one candidate.
// A report with zero violations means the candidate is a member of the
// language defined by the grammar template it was checked against.
type ValidationReport struct {
	Violations []Violation // Ordered by position in the candidate
	Pass       bool        // True when Violations is empty
}

// Count returns the number of violations of the given kind.
func (r *ValidationReport) Count(kind ViolationKind) int {
	n := 0
	for _, v := range r.Violations {
		if v.Kind == kind {
			n++
		}
	}
	return n
}

// RepairAttempt links one validation failure to the follow-up request
// derived from it. Attempts chain up to the request's repair budget.
type RepairAttempt struct {
	Index    int                // 1-based attempt number
	Report   *ValidationReport  // The report that triggered the attempt
	FollowUp *GenerationRequest // The derived corrective request
}
