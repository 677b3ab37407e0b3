// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package provider

import (
	"errors"
	"fmt"
)

// Error wraps a provider failure with its retry classification. Rate
// limits, timeouts, and 5xx-equivalents are transient; authentication
// failures and malformed requests are fatal.
type Error struct {
	Provider  string // Adapter name
	Transient bool   // Safe to retry with backoff
	Err       error
}

func (e *Error) Error() string {
	class := "fatal"
	if e.Transient {
		class = "transient"
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, class, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// transientErr wraps err as retryable.
func transientErr(provider string, err error) *Error {
	return &Error{Provider: provider, Transient: true, Err: err}
}

// fatalErr wraps err as non-retryable.
func fatalErr(provider string, err error) *Error {
	return &Error{Provider: provider, Transient: false, Err: err}
}

// IsTransient reports whether err is a retryable provider error.
func IsTransient(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Transient
}
