// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBook is the sentinel behind every ValidationError.
	ErrInvalidBook = errors.New("catalog: invalid book")
	// ErrWriteRejected is the sentinel behind every WriteError.
	ErrWriteRejected = errors.New("catalog: write rejected")
)

// ValidationError reports a malformed candidate record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("catalog: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidBook
}

// WriteError reports an insert or update the remote store did not accept.
type WriteError struct {
	Op   string // insert|update|upsert
	ISBN string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("catalog: %s book %s: %v", e.Op, e.ISBN, e.Err)
}

// Unwrap exposes both the catalog sentinel and the store error, so callers can
// match ErrWriteRejected or a transport sentinel with errors.Is.
func (e *WriteError) Unwrap() []error {
	return []error{ErrWriteRejected, e.Err}
}
