// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package remote

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	// ErrUnavailable is the only connectivity error; the rest are data errors.
	ErrUnavailable = errors.New("remote: store unreachable or transport failure")
	ErrRejected    = errors.New("remote: request rejected by store")
	ErrBadResponse = errors.New("remote: invalid response format or malformed data")
	ErrUpstream    = errors.New("remote: store internal error")
)

// StoreError wraps a sentinel with the failing operation and, for HTTP
// backends, the response status and a trimmed body.
type StoreError struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error // Nested lower-level error (e.g. net.Error, sqlite error)
}

func (e *StoreError) Error() string {
	msg := fmt.Sprintf("remote: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *StoreError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}

// IsConnectivity reports whether err means the store could not be reached.
func IsConnectivity(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
