package refresh

import (
	"errors"
	"fmt"
)

// ErrRefreshInFlight is returned when a refresh is requested while another one
// for the same store is still running. The request is dropped, not queued.
var ErrRefreshInFlight = errors.New("refresh already in flight")

// ConnectivityError reports a failed connectivity probe.
type ConnectivityError struct {
	Store string
	Err   error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s: remote store unreachable: %v", e.Store, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// PartialFetchError reports that at least one partition failed to load. The
// partition named is the first failure observed.
type PartialFetchError struct {
	Store     string
	Partition string
	Err       error
}

func (e *PartialFetchError) Error() string {
	return fmt.Sprintf("%s: fetch partition %q: %v", e.Store, e.Partition, e.Err)
}

func (e *PartialFetchError) Unwrap() error { return e.Err }

// Outcome maps a refresh error to its metrics label.
func Outcome(err error) string {
	var connErr *ConnectivityError
	var fetchErr *PartialFetchError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrRefreshInFlight):
		return "skipped"
	case errors.As(err, &connErr):
		return "connectivity_error"
	case errors.As(err, &fetchErr):
		return "partial_fetch_error"
	default:
		return "cancelled"
	}
}
