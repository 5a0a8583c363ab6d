//go:build windows

package lifecycle

import "context"

// WatchSignals is a no-op on Windows; use the HTTP lifecycle endpoint.
func WatchSignals(ctx context.Context, _ *Notifier) error {
	<-ctx.Done()
	return nil
}
