//go:build !windows

package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WatchSignals maps SIGUSR1 to Background and SIGUSR2 to Foreground until ctx
// is done.
func WatchSignals(ctx context.Context, n *Notifier) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-sigs:
			switch sig {
			case syscall.SIGUSR1:
				n.Publish(Background)
			case syscall.SIGUSR2:
				n.Publish(Foreground)
			}
		}
	}
}
