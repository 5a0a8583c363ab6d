// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Sharnabh/LMS-sub002/internal/config"
	"github.com/Sharnabh/LMS-sub002/internal/lifecycle"
	"github.com/Sharnabh/LMS-sub002/internal/log"
	"github.com/rs/zerolog"
)

// App owns the long-lived runtime lifecycle (schedulers, lifecycle phases,
// config reload wiring) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	runtime      *Runtime
	cfgHolder    *config.ConfigHolder
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator. cfgHolder may be nil, which disables reloads.
func NewApp(logger zerolog.Logger, manager Manager, rt *Runtime, cfgHolder *config.ConfigHolder) (*App, error) {
	if manager == nil {
		return nil, ErrMissingManager
	}
	if rt == nil {
		return nil, ErrMissingRuntime
	}
	return &App{
		logger:       logger,
		manager:      manager,
		runtime:      rt,
		cfgHolder:    cfgHolder,
		reloadSignal: syscall.SIGHUP,
	}, nil
}

// Run starts all owned background subsystems and blocks until ctx is cancelled or a fatal error occurs.
// Schedulers are stopped before the runtime is closed.
func (a *App) Run(ctx context.Context) error {
	a.manager.RegisterShutdownHook("schedulers", func(context.Context) error {
		a.runtime.StopSchedulers()
		return nil
	})

	g, gctx := errgroup.WithContext(ctx)

	a.startSchedulers(gctx, g)

	if a.runtime.Config.Lifecycle.Signals {
		g.Go(func() error {
			return lifecycle.WatchSignals(gctx, a.runtime.Lifecycle)
		})
	}

	if a.cfgHolder != nil {
		a.startReloadWiring(gctx, g)
	}

	g.Go(func() error {
		err := a.manager.Start(gctx)
		if err != nil {
			_ = a.manager.Shutdown(context.WithoutCancel(gctx))
		}
		return err
	})

	err := g.Wait()

	a.runtime.StopSchedulers()
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	if cerr := a.runtime.Close(closeCtx); cerr != nil {
		a.logger.Warn().
			Err(cerr).
			Str(log.FieldEvent, "daemon.close_failed").
			Msg("runtime close reported errors")
	}
	return err
}

// startSchedulers enters the current lifecycle phase and lets each scheduler
// follow later phase changes.
func (a *App) startSchedulers(ctx context.Context, g *errgroup.Group) {
	phase := a.runtime.Lifecycle.Current()
	for _, s := range a.runtime.Schedulers {
		phases, unsubscribe := a.runtime.Lifecycle.Subscribe()
		if phase == lifecycle.Background {
			s.EnterBackground(ctx)
		} else {
			s.Start(ctx)
		}
		g.Go(func() error {
			defer unsubscribe()
			return s.Follow(ctx, phases)
		})
	}
	a.logger.Info().
		Str(log.FieldEvent, "schedulers.started").
		Int("count", len(a.runtime.Schedulers)).
		Str("phase", phase.String()).
		Msg("refresh schedulers started")
}

func (a *App) startReloadWiring(ctx context.Context, g *errgroup.Group) {
	// The watcher is best-effort: startup does not fail if it cannot be started.
	g.Go(func() error {
		if err := a.cfgHolder.Watch(ctx); err != nil {
			a.logger.Warn().Err(err).Str(log.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
		}
		return nil
	})

	applyCh := make(chan config.AppConfig, 1)
	a.cfgHolder.RegisterListener(applyCh)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case cfg := <-applyCh:
				a.apply(cfg)
			}
		}
	})

	if a.reloadSignal == nil {
		return
	}
	g.Go(func() error {
		hupChan := make(chan os.Signal, 1)
		signal.Notify(hupChan, a.reloadSignal)
		defer signal.Stop(hupChan)

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hupChan:
				a.logger.Info().
					Str(log.FieldEvent, "config.reload_signal").
					Str("signal", a.reloadSignal.String()).
					Msg("received reload signal, reloading config")

				if err := a.cfgHolder.Reload(ctx); err != nil {
					a.logger.Warn().
						Err(err).
						Str(log.FieldEvent, "config.reload_failed").
						Msg("config reload failed")
				}
			}
		}
	})
}

// apply pushes the hot-reloadable settings of cfg into running components.
// Store, cache and listen address changes need a restart.
func (a *App) apply(cfg config.AppConfig) {
	if cfg.Log.Level != "" && !log.SetLevel(cfg.Log.Level) {
		a.logger.Warn().Str("level", cfg.Log.Level).Msg("ignoring invalid log level from reload")
	}
	for _, s := range a.runtime.Schedulers {
		s.SetIntervals(cfg.Refresh.Interval, cfg.Refresh.BackgroundInterval)
	}
	a.logger.Info().
		Str(log.FieldEvent, "config.applied").
		Dur(log.FieldInterval, cfg.Refresh.Interval).
		Dur("background_interval", cfg.Refresh.BackgroundInterval).
		Msg("applied reloaded configuration")
}
