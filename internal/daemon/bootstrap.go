// SPDX-License-Identifier: MIT

// Package daemon provides the core daemon bootstrapping and lifecycle management.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Sharnabh/LMS-sub002/internal/api"
	"github.com/Sharnabh/LMS-sub002/internal/cache"
	"github.com/Sharnabh/LMS-sub002/internal/catalog"
	"github.com/Sharnabh/LMS-sub002/internal/config"
	"github.com/Sharnabh/LMS-sub002/internal/health"
	"github.com/Sharnabh/LMS-sub002/internal/lifecycle"
	"github.com/Sharnabh/LMS-sub002/internal/log"
	"github.com/Sharnabh/LMS-sub002/internal/refresh"
	"github.com/Sharnabh/LMS-sub002/internal/remote"
	"github.com/Sharnabh/LMS-sub002/internal/telemetry"
)

const (
	pingTimeout  = 2 * time.Second
	warmTimeout  = 5 * time.Second
	closeTimeout = 5 * time.Second
)

// Runtime holds the components built from one configuration.
type Runtime struct {
	Config config.AppConfig

	Store     remote.Store
	Cache     cache.Cache
	Telemetry *telemetry.Provider

	Announcements *refresh.Loader[catalog.Announcement]
	Books         *refresh.Loader[catalog.Book]
	Coordinator   *catalog.Coordinator
	Schedulers    []*refresh.Scheduler

	Lifecycle *lifecycle.Notifier
	Health    *health.Manager
	Server    *api.Server

	logger zerolog.Logger
}

// Build wires stores, caches, loaders, schedulers and the HTTP server. Nothing
// is started; App.Run drives the result. On error every component that was
// already created is closed.
func Build(ctx context.Context, cfg config.AppConfig) (_ *Runtime, err error) {
	rt := &Runtime{
		Config: cfg,
		logger: log.WithComponent("daemon"),
	}
	defer func() {
		if err != nil {
			closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
			defer cancel()
			_ = rt.Close(closeCtx)
		}
	}()

	rt.Telemetry, err = initTelemetry(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rt.Store, err = openStore(cfg)
	if err != nil {
		return nil, err
	}

	rt.Cache, err = cache.New(cache.Config{
		Backend:         cfg.Cache.Backend,
		Dir:             cfg.Cache.Dir,
		CleanupInterval: time.Minute,
		Redis: cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		},
	}, log.WithComponent("cache"))
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", cfg.Cache.Backend, err)
	}

	rt.Announcements = refresh.NewLoader[catalog.Announcement]("announcements",
		remote.AnnouncementSource{Store: rt.Store},
		refresh.WithSnapshotCache[catalog.Announcement](rt.Cache, cfg.Cache.TTL),
		refresh.WithRefreshTimeout[catalog.Announcement](cfg.Refresh.Timeout),
	)
	rt.Books = refresh.NewLoader[catalog.Book]("books",
		remote.BookSource{Store: rt.Store},
		refresh.WithSnapshotCache[catalog.Book](rt.Cache, cfg.Cache.TTL),
		refresh.WithRefreshTimeout[catalog.Book](cfg.Refresh.Timeout),
	)
	rt.warm(ctx)

	books := rt.Books
	rt.Coordinator = catalog.NewCoordinator(rt.Store,
		func() []catalog.Book { return books.Snapshot().All() },
		catalog.WithReload(books.Refresh),
		catalog.WithServerSideMerge(cfg.Refresh.ServerSideMerge),
	)

	for _, r := range []refresh.Refresher{rt.Announcements, rt.Books} {
		rt.Schedulers = append(rt.Schedulers, refresh.NewScheduler(r,
			refresh.WithIntervals(cfg.Refresh.Interval, cfg.Refresh.BackgroundInterval)))
	}

	phase, err := lifecycle.ParsePhase(cfg.Lifecycle.InitialPhase)
	if err != nil {
		return nil, fmt.Errorf("initial lifecycle phase: %w", err)
	}
	rt.Lifecycle = lifecycle.NewNotifier(phase)

	rt.Health = rt.buildHealth()

	tracingService := ""
	if cfg.Telemetry.Enabled {
		tracingService = cfg.Log.Service
	}
	rt.Server = api.NewServer(api.Deps{
		Announcements:    rt.Announcements,
		Books:            rt.Books,
		Upserter:         rt.Coordinator,
		Lifecycle:        rt.Lifecycle,
		Health:           rt.Health,
		RefreshRateLimit: cfg.API.RefreshRateLimit,
		TracingService:   tracingService,
	})

	rt.logger.Info().
		Str(log.FieldEvent, "daemon.built").
		Str(log.FieldStore, cfg.Store.Backend).
		Str("cache", cfg.Cache.Backend).
		Str("phase", phase.String()).
		Dur(log.FieldInterval, cfg.Refresh.Interval).
		Msg("runtime assembled")
	return rt, nil
}

func initTelemetry(ctx context.Context, cfg config.AppConfig) (*telemetry.Provider, error) {
	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Log.Service,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	return tp, nil
}

func openStore(cfg config.AppConfig) (remote.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreSQLite:
		s, err := remote.NewSQLiteStore(cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	case config.StoreREST:
		client := &http.Client{
			Timeout:   cfg.Store.REST.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
		s, err := remote.NewRESTStore(remote.RESTConfig{
			BaseURL:          cfg.Store.REST.BaseURL,
			APIKey:           cfg.Store.REST.APIKey,
			Timeout:          cfg.Store.REST.Timeout,
			BreakerThreshold: cfg.Store.REST.BreakerThreshold,
			BreakerReset:     cfg.Store.REST.BreakerReset,
		}, client)
		if err != nil {
			return nil, fmt.Errorf("open rest store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// warm publishes cached snapshots so the API has data before the first refresh.
// A corrupt cache entry is logged and ignored.
func (rt *Runtime) warm(ctx context.Context) {
	warmCtx, cancel := context.WithTimeout(ctx, warmTimeout)
	defer cancel()
	for _, w := range []interface {
		Name() string
		Warm(context.Context) error
	}{rt.Announcements, rt.Books} {
		if err := w.Warm(warmCtx); err != nil {
			rt.logger.Warn().
				Err(err).
				Str(log.FieldEvent, "snapshot.warm_failed").
				Str(log.FieldStore, w.Name()).
				Msg("ignoring cached snapshot")
		}
	}
}

func (rt *Runtime) buildHealth() *health.Manager {
	hm := health.NewManager(rt.Config.Version)
	hm.RegisterChecker(health.NewRefreshChecker(rt.Announcements, rt.Config.Refresh.StaleAfter))
	hm.RegisterChecker(health.NewRefreshChecker(rt.Books, rt.Config.Refresh.StaleAfter))
	hm.RegisterChecker(health.NewPingChecker("store_"+rt.Config.Store.Backend, pingTimeout, rt.Store.Ping))
	if rc, ok := rt.Cache.(*cache.RedisCache); ok {
		hm.RegisterChecker(health.NewPingChecker("cache_redis", pingTimeout, rc.HealthCheck))
	}
	return hm
}

// StopSchedulers halts every scheduler and waits for in-flight mechanisms to exit.
func (rt *Runtime) StopSchedulers() {
	for _, s := range rt.Schedulers {
		s.Stop()
	}
}

// Close releases the store, cache and telemetry exporter. It is safe to call
// on a partially built Runtime.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	if rt.Store != nil {
		if err := rt.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if rt.Cache != nil {
		if err := rt.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if rt.Telemetry != nil {
		if err := rt.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}

// WaitForShutdown waits for interrupt/termination signals.
func WaitForShutdown() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
