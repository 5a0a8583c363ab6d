// Package refresh keeps a last-known-good, partitioned snapshot of a remote
// store up to date. A Loader fetches and publishes snapshots; a Scheduler
// decides when the Loader runs.
package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sharnabh/LMS-sub002/internal/log"
	"github.com/Sharnabh/LMS-sub002/internal/metrics"
	"github.com/Sharnabh/LMS-sub002/internal/telemetry"
)

// Source is the remote side of a Loader.
type Source[T any] interface {
	// Ping probes connectivity. It must fail fast when the store is unreachable.
	Ping(ctx context.Context) error
	// Partitions lists partition names in display order.
	Partitions() []string
	// Fetch loads one partition.
	Fetch(ctx context.Context, partition string) ([]T, error)
}

// SnapshotCache persists the last published snapshot across restarts.
type SnapshotCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Loader owns the published snapshot and refresh state of one store.
type Loader[T any] struct {
	name     string
	source   Source[T]
	clock    Clock
	cache    SnapshotCache
	cacheTTL time.Duration
	timeout  time.Duration
	logger   zerolog.Logger
	tracer   trace.Tracer

	refreshing atomic.Bool
	snapshot   atomic.Pointer[Snapshot[T]]
	generation atomic.Uint64

	mu      sync.RWMutex
	state   State
	started bool
}

// LoaderOption configures a Loader.
type LoaderOption[T any] func(*Loader[T])

// WithLoaderClock overrides the time source.
func WithLoaderClock[T any](c Clock) LoaderOption[T] {
	return func(l *Loader[T]) { l.clock = c }
}

// WithSnapshotCache persists every published snapshot to cache for ttl
// (0 keeps it until overwritten) and enables Warm.
func WithSnapshotCache[T any](cache SnapshotCache, ttl time.Duration) LoaderOption[T] {
	return func(l *Loader[T]) {
		l.cache = cache
		l.cacheTTL = ttl
	}
}

// WithRefreshTimeout bounds a single refresh. A timed out refresh counts as a
// failed fetch, not a cancellation.
func WithRefreshTimeout[T any](d time.Duration) LoaderOption[T] {
	return func(l *Loader[T]) { l.timeout = d }
}

// NewLoader creates a Loader named after the store it serves.
func NewLoader[T any](name string, source Source[T], opts ...LoaderOption[T]) *Loader[T] {
	l := &Loader[T]{
		name:   name,
		source: source,
		clock:  RealClock{},
		logger: log.WithComponent("refresh").With().Str(log.FieldStore, name).Logger(),
		tracer: telemetry.Tracer("lmsd/refresh"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name returns the store name.
func (l *Loader[T]) Name() string { return l.name }

// Snapshot returns the currently published snapshot, or nil before the first
// successful refresh.
func (l *Loader[T]) Snapshot() *Snapshot[T] {
	return l.snapshot.Load()
}

// IsRefreshing reports whether a refresh is in flight.
func (l *Loader[T]) IsRefreshing() bool {
	return l.refreshing.Load()
}

// State returns a copy of the current refresh state.
func (l *Loader[T]) State() State {
	l.mu.RLock()
	st := l.state
	l.mu.RUnlock()
	st.Refreshing = l.refreshing.Load()
	return st
}

// Refresh probes the store, fetches all partitions concurrently and publishes
// them together. On failure the previous snapshot stays published and the
// error is recorded in State. If ctx is cancelled before commit, the results
// are dropped and State is left as it was.
func (l *Loader[T]) Refresh(ctx context.Context) error {
	if !l.refreshing.CompareAndSwap(false, true) {
		metrics.RecordRefreshSkipped(l.name)
		l.logger.Debug().Str(log.FieldEvent, "refresh.skipped").Msg("refresh already in flight")
		return ErrRefreshInFlight
	}
	defer l.refreshing.Store(false)

	start := l.clock.Now()
	l.mu.Lock()
	first := !l.started
	l.started = true
	if first {
		l.state.Loading = true
	}
	l.state.LastAttempt = start
	l.mu.Unlock()
	if first {
		defer func() {
			l.mu.Lock()
			l.state.Loading = false
			l.mu.Unlock()
		}()
	}

	partitions := l.source.Partitions()
	ctx, span := l.tracer.Start(ctx, "refresh."+l.name,
		trace.WithAttributes(telemetry.RefreshAttributes(l.name, len(partitions), first)...))
	defer span.End()

	snap, err := l.fetch(ctx, partitions)
	if err == nil {
		err = ctx.Err()
	}
	elapsed := l.clock.Now().Sub(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.RecordRefresh(l.name, "cancelled", elapsed)
			span.SetAttributes(attribute.Bool("refresh.cancelled", true))
			l.logger.Debug().Err(ctxErr).Str(log.FieldEvent, "refresh.cancelled").Msg("refresh cancelled before commit")
			return ctxErr
		}
		return l.fail(span, err, elapsed)
	}

	l.publish(ctx, snap)
	metrics.RecordRefresh(l.name, "success", elapsed)
	span.SetAttributes(telemetry.SnapshotAttributes(snap.Len(), snap.Generation)...)
	l.logger.Debug().
		Str(log.FieldEvent, "refresh.success").
		Int("records", snap.Len()).
		Uint64("generation", snap.Generation).
		Int64(log.FieldDurationMS, elapsed.Milliseconds()).
		Msg("snapshot published")
	return nil
}

func (l *Loader[T]) fetch(ctx context.Context, partitions []string) (*Snapshot[T], error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	if err := l.source.Ping(ctx); err != nil {
		return nil, &ConnectivityError{Store: l.name, Err: err}
	}

	results := make([][]T, len(partitions))
	g, gctx := errgroup.WithContext(ctx)
	for i, partition := range partitions {
		g.Go(func() error {
			items, err := l.source.Fetch(gctx, partition)
			if err != nil {
				return &PartialFetchError{Store: l.name, Partition: partition, Err: err}
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot[T]{
		Partitions: make(map[string][]T, len(partitions)),
		Order:      append([]string(nil), partitions...),
		FetchedAt:  l.clock.Now(),
	}
	for i, partition := range partitions {
		snap.Partitions[partition] = results[i]
	}
	return snap, nil
}

func (l *Loader[T]) publish(ctx context.Context, snap *Snapshot[T]) {
	l.mu.Lock()
	snap.Generation = l.generation.Add(1)
	l.snapshot.Store(snap)
	l.state.LastError = nil
	l.state.LastSuccess = snap.FetchedAt
	l.state.ConsecutiveFailures = 0
	l.state.FromCache = false
	l.mu.Unlock()

	for _, name := range snap.Order {
		metrics.SetSnapshotRecords(l.name, name, len(snap.Partitions[name]))
	}
	metrics.SetLastSuccess(l.name, snap.FetchedAt)

	l.persist(ctx, snap)
}

func (l *Loader[T]) fail(span trace.Span, err error, elapsed time.Duration) error {
	outcome := Outcome(err)
	l.mu.Lock()
	l.state.LastError = err
	l.state.ConsecutiveFailures++
	failures := l.state.ConsecutiveFailures
	l.mu.Unlock()

	metrics.RecordRefresh(l.name, outcome, elapsed)
	telemetry.RecordError(span, err, outcome)
	l.logger.Warn().
		Err(err).
		Str(log.FieldEvent, "refresh.failed").
		Str("outcome", outcome).
		Int("consecutive_failures", failures).
		Int64(log.FieldDurationMS, elapsed.Milliseconds()).
		Msg("refresh failed; keeping last published snapshot")
	return err
}

func (l *Loader[T]) cacheKey() string {
	return "lms:snapshot:" + l.name
}

func (l *Loader[T]) persist(ctx context.Context, snap *Snapshot[T]) {
	if l.cache == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		l.logger.Warn().Err(err).Str(log.FieldEvent, "snapshot.encode_failed").Msg("failed to encode snapshot")
		return
	}
	if err := l.cache.Set(context.WithoutCancel(ctx), l.cacheKey(), data, l.cacheTTL); err != nil {
		l.logger.Warn().Err(err).Str(log.FieldEvent, "snapshot.persist_failed").Msg("failed to persist snapshot")
	}
}

// Warm publishes the persisted snapshot, if any, so readers have last-known-good
// data before the first refresh completes. It never replaces a snapshot that a
// refresh already published.
func (l *Loader[T]) Warm(ctx context.Context) error {
	if l.cache == nil {
		return nil
	}
	data, ok := l.cache.Get(ctx, l.cacheKey())
	if !ok {
		return nil
	}
	var snap Snapshot[T]
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode cached %s snapshot: %w", l.name, err)
	}
	if snap.Partitions == nil {
		snap.Partitions = map[string][]T{}
	}

	// generation and snapshot change together under mu.
	l.mu.Lock()
	if l.snapshot.Load() != nil {
		l.mu.Unlock()
		return nil
	}
	snap.Generation = l.generation.Add(1)
	l.snapshot.Store(&snap)
	l.state.FromCache = true
	l.mu.Unlock()

	l.logger.Info().
		Str(log.FieldEvent, "snapshot.warmed").
		Int("records", snap.Len()).
		Time("fetched_at", snap.FetchedAt).
		Msg("published cached snapshot")
	return nil
}
