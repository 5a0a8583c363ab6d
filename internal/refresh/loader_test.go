package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnreachable = errors.New("dial tcp: connection refused")

type fakeSource struct {
	mu       sync.Mutex
	pingErr  error
	data     map[string][]string
	fetchErr map[string]error

	pings      atomic.Int32
	fetchCalls atomic.Int32

	block   chan struct{}
	entered chan struct{}
	onFetch func(ctx context.Context, partition string)
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		data: map[string][]string{
			"active":    {"library closed on monday"},
			"scheduled": {"book fair", "author talk"},
			"archived":  {},
		},
		fetchErr: map[string]error{},
	}
}

func (f *fakeSource) Partitions() []string { return []string{"active", "scheduled", "archived"} }

func (f *fakeSource) Ping(context.Context) error {
	f.pings.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeSource) Fetch(ctx context.Context, partition string) ([]string, error) {
	f.fetchCalls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.onFetch != nil {
		f.onFetch(ctx, partition)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fetchErr[partition]; err != nil {
		return nil, err
	}
	return append([]string(nil), f.data[partition]...), nil
}

func (f *fakeSource) set(fn func(f *fakeSource)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// mapCache is an in-memory SnapshotCache.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *mapCache) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[key] = value
	return nil
}

func TestLoader_RefreshPublishesAllPartitions(t *testing.T) {
	clock := newFakeClock()
	src := newFakeSource()
	l := NewLoader[string]("announcements", src, WithLoaderClock[string](clock))

	assert.Nil(t, l.Snapshot())
	require.NoError(t, l.Refresh(context.Background()))

	snap := l.Snapshot()
	require.NotNil(t, snap)
	want := &Snapshot[string]{
		Partitions: map[string][]string{
			"active":    {"library closed on monday"},
			"scheduled": {"book fair", "author talk"},
			"archived":  {},
		},
		Order:      []string{"active", "scheduled", "archived"},
		FetchedAt:  clock.Now(),
		Generation: 1,
	}
	if diff := cmp.Diff(want, snap, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, snap.Len())
	assert.Equal(t, []string{"library closed on monday", "book fair", "author talk"}, snap.All())

	st := l.State()
	assert.NoError(t, st.LastError)
	assert.Equal(t, clock.Now(), st.LastSuccess)
	assert.False(t, st.Refreshing)
	assert.False(t, st.Loading)
}

func TestLoader_SingleFlight(t *testing.T) {
	src := newFakeSource()
	src.block = make(chan struct{})
	src.entered = make(chan struct{}, 3)
	l := NewLoader[string]("announcements", src)

	errc := make(chan error, 1)
	go func() { errc <- l.Refresh(context.Background()) }()
	<-src.entered

	before := l.Snapshot()
	assert.True(t, l.State().Refreshing)
	assert.True(t, l.IsRefreshing())

	err := l.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrRefreshInFlight)
	assert.Equal(t, int32(1), src.pings.Load(), "second refresh must not probe")
	assert.Same(t, before, l.Snapshot())
	assert.NoError(t, l.State().LastError, "dropped refresh must not record an error")

	close(src.block)
	require.NoError(t, <-errc)
	assert.Equal(t, int32(3), src.fetchCalls.Load())
	assert.False(t, l.IsRefreshing())
}

func TestLoader_ConnectivityFailureKeepsSnapshot(t *testing.T) {
	src := newFakeSource()
	l := NewLoader[string]("announcements", src)
	require.NoError(t, l.Refresh(context.Background()))
	before := l.Snapshot()

	src.set(func(f *fakeSource) { f.pingErr = errUnreachable })
	err := l.Refresh(context.Background())

	var connErr *ConnectivityError
	require.ErrorAs(t, err, &connErr)
	assert.ErrorIs(t, err, errUnreachable)
	assert.Same(t, before, l.Snapshot())
	assert.Equal(t, int32(3), src.fetchCalls.Load(), "no fetch after failed probe")

	st := l.State()
	assert.ErrorAs(t, st.LastError, &connErr)
	assert.Equal(t, 1, st.ConsecutiveFailures)
}

func TestLoader_PartialFetchIsAllOrNothing(t *testing.T) {
	src := newFakeSource()
	l := NewLoader[string]("announcements", src)
	require.NoError(t, l.Refresh(context.Background()))
	before := l.Snapshot()
	beforeActive := append([]string(nil), before.Partition("active")...)

	// "active" would succeed with new data, "scheduled" fails.
	boom := errors.New("relation does not exist")
	src.set(func(f *fakeSource) {
		f.data["active"] = []string{"new notice"}
		f.fetchErr["scheduled"] = boom
	})

	err := l.Refresh(context.Background())

	var fetchErr *PartialFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "scheduled", fetchErr.Partition)
	assert.ErrorIs(t, err, boom)
	assert.Same(t, before, l.Snapshot())
	assert.Equal(t, beforeActive, l.Snapshot().Partition("active"))
	assert.Equal(t, uint64(1), l.Snapshot().Generation)
	assert.Equal(t, "partial_fetch_error", Outcome(l.State().LastError))
}

func TestLoader_SuccessClearsLastError(t *testing.T) {
	src := newFakeSource()
	src.pingErr = errUnreachable
	l := NewLoader[string]("books", src)

	require.Error(t, l.Refresh(context.Background()))
	require.Error(t, l.Refresh(context.Background()))
	assert.Equal(t, 2, l.State().ConsecutiveFailures)
	assert.Nil(t, l.Snapshot())

	src.set(func(f *fakeSource) { f.pingErr = nil })
	require.NoError(t, l.Refresh(context.Background()))

	st := l.State()
	assert.NoError(t, st.LastError)
	assert.Zero(t, st.ConsecutiveFailures)
	assert.NotNil(t, l.Snapshot())
}

func TestLoader_LoadingOnlyDuringFirstRefresh(t *testing.T) {
	src := newFakeSource()
	l := NewLoader[string]("announcements", src)

	var loading []bool
	var mu sync.Mutex
	src.onFetch = func(context.Context, string) {
		mu.Lock()
		defer mu.Unlock()
		loading = append(loading, l.State().Loading)
	}

	require.NoError(t, l.Refresh(context.Background()))
	assert.False(t, l.State().Loading)
	require.NoError(t, l.Refresh(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, loading, 6)
	assert.Equal(t, []bool{true, true, true}, loading[:3])
	assert.Equal(t, []bool{false, false, false}, loading[3:])
}

func TestLoader_LoadingClearedAfterFailedFirstRefresh(t *testing.T) {
	src := newFakeSource()
	src.pingErr = errUnreachable
	l := NewLoader[string]("announcements", src)

	require.Error(t, l.Refresh(context.Background()))
	assert.False(t, l.State().Loading)
}

func TestLoader_CancelledBeforeCommitDiscardsResults(t *testing.T) {
	src := newFakeSource()
	src.pingErr = errUnreachable
	l := NewLoader[string]("announcements", src)
	require.Error(t, l.Refresh(context.Background()))
	prevErr := l.State().LastError

	ctx, cancel := context.WithCancel(context.Background())
	src.set(func(f *fakeSource) { f.pingErr = nil })
	// Fetch ignores ctx and succeeds, but the caller has moved on.
	src.onFetch = func(context.Context, string) { cancel() }

	err := l.Refresh(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, l.Snapshot())
	assert.Same(t, prevErr, l.State().LastError)
	assert.Equal(t, 1, l.State().ConsecutiveFailures)
}

func TestLoader_TimeoutIsRecordedAsFailure(t *testing.T) {
	src := newFakeSource()
	src.block = make(chan struct{})
	defer close(src.block)
	l := NewLoader[string]("books", src, WithRefreshTimeout[string](20*time.Millisecond))

	err := l.Refresh(context.Background())

	var fetchErr *PartialFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, err, l.State().LastError)
}

func TestLoader_WarmFromSnapshotCache(t *testing.T) {
	cache := &mapCache{}
	src := newFakeSource()
	first := NewLoader[string]("announcements", src, WithSnapshotCache[string](cache, 0))
	require.NoError(t, first.Refresh(context.Background()))

	src.set(func(f *fakeSource) { f.pingErr = errUnreachable })
	second := NewLoader[string]("announcements", src, WithSnapshotCache[string](cache, 0))
	require.NoError(t, second.Warm(context.Background()))

	warmed := second.Snapshot()
	require.NotNil(t, warmed)
	assert.True(t, second.State().FromCache)
	if diff := cmp.Diff(first.Snapshot().Partitions, warmed.Partitions, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("warmed partitions mismatch (-want +got):\n%s", diff)
	}

	// Store still down: the cached view survives the failed refresh.
	require.Error(t, second.Refresh(context.Background()))
	assert.Same(t, warmed, second.Snapshot())
}

func TestLoader_WarmNeverReplacesLiveSnapshot(t *testing.T) {
	cache := &mapCache{}
	require.NoError(t, cache.Set(context.Background(), "lms:snapshot:books", []byte(`{"partitions":{"catalog":["stale"]},"order":["catalog"]}`), 0))

	src := newFakeSource()
	l := NewLoader[string]("books", src, WithSnapshotCache[string](cache, 0))
	require.NoError(t, l.Refresh(context.Background()))
	live := l.Snapshot()

	require.NoError(t, l.Warm(context.Background()))
	assert.Same(t, live, l.Snapshot())
	assert.False(t, l.State().FromCache)

	// A skipped warm does not consume a generation.
	require.NoError(t, l.Refresh(context.Background()))
	assert.Equal(t, live.Generation+1, l.Snapshot().Generation)
}

func TestLoader_WarmRejectsCorruptCache(t *testing.T) {
	cache := &mapCache{}
	require.NoError(t, cache.Set(context.Background(), "lms:snapshot:books", []byte("{not json"), 0))

	l := NewLoader[string]("books", newFakeSource(), WithSnapshotCache[string](cache, 0))
	assert.Error(t, l.Warm(context.Background()))
	assert.Nil(t, l.Snapshot())
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", Outcome(nil))
	assert.Equal(t, "skipped", Outcome(ErrRefreshInFlight))
	assert.Equal(t, "connectivity_error", Outcome(&ConnectivityError{Store: "s", Err: errUnreachable}))
	assert.Equal(t, "partial_fetch_error", Outcome(&PartialFetchError{Store: "s", Partition: "p", Err: errUnreachable}))
	assert.Equal(t, "cancelled", Outcome(context.Canceled))
}
