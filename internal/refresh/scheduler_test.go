package refresh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Sharnabh/LMS-sub002/internal/lifecycle"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// countingRefresher records the context of every call, so tests can tell
// which mechanism issued it.
type countingRefresher struct {
	mu    sync.Mutex
	calls []context.Context
}

func (r *countingRefresher) Name() string { return "announcements" }

func (r *countingRefresher) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, ctx)
	return nil
}

func (r *countingRefresher) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// CountLive returns the number of calls made by mechanisms that have not
// been cancelled, i.e. by the one currently running.
func (r *countingRefresher) CountLive() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Err() == nil {
			n++
		}
	}
	return n
}

func newTestScheduler(t *testing.T) (*Scheduler, *countingRefresher, *fakeClock) {
	t.Helper()
	r := &countingRefresher{}
	clock := newFakeClock()
	s := NewScheduler(r, WithClock(clock), WithIntervals(10*time.Second, 10*time.Second))
	t.Cleanup(s.Stop)
	return s, r, clock
}

func TestScheduler_StartRefreshesImmediatelyThenEveryInterval(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	s, r, clock := newTestScheduler(t)

	s.Start(context.Background())
	assert.Equal(t, ModeForeground, s.Mode())
	require.Eventually(t, func() bool { return r.Count() == 1 }, waitFor, tick)

	for i := 2; i <= 4; i++ {
		clock.Advance(10 * time.Second)
		want := i
		require.Eventually(t, func() bool { return r.Count() == want }, waitFor, tick)
	}

	// Less than a full interval: nothing fires.
	clock.Advance(9 * time.Second)
	assert.Never(t, func() bool { return r.Count() > 4 }, 50*time.Millisecond, tick)

	s.Stop()
	assert.Equal(t, ModeStopped, s.Mode())
	assert.Zero(t, clock.Waiters(), "ticker must be released on Stop")
}

func TestScheduler_RestartKeepsSingleTicker(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	s, r, clock := newTestScheduler(t)

	s.Start(context.Background())
	s.Start(context.Background())
	s.Start(context.Background())
	assert.Equal(t, 1, clock.Waiters())

	require.Eventually(t, func() bool { return r.CountLive() == 1 }, waitFor, tick)
	clock.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return r.CountLive() == 2 }, waitFor, tick)
	assert.Never(t, func() bool { return r.CountLive() > 2 }, 50*time.Millisecond, tick)
	s.Stop()
}

func TestScheduler_BackgroundThenForegroundLeavesOneMechanism(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	s, r, clock := newTestScheduler(t)
	ctx := context.Background()

	s.Start(ctx)
	s.EnterBackground(ctx)
	s.EnterForeground(ctx)
	assert.Equal(t, ModeForeground, s.Mode())
	assert.Equal(t, 1, clock.Waiters(), "only the foreground ticker may be live")

	require.Eventually(t, func() bool { return r.CountLive() == 1 }, waitFor, tick)
	base := r.Count()

	// Five simulated intervals, exactly five refreshes.
	for i := 1; i <= 5; i++ {
		clock.Advance(10 * time.Second)
		want := 1 + i
		require.Eventually(t, func() bool { return r.CountLive() == want }, waitFor, tick)
	}
	assert.Never(t, func() bool { return r.Count() > base+5 }, 50*time.Millisecond, tick)

	s.Stop()
}

func TestScheduler_BackgroundLoop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	s, r, clock := newTestScheduler(t)

	s.EnterBackground(context.Background())
	assert.Equal(t, ModeBackground, s.Mode())
	require.Eventually(t, func() bool { return r.Count() == 1 && clock.Waiters() == 1 }, waitFor, tick)

	clock.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return r.Count() == 2 && clock.Waiters() == 1 }, waitFor, tick)

	// Entering the background twice does not restart the loop.
	s.EnterBackground(context.Background())
	assert.Never(t, func() bool { return r.Count() > 2 }, 50*time.Millisecond, tick)

	s.Stop()
}

func TestScheduler_StopDuringBackgroundSleep(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	s, r, clock := newTestScheduler(t)

	s.EnterBackground(context.Background())
	// One refresh done and the loop is parked on its sleep timer.
	require.Eventually(t, func() bool { return r.Count() == 1 && clock.Waiters() == 1 }, waitFor, tick)

	s.Stop()
	assert.Zero(t, clock.Waiters(), "sleep timer must be released")

	clock.Advance(time.Minute)
	assert.Never(t, func() bool { return r.Count() > 1 }, 50*time.Millisecond, tick)
}

func TestScheduler_ParentCancelDuringBackgroundSleep(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	s, r, clock := newTestScheduler(t)
	ctx, cancel := context.WithCancel(context.Background())

	s.EnterBackground(ctx)
	require.Eventually(t, func() bool { return r.Count() == 1 && clock.Waiters() == 1 }, waitFor, tick)

	cancel()
	require.Eventually(t, func() bool { return clock.Waiters() == 0 }, waitFor, tick)
	clock.Advance(time.Minute)
	assert.Never(t, func() bool { return r.Count() > 1 }, 50*time.Millisecond, tick)

	s.Stop()
}

func TestScheduler_SetIntervalsRestartsTicker(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	s, r, clock := newTestScheduler(t)

	s.Start(context.Background())
	require.Eventually(t, func() bool { return r.Count() == 1 }, waitFor, tick)

	s.SetIntervals(3*time.Second, 0)
	fg, bg := s.Intervals()
	assert.Equal(t, 3*time.Second, fg)
	assert.Equal(t, 10*time.Second, bg)
	assert.Equal(t, 1, clock.Waiters())

	// The restart issues its own immediate refresh, then ticks every 3s.
	require.Eventually(t, func() bool { return r.CountLive() == 1 && r.Count() == 2 }, waitFor, tick)
	clock.Advance(3 * time.Second)
	require.Eventually(t, func() bool { return r.CountLive() == 2 }, waitFor, tick)

	s.Stop()
}

func TestScheduler_SetIntervalsWhileStopped(t *testing.T) {
	s, r, clock := newTestScheduler(t)

	s.SetIntervals(time.Second, 2*time.Second)
	assert.Equal(t, ModeStopped, s.Mode())
	assert.Zero(t, clock.Waiters())
	assert.Zero(t, r.Count())
}

func TestScheduler_FollowLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	s, _, _ := newTestScheduler(t)
	n := lifecycle.NewNotifier(lifecycle.Foreground)
	phases, unsubscribe := n.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	s.Start(ctx)
	go func() { done <- s.Follow(ctx, phases) }()

	n.Publish(lifecycle.Background)
	require.Eventually(t, func() bool { return s.Mode() == ModeBackground }, waitFor, tick)

	n.Publish(lifecycle.Foreground)
	require.Eventually(t, func() bool { return s.Mode() == ModeForeground }, waitFor, tick)

	cancel()
	require.NoError(t, <-done)
	s.Stop()
}

func TestScheduler_TickDroppedWhileLoaderBusy(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	src := newFakeSource()
	src.block = make(chan struct{})
	src.entered = make(chan struct{}, 16)
	l := NewLoader[string]("announcements", src)
	clock := newFakeClock()
	s := NewScheduler(l, WithClock(clock), WithIntervals(10*time.Second, 10*time.Second))

	s.Start(context.Background())
	<-src.entered

	// A manual refresh while the scheduled one is still fetching is dropped.
	assert.ErrorIs(t, l.Refresh(context.Background()), ErrRefreshInFlight)

	// So is a tick that fires mid-fetch: it must not run once the fetch ends.
	clock.Advance(10 * time.Second)
	close(src.block)
	require.Eventually(t, func() bool { return l.Snapshot() != nil }, waitFor, tick)
	assert.Never(t, func() bool { return src.pings.Load() > 1 }, 100*time.Millisecond, tick)

	// The next interval boundary refreshes as usual.
	clock.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return src.pings.Load() == 2 }, waitFor, tick)
	assert.Never(t, func() bool { return src.pings.Load() > 2 }, 50*time.Millisecond, tick)

	s.Stop()
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "stopped", ModeStopped.String())
	assert.Equal(t, "foreground", ModeForeground.String())
	assert.Equal(t, "background", ModeBackground.String())
}
