package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sharnabh/LMS-sub002/internal/lifecycle"
	"github.com/Sharnabh/LMS-sub002/internal/log"
	"github.com/Sharnabh/LMS-sub002/internal/metrics"
)

const (
	DefaultInterval           = 10 * time.Second
	DefaultBackgroundInterval = 10 * time.Second
)

// Mode is the scheduling strategy currently active.
type Mode int

const (
	ModeStopped Mode = iota
	ModeForeground
	ModeBackground
)

func (m Mode) String() string {
	switch m {
	case ModeForeground:
		return "foreground"
	case ModeBackground:
		return "background"
	default:
		return "stopped"
	}
}

// Refresher is what a Scheduler drives. *Loader[T] implements it.
type Refresher interface {
	Name() string
	Refresh(ctx context.Context) error
}

// Scheduler runs a Refresher on a fixed-interval ticker while in the
// foreground, and on a slower cooperative loop while in the background.
// At most one mechanism goroutine exists at a time: every transition cancels
// and joins the previous one before starting the next.
type Scheduler struct {
	refresher Refresher
	clock     Clock
	logger    zerolog.Logger

	mu                 sync.Mutex
	mode               Mode
	interval           time.Duration
	backgroundInterval time.Duration
	parent             context.Context
	cancel             context.CancelFunc
	done               chan struct{}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithClock overrides the time source used for tickers and sleeps.
func WithClock(c Clock) SchedulerOption {
	return func(s *Scheduler) { s.clock = c }
}

// WithIntervals sets the foreground and background periods. Non-positive
// values keep the defaults.
func WithIntervals(foreground, background time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if foreground > 0 {
			s.interval = foreground
		}
		if background > 0 {
			s.backgroundInterval = background
		}
	}
}

// NewScheduler creates a stopped scheduler for r.
func NewScheduler(r Refresher, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		refresher:          r,
		clock:              RealClock{},
		logger:             log.WithComponent("refresh.scheduler").With().Str(log.FieldStore, r.Name()).Logger(),
		interval:           DefaultInterval,
		backgroundInterval: DefaultBackgroundInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	metrics.SetSchedulerMode(r.Name(), ModeStopped.String())
	return s
}

// Mode returns the active scheduling mode.
func (s *Scheduler) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Intervals returns the foreground and background periods.
func (s *Scheduler) Intervals() (foreground, background time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval, s.backgroundInterval
}

// Start replaces any running mechanism with foreground polling: one immediate
// refresh, then one refresh per interval. Calling Start again restarts the
// schedule. The mechanism stops when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startForegroundLocked(ctx)
}

// Stop cancels the active mechanism and waits for it to exit. No refresh is
// issued by the scheduler after Stop returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.setModeLocked(ModeStopped)
}

// EnterBackground swaps the ticker for the cooperative background loop.
func (s *Scheduler) EnterBackground(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeBackground {
		return
	}
	s.startBackgroundLocked(ctx)
}

// EnterForeground cancels the background loop and resumes foreground polling,
// starting with an immediate refresh.
func (s *Scheduler) EnterForeground(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeForeground {
		return
	}
	s.startForegroundLocked(ctx)
}

// SetIntervals changes both periods and restarts the active mechanism so the
// new values take effect immediately.
func (s *Scheduler) SetIntervals(foreground, background time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if foreground <= 0 {
		foreground = s.interval
	}
	if background <= 0 {
		background = s.backgroundInterval
	}
	if foreground == s.interval && background == s.backgroundInterval {
		return
	}
	s.interval, s.backgroundInterval = foreground, background
	s.logger.Info().
		Str(log.FieldEvent, "scheduler.intervals_changed").
		Dur(log.FieldInterval, foreground).
		Dur("background_interval", background).
		Msg("refresh intervals updated")

	switch s.mode {
	case ModeForeground:
		s.startForegroundLocked(s.parent)
	case ModeBackground:
		s.startBackgroundLocked(s.parent)
	}
}

// Follow applies lifecycle phases from phases until ctx is done or the
// channel is closed.
func (s *Scheduler) Follow(ctx context.Context, phases <-chan lifecycle.Phase) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-phases:
			if !ok {
				return nil
			}
			switch p {
			case lifecycle.Background:
				s.EnterBackground(ctx)
			case lifecycle.Foreground:
				s.EnterForeground(ctx)
			}
		}
	}
}

func (s *Scheduler) startForegroundLocked(ctx context.Context) {
	s.stopLocked()

	mctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	ticker := s.clock.NewTicker(s.interval)
	s.parent, s.cancel, s.done = ctx, cancel, done
	go s.runForeground(mctx, ticker, done)
	s.setModeLocked(ModeForeground)
}

func (s *Scheduler) startBackgroundLocked(ctx context.Context) {
	s.stopLocked()

	mctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.parent, s.cancel, s.done = ctx, cancel, done
	go s.runBackground(mctx, s.backgroundInterval, done)
	s.setModeLocked(ModeBackground)
}

// stopLocked cancels and joins the running mechanism, if any.
func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel, s.done = nil, nil
}

func (s *Scheduler) setModeLocked(m Mode) {
	if s.mode == m {
		return
	}
	s.logger.Info().
		Str(log.FieldEvent, "scheduler.mode_changed").
		Str(log.FieldOldState, s.mode.String()).
		Str(log.FieldNewState, m.String()).
		Msg("refresh scheduler mode changed")
	s.mode = m
	metrics.SetSchedulerMode(s.refresher.Name(), m.String())
}

func (s *Scheduler) runForeground(ctx context.Context, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	s.refreshOnce(ctx)
	s.dropMissedTick(ticker)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.refreshOnce(ctx)
			s.dropMissedTick(ticker)
		}
	}
}

// dropMissedTick discards a tick that fired while the last refresh was
// running, so the next refresh waits for the next interval boundary.
func (s *Scheduler) dropMissedTick(ticker Ticker) {
	select {
	case <-ticker.C():
		metrics.RecordRefreshSkipped(s.refresher.Name())
		s.logger.Debug().Str(log.FieldEvent, "scheduler.tick_dropped").Msg("tick fired during refresh, dropped")
	default:
	}
}

func (s *Scheduler) runBackground(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	for {
		if ctx.Err() != nil {
			return
		}
		s.refreshOnce(ctx)

		timer := s.clock.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C():
		}
	}
}

// refreshOnce issues one refresh unless ctx is already done. Errors are
// recorded by the Loader; the schedule carries on regardless.
func (s *Scheduler) refreshOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.refresher.Refresh(ctx); err != nil && !errors.Is(err, ErrRefreshInFlight) {
		s.logger.Debug().Err(err).Str(log.FieldEvent, "scheduler.refresh_failed").Msg("scheduled refresh failed")
	}
}
