package lifecycle

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/Sharnabh/LMS-sub002/internal/log"
)

// Notifier fans phase changes out to subscribers. Each subscriber sees the
// latest phase; intermediate phases may be coalesced if it falls behind.
type Notifier struct {
	mu      sync.Mutex
	current Phase
	subs    map[uint64]chan Phase
	nextID  uint64
	logger  zerolog.Logger
}

// NewNotifier creates a notifier starting in initial.
func NewNotifier(initial Phase) *Notifier {
	return &Notifier{
		current: initial,
		subs:    make(map[uint64]chan Phase),
		logger:  log.WithComponent("lifecycle"),
	}
}

// Current returns the last published phase.
func (n *Notifier) Current() Phase {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Publish records p and notifies subscribers. Publishing the current phase
// again is a no-op and reports false.
func (n *Notifier) Publish(p Phase) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if p == n.current {
		return false
	}
	n.logger.Info().
		Str(log.FieldEvent, "lifecycle.phase_changed").
		Str(log.FieldOldState, n.current.String()).
		Str(log.FieldNewState, p.String()).
		Msg("lifecycle phase changed")
	n.current = p
	for _, ch := range n.subs {
		deliver(ch, p)
	}
	return true
}

// Subscribe returns a channel of phase changes and a cancel func that closes
// it. The channel does not replay the current phase.
func (n *Notifier) Subscribe() (<-chan Phase, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	ch := make(chan Phase, 1)
	n.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs, id)
			close(ch)
		})
	}
}

// deliver replaces a pending, unread phase with p. Callers hold n.mu, so no
// other sender can refill the buffer between the drain and the send.
func deliver(ch chan Phase, p Phase) {
	select {
	case ch <- p:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- p:
	default:
	}
}
