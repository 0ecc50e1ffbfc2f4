package session

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TickInterval is the countdown resolution.
const TickInterval = time.Second

// Timer is the session countdown loop. It only signals ticks; the
// Controller owns the remaining time and decides when to stop.
type Timer struct {
	clock clockwork.Clock

	mu      sync.Mutex
	stop    chan struct{}
	running bool
	run     uint64
}

// NewTimer creates a stopped timer driven by clock.
func NewTimer(clock clockwork.Clock) *Timer {
	return &Timer{clock: clock}
}

// Start begins ticking once per TickInterval, calling onTick with the run
// ID from the loop goroutine. The ticker exists when Start returns. Starting
// a running timer is a no-op and returns the current run ID.
func (t *Timer) Start(onTick func(run uint64)) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return t.run
	}
	t.run++
	t.running = true
	t.stop = make(chan struct{})

	ticker := t.clock.NewTicker(TickInterval)
	go loop(ticker, t.stop, t.run, onTick)
	return t.run
}

func loop(ticker clockwork.Ticker, stop <-chan struct{}, run uint64, onTick func(uint64)) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			select {
			case <-stop:
				return
			default:
			}
			onTick(run)
		}
	}
}

// Stop ends the loop. It does not wait for an in-progress tick callback,
// so it is safe to call from inside one.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	close(t.stop)
	t.running = false
}

// Running reports whether the loop is active.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
