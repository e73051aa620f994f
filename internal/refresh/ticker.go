package refresh

import (
	"context"
	"sync"
	"time"
)

// Ticker calls a function on a repeating schedule. At most one schedule is
// active at a time; Reset tears down the previous schedule, waiting for any
// in-flight call to return, before starting the next.
//
// fn receives a context that is cancelled when its schedule ends and must
// return promptly once it is. fn must not call Reset or Stop.
type Ticker struct {
	fn func(ctx context.Context)

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	interval time.Duration
}

// NewTicker returns a stopped Ticker.
func NewTicker(fn func(ctx context.Context)) *Ticker {
	return &Ticker{fn: fn}
}

// Reset replaces the current schedule with one firing every d. A
// non-positive d leaves no schedule.
func (t *Ticker) Reset(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	if d <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.cancel, t.done, t.interval = cancel, done, d
	go t.run(ctx, d, done)
}

// Stop ends the current schedule, if any.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Interval returns the period of the active schedule, or zero.
func (t *Ticker) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

func (t *Ticker) stopLocked() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	<-t.done
	t.cancel, t.done, t.interval = nil, nil, 0
}

func (t *Ticker) run(ctx context.Context, d time.Duration, done chan struct{}) {
	defer close(done)

	tk := time.NewTicker(d)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			if ctx.Err() != nil {
				return
			}
			t.fn(ctx)
		}
	}
}
