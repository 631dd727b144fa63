// Package timer provides cancellable scheduled tasks over an injectable
// clock. Every task is started through Go and stopped through its Handle, so
// a caller that defers Stop never leaves a goroutine behind.
package timer

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Clock is the time source for dwell gates, countdowns and loops.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

// Real returns the wall clock.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Handle owns one running task.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Go runs fn in its own goroutine with a child context of parent.
func Go(parent context.Context, fn func(ctx context.Context)) *Handle {
	ctx, cancel := context.WithCancel(parent)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		fn(ctx)
	}()
	return h
}

// Stop cancels the task and waits for it to return. Safe to call repeatedly.
func (h *Handle) Stop() {
	h.once.Do(h.cancel)
	<-h.done
}

// Done is closed once the task has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Countdown calls tick once per second with the seconds left, ending with
// tick(0). A total of zero or less returns immediately without ticking.
func Countdown(parent context.Context, clock Clock, total int, tick func(remaining int)) *Handle {
	return Go(parent, func(ctx context.Context) {
		for remaining := total; remaining > 0; {
			select {
			case <-ctx.Done():
				return
			case <-clock.After(time.Second):
			}
			remaining--
			tick(remaining)
		}
	})
}

// Jittered calls fn repeatedly, sleeping a uniform draw from [min, max)
// before each call. rng is used only from the task goroutine.
func Jittered(parent context.Context, clock Clock, rng *rand.Rand, min, max time.Duration, fn func(ctx context.Context)) *Handle {
	return Go(parent, func(ctx context.Context) {
		for {
			wait := min
			if span := max - min; span > 0 {
				wait += time.Duration(rng.Int63n(int64(span)))
			}
			select {
			case <-ctx.Done():
				return
			case <-clock.After(wait):
			}
			fn(ctx)
		}
	})
}

// Sleep waits for d on clock or until ctx is done.
func Sleep(ctx context.Context, clock Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(d):
		return nil
	}
}
