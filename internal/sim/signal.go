package sim

import (
	"context"
	"sync/atomic"
	"time"
)

// stopFlag mirrors ctx.Done() into an atomic.Bool so the retry loops,
// which spin through failed Add/Remove/Offer/Poll attempts, check
// cancellation with one atomic load instead of a channel select.
type stopFlag struct {
	done atomic.Bool
}

// watch arms the flag to be set when ctx ends. The returned func releases
// the watcher.
func (s *stopFlag) watch(ctx context.Context) (release func() bool) {
	return context.AfterFunc(ctx, func() { s.done.Store(true) })
}

func (s *stopFlag) stopped() bool {
	return s.done.Load()
}

// progressTicker fires at most once per interval across all goroutines
// polling it. A zero interval never fires.
type progressTicker struct {
	start    time.Time
	interval int64 // nanoseconds
	lastTick atomic.Int64
}

func newProgressTicker(interval time.Duration) *progressTicker {
	return &progressTicker{start: time.Now(), interval: int64(interval)}
}

// Tick returns true if the interval has elapsed since the last tick.
// The CAS keeps concurrent pollers from reporting the same tick twice.
func (p *progressTicker) Tick() bool {
	if p.interval <= 0 {
		return false
	}
	now := int64(time.Since(p.start))
	last := p.lastTick.Load()
	if now-last < p.interval {
		return false
	}
	return p.lastTick.CompareAndSwap(last, now)
}
