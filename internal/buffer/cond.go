package buffer

import (
	"context"
	"sync"
	"time"

	"github.com/randomizedcoder/protected-buffer/internal/ringstore"
)

// CondBuffer is a Buffer guarded by one mutex and two condition variables.
//
// Every state change broadcasts rather than signals: several waiters may race
// for the same slot, and each re-checks the predicate after waking, so the
// protocol is correct however many of them a wake releases.
type CondBuffer[T any] struct {
	mu       sync.Mutex
	notEmpty sync.Cond // an element may be available
	notFull  sync.Cond // a slot may be free
	store    *ringstore.Ring[T]
	trace    tracer[T]
}

var _ Buffer[int] = (*CondBuffer[int])(nil)

// NewCond creates a CondBuffer holding at most capacity elements.
func NewCond[T any](capacity int, opts ...Option) (*CondBuffer[T], error) {
	store, err := ringstore.New[T](capacity)
	if err != nil {
		return nil, invalidCapacity(capacity)
	}

	b := &CondBuffer[T]{
		store: store,
		trace: newTracer[T]("cond", buildOptions(opts)),
	}
	b.notEmpty.L = &b.mu
	b.notFull.L = &b.mu
	return b, nil
}

func (b *CondBuffer[T]) empty() bool { return b.store.Len() < 1 }
func (b *CondBuffer[T]) full() bool  { return b.store.Len() >= b.store.Cap() }

// take pops the oldest element and wakes blocked producers.
// b.mu must be held and the store must not be empty.
func (b *CondBuffer[T]) take(op, mode string) T {
	v, ok := b.store.Pop()
	if !ok {
		panic("buffer: take from empty store")
	}
	b.notFull.Broadcast()
	b.trace.value(op, mode, v)
	return v
}

// give pushes v and wakes blocked consumers.
// b.mu must be held and the store must not be full.
func (b *CondBuffer[T]) give(op, mode string, v T) {
	if !b.store.Push(v) {
		panic("buffer: give to full store")
	}
	b.notEmpty.Broadcast()
	b.trace.value(op, mode, v)
}

// Get removes and returns the oldest element, blocking while empty.
func (b *CondBuffer[T]) Get() T {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.empty() {
		b.notEmpty.Wait()
	}
	return b.take("get", modeBlocking)
}

// Put inserts v, blocking while full.
func (b *CondBuffer[T]) Put(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.full() {
		b.notFull.Wait()
	}
	b.give("put", modeBlocking, v)
}

// Remove removes and returns the oldest element, or ErrWouldBlock if empty.
func (b *CondBuffer[T]) Remove() (T, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.empty() {
		b.trace.failure("remove", modeNonBlocking, ErrWouldBlock)
		var zero T
		return zero, ErrWouldBlock
	}
	return b.take("remove", modeNonBlocking), nil
}

// Add inserts v, or returns ErrWouldBlock if full.
func (b *CondBuffer[T]) Add(v T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.full() {
		b.trace.failure("add", modeNonBlocking, ErrWouldBlock)
		return ErrWouldBlock
	}
	b.give("add", modeNonBlocking, v)
	return nil
}

// Poll removes and returns the oldest element, waiting no later than
// deadline. Returns ErrTimeout if the buffer stayed empty.
func (b *CondBuffer[T]) Poll(deadline time.Time) (T, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.waitUntil(&b.notEmpty, deadline, b.empty) {
		b.trace.failure("poll", modeTimed, ErrTimeout)
		var zero T
		return zero, ErrTimeout
	}
	return b.take("poll", modeTimed), nil
}

// Offer inserts v, waiting no later than deadline.
// Returns ErrTimeout if the buffer stayed full.
func (b *CondBuffer[T]) Offer(v T, deadline time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.waitUntil(&b.notFull, deadline, b.full) {
		b.trace.failure("offer", modeTimed, ErrTimeout)
		return ErrTimeout
	}
	b.give("offer", modeTimed, v)
	return nil
}

// waitUntil waits on c while blocked reports true, giving up at deadline.
// It returns true once blocked is false. b.mu must be held; it is held again
// on return.
//
// sync.Cond has no timed wait, so a context.AfterFunc broadcasts c when the
// deadline passes and the waiter then observes ctx.Err().
func (b *CondBuffer[T]) waitUntil(c *sync.Cond, deadline time.Time, blocked func() bool) bool {
	if !blocked() {
		return true
	}
	if expired(deadline) {
		return false
	}

	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()
	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		c.Broadcast()
	})
	defer stop()

	for blocked() {
		if ctx.Err() != nil {
			return false
		}
		c.Wait()
	}
	return true
}

// Len returns the number of stored elements.
func (b *CondBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Len()
}

// Cap returns the fixed capacity.
func (b *CondBuffer[T]) Cap() int {
	return b.store.Cap()
}
