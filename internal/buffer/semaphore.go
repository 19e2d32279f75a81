package buffer

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/randomizedcoder/protected-buffer/internal/ringstore"
)

// SemBuffer is a Buffer whose admission is gated by two counting semaphores:
// items counts stored elements and spaces counts free slots. The mutex only
// guards the structural mutation of the store.
//
// A semaphore is always acquired before the mutex, never while holding it,
// and its companion is released after the mutex is dropped. Every successful
// acquire is paired with exactly one store mutation and one companion
// release, whatever the payload.
type SemBuffer[T any] struct {
	items  *semaphore.Weighted // acquiring reserves an element to remove
	spaces *semaphore.Weighted // acquiring reserves a slot to fill
	mu     sync.Mutex
	store  *ringstore.Ring[T]
	trace  tracer[T]
}

var _ Buffer[int] = (*SemBuffer[int])(nil)

// NewSemaphore creates a SemBuffer holding at most capacity elements.
// Both semaphores are process-local.
func NewSemaphore[T any](capacity int, opts ...Option) (*SemBuffer[T], error) {
	store, err := ringstore.New[T](capacity)
	if err != nil {
		return nil, invalidCapacity(capacity)
	}

	// Weighted starts with every unit available; items must start at zero,
	// so hold all of its units until Puts release them one at a time.
	items := semaphore.NewWeighted(int64(capacity))
	if !items.TryAcquire(int64(capacity)) {
		panic("buffer: fresh semaphore refused initial reservation")
	}

	return &SemBuffer[T]{
		items:  items,
		spaces: semaphore.NewWeighted(int64(capacity)),
		store:  store,
		trace:  newTracer[T]("semaphore", buildOptions(opts)),
	}, nil
}

// take pops the element reserved by a successful items acquire and frees
// its slot.
func (b *SemBuffer[T]) take(op, mode string) T {
	b.mu.Lock()
	v, ok := b.store.Pop()
	if !ok {
		b.mu.Unlock()
		panic("buffer: items reservation without stored element")
	}
	b.trace.value(op, mode, v)
	b.mu.Unlock()

	b.spaces.Release(1)
	return v
}

// give stores v in the slot reserved by a successful spaces acquire and
// publishes it.
func (b *SemBuffer[T]) give(op, mode string, v T) {
	b.mu.Lock()
	if !b.store.Push(v) {
		b.mu.Unlock()
		panic("buffer: spaces reservation without free slot")
	}
	b.trace.value(op, mode, v)
	b.mu.Unlock()

	b.items.Release(1)
}

// Get removes and returns the oldest element, blocking while empty.
func (b *SemBuffer[T]) Get() T {
	// Acquire only fails when its context ends; Background never does.
	_ = b.items.Acquire(context.Background(), 1)
	return b.take("get", modeBlocking)
}

// Put inserts v, blocking while full.
func (b *SemBuffer[T]) Put(v T) {
	_ = b.spaces.Acquire(context.Background(), 1)
	b.give("put", modeBlocking, v)
}

// Remove removes and returns the oldest element, or ErrWouldBlock if empty.
func (b *SemBuffer[T]) Remove() (T, error) {
	if !b.items.TryAcquire(1) {
		b.trace.failure("remove", modeNonBlocking, ErrWouldBlock)
		var zero T
		return zero, ErrWouldBlock
	}
	return b.take("remove", modeNonBlocking), nil
}

// Add inserts v, or returns ErrWouldBlock if full.
func (b *SemBuffer[T]) Add(v T) error {
	if !b.spaces.TryAcquire(1) {
		b.trace.failure("add", modeNonBlocking, ErrWouldBlock)
		return ErrWouldBlock
	}
	b.give("add", modeNonBlocking, v)
	return nil
}

// Poll removes and returns the oldest element, waiting no later than
// deadline. Returns ErrTimeout if the buffer stayed empty.
func (b *SemBuffer[T]) Poll(deadline time.Time) (T, error) {
	if !acquireBy(b.items, deadline) {
		b.trace.failure("poll", modeTimed, ErrTimeout)
		var zero T
		return zero, ErrTimeout
	}
	return b.take("poll", modeTimed), nil
}

// Offer inserts v, waiting no later than deadline.
// Returns ErrTimeout if the buffer stayed full.
func (b *SemBuffer[T]) Offer(v T, deadline time.Time) error {
	if !acquireBy(b.spaces, deadline) {
		b.trace.failure("offer", modeTimed, ErrTimeout)
		return ErrTimeout
	}
	b.give("offer", modeTimed, v)
	return nil
}

// acquireBy takes one unit of s, waiting no later than deadline.
// A unit available right now is taken even if the deadline has passed.
func acquireBy(s *semaphore.Weighted, deadline time.Time) bool {
	if s.TryAcquire(1) {
		return true
	}
	if expired(deadline) {
		return false
	}

	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()
	return s.Acquire(ctx, 1) == nil
}

// Len returns the number of stored elements.
func (b *SemBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Len()
}

// Cap returns the fixed capacity.
func (b *SemBuffer[T]) Cap() int {
	return b.store.Cap()
}
