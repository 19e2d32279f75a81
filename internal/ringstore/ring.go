// Package ringstore provides the fixed-capacity FIFO storage used by the
// protected buffers.
//
// Ring is NOT safe for concurrent use. Every call must be guarded by the
// owner's exclusion lock; the buffer package is the only intended owner.
package ringstore

import "errors"

// ErrInvalidCapacity is returned by New when capacity is not positive.
var ErrInvalidCapacity = errors.New("ringstore: capacity must be > 0")

// Ring is a fixed-capacity FIFO container backed by a slice.
//
// Unlike a power-of-two ring, any capacity >= 1 is kept exactly, so a
// buffer of size 3 really holds 3 elements.
type Ring[T any] struct {
	buf  []T
	head int // index of the oldest element
	size int // number of stored elements
}

// New creates an empty Ring holding at most capacity elements.
func New[T any](capacity int) (*Ring[T], error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	return &Ring[T]{buf: make([]T, capacity)}, nil
}

// Push appends v at the tail.
// Returns false, leaving the ring untouched, if the ring is full.
func (r *Ring[T]) Push(v T) bool {
	if r.size == len(r.buf) {
		return false
	}

	tail := r.head + r.size
	if tail >= len(r.buf) {
		tail -= len(r.buf)
	}
	r.buf[tail] = v
	r.size++

	return true
}

// Pop removes and returns the oldest element.
// Returns false, leaving the ring untouched, if the ring is empty.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}

	v := r.buf[r.head]
	// Drop the reference so the ring does not pin popped payloads.
	r.buf[r.head] = zero
	r.head++
	if r.head == len(r.buf) {
		r.head = 0
	}
	r.size--

	return v, true
}

// Len returns the current number of stored elements.
func (r *Ring[T]) Len() int {
	return r.size
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}
