// Package buffer provides bounded, thread-safe FIFO buffers ("protected
// buffers") with blocking, non-blocking and timed access.
//
// Two implementations satisfy the same Buffer interface:
//   - CondBuffer: one mutex and two condition variables (not empty, not full)
//   - SemBuffer: one mutex and two counting semaphores (items, spaces)
//
// Both wrap an unsynchronized ringstore.Ring and are interchangeable; pick one
// with New and a Kind, or call NewCond / NewSemaphore directly.
//
// # Outcomes
//
// A stored zero value is a legitimate payload. Failures are reported only
// through errors, never through the returned value:
//   - ErrWouldBlock: Add or Remove found the buffer full or empty
//   - ErrTimeout: Offer or Poll reached its deadline first
//
// Timed operations that can complete immediately succeed even when the
// deadline has already passed.
package buffer

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrWouldBlock is returned by Add and Remove when the buffer is full
	// or empty respectively.
	ErrWouldBlock = errors.New("buffer: operation would block")

	// ErrTimeout is returned by Offer and Poll when the deadline elapses
	// before space or an element becomes available.
	ErrTimeout = errors.New("buffer: deadline exceeded")

	// ErrInvalidCapacity is returned by constructors for capacity < 1.
	ErrInvalidCapacity = errors.New("buffer: capacity must be > 0")
)

// Buffer is a bounded FIFO safe for any number of concurrent producers and
// consumers. No ordering is promised among goroutines waiting on the same
// condition.
type Buffer[T any] interface {
	// Get removes and returns the oldest element, blocking while empty.
	Get() T

	// Put inserts v, blocking while full.
	Put(v T)

	// Remove removes and returns the oldest element.
	// Returns ErrWouldBlock at once if the buffer is empty.
	Remove() (T, error)

	// Add inserts v.
	// Returns ErrWouldBlock at once if the buffer is full.
	Add(v T) error

	// Poll is Get bounded by an absolute deadline.
	// Returns ErrTimeout, leaving the buffer untouched, on expiry.
	Poll(deadline time.Time) (T, error)

	// Offer is Put bounded by an absolute deadline.
	// Returns ErrTimeout, leaving the buffer untouched, on expiry.
	Offer(v T, deadline time.Time) error

	// Len returns the number of stored elements.
	Len() int

	// Cap returns the fixed capacity.
	Cap() int
}

// Kind selects a Buffer implementation.
type Kind int

const (
	// KindCond selects CondBuffer.
	KindCond Kind = iota
	// KindSemaphore selects SemBuffer.
	KindSemaphore
)

// Kinds lists every implementation, for tests and benchmarks that cover all.
var Kinds = []Kind{KindCond, KindSemaphore}

func (k Kind) String() string {
	switch k {
	case KindCond:
		return "cond"
	case KindSemaphore:
		return "semaphore"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind accepts "cond" and "semaphore" (or "sem"), case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cond", "condvar":
		return KindCond, nil
	case "semaphore", "sem":
		return KindSemaphore, nil
	default:
		return 0, fmt.Errorf("buffer: unknown implementation %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// New creates a Buffer of the given kind and capacity.
func New[T any](kind Kind, capacity int, opts ...Option) (Buffer[T], error) {
	switch kind {
	case KindCond:
		b, err := NewCond[T](capacity, opts...)
		if err != nil {
			return nil, err
		}
		return b, nil
	case KindSemaphore:
		b, err := NewSemaphore[T](capacity, opts...)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("buffer: unknown implementation %v", kind)
	}
}

func invalidCapacity(capacity int) error {
	return fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
}

// expired reports whether deadline is not in the future.
func expired(deadline time.Time) bool {
	return !time.Now().Before(deadline)
}
