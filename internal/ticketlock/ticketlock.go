// Package ticketlock provides a fair FIFO spin lock built from two counters.
//
// Each Lock call takes the next ticket; the holder is whoever's ticket equals
// the turn counter, and Unlock advances the turn by one. Waiters are therefore
// admitted strictly in the order they arrived.
//
// Waiters busy-poll instead of parking, so the lock only suits very short
// critical sections. A holder that never unlocks blocks every waiter forever.
package ticketlock

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// goschedEvery bounds how long a waiter spins before yielding its P, so the
// holder can run even when goroutines outnumber GOMAXPROCS.
const goschedEvery = 64

// Lock is a ticket lock. The zero value is an unlocked Lock.
//
// All counter updates are sync/atomic operations, which Go defines as
// sequentially consistent: an Unlock is observed by every spinning waiter and
// no two waiters can see the same turn as theirs.
//
// A Lock must not be copied after first use.
type Lock struct {
	_      cpu.CacheLinePad
	ticket atomic.Uint64 // next ticket to hand out
	_      cpu.CacheLinePad
	turn   atomic.Uint64 // ticket currently allowed in
	_      cpu.CacheLinePad
}

// Lock blocks until the caller holds the lock.
func (l *Lock) Lock() {
	l.LockTicket()
}

// LockTicket is Lock, returning the ticket the caller was admitted with.
// Tickets start at 0 and are admitted in increasing order.
func (l *Lock) LockTicket() uint64 {
	my := l.ticket.Add(1) - 1

	var spins uint32
	for l.turn.Load() != my {
		spins++
		if spins%goschedEvery == 0 {
			runtime.Gosched()
		}
	}
	return my
}

// TryLock takes the lock only if it is free and nobody is queued.
// It never spins.
func (l *Lock) TryLock() bool {
	turn := l.turn.Load()
	// ticket == turn means no holder and no waiters; taking ticket turn
	// admits us immediately.
	return l.ticket.CompareAndSwap(turn, turn+1)
}

// Unlock admits the next ticket. It panics if the lock is not held, leaving
// the counters as they were.
func (l *Lock) Unlock() {
	if l.turn.Add(1) > l.ticket.Load() {
		l.turn.Add(^uint64(0))
		panic("ticketlock: unlock of unlocked Lock")
	}
}

// Queued returns the number of goroutines holding or waiting for the lock.
// The value is a snapshot and may be stale by the time it is used.
func (l *Lock) Queued() uint64 {
	turn := l.turn.Load()
	return l.ticket.Load() - turn
}
