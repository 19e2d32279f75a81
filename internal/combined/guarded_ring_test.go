package combined_test

import (
	"sync"

	"github.com/randomizedcoder/protected-buffer/internal/ringstore"
	"github.com/randomizedcoder/protected-buffer/internal/ticketlock"
)

// guardedRing is the minimal protected buffer: a ringstore.Ring behind any
// sync.Locker, with non-blocking Add/Remove only.
type guardedRing struct {
	mu   sync.Locker
	ring *ringstore.Ring[int]
}

func newGuardedRing(mu sync.Locker, capacity int) *guardedRing {
	r, err := ringstore.New[int](capacity)
	if err != nil {
		panic(err)
	}
	return &guardedRing{mu: mu, ring: r}
}

func newTicketRing(capacity int) *guardedRing {
	return newGuardedRing(new(ticketlock.Lock), capacity)
}

func newMutexRing(capacity int) *guardedRing {
	return newGuardedRing(new(sync.Mutex), capacity)
}

func (g *guardedRing) Add(v int) bool {
	g.mu.Lock()
	ok := g.ring.Push(v)
	g.mu.Unlock()
	return ok
}

func (g *guardedRing) Remove() (int, bool) {
	g.mu.Lock()
	v, ok := g.ring.Pop()
	g.mu.Unlock()
	return v, ok
}
