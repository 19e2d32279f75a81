// Package combined provides interaction benchmarks that test multiple
// components together.
//
// The protected buffers are measured against the other ways of guarding the
// same ring: a ticket lock, a sync.Mutex, a buffered channel and the sharded
// lock-free ring from go-lock-free-ring. These numbers capture lock handoff
// and wake-up costs that the single-package benchmarks miss.
package combined
