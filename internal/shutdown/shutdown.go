// Package shutdown implements the single global cancellation signal
// described in SPEC_FULL.md §5: one atomic boolean polled by every
// worker each loop iteration; any worker that observes it sets it
// (idempotent) before exit so peers unwind too.
package shutdown

import "sync/atomic"

// Flag is a process-wide stop signal. The zero value is ready to use.
type Flag struct {
	stopped atomic.Bool
}

// Stopped reports whether shutdown has been requested.
func (f *Flag) Stopped() bool { return f.stopped.Load() }

// Stop requests shutdown. Idempotent: safe to call from multiple
// workers racing to be the first to notice a fatal condition.
func (f *Flag) Stop() { f.stopped.Store(true) }
