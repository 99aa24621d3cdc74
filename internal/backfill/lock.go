package backfill

import "sync/atomic"

// RunLock admits one backfill pass at a time without blocking callers
type RunLock struct {
	running atomic.Bool
}

// TryAcquire claims the lock and reports whether it was free
func (l *RunLock) TryAcquire() bool {
	return l.running.CompareAndSwap(false, true)
}

// Release frees the lock. Only the holder may call it.
func (l *RunLock) Release() {
	l.running.Store(false)
}

// Running reports whether a pass holds the lock
func (l *RunLock) Running() bool {
	return l.running.Load()
}
