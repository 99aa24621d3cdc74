// Package ratelimit implements per-client sliding-window admission control.
//
// Each key owns a window of admission timestamps covering (now-window, now].
// A request is admitted only while fewer than limit timestamps remain, and
// only admitted requests are recorded. Run reclaims empty windows so memory
// tracks active clients only.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultWindow is the trailing interval admissions are counted over
const DefaultWindow = 60 * time.Second

// Limiter admits requests per key
type Limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	mu     sync.Mutex
	stamps []time.Time // Ascending
	dead   bool        // Set once reclaimed; holders must fetch a fresh window
}

// Option configures a Limiter
type Option func(*Limiter)

// WithWindow overrides the sliding window length
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.window = d
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a limiter admitting at most limit requests per key per window
func New(limit int, opts ...Option) *Limiter {
	if limit <= 0 {
		limit = 1
	}
	l := &Limiter{
		limit:   limit,
		window:  DefaultWindow,
		now:     time.Now,
		windows: make(map[string]*window),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow reports whether a request for key is admitted, recording it if so
func (l *Limiter) Allow(key string) bool {
	for {
		w := l.windowFor(key)

		w.mu.Lock()
		if w.dead {
			// Reclaimed between lookup and lock
			w.mu.Unlock()
			continue
		}

		now := l.now()
		w.prune(now.Add(-l.window))
		if len(w.stamps) >= l.limit {
			w.mu.Unlock()
			return false
		}
		w.stamps = append(w.stamps, now)
		w.mu.Unlock()
		return true
	}
}

// Limit returns the per-window admission limit
func (l *Limiter) Limit() int {
	return l.limit
}

// Window returns the sliding window length
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Len returns the number of tracked keys
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Reclaim prunes every window and drops keys whose window is empty.
// It returns the number of keys removed.
func (l *Limiter) Reclaim() int {
	cutoff := l.now().Add(-l.window)
	removed := 0

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, w := range l.windows {
		w.mu.Lock()
		w.prune(cutoff)
		if len(w.stamps) == 0 {
			w.dead = true
			delete(l.windows, key)
			removed++
		}
		w.mu.Unlock()
	}
	return removed
}

// Run calls Reclaim every interval until ctx is cancelled
func (l *Limiter) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = l.window
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Reclaim()
		}
	}
}

func (l *Limiter) windowFor(key string) *window {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		w = &window{}
		l.windows[key] = w
	}
	return w
}

// prune drops timestamps at or before cutoff. Caller holds w.mu.
func (w *window) prune(cutoff time.Time) {
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return
	}
	n := copy(w.stamps, w.stamps[i:])
	w.stamps = w.stamps[:n]
}
