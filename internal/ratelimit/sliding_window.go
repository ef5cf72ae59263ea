// Package ratelimit holds the in-process attempt counter used to slow down
// repeated authentication failures.
package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindow counts events per key over a trailing window. State is
// process local and lost on restart.
type SlidingWindow struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

// NewSlidingWindow builds a counter allowing max events per key within window.
func NewSlidingWindow(max int, window time.Duration) *SlidingWindow {
	if max <= 0 {
		max = 5
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &SlidingWindow{
		max:    max,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// WithClock replaces the time source, mostly for tests.
func (w *SlidingWindow) WithClock(now func() time.Time) *SlidingWindow {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.now = now
	return w
}

// Allow reports whether key is still below the limit.
func (w *SlidingWindow) Allow(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evictLocked(w.now())
	return len(w.hits[key]) < w.max
}

// Record adds one event for key and reports whether key is still below the limit.
func (w *SlidingWindow) Record(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.evictLocked(now)
	w.hits[key] = append(w.hits[key], now)
	return len(w.hits[key]) < w.max
}

// Reset forgets every event recorded for key.
func (w *SlidingWindow) Reset(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.hits, key)
}

// RetryAfter returns how long key must wait until its oldest event leaves the window.
func (w *SlidingWindow) RetryAfter(key string) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	hits := w.hits[key]
	if len(hits) < w.max {
		return 0
	}
	wait := hits[0].Add(w.window).Sub(w.now())
	if wait < 0 {
		return 0
	}
	return wait
}

// Len reports how many keys are currently tracked.
func (w *SlidingWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.hits)
}

func (w *SlidingWindow) evictLocked(now time.Time) {
	cutoff := now.Add(-w.window)
	for key, hits := range w.hits {
		idx := 0
		for idx < len(hits) && !hits[idx].After(cutoff) {
			idx++
		}
		switch {
		case idx == len(hits):
			delete(w.hits, key)
		case idx > 0:
			w.hits[key] = append([]time.Time(nil), hits[idx:]...)
		}
	}
}
