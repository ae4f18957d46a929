package budget

import (
	"sync/atomic"
	"time"
)

/*
Budget tracker

Counts pages, bytes, and wall clock against configured caps. Exceeded() is
sticky: once any cap trips it stays tripped for the rest of the run, even
if a cap is later raised.
*/

// Caps are the configured limits; zero means uncapped.
type Caps struct {
	MaxPages     int64
	MaxBytes     int64
	MaxWallClock time.Duration
}

type Tracker struct {
	caps      Caps
	startedAt time.Time
	pages     atomic.Int64
	bytes     atomic.Int64
	// reserved counts admission slots claimed by dispatched fetches. A slot
	// is claimed before the fetch starts and either converts into a Record
	// or is released, so emissions can never overshoot MaxPages even with
	// many workers racing.
	reserved atomic.Int64
	exceeded atomic.Bool
	now      func() time.Time
}

func NewTracker(caps Caps) *Tracker {
	return &Tracker{
		caps:      caps,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// NewTrackerWithClock injects the clock for testing.
func NewTrackerWithClock(caps Caps, now func() time.Time) *Tracker {
	t := NewTracker(caps)
	t.now = now
	t.startedAt = now()
	return t
}

// Record adds one observation atomically and trips the exceeded latch when
// a cap is reached.
func (t *Tracker) Record(pages int, bytes int) {
	totalPages := t.pages.Add(int64(pages))
	totalBytes := t.bytes.Add(int64(bytes))

	if t.caps.MaxPages > 0 && totalPages >= t.caps.MaxPages {
		t.exceeded.Store(true)
	}
	if t.caps.MaxBytes > 0 && totalBytes >= t.caps.MaxBytes {
		t.exceeded.Store(true)
	}
}

// Exceeded reports whether any cap has been met. The wall-clock cap is
// evaluated lazily on read; page and byte caps latch at Record time.
func (t *Tracker) Exceeded() bool {
	if t.exceeded.Load() {
		return true
	}
	if t.caps.MaxWallClock > 0 && t.now().Sub(t.startedAt) >= t.caps.MaxWallClock {
		t.exceeded.Store(true)
		return true
	}
	return false
}

// ReservePage atomically claims one admission slot against the page cap.
// It must be called before a fetch is dispatched; a false return means
// every remaining slot is already held by a recorded or in-flight page.
func (t *Tracker) ReservePage() bool {
	if t.caps.MaxPages <= 0 {
		return true
	}
	for {
		current := t.reserved.Load()
		if current >= t.caps.MaxPages {
			return false
		}
		if t.reserved.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// ReleasePage returns a claimed slot when the fetch produced no page
// (terminal error, freshness skip, cancellation).
func (t *Tracker) ReleasePage() {
	if t.caps.MaxPages <= 0 {
		return
	}
	t.reserved.Add(-1)
}

func (t *Tracker) Pages() int64 {
	return t.pages.Load()
}

func (t *Tracker) Bytes() int64 {
	return t.bytes.Load()
}

func (t *Tracker) StartedAt() time.Time {
	return t.startedAt
}

func (t *Tracker) Elapsed() time.Duration {
	return t.now().Sub(t.startedAt)
}
