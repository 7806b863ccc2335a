package logic

import "time"

// Throttle decides when the latest reading should be persisted, at a fixed
// interval independent of how often readings arrive.
type Throttle struct {
	interval  time.Duration
	lastWrite time.Time
}

// NewThrottle creates a throttle that allows one write per interval.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval}
}

// Due reports whether a write is allowed at now.
func (t *Throttle) Due(now time.Time) bool {
	return now.Sub(t.lastWrite) >= t.interval
}

// Mark records a successful write at now. The write time never moves backwards.
func (t *Throttle) Mark(now time.Time) {
	if now.After(t.lastWrite) {
		t.lastWrite = now
	}
}

// Reset restarts the interval at now; called when the chamber turns ON so the
// first sample lands one interval into the session.
func (t *Throttle) Reset(now time.Time) {
	t.Mark(now)
}

// LastWrite returns the time of the last write (or reset).
func (t *Throttle) LastWrite() time.Time {
	return t.lastWrite
}
