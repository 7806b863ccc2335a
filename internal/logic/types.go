// Package logic contains pure business logic for chamber activity tracking.
// This package has NO external dependencies (no MQTT, storage, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State represents whether the chamber is producing data.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// EventType represents a state transition event.
type EventType string

const (
	EventOn  EventType = "CHAMBER_ON"
	EventOff EventType = "CHAMBER_OFF"
)

// Reading is one decoded sensor payload from the two probes.
// Any field the sender omitted is nil.
type Reading struct {
	Temperature1 *float64
	Humidity1    *float64
	Temperature2 *float64
	Humidity2    *float64
}

// Session is the interval during which the chamber is ON.
// End is zero while the session is still open.
type Session struct {
	Start time.Time
	End   time.Time
}

// Closed reports whether the session has both bounds.
func (s Session) Closed() bool {
	return !s.Start.IsZero() && !s.End.IsZero()
}

// Event represents a state transition to be acted upon and published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Session   Session
}

// Input is one evaluation of the arrival timeline.
type Input struct {
	Time time.Time
	// NewData is true when at least one reading arrived since the previous evaluation.
	NewData bool
	// LastSeen is the arrival time of the most recent reading; zero if none ever arrived.
	LastSeen time.Time
}

// EventCounts tracks the number of each transition since startup.
type EventCounts struct {
	On  int
	Off int
}

// Mark is the state and timestamp of one durable record, as seen by
// startup reconciliation and session recovery.
type Mark struct {
	Time  time.Time
	State State
	// Marker is true for status marker records (no sensor fields).
	Marker bool
}
