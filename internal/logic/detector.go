package logic

import "time"

// Detector tracks chamber activity and detects ON/OFF transitions from the
// presence or absence of readings.
type Detector struct {
	timeoutOff time.Duration
	state      State
	session    *Session
	counts     EventCounts
}

// NewDetector creates a detector in the OFF state. The chamber is considered
// OFF once no reading has been seen for longer than timeoutOff.
func NewDetector(timeoutOff time.Duration) *Detector {
	return &Detector{
		timeoutOff: timeoutOff,
		state:      StateOff,
	}
}

// Resume puts the detector in the ON state with an open session starting at
// start. Used by startup reconciliation; it does not count as a transition.
func (d *Detector) Resume(start time.Time) {
	d.state = StateOn
	d.session = &Session{Start: start}
}

// Process evaluates one tick and returns the transitions it caused.
// ON is checked before OFF, so at most one of each is returned.
func (d *Detector) Process(input Input) []Event {
	var events []Event

	if input.NewData && d.state == StateOff {
		d.state = StateOn
		d.session = &Session{Start: input.Time}
		d.counts.On++
		events = append(events, Event{
			Timestamp: input.Time,
			Type:      EventOn,
			Session:   *d.session,
		})
	}

	if d.state == StateOn && d.expired(input) {
		// The session is cleared here, so repeated evaluations after the
		// timeout cannot fire OFF twice.
		sess := Session{End: input.Time}
		if d.session != nil {
			sess.Start = d.session.Start
		}
		d.state = StateOff
		d.session = nil
		d.counts.Off++
		events = append(events, Event{
			Timestamp: input.Time,
			Type:      EventOff,
			Session:   sess,
		})
	}

	return events
}

func (d *Detector) expired(input Input) bool {
	if input.LastSeen.IsZero() {
		return false
	}
	return input.Time.Sub(input.LastSeen) > d.timeoutOff
}

// State returns the current state.
func (d *Detector) State() State {
	return d.state
}

// Session returns the open session, or false when OFF.
func (d *Detector) Session() (Session, bool) {
	if d.session == nil {
		return Session{}, false
	}
	return *d.session, true
}

// EventCountsSnapshot returns the transition counts since startup.
func (d *Detector) EventCountsSnapshot() EventCounts {
	return d.counts
}
