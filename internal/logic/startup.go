package logic

import "time"

// Startup is the state the daemon resumes in after a restart.
type Startup struct {
	State State
	// Start is the open session's start when State is ON.
	Start time.Time
	// Recover is true when the latest record is a stale ON sample, meaning a
	// session was cut off by the restart and should be archived.
	Recover bool
	// Reason is a short human-readable explanation for logs.
	Reason string
}

// Reconcile decides the startup state from the most recent durable record.
// A nil latest means the store is empty.
func Reconcile(now time.Time, latest *Mark, threshold time.Duration) Startup {
	if latest == nil {
		return Startup{State: StateOff, Reason: "no records"}
	}
	if latest.State == StateOff {
		return Startup{State: StateOff, Reason: "last status OFF"}
	}
	if now.Sub(latest.Time) > threshold {
		return Startup{State: StateOff, Recover: true, Reason: "last record too old"}
	}
	return Startup{State: StateOn, Start: latest.Time, Reason: "recent ON record"}
}

// RecoverSession reconstructs the bounds of the session that ends with the last
// mark. marks must be in ascending time order. Walking back from the end, the
// session extends while consecutive gaps stay within timeoutOff and no OFF record
// is met; an ON marker is taken as the session start. Returns false if marks
// is empty or the last mark is OFF.
func RecoverSession(marks []Mark, timeoutOff time.Duration) (Session, bool) {
	if len(marks) == 0 {
		return Session{}, false
	}
	last := marks[len(marks)-1]
	if last.State == StateOff {
		return Session{}, false
	}

	start := last.Time
	for i := len(marks) - 2; i >= 0 && !last.Marker; i-- {
		m := marks[i]
		if m.State == StateOff || start.Sub(m.Time) > timeoutOff {
			break
		}
		start = m.Time
		if m.Marker {
			// An ON marker opens the session.
			break
		}
	}
	return Session{Start: start, End: last.Time}, true
}
