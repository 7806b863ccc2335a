package storage

import (
	"time"

	"github.com/sweeney/chamber-logger/internal/logic"
)

// Status is the chamber status stored with each record.
type Status string

const (
	StatusOn  Status = "ON"
	StatusOff Status = "OFF"
)

// Date and time-of-day layouts for the display columns.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// LogRecord is one row of the chamber log: either a sample (status ON with the
// latest reading) or a status marker written at a session boundary (no sensor
// fields).
type LogRecord struct {
	ID           int64     `json:"id"`
	Date         string    `json:"date"`
	Time         string    `json:"time"`
	Temperature1 *float64  `json:"temperature1"`
	Humidity1    *float64  `json:"humidity1"`
	Temperature2 *float64  `json:"temperature2"`
	Humidity2    *float64  `json:"humidity2"`
	Status       Status    `json:"status"`
	Marker       bool      `json:"marker"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewSample builds a status ON record from r. createdAt should already be in
// the display timezone.
func NewSample(r logic.Reading, createdAt time.Time) LogRecord {
	return LogRecord{
		Date:         createdAt.Format(DateLayout),
		Time:         createdAt.Format(TimeLayout),
		Temperature1: r.Temperature1,
		Humidity1:    r.Humidity1,
		Temperature2: r.Temperature2,
		Humidity2:    r.Humidity2,
		Status:       StatusOn,
		CreatedAt:    createdAt,
	}
}

// NewMarker builds a status marker record for a transition into status.
func NewMarker(status Status, createdAt time.Time) LogRecord {
	return LogRecord{
		Date:      createdAt.Format(DateLayout),
		Time:      createdAt.Format(TimeLayout),
		Status:    status,
		Marker:    true,
		CreatedAt: createdAt,
	}
}

// Mark converts the record to the view used by startup reconciliation.
func (r LogRecord) Mark() logic.Mark {
	state := logic.StateOn
	if r.Status == StatusOff {
		state = logic.StateOff
	}
	return logic.Mark{Time: r.CreatedAt, State: state, Marker: r.Marker}
}
