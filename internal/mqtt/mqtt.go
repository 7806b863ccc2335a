// Package mqtt receives chamber readings and publishes lifecycle events, with
// an abstraction for testing.
package mqtt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sweeney/chamber-logger/internal/logic"
)

// Lifecycle events published on the status topic.
const (
	EventStartup    = "STARTUP"
	EventChamberOn  = string(logic.EventOn)
	EventChamberOff = string(logic.EventOff)
	EventArchived   = "ARCHIVED"
	EventShutdown   = "SHUTDOWN"
	EventOffline    = "OFFLINE" // last will
)

// Publisher publishes lifecycle events to MQTT.
type Publisher interface {
	// PublishStatus sends a lifecycle event to the status topic.
	// Returns error if publishing fails (should not crash the process).
	PublishStatus(event StatusEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// StatusEvent is one lifecycle event.
type StatusEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // signal name on SHUTDOWN, file name on ARCHIVED
	RawPayload []byte // pre-formatted snapshot; returned as-is by FormatStatusPayload
	Retained   bool
}

// EventPayload is the payload for events without a status snapshot.
type EventPayload struct {
	Chamber EventPayloadInner `json:"chamber"`
}

// EventPayloadInner contains the event details.
type EventPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatStatusPayload creates the JSON payload for a lifecycle event.
func FormatStatusPayload(event StatusEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(EventPayload{
		Chamber: EventPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}

// ErrNotObject is returned for payloads that are valid JSON but not an object.
var ErrNotObject = errors.New("reading payload is not a JSON object")

// DecodeReading parses a sensor payload. Unknown keys, including any sender
// timestamp, are ignored; missing or null sensor fields stay nil.
func DecodeReading(payload []byte) (logic.Reading, error) {
	trimmed := bytes.TrimSpace(payload)
	if json.Valid(trimmed) && trimmed[0] != '{' {
		return logic.Reading{}, ErrNotObject
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return logic.Reading{}, fmt.Errorf("decode reading: %w", err)
	}

	var r logic.Reading
	targets := []struct {
		key string
		dst **float64
	}{
		{"temperature1", &r.Temperature1},
		{"humidity1", &r.Humidity1},
		{"temperature2", &r.Temperature2},
		{"humidity2", &r.Humidity2},
	}
	for _, t := range targets {
		raw, ok := fields[t.key]
		if !ok || string(raw) == "null" {
			continue
		}
		v, err := decodeNumber(raw)
		if err != nil {
			return logic.Reading{}, fmt.Errorf("decode %s: %w", t.key, err)
		}
		*t.dst = &v
	}
	return r, nil
}

// decodeNumber accepts a JSON number or a string holding one, as some
// firmware quotes its values.
func decodeNumber(raw json.RawMessage) (float64, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(n.String(), 64)
}
