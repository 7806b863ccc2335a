// Package status provides a thread-safe status tracker for the chamber logger.
// It is read by HTTP handlers and by lifecycle event publishing.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/chamber-logger/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	LogIntervalSec  int64
	TimeoutOffSec   int64
	KeepAliveSec    int64
	TimezoneOffset  int
	Broker          string
	Topic           string
	StatusTopic     string
	Storage         string
	ArchiveFolder   string
	HTTPAddr        string
	KeepAliveTarget string
}

// Chamber is the evaluator's view of the chamber.
type Chamber struct {
	State        logic.State
	SessionStart time.Time // zero while OFF
	LastSeen     time.Time
	LastWrite    time.Time
	LastArchive  string
	Counts       logic.EventCounts
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Chamber       Chamber
	KeepAlive     bool
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Chamber:   Chamber{State: logic.StateOff},
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update replaces the chamber view. Called from the run loop on every tick.
func (t *Tracker) Update(c Chamber) {
	t.mu.Lock()
	t.snap.Chamber = c
	t.mu.Unlock()
}

// SetKeepAlive records whether the keep-alive loop is armed.
func (t *Tracker) SetKeepAlive(armed bool) {
	t.mu.Lock()
	t.snap.KeepAlive = armed
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
