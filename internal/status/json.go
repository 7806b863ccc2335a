package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	State         string     `json:"state"`
	SessionStart  string     `json:"session_start,omitempty"`
	LastSeen      string     `json:"last_seen,omitempty"`
	LastWrite     string     `json:"last_write,omitempty"`
	LastArchive   string     `json:"last_archive,omitempty"`
	KeepAlive     bool       `json:"keep_alive"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"event_counts"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Topic     string `json:"topic"`
}

// CountsJSON is the JSON representation of transition counts.
type CountsJSON struct {
	On  int `json:"on"`
	Off int `json:"off"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	LogIntervalSec  int64  `json:"log_interval_s"`
	TimeoutOffSec   int64  `json:"timeout_off_s"`
	KeepAliveSec    int64  `json:"keep_alive_s"`
	TimezoneOffset  int    `json:"timezone_offset"`
	Storage         string `json:"storage"`
	ArchiveFolder   string `json:"archive_folder"`
	StatusTopic     string `json:"status_topic"`
	HTTPAddr        string `json:"http_addr"`
	KeepAliveTarget string `json:"keep_alive_url,omitempty"`
}

// formatLocal renders t in its own (display) zone; zero is empty.
func formatLocal(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.Chamber.State)
	if state == "" {
		state = "UNKNOWN"
	}
	c := snap.Config

	return StatusInner{
		State:         state,
		SessionStart:  formatLocal(snap.Chamber.SessionStart),
		LastSeen:      formatLocal(snap.Chamber.LastSeen),
		LastWrite:     formatLocal(snap.Chamber.LastWrite),
		LastArchive:   snap.Chamber.LastArchive,
		KeepAlive:     snap.KeepAlive,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: c.Broker, Topic: c.Topic},
		Counts:        CountsJSON{On: snap.Chamber.Counts.On, Off: snap.Chamber.Counts.Off},
		Config: ConfigJSON{
			LogIntervalSec:  c.LogIntervalSec,
			TimeoutOffSec:   c.TimeoutOffSec,
			KeepAliveSec:    c.KeepAliveSec,
			TimezoneOffset:  c.TimezoneOffset,
			Storage:         c.Storage,
			ArchiveFolder:   c.ArchiveFolder,
			StatusTopic:     c.StatusTopic,
			HTTPAddr:        c.HTTPAddr,
			KeepAliveTarget: c.KeepAliveTarget,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT lifecycle event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
