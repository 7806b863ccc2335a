package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sweeney/chamber-logger/internal/logic"
)

func TestDecodeReading(t *testing.T) {
	r, err := DecodeReading([]byte(`{"temperature1": 24.5, "humidity1": 61, "temperature2": 25.25, "humidity2": 59.5}`))
	if err != nil {
		t.Fatalf("DecodeReading: %v", err)
	}
	checks := []struct {
		name string
		got  *float64
		want float64
	}{
		{"temperature1", r.Temperature1, 24.5},
		{"humidity1", r.Humidity1, 61},
		{"temperature2", r.Temperature2, 25.25},
		{"humidity2", r.Humidity2, 59.5},
	}
	for _, c := range checks {
		if c.got == nil || *c.got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestDecodeReadingIgnoresTimestampsAndUnknownKeys(t *testing.T) {
	r, err := DecodeReading([]byte(`{"timestamp": "2001-01-01T00:00:00Z", "time": 12345, "device": "esp32", "temperature1": 20}`))
	if err != nil {
		t.Fatalf("DecodeReading: %v", err)
	}
	if r.Temperature1 == nil || *r.Temperature1 != 20 {
		t.Errorf("temperature1: got %v", r.Temperature1)
	}
	if r.Humidity1 != nil || r.Temperature2 != nil || r.Humidity2 != nil {
		t.Errorf("missing fields should be nil: %+v", r)
	}
}

func TestDecodeReadingNullFields(t *testing.T) {
	r, err := DecodeReading([]byte(`{"temperature1": null, "humidity2": 40}`))
	if err != nil {
		t.Fatalf("DecodeReading: %v", err)
	}
	if r.Temperature1 != nil {
		t.Error("null temperature1 should decode as nil")
	}
	if r.Humidity2 == nil || *r.Humidity2 != 40 {
		t.Errorf("humidity2: got %v", r.Humidity2)
	}
}

func TestDecodeReadingQuotedNumbers(t *testing.T) {
	r, err := DecodeReading([]byte(`{"temperature1": "25.1", "humidity1": 60, "temperature2": "-3"}`))
	if err != nil {
		t.Fatalf("DecodeReading: %v", err)
	}
	if r.Temperature1 == nil || *r.Temperature1 != 25.1 {
		t.Errorf("temperature1: got %v", r.Temperature1)
	}
	if r.Humidity1 == nil || *r.Humidity1 != 60 {
		t.Errorf("humidity1: got %v", r.Humidity1)
	}
	if r.Temperature2 == nil || *r.Temperature2 != -3 {
		t.Errorf("temperature2: got %v", r.Temperature2)
	}
}

func TestDecodeReadingNamesBadField(t *testing.T) {
	_, err := DecodeReading([]byte(`{"temperature1": 20, "humidity2": "wet"}`))
	if err == nil || !strings.Contains(err.Error(), "humidity2") {
		t.Errorf("expected error naming humidity2, got %v", err)
	}
}

func TestDecodeReadingEmptyObject(t *testing.T) {
	r, err := DecodeReading([]byte(`{}`))
	if err != nil {
		t.Fatalf("empty object is a valid reading: %v", err)
	}
	if r != (logic.Reading{}) {
		t.Errorf("expected zero reading, got %+v", r)
	}
}

func TestDecodeReadingMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `temperature=21`},
		{"truncated", `{"temperature1": 2`},
		{"array", `[1, 2, 3]`},
		{"number", `42`},
		{"null", `null`},
		{"string field", `{"temperature1": "hot"}`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeReading([]byte(tt.payload)); err == nil {
				t.Errorf("expected error for %q", tt.payload)
			}
		})
	}
	for _, p := range []string{`null`, ` [1, 2] `, `42`, `"x"`} {
		if _, err := DecodeReading([]byte(p)); !errors.Is(err, ErrNotObject) {
			t.Errorf("%s: expected ErrNotObject, got %v", p, err)
		}
	}
}

func TestFormatStatusPayloadExactJSON(t *testing.T) {
	wib := time.FixedZone("", 7*3600)
	payload, err := FormatStatusPayload(StatusEvent{
		Timestamp: time.Date(2026, 6, 1, 15, 0, 0, 0, wib),
		Event:     EventShutdown,
		Reason:    "SIGTERM",
	})
	if err != nil {
		t.Fatalf("FormatStatusPayload: %v", err)
	}
	want := `{"chamber":{"timestamp":"2026-06-01T08:00:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != want {
		t.Errorf("got %s, want %s", payload, want)
	}
}

func TestFormatStatusPayloadOmitsEmptyReason(t *testing.T) {
	payload, err := FormatStatusPayload(StatusEvent{Timestamp: time.Unix(0, 0), Event: EventStartup})
	if err != nil {
		t.Fatal(err)
	}
	var parsed map[string]map[string]any
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatal(err)
	}
	if _, ok := parsed["chamber"]["reason"]; ok {
		t.Error("reason should be omitted when empty")
	}
}

func TestFormatStatusPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"state":"ON"}}`)
	payload, err := FormatStatusPayload(StatusEvent{Event: EventChamberOn, RawPayload: raw})
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload should pass through, got %s", payload)
	}
}

func TestEventNamesMatchTransitions(t *testing.T) {
	if EventChamberOn != "CHAMBER_ON" || EventChamberOff != "CHAMBER_OFF" {
		t.Errorf("unexpected transition names %s %s", EventChamberOn, EventChamberOff)
	}
}

func TestFakePublisher(t *testing.T) {
	fake := NewFakePublisher()
	if err := fake.PublishStatus(StatusEvent{Event: EventStartup, Retained: true}); err != nil {
		t.Fatal(err)
	}
	if err := fake.PublishStatus(StatusEvent{Event: EventShutdown, Reason: "SIGINT"}); err != nil {
		t.Fatal(err)
	}

	names := fake.EventNames()
	if len(names) != 2 || names[0] != EventStartup || names[1] != EventShutdown {
		t.Errorf("unexpected events %v", names)
	}
	if len(fake.StatusPayloads) != 2 {
		t.Errorf("expected 2 payloads, got %d", len(fake.StatusPayloads))
	}
	if !fake.StatusEvents[0].Retained {
		t.Error("retained flag not recorded")
	}

	fake.PublishStatusError = errors.New("broker gone")
	if err := fake.PublishStatus(StatusEvent{Event: EventArchived}); err == nil {
		t.Error("expected configured error")
	}
	if len(fake.StatusEvents) != 2 {
		t.Error("failed publish should not be recorded")
	}

	fake.Close()
	if !fake.Closed {
		t.Error("Close not recorded")
	}
}

func TestArchiveNotifier(t *testing.T) {
	fake := NewFakePublisher()
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	n := &ArchiveNotifier{Publisher: fake, Now: func() time.Time { return now }}

	if err := n.Publish(context.Background(), "/data/archives/session_20260601_080000.csv"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(fake.StatusEvents) != 1 {
		t.Fatalf("expected one event, got %d", len(fake.StatusEvents))
	}
	ev := fake.StatusEvents[0]
	if ev.Event != EventArchived || ev.Reason != "session_20260601_080000.csv" || !ev.Timestamp.Equal(now) {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestArchiveNotifierSnapshot(t *testing.T) {
	fake := NewFakePublisher()
	var gotEvent, gotReason string
	n := &ArchiveNotifier{
		Publisher: fake,
		Snapshot: func(event, reason string) []byte {
			gotEvent, gotReason = event, reason
			return []byte(`{"status":{}}`)
		},
	}

	if err := n.Publish(context.Background(), "a/b.csv"); err != nil {
		t.Fatal(err)
	}
	if gotEvent != EventArchived || gotReason != "b.csv" {
		t.Errorf("snapshot called with %q %q", gotEvent, gotReason)
	}
	if string(fake.StatusPayloads[0]) != `{"status":{}}` {
		t.Errorf("payload: %s", fake.StatusPayloads[0])
	}
}

func TestArchiveNotifierPropagatesError(t *testing.T) {
	fake := NewFakePublisher()
	fake.PublishStatusError = errors.New("down")
	n := &ArchiveNotifier{Publisher: fake}
	if err := n.Publish(context.Background(), "x.csv"); err == nil {
		t.Error("expected error")
	}
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestHandleMessage(t *testing.T) {
	var got []logic.Reading
	c := &RealClient{
		cfg:       ClientConfig{Topic: "chamber/log"},
		onReading: func(r logic.Reading) { got = append(got, r) },
		logger:    zerolog.Nop(),
	}

	c.handleMessage(nil, fakeMessage{topic: "chamber/log", payload: []byte(`{"temperature1": 30}`)})
	c.handleMessage(nil, fakeMessage{topic: "chamber/log", payload: []byte(`garbage`)})
	c.handleMessage(nil, fakeMessage{topic: "chamber/log", payload: []byte(`{"humidity1": 70}`)})

	if len(got) != 2 {
		t.Fatalf("expected 2 readings delivered, got %d", len(got))
	}
	if *got[0].Temperature1 != 30 || *got[1].Humidity1 != 70 {
		t.Errorf("unexpected readings %+v", got)
	}
}
