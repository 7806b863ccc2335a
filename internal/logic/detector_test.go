package logic

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return t0.Add(time.Duration(sec) * time.Second)
}

func TestNewDetector(t *testing.T) {
	d := NewDetector(60 * time.Second)
	if d == nil {
		t.Fatal("NewDetector returned nil")
	}
	if d.timeoutOff != 60*time.Second {
		t.Errorf("expected timeout 60s, got %v", d.timeoutOff)
	}
	if d.State() != StateOff {
		t.Errorf("expected initial state OFF, got %s", d.State())
	}
	if _, ok := d.Session(); ok {
		t.Error("new detector should have no open session")
	}
}

func TestNoEventsWithoutData(t *testing.T) {
	d := NewDetector(60 * time.Second)
	for i := 0; i < 300; i++ {
		events := d.Process(Input{Time: at(i)})
		if len(events) != 0 {
			t.Fatalf("tick %d: expected no events, got %d", i, len(events))
		}
	}
	if d.State() != StateOff {
		t.Errorf("expected OFF, got %s", d.State())
	}
}

func TestTransitionOffToOn(t *testing.T) {
	d := NewDetector(60 * time.Second)

	events := d.Process(Input{Time: at(1), NewData: true, LastSeen: at(0)})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Type != EventOn {
		t.Errorf("expected CHAMBER_ON, got %s", e.Type)
	}
	if !e.Session.Start.Equal(at(1)) {
		t.Errorf("session start: got %v, want %v", e.Session.Start, at(1))
	}
	if e.Session.Closed() {
		t.Error("ON event should carry an open session")
	}
	if d.State() != StateOn {
		t.Errorf("expected ON, got %s", d.State())
	}
	sess, ok := d.Session()
	if !ok || !sess.Start.Equal(at(1)) {
		t.Errorf("expected open session at %v, got %v (ok=%v)", at(1), sess, ok)
	}
}

func TestNewDataWhileOnIsNotATransition(t *testing.T) {
	d := NewDetector(60 * time.Second)
	d.Process(Input{Time: at(0), NewData: true, LastSeen: at(0)})

	for i := 1; i < 50; i++ {
		events := d.Process(Input{Time: at(i), NewData: true, LastSeen: at(i)})
		if len(events) != 0 {
			t.Fatalf("tick %d: expected no events, got %d", i, len(events))
		}
	}
}

func TestTransitionOnToOff(t *testing.T) {
	d := NewDetector(60 * time.Second)
	d.Process(Input{Time: at(0), NewData: true, LastSeen: at(0)})

	// Exactly at the timeout is still ON.
	if events := d.Process(Input{Time: at(60), LastSeen: at(0)}); len(events) != 0 {
		t.Fatalf("expected no events at the timeout boundary, got %d", len(events))
	}

	events := d.Process(Input{Time: at(61), LastSeen: at(0)})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.Type != EventOff {
		t.Errorf("expected CHAMBER_OFF, got %s", e.Type)
	}
	if !e.Session.Start.Equal(at(0)) || !e.Session.End.Equal(at(61)) {
		t.Errorf("unexpected session bounds: %+v", e.Session)
	}
	if !e.Session.Closed() {
		t.Error("OFF event should carry a closed session")
	}
	if d.State() != StateOff {
		t.Errorf("expected OFF, got %s", d.State())
	}
	if _, ok := d.Session(); ok {
		t.Error("session should be cleared after OFF")
	}
}

func TestOffFiresOncePerSession(t *testing.T) {
	d := NewDetector(60 * time.Second)
	d.Process(Input{Time: at(0), NewData: true, LastSeen: at(0)})

	offs := 0
	for i := 1; i < 1000; i++ {
		for _, e := range d.Process(Input{Time: at(i), LastSeen: at(0)}) {
			if e.Type == EventOff {
				offs++
			}
		}
	}
	if offs != 1 {
		t.Errorf("expected exactly 1 OFF event during a long gap, got %d", offs)
	}
}

func TestGapLongerThanTimeoutProducesOneOffBeforeNextOn(t *testing.T) {
	d := NewDetector(60 * time.Second)
	arrivals := map[int]bool{0: true, 30: true, 200: true, 210: true}

	var lastSeen time.Time
	var types []EventType
	for i := 0; i <= 400; i++ {
		in := Input{Time: at(i)}
		if arrivals[i] {
			lastSeen = at(i)
			in.NewData = true
		}
		in.LastSeen = lastSeen
		for _, e := range d.Process(in) {
			types = append(types, e.Type)
		}
	}

	want := []EventType{EventOn, EventOff, EventOn, EventOff}
	if len(types) != len(want) {
		t.Fatalf("expected %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, types[i], want[i])
		}
	}
}

func TestShortGapsDoNotFlap(t *testing.T) {
	d := NewDetector(180 * time.Second)
	// Nominal 60s reporting with one dropped message (a 120s gap).
	arrivals := map[int]bool{0: true, 60: true, 180: true, 240: true}

	var lastSeen time.Time
	var events []Event
	for i := 0; i <= 300; i++ {
		in := Input{Time: at(i)}
		if arrivals[i] {
			lastSeen = at(i)
			in.NewData = true
		}
		in.LastSeen = lastSeen
		events = append(events, d.Process(in)...)
	}

	if len(events) != 1 || events[0].Type != EventOn {
		t.Errorf("expected a single ON event, got %+v", events)
	}
}

func TestResume(t *testing.T) {
	d := NewDetector(60 * time.Second)
	d.Resume(at(0))

	if d.State() != StateOn {
		t.Fatalf("expected ON after Resume, got %s", d.State())
	}
	if c := d.EventCountsSnapshot(); c.On != 0 {
		t.Errorf("Resume should not count as a transition, got On=%d", c.On)
	}

	events := d.Process(Input{Time: at(61), LastSeen: at(0)})
	if len(events) != 1 || events[0].Type != EventOff {
		t.Fatalf("expected OFF after timeout, got %+v", events)
	}
	if !events[0].Session.Start.Equal(at(0)) {
		t.Errorf("expected resumed session start %v, got %v", at(0), events[0].Session.Start)
	}
}

func TestEventCounts(t *testing.T) {
	d := NewDetector(10 * time.Second)
	var lastSeen time.Time
	for cycle := 0; cycle < 3; cycle++ {
		base := cycle * 100
		lastSeen = at(base)
		d.Process(Input{Time: at(base), NewData: true, LastSeen: lastSeen})
		d.Process(Input{Time: at(base + 20), LastSeen: lastSeen})
	}

	c := d.EventCountsSnapshot()
	if c.On != 3 || c.Off != 3 {
		t.Errorf("expected 3 ON and 3 OFF, got %+v", c)
	}
}
