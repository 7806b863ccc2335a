package mqtt

import (
	"testing"

	"github.com/rs/zerolog"
)

func msgs(from, to int) []outboxMsg {
	var out []outboxMsg
	for i := from; i < to; i++ {
		out = append(out, outboxMsg{topic: "chamber/status", payload: []byte{byte(i)}})
	}
	return out
}

func TestOutboxEmptyDrain(t *testing.T) {
	o := newOutbox(4, zerolog.Nop())
	got, dropped := o.drain()
	if got != nil || dropped != 0 {
		t.Errorf("expected nothing from empty drain, got %d items, %d dropped", len(got), dropped)
	}
}

func TestOutboxKeepsOrder(t *testing.T) {
	o := newOutbox(10, zerolog.Nop())
	for _, m := range msgs(0, 5) {
		o.push(m)
	}
	if o.len() != 5 {
		t.Fatalf("len: got %d", o.len())
	}

	got, dropped := o.drain()
	if len(got) != 5 || dropped != 0 {
		t.Fatalf("expected 5 items and no drops, got %d, %d", len(got), dropped)
	}
	for i, m := range got {
		if m.payload[0] != byte(i) {
			t.Errorf("item %d: payload %d", i, m.payload[0])
		}
	}
	if o.len() != 0 {
		t.Error("drain should empty the outbox")
	}
}

func TestOutboxOverflowDropsOldest(t *testing.T) {
	o := newOutbox(3, zerolog.Nop())
	for _, m := range msgs(0, 7) {
		o.push(m)
	}

	got, dropped := o.drain()
	if dropped != 4 {
		t.Errorf("dropped: got %d, want 4", dropped)
	}
	want := []byte{4, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(got))
	}
	for i, m := range got {
		if m.payload[0] != want[i] {
			t.Errorf("item %d: payload %d, want %d", i, m.payload[0], want[i])
		}
	}
}

func TestOutboxReusableAfterDrain(t *testing.T) {
	o := newOutbox(3, zerolog.Nop())
	for _, m := range msgs(0, 5) {
		o.push(m)
	}
	o.drain()

	o.push(outboxMsg{payload: []byte{9}, retained: true})
	got, dropped := o.drain()
	if len(got) != 1 || dropped != 0 {
		t.Fatalf("expected 1 item and no drops, got %d, %d", len(got), dropped)
	}
	if got[0].payload[0] != 9 || !got[0].retained {
		t.Errorf("unexpected message %+v", got[0])
	}
}

func TestOutboxMinimumCapacity(t *testing.T) {
	o := newOutbox(0, zerolog.Nop())
	o.push(outboxMsg{payload: []byte{1}})
	o.push(outboxMsg{payload: []byte{2}})

	got, dropped := o.drain()
	if len(got) != 1 || got[0].payload[0] != 2 || dropped != 1 {
		t.Errorf("got %v, dropped %d", got, dropped)
	}
}
