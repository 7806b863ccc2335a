package mqtt

import "github.com/rs/zerolog"

// outboxMsg is a serialized publish held for replay after reconnection.
type outboxMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox is a fixed-capacity FIFO of publishes made while disconnected. When
// full the oldest message is overwritten. Not safe for concurrent use.
type outbox struct {
	msgs    []outboxMsg
	next    int // slot for the next push
	size    int
	dropped int // overwritten since the last drain
	logger  zerolog.Logger
}

func newOutbox(capacity int, logger zerolog.Logger) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{msgs: make([]outboxMsg, capacity), logger: logger}
}

func (o *outbox) push(msg outboxMsg) {
	o.msgs[o.next] = msg
	o.next = (o.next + 1) % len(o.msgs)
	if o.size < len(o.msgs) {
		o.size++
		return
	}
	if o.dropped == 0 {
		o.logger.Warn().Int("capacity", len(o.msgs)).Msg("outbox full, dropping oldest")
	}
	o.dropped++
}

// drain returns the held messages oldest first and how many were lost.
func (o *outbox) drain() ([]outboxMsg, int) {
	if o.size == 0 {
		return nil, 0
	}
	out := make([]outboxMsg, 0, o.size)
	first := (o.next - o.size + len(o.msgs)) % len(o.msgs)
	for i := 0; i < o.size; i++ {
		out = append(out, o.msgs[(first+i)%len(o.msgs)])
	}
	dropped := o.dropped

	o.next, o.size, o.dropped = 0, 0, 0
	return out, dropped
}

func (o *outbox) len() int {
	return o.size
}
