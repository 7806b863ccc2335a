package mqtt

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	// StatusEvents contains all lifecycle events that were published.
	StatusEvents []StatusEvent

	// StatusPayloads contains the JSON payloads that were published.
	StatusPayloads [][]byte

	// PublishStatusError, if set, will be returned by PublishStatus.
	PublishStatusError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishStatus records the lifecycle event.
func (f *FakePublisher) PublishStatus(event StatusEvent) error {
	if f.PublishStatusError != nil {
		return f.PublishStatusError
	}

	payload, err := FormatStatusPayload(event)
	if err != nil {
		return err
	}
	f.StatusEvents = append(f.StatusEvents, event)
	f.StatusPayloads = append(f.StatusPayloads, payload)
	return nil
}

// EventNames returns the Event field of every recorded event, in order.
func (f *FakePublisher) EventNames() []string {
	names := make([]string, len(f.StatusEvents))
	for i, e := range f.StatusEvents {
		names[i] = e.Event
	}
	return names
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}
