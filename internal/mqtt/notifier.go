package mqtt

import (
	"context"
	"path/filepath"
	"time"
)

// ArchiveNotifier announces finished archives as ARCHIVED events.
type ArchiveNotifier struct {
	Publisher Publisher

	// Snapshot, if set, builds the payload from the event and file name.
	Snapshot func(event, reason string) []byte

	// Now stamps events; nil uses time.Now.
	Now func() time.Time
}

// Publish sends an ARCHIVED event naming the archive file.
func (n *ArchiveNotifier) Publish(ctx context.Context, path string) error {
	now := n.Now
	if now == nil {
		now = time.Now
	}
	name := filepath.Base(path)
	event := StatusEvent{
		Timestamp: now(),
		Event:     EventArchived,
		Reason:    name,
		Retained:  true,
	}
	if n.Snapshot != nil {
		event.RawPayload = n.Snapshot(EventArchived, name)
	}
	return n.Publisher.PublishStatus(event)
}
