package archive

import (
	"context"
	"sync"
)

// FakePublisher records published archive paths for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// Paths contains every path passed to Publish.
	Paths []string

	// PublishError, if set, is returned by Publish after recording the path.
	PublishError error
}

// Publish records path.
func (f *FakePublisher) Publish(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Paths = append(f.Paths, path)
	return f.PublishError
}

// Published returns a copy of the recorded paths.
func (f *FakePublisher) Published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Paths...)
}
