package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps the log in memory. It backs the "memory" storage type
// and is the test double for Store.
type MemoryStore struct {
	mu      sync.Mutex
	records []LogRecord
	nextID  int64

	// InsertError, if set, is returned by Insert and nothing is stored.
	InsertError error

	// LatestError and RangeError, if set, are returned by Latest and Range.
	LatestError error
	RangeError  error

	// Closed tracks if Close was called.
	Closed bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// Insert appends rec with the next ID.
func (m *MemoryStore) Insert(ctx context.Context, rec LogRecord) (LogRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.InsertError != nil {
		return LogRecord{}, m.InsertError
	}
	rec.ID = m.nextID
	m.nextID++
	m.records = append(m.records, rec)
	return rec, nil
}

// Latest returns the record with the highest ID.
func (m *MemoryStore) Latest(ctx context.Context) (LogRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.LatestError != nil {
		return LogRecord{}, m.LatestError
	}
	if len(m.records) == 0 {
		return LogRecord{}, ErrNotFound
	}
	return m.records[len(m.records)-1], nil
}

// Range returns records with CreatedAt in [start, end] in insertion order.
func (m *MemoryStore) Range(ctx context.Context, start, end time.Time) ([]LogRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.RangeError != nil {
		return nil, m.RangeError
	}
	var out []LogRecord
	for _, r := range m.records {
		if r.CreatedAt.Before(start) || r.CreatedAt.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Records returns a copy of everything stored.
func (m *MemoryStore) Records() []LogRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LogRecord(nil), m.records...)
}

// Close marks the store as closed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.Closed = true
	m.mu.Unlock()
	return nil
}
