// Package storage defines the durable chamber log and its backends.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the log holds no records.
var ErrNotFound = errors.New("storage: record not found")

// Store is the durable, append-only chamber log. Records are never mutated
// after Insert. Implementations must be safe for concurrent use.
type Store interface {
	// Insert appends rec, assigning its ID, and returns the stored record.
	Insert(ctx context.Context, rec LogRecord) (LogRecord, error)

	// Latest returns the most recently inserted record, or ErrNotFound.
	Latest(ctx context.Context) (LogRecord, error)

	// Range returns all records with CreatedAt in [start, end], inclusive,
	// in ascending creation order.
	Range(ctx context.Context, start, end time.Time) ([]LogRecord, error)

	Close() error
}
