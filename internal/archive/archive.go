// Package archive exports a session's log records to a write-once CSV file
// and hands the file to best-effort publishers.
package archive

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/sweeney/chamber-logger/internal/logic"
	"github.com/sweeney/chamber-logger/internal/storage"
)

var (
	// ErrNoSession is returned when a session bound is missing.
	ErrNoSession = errors.New("archive: session has no bounds")

	// ErrNoRecords is returned when the session window holds no samples;
	// status markers alone do not make an archive and no file is created.
	ErrNoRecords = errors.New("archive: no records in session window")

	// ErrExists is returned when the session's archive file already exists.
	ErrExists = errors.New("archive: file already exists")
)

// Columns is the fixed column order of every archive.
var Columns = []string{"id", "date", "time", "temperature1", "temperature2", "humidity1", "humidity2", "status", "created_at"}

// CreatedAtLayout formats the created_at column.
const CreatedAtLayout = "2006-01-02 15:04:05"

// Publisher relays a finished archive file somewhere else.
type Publisher interface {
	Publish(ctx context.Context, path string) error
}

// Archiver writes session archives into a directory.
type Archiver struct {
	store     storage.Store
	dir       string
	publisher Publisher
	logger    zerolog.Logger
}

// New creates an Archiver. publisher may be nil.
func New(store storage.Store, dir string, publisher Publisher, logger zerolog.Logger) *Archiver {
	return &Archiver{
		store:     store,
		dir:       dir,
		publisher: publisher,
		logger:    logger.With().Str("component", "archive").Logger(),
	}
}

// FileName returns the archive name for sess, derived from its start to the second.
func FileName(sess logic.Session) string {
	return "session_" + sess.Start.Format("20060102_150405") + ".csv"
}

// Archive exports every record with created_at in the session window and
// returns the file path. A publish failure is logged and does not fail the
// archive.
func (a *Archiver) Archive(ctx context.Context, sess logic.Session) (string, error) {
	if !sess.Closed() {
		return "", ErrNoSession
	}

	records, err := a.store.Range(ctx, sess.Start, sess.End)
	if err != nil {
		return "", fmt.Errorf("query session records: %w", err)
	}
	if !hasSample(records) {
		return "", ErrNoRecords
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	path := filepath.Join(a.dir, FileName(sess))
	if err := writeFile(path, records); err != nil {
		return "", err
	}

	a.logger.Info().
		Str("path", path).
		Int("records", len(records)).
		Time("start", sess.Start).
		Time("end", sess.End).
		Msg("archived session")

	if a.publisher != nil {
		if err := a.publisher.Publish(ctx, path); err != nil {
			a.logger.Warn().Err(err).Str("path", path).Msg("archive publish failed")
		}
	}
	return path, nil
}

func hasSample(records []storage.LogRecord) bool {
	for _, r := range records {
		if !r.Marker {
			return true
		}
	}
	return false
}

// writeFile creates path exclusively; a partially written file is removed.
func writeFile(path string, records []storage.LogRecord) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%w: %s", ErrExists, path)
	}
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	if err := WriteCSV(f, records); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write archive: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

// WriteCSV writes a header row and one row per record, in order.
func WriteCSV(w io.Writer, records []storage.LogRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			strconv.FormatInt(r.ID, 10),
			r.Date,
			r.Time,
			formatFloat(r.Temperature1),
			formatFloat(r.Temperature2),
			formatFloat(r.Humidity1),
			formatFloat(r.Humidity2),
			string(r.Status),
			formatTime(r),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatTime(r storage.LogRecord) string {
	if r.CreatedAt.IsZero() {
		return ""
	}
	return r.CreatedAt.Format(CreatedAtLayout)
}
