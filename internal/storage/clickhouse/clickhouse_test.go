package clickhouse

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/chamber-logger/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// fakeRow fills Scan destinations from fixed values, in column order.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = r.values[i].(int64)
		case *string:
			*p = r.values[i].(string)
		case **float64:
			*p, _ = r.values[i].(*float64)
		case *bool:
			*p = r.values[i].(bool)
		case *time.Time:
			*p = r.values[i].(time.Time)
		case *int32:
			*p = r.values[i].(int32)
		default:
			return errors.New("unsupported destination")
		}
	}
	return nil
}

func TestScanRestoresOffset(t *testing.T) {
	temp := 26.5
	created := time.Date(2026, 5, 1, 2, 30, 0, 0, time.UTC)
	row := fakeRow{values: []any{
		int64(42), "2026-05-01", "09:30:00",
		&temp, (*float64)(nil), (*float64)(nil), (*float64)(nil),
		"ON", false, created, int32(7 * 3600),
	}}

	rec, err := scan(row)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if rec.ID != 42 || rec.Status != storage.StatusOn || rec.Marker {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Temperature1 == nil || *rec.Temperature1 != 26.5 {
		t.Errorf("Temperature1: got %v", rec.Temperature1)
	}
	if rec.Humidity1 != nil {
		t.Errorf("Humidity1: expected nil")
	}
	if !rec.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt: got %v, want %v", rec.CreatedAt, created)
	}
	if got := rec.CreatedAt.Format("15:04"); got != "09:30" {
		t.Errorf("CreatedAt not in stored offset: %s", got)
	}
}

func TestScanError(t *testing.T) {
	if _, err := scan(fakeRow{err: errors.New("boom")}); err == nil {
		t.Error("expected error")
	}
}

func TestCreatedAtKeepsMicroseconds(t *testing.T) {
	if !strings.Contains(createTable, "created_at   DateTime64(6)") {
		t.Error("created_at must keep microseconds to match the other stores")
	}
}
