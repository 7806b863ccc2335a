// Package clickhouse implements storage.Store on ClickHouse.
package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/bwmarrin/snowflake"
	"github.com/sweeney/chamber-logger/internal/storage"
)

// Config holds ClickHouse connection settings.
type Config struct {
	Addr     string
	Database string
	Username string
	Password string
	// NodeID distinguishes writers sharing one table when generating IDs.
	NodeID int64
}

const createTable = `
CREATE TABLE IF NOT EXISTS chamber_logs (
	id           Int64,
	date         String,
	time         String,
	temperature1 Nullable(Float64),
	humidity1    Nullable(Float64),
	temperature2 Nullable(Float64),
	humidity2    Nullable(Float64),
	status       LowCardinality(String),
	marker       Bool,
	created_at   DateTime64(6),
	tz_offset    Int32
) ENGINE = MergeTree()
ORDER BY id
`

const selectColumns = `id, date, time, temperature1, humidity1, temperature2, humidity2, status, marker, created_at, tz_offset`

// Store implements storage.Store using ClickHouse. ClickHouse has no
// auto-increment, so IDs come from a snowflake node and are monotonic per
// process.
type Store struct {
	conn driver.Conn
	node *snowflake.Node
}

// Open connects to ClickHouse and creates the table if needed.
func Open(cfg Config) (*Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	if err := conn.Exec(ctx, createTable); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("snowflake node: %w", err)
	}

	return &Store{conn: conn, node: node}, nil
}

// Close closes the connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Insert writes one row.
func (s *Store) Insert(ctx context.Context, rec storage.LogRecord) (storage.LogRecord, error) {
	rec.ID = s.node.Generate().Int64()
	_, offset := rec.CreatedAt.Zone()

	err := s.conn.Exec(ctx, `
		INSERT INTO chamber_logs (`+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.Date,
		rec.Time,
		rec.Temperature1,
		rec.Humidity1,
		rec.Temperature2,
		rec.Humidity2,
		string(rec.Status),
		rec.Marker,
		rec.CreatedAt.UTC(),
		int32(offset),
	)
	if err != nil {
		return storage.LogRecord{}, fmt.Errorf("failed to insert log record: %w", err)
	}
	return rec, nil
}

// Latest returns the row with the highest ID.
func (s *Store) Latest(ctx context.Context) (storage.LogRecord, error) {
	row := s.conn.QueryRow(ctx, `SELECT `+selectColumns+` FROM chamber_logs ORDER BY id DESC LIMIT 1`)
	rec, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.LogRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.LogRecord{}, fmt.Errorf("failed to query latest record: %w", err)
	}
	return rec, nil
}

// Range returns rows with created_at in [start, end], ordered by ID.
func (s *Store) Range(ctx context.Context, start, end time.Time) ([]storage.LogRecord, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+selectColumns+`
		FROM chamber_logs
		WHERE created_at >= ? AND created_at <= ?
		ORDER BY id ASC
	`, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []storage.LogRecord
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (storage.LogRecord, error) {
	var (
		rec       storage.LogRecord
		status    string
		createdAt time.Time
		offset    int32
	)
	err := row.Scan(
		&rec.ID,
		&rec.Date,
		&rec.Time,
		&rec.Temperature1,
		&rec.Humidity1,
		&rec.Temperature2,
		&rec.Humidity2,
		&status,
		&rec.Marker,
		&createdAt,
		&offset,
	)
	if err != nil {
		return storage.LogRecord{}, err
	}
	rec.Status = storage.Status(status)
	rec.CreatedAt = createdAt.In(time.FixedZone("", int(offset)))
	return rec, nil
}
