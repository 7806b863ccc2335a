// Package redis implements storage.Store on Redis.
//
// Layout, under a configurable prefix:
//
//	<prefix>:seq        INCR counter for record IDs
//	<prefix>:rec:<id>   JSON-encoded record
//	<prefix>:by_id      sorted set, member id, score id
//	<prefix>:by_time    sorted set, member id, score created_at in unix microseconds
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sweeney/chamber-logger/internal/storage"
)

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Store implements storage.Store using Redis.
type Store struct {
	client *redis.Client
	prefix string
}

// Open connects to Redis and verifies the connection.
func Open(cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "chamber:log"
	}
	return &Store{client: client, prefix: prefix}, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (s *Store) recordKey(id int64) string {
	return s.key("rec", strconv.FormatInt(id, 10))
}

// Insert assigns the next sequence number and writes the record and both
// indexes in one MULTI/EXEC.
func (s *Store) Insert(ctx context.Context, rec storage.LogRecord) (storage.LogRecord, error) {
	id, err := s.client.Incr(ctx, s.key("seq")).Result()
	if err != nil {
		return storage.LogRecord{}, fmt.Errorf("next id: %w", err)
	}
	rec.ID = id

	data, err := json.Marshal(rec)
	if err != nil {
		return storage.LogRecord{}, fmt.Errorf("encode record: %w", err)
	}

	member := strconv.FormatInt(id, 10)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(id), data, 0)
		pipe.ZAdd(ctx, s.key("by_id"), redis.Z{Score: float64(id), Member: member})
		pipe.ZAdd(ctx, s.key("by_time"), redis.Z{Score: float64(rec.CreatedAt.UnixMicro()), Member: member})
		return nil
	})
	if err != nil {
		return storage.LogRecord{}, fmt.Errorf("insert record %d: %w", id, err)
	}
	return rec, nil
}

// Latest returns the record with the highest ID.
func (s *Store) Latest(ctx context.Context) (storage.LogRecord, error) {
	ids, err := s.client.ZRevRange(ctx, s.key("by_id"), 0, 0).Result()
	if err != nil {
		return storage.LogRecord{}, fmt.Errorf("latest id: %w", err)
	}
	if len(ids) == 0 {
		return storage.LogRecord{}, storage.ErrNotFound
	}

	data, err := s.client.Get(ctx, s.key("rec", ids[0])).Bytes()
	if errors.Is(err, redis.Nil) {
		return storage.LogRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.LogRecord{}, fmt.Errorf("get record %s: %w", ids[0], err)
	}

	var rec storage.LogRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return storage.LogRecord{}, fmt.Errorf("decode record %s: %w", ids[0], err)
	}
	return rec, nil
}

// Range returns records with CreatedAt in [start, end], ordered by ID.
func (s *Store) Range(ctx context.Context, start, end time.Time) ([]storage.LogRecord, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.key("by_time"), &redis.ZRangeBy{
		Min: strconv.FormatInt(start.UnixMicro(), 10),
		Max: strconv.FormatInt(end.UnixMicro(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("range ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key("rec", id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("range records: %w", err)
	}

	records := make([]storage.LogRecord, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// Index entry without a record; skip it.
			continue
		}
		var rec storage.LogRecord
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", ids[i], err)
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}
