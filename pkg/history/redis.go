package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// searchPageSize is how many records a Search scans per round trip.
const searchPageSize = 100

// RedisStore implements Store using Redis. Records are stored as JSON values
// and indexed by sorted sets scored on the record timestamp, so Recent and
// Session reads are ordered range queries.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	mu     sync.RWMutex
	closed bool
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string
	// Password is the Redis password (optional).
	Password string
	// DB is the Redis database number.
	DB int
	// Prefix is the key prefix for all history keys (default: "queryforge:history:").
	Prefix string
	// RecordTTL is the record expiry duration (0 = never expire).
	RecordTTL time.Duration
	// PoolSize is the connection pool size (default: 10).
	PoolSize int
}

// NewRedisStore creates a Redis-backed history store and verifies the
// connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisStoreFromClient(client, cfg.Prefix, cfg.RecordTTL), nil
}

// NewRedisStoreFromClient creates a store from an existing client. This is
// useful for testing with miniredis.
func NewRedisStoreFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "queryforge:history:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Key helpers
func (s *RedisStore) recordKey(id string) string {
	return s.prefix + "record:" + id
}

func (s *RedisStore) byTimeKey() string {
	return s.prefix + "by-time"
}

func (s *RedisStore) sessionKey(sessionID string) string {
	return s.prefix + "session:" + sessionID
}

func (s *RedisStore) sessionsKey() string {
	return s.prefix + "sessions"
}

// Persist writes the record and updates the time and session indexes.
func (s *RedisStore) Persist(ctx context.Context, record *Record) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	score := float64(record.Timestamp.UnixNano())
	pipe := s.client.Pipeline()

	pipe.Set(ctx, s.recordKey(record.ID), data, s.ttl)
	pipe.ZAdd(ctx, s.byTimeKey(), redis.Z{Score: score, Member: record.ID})
	pipe.ZAdd(ctx, s.sessionKey(record.SessionID), redis.Z{Score: score, Member: record.ID})
	// Session index keeps the latest activity time per session.
	pipe.ZAdd(ctx, s.sessionsKey(), redis.Z{Score: score, Member: record.SessionID})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("persist record: %w", err)
	}
	return nil
}

// Recent returns the newest records across all sessions.
func (s *RedisStore) Recent(ctx context.Context, limit int) ([]*Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []*Record{}, nil
	}

	ids, err := s.client.ZRevRange(ctx, s.byTimeKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("recent records: %w", err)
	}
	return s.loadRecords(ctx, ids)
}

// Search scans records newest first and returns those whose user query or
// explanation contains the term, case-insensitively.
func (s *RedisStore) Search(ctx context.Context, term string, limit int) ([]*Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []*Record{}, nil
	}

	lowered := strings.ToLower(term)
	var out []*Record

	for offset := int64(0); ; offset += searchPageSize {
		ids, err := s.client.ZRevRange(ctx, s.byTimeKey(), offset, offset+searchPageSize-1).Result()
		if err != nil {
			return nil, fmt.Errorf("search records: %w", err)
		}
		if len(ids) == 0 {
			return out, nil
		}

		records, err := s.loadRecords(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			if matches(r, lowered) {
				out = append(out, r)
				if len(out) >= limit {
					return out, nil
				}
			}
		}
	}
}

// Sessions returns the distinct sessions seen by the store, most recently
// active first.
func (s *RedisStore) Sessions(ctx context.Context) ([]SessionInfo, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	members, err := s.client.ZRevRangeWithScores(ctx, s.sessionsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	out := make([]SessionInfo, 0, len(members))
	for _, z := range members {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		out = append(out, SessionInfo{
			ID:         id,
			LastActive: time.Unix(0, int64(z.Score)).UTC(),
		})
	}
	return out, nil
}

// Session returns the session's newest records.
func (s *RedisStore) Session(ctx context.Context, sessionID string, limit int) ([]*Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []*Record{}, nil
	}

	ids, err := s.client.ZRevRange(ctx, s.sessionKey(sessionID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("session records: %w", err)
	}
	return s.loadRecords(ctx, ids)
}

// Close releases the underlying Redis client.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

// Ping checks if the Redis connection is alive.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// loadRecords fetches records by ID, preserving order and skipping IDs whose
// value has expired out from under the index.
func (s *RedisStore) loadRecords(ctx context.Context, ids []string) ([]*Record, error) {
	if len(ids) == 0 {
		return []*Record{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recordKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}

	out := make([]*Record, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var r Record
		if err := json.Unmarshal([]byte(str), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		out = append(out, &r)
	}
	return out, nil
}
