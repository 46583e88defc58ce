package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "switchboard:history:"

// RedisStore implements Store on Redis for multi-node deployments: records
// are stored as JSON values with an append-order index list per record kind.
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
	// Prefix is the key prefix (default: "switchboard:history:").
	Prefix string
	// RecordTTL is the per-record expiry (0 = never expire).
	RecordTTL time.Duration
	// PoolSize is the connection pool size (default: 10).
	PoolSize int
}

// NewRedisStore connects to Redis and verifies the connection.
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

// NewRedisStoreFromClient wraps an existing client. Useful for testing with
// miniredis.
func NewRedisStoreFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) selectionKey(id string) string { return s.prefix + "selection:" + id }
func (s *RedisStore) collabKey(id string) string    { return s.prefix + "collaboration:" + id }
func (s *RedisStore) selectionIndex() string        { return s.prefix + "selections" }
func (s *RedisStore) collabIndex() string           { return s.prefix + "collaborations" }

// Ping verifies the backing connection, for use as a health check.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) guard() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func (s *RedisStore) AppendSelection(ctx context.Context, record *SelectionRecord) error {
	if err := s.guard(); err != nil {
		return err
	}
	stamp(&record.ID, &record.CreatedAt)
	return s.append(ctx, s.selectionKey(record.ID), s.selectionIndex(), record.ID, record)
}

func (s *RedisStore) AppendCollaboration(ctx context.Context, record *CollaborationRecord) error {
	if err := s.guard(); err != nil {
		return err
	}
	stamp(&record.ID, &record.CreatedAt)
	return s.append(ctx, s.collabKey(record.ID), s.collabIndex(), record.ID, record)
}

func (s *RedisStore) append(ctx context.Context, key, indexKey, id string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, s.ttl)
	pipe.RPush(ctx, indexKey, id)
	if s.ttl > 0 {
		pipe.Expire(ctx, indexKey, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

func (s *RedisStore) GetSelection(ctx context.Context, id string) (*SelectionRecord, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	var record SelectionRecord
	if err := s.get(ctx, s.selectionKey(id), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *RedisStore) GetCollaboration(ctx context.Context, id string) (*CollaborationRecord, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	var record CollaborationRecord
	if err := s.get(ctx, s.collabKey(id), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *RedisStore) get(ctx context.Context, key string, out any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrRecordNotFound
	}
	if err != nil {
		return fmt.Errorf("load record: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}
	return nil
}

func (s *RedisStore) ListSelections(ctx context.Context, opts ListOptions) ([]*SelectionRecord, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	ids, err := s.listIDs(ctx, s.selectionIndex(), opts)
	if err != nil {
		return nil, err
	}
	out := make([]*SelectionRecord, 0, len(ids))
	for _, id := range ids {
		var record SelectionRecord
		if err := s.get(ctx, s.selectionKey(id), &record); err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				continue // record expired after its index entry
			}
			return nil, err
		}
		out = append(out, &record)
	}
	return out, nil
}

func (s *RedisStore) ListCollaborations(ctx context.Context, opts ListOptions) ([]*CollaborationRecord, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	ids, err := s.listIDs(ctx, s.collabIndex(), opts)
	if err != nil {
		return nil, err
	}
	out := make([]*CollaborationRecord, 0, len(ids))
	for _, id := range ids {
		var record CollaborationRecord
		if err := s.get(ctx, s.collabKey(id), &record); err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, &record)
	}
	return out, nil
}

func (s *RedisStore) listIDs(ctx context.Context, indexKey string, opts ListOptions) ([]string, error) {
	stop := int64(-1)
	if opts.Limit > 0 {
		stop = int64(opts.Offset + opts.Limit - 1)
	}
	ids, err := s.client.LRange(ctx, indexKey, int64(opts.Offset), stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return ids, nil
}

func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
