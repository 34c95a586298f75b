package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kobeya/studypartner/internal/storage"
)

// Tier is a slower, shared cache level behind the memory cache.
type Tier interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vector []float32) error
}

// SQLiteTier keeps embeddings in the application database so they survive
// restarts.
type SQLiteTier struct {
	db    *storage.DB
	model string
	ttl   time.Duration
	now   func() time.Time
}

// NewSQLiteTier returns a Tier over the embedding_cache table.
func NewSQLiteTier(db *storage.DB, model string, ttl time.Duration, now func() time.Time) *SQLiteTier {
	if now == nil {
		now = time.Now
	}
	return &SQLiteTier{db: db, model: model, ttl: ttl, now: now}
}

func (t *SQLiteTier) Get(ctx context.Context, key string) ([]float32, bool, error) {
	return t.db.GetEmbedding(ctx, key, t.now())
}

func (t *SQLiteTier) Set(ctx context.Context, key string, vector []float32) error {
	return t.db.SetEmbedding(ctx, key, t.model, vector, t.now(), t.ttl)
}

// Cleanup deletes expired rows.
func (t *SQLiteTier) Cleanup(ctx context.Context) (int64, error) {
	return t.db.DeleteExpiredEmbeddings(ctx, t.now())
}

// RedisOptions configures a RedisTier.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// RedisTier shares embeddings between instances through Redis.
type RedisTier struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisTier connects to Redis and verifies the connection.
func NewRedisTier(ctx context.Context, opts RedisOptions) (*RedisTier, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return NewRedisTierWithClient(rdb, opts.KeyPrefix, opts.TTL), nil
}

// NewRedisTierWithClient wraps an existing client.
func NewRedisTierWithClient(rdb *redis.Client, prefix string, ttl time.Duration) *RedisTier {
	if prefix == "" {
		prefix = "studypartner:embedding:"
	}
	return &RedisTier{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (t *RedisTier) Get(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := t.rdb.Get(ctx, t.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, false, fmt.Errorf("redis entry %s: %w", key, err)
	}
	return vec, true, nil
}

func (t *RedisTier) Set(ctx context.Context, key string, vector []float32) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return err
	}
	if err := t.rdb.Set(ctx, t.prefix+key, data, t.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis client.
func (t *RedisTier) Close() error {
	return t.rdb.Close()
}
