// Package redis wraps go-redis into the small Get/Set/Incr/Version
// surface the Query Service's read-absorption cache needs. Adapted from the
// teacher's pkg/redis/cache.go: kept the key-value cache operations
// and the KeyBuilder collaborator, dropped the set/sorted-set/pipeline
// operations and the Nexus pattern-store/executor/DLQ machinery that
// had no analog in this domain (see DESIGN.md).
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ovacore/photonic/pkg/json"
)

// Options configures the cache's underlying Redis client.
type Options struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Namespace    string
	Context      string
}

// DefaultOptions returns sensible pool defaults and the
// "photonic"/"query" key namespace/context; callers still set Addr
// (and any credentials) explicitly.
func DefaultOptions() *Options {
	return &Options{
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		Namespace:    "photonic",
		Context:      "query",
	}
}

// Cache provides the cache operations the Query Service needs on top
// of a go-redis client.
type Cache struct {
	client *redis.Client
	kb     *KeyBuilder
	log    *zap.Logger
}

// NewCache dials Redis and verifies the connection with a Ping.
func NewCache(opts *Options, log *zap.Logger) (*Cache, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if log == nil {
		log = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		MaxRetries:   opts.MaxRetries,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Cache{
		client: client,
		kb:     NewKeyBuilder(opts.Namespace, opts.Context),
		log:    log.With(zap.String("module", "cache")),
	}, nil
}

// Close closes the underlying Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Keys returns the cache's KeyBuilder, so callers build keys
// consistent with this cache's namespace/context.
func (c *Cache) Keys() *KeyBuilder {
	return c.kb
}

// Set JSON-marshals value and stores it under key with ttl.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Get reads key and JSON-unmarshals it into value. ok is false on a
// cache miss or any read/decode error, never a caller-visible error:
// a cache failure degrades to "read from the database instead".
func (c *Cache) Get(ctx context.Context, key string, value interface{}) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, value); err != nil {
		c.log.Warn("cache decode failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Incr increments the integer at key, creating it at 1 if absent.
func (c *Cache) Incr(ctx context.Context, key string) error {
	return c.client.Incr(ctx, key).Err()
}

// Version reads the integer at key, returning "0" if absent or on
// error (cache versioning degrades to "treat every read as current").
func (c *Cache) Version(ctx context.Context, key string) string {
	v, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return "0"
	}
	return v
}
