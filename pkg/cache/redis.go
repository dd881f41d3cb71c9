package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements Service using Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// RedisOption configures RedisCache.
type RedisOption func(*redisConfig)

type redisConfig struct {
	addr     string
	password string
	db       int
	prefix   string
}

// WithAddr sets the Redis address.
func WithAddr(addr string) RedisOption {
	return func(c *redisConfig) {
		if addr != "" {
			c.addr = addr
		}
	}
}

// WithCredentials sets password and database.
func WithCredentials(password string, db int) RedisOption {
	return func(c *redisConfig) {
		c.password = password
		c.db = db
	}
}

// WithPrefix sets the key namespace.
func WithPrefix(prefix string) RedisOption {
	return func(c *redisConfig) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// NewRedisCache creates a Redis cache client and pings it.
func NewRedisCache(opts ...RedisOption) (*RedisCache, error) {
	cfg := &redisConfig{
		addr:   "localhost:6379",
		prefix: "gexflow",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.addr,
		Password: cfg.password,
		DB:       cfg.db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisCache{client: client, prefix: cfg.prefix}, nil
}

// Client returns the underlying redis client.
func (c *RedisCache) Client() *redis.Client { return c.client }

// Close closes the Redis connection.
func (c *RedisCache) Close() error { return c.client.Close() }

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		var err error
		data, err = json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal value: %w", err)
		}
	}
	return c.client.Set(ctx, c.wrapKey(key), data, expiration).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	b, err := c.client.Get(ctx, c.wrapKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}

	switch d := dest.(type) {
	case *[]byte:
		*d = b
		return nil
	case *string:
		*d = string(b)
		return nil
	default:
		return json.Unmarshal(b, dest)
	}
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	wrapped := make([]string, len(keys))
	for i, k := range keys {
		wrapped[i] = c.wrapKey(k)
	}
	return c.client.Del(ctx, wrapped...).Err()
}

func (c *RedisCache) wrapKey(key string) string {
	return c.prefix + ":" + key
}
