package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type memoryItem struct {
	value    interface{}
	expireAt time.Time
}

func (m *memoryItem) expired() bool {
	return time.Now().After(m.expireAt)
}

// MemoryCache implements Service with an in-process map and lazy expiry plus
// a periodic sweep.
type MemoryCache struct {
	mu      sync.RWMutex
	data    map[string]*memoryItem
	maxSize int
	stop    chan struct{}
	once    sync.Once
}

// MemoryOption configures MemoryCache.
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	maxSize         int
	cleanupInterval time.Duration
}

// WithMaxSize caps the number of stored entries.
func WithMaxSize(n int) MemoryOption {
	return func(c *memoryConfig) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithCleanupInterval sets the expired-entry sweep period.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(c *memoryConfig) {
		if d > 0 {
			c.cleanupInterval = d
		}
	}
}

// NewMemoryCache creates an in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &memoryConfig{
		maxSize:         10000,
		cleanupInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		data:    make(map[string]*memoryItem),
		maxSize: cfg.maxSize,
		stop:    make(chan struct{}),
	}
	go mc.sweep(cfg.cleanupInterval)
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if len(mc.data) >= mc.maxSize {
		mc.evictExpiredLocked()
		if len(mc.data) >= mc.maxSize {
			return fmt.Errorf("memory cache full (%d entries)", mc.maxSize)
		}
	}

	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	mc.data[key] = &memoryItem{value: value, expireAt: time.Now().Add(expiration)}
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.RLock()
	item, ok := mc.data[key]
	mc.mu.RUnlock()
	if !ok || item.expired() {
		return ErrCacheMiss
	}
	return assign(item.value, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, k := range keys {
		delete(mc.data, k)
	}
	return nil
}

// Close stops the background sweep.
func (mc *MemoryCache) Close() {
	mc.once.Do(func() { close(mc.stop) })
}

func (mc *MemoryCache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-mc.stop:
			return
		case <-ticker.C:
			mc.mu.Lock()
			mc.evictExpiredLocked()
			mc.mu.Unlock()
		}
	}
}

func (mc *MemoryCache) evictExpiredLocked() {
	for k, item := range mc.data {
		if item.expired() {
			delete(mc.data, k)
		}
	}
}

// assign copies a cached value into dest, going through JSON for mismatched
// types.
func assign(value, dest interface{}) error {
	switch d := dest.(type) {
	case *string:
		if s, ok := value.(string); ok {
			*d = s
			return nil
		}
	case *float64:
		if f, ok := value.(float64); ok {
			*d = f
			return nil
		}
	case *[]byte:
		if b, ok := value.([]byte); ok {
			*d = b
			return nil
		}
	}

	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cached value: %w", err)
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return fmt.Errorf("unmarshal cached value: %w", err)
	}
	return nil
}
