package repository

import (
	"context"
	"fmt"
	"time"

	"GexFlow/internal/domain/models"
	"GexFlow/internal/domain/repository"
	"GexFlow/pkg/cache"
)

// mirrorTTL keeps a dead service from serving ancient levels forever.
const mirrorTTL = 10 * time.Minute

// RedisSnapshotMirror keeps the latest snapshot in Redis for out-of-process
// consumers (dashboards, chart renderers).
type RedisSnapshotMirror struct {
	cache  cache.Service
	closer interface{ Close() error }
}

func NewRedisSnapshotMirror(c *cache.RedisCache) repository.SnapshotMirror {
	return &RedisSnapshotMirror{cache: c, closer: c}
}

func (m *RedisSnapshotMirror) Publish(ctx context.Context, s *models.ExposureSnapshot) error {
	key := "snapshot:" + s.Underlying
	if err := m.cache.Set(ctx, key, models.NewSnapshotResponse(s), mirrorTTL); err != nil {
		return fmt.Errorf("mirror snapshot: %w", err)
	}
	return nil
}

func (m *RedisSnapshotMirror) Close() error {
	if m.closer != nil {
		return m.closer.Close()
	}
	return nil
}
