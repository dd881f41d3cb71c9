package gex

import (
	"sync"
	"sync/atomic"

	"GexFlow/internal/domain/models"
)

// SnapshotStore holds the single current ExposureSnapshot. Publication swaps
// one immutable snapshot for another, so readers are lock-free and can never
// observe a mix of two runs. Writers serialize on a mutex that also enforces
// ComputedAt monotonicity: a late publish of an older snapshot is rejected.
type SnapshotStore struct {
	mu  sync.Mutex // writers only
	cur atomic.Value
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Publish installs a new snapshot. Returns false when snap is older than the
// currently published one (or nil), leaving the store unchanged.
func (s *SnapshotStore) Publish(snap *models.ExposureSnapshot) bool {
	if snap == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.cur.Load().(*models.ExposureSnapshot); ok {
		if snap.ComputedAt.Before(prev.ComputedAt) {
			return false
		}
	}
	s.cur.Store(snap)
	return true
}

// Current returns the latest published snapshot. The result must be treated
// as read-only. ok is false until the first successful publish.
func (s *SnapshotStore) Current() (*models.ExposureSnapshot, bool) {
	snap, ok := s.cur.Load().(*models.ExposureSnapshot)
	return snap, ok
}
