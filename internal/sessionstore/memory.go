package sessionstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with an in-memory map and optimistic
// locking. Snapshots older than the TTL are removed by Sweep, which the
// scheduler runs periodically.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot
	ttl       time.Duration
}

// NewMemoryStore creates an in-memory snapshot store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]*Snapshot),
		ttl:       ttl,
	}
}

func (s *MemoryStore) Create(ctx context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.snapshots[snap.ID]; exists {
		return ErrAlreadyExists
	}

	now := time.Now()
	snap.CreatedAt = now
	snap.UpdatedAt = now
	snap.Version = 1

	s.snapshots[snap.ID] = snap
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, exists := s.snapshots[id]
	if !exists {
		return nil, nil
	}
	return snap, nil
}

func (s *MemoryStore) Update(ctx context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.snapshots[snap.ID]
	if !exists {
		return ErrNotFound
	}
	if stored.Version != snap.Version {
		return ErrVersionConflict
	}

	snap.Version++
	snap.UpdatedAt = time.Now()

	s.snapshots[snap.ID] = snap
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, id)
	return nil
}

// Sweep removes snapshots that have not been updated within the TTL and
// returns how many were removed. Redis handles expiry natively; this is
// the memory driver's equivalent.
func (s *MemoryStore) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.ttl)
	removed := 0
	for id, snap := range s.snapshots {
		if snap.UpdatedAt.Before(cutoff) {
			delete(s.snapshots, id)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots = nil
	return nil
}
