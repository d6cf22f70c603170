package snapshot

import (
	"context"
	"sync"
	"time"

	"conclave/pkg/domain"
	"conclave/pkg/platform/sentinel"
)

// MemoryStore is the default snapshot cache: a mutex-guarded map with
// insertion-ordered eviction once the cap is reached, plus lazy and swept
// TTL expiry.
type MemoryStore struct {
	mu      sync.Mutex
	cap     int
	ttl     time.Duration
	clock   func() time.Time
	entries map[domain.MessageID]Snapshot
	order   []domain.MessageID
}

type MemoryOption func(s *MemoryStore)

// WithMemoryClock overrides the time source, for tests.
func WithMemoryClock(clock func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.clock = clock
	}
}

func NewMemoryStore(capacity int, ttl time.Duration, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		cap:     capacity,
		ttl:     ttl,
		clock:   time.Now,
		entries: make(map[domain.MessageID]Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Put(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[snap.MessageID]; ok {
		s.entries[snap.MessageID] = snap
		return nil
	}

	s.entries[snap.MessageID] = snap
	s.order = append(s.order, snap.MessageID)
	for len(s.order) > s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id domain.MessageID) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.entries[id]
	if !ok {
		return Snapshot{}, sentinel.ErrNotFound
	}
	if s.clock().Sub(snap.CachedAt) > s.ttl {
		s.remove(id)
		return Snapshot{}, sentinel.ErrNotFound
	}
	return snap, nil
}

func (s *MemoryStore) Delete(_ context.Context, id domain.MessageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return sentinel.ErrNotFound
	}
	s.remove(id)
	return nil
}

func (s *MemoryStore) PruneExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	pruned := 0
	for id, snap := range s.entries {
		if now.Sub(snap.CachedAt) > s.ttl {
			s.remove(id)
			pruned++
		}
	}
	return pruned, nil
}

// remove expects the lock to be held.
func (s *MemoryStore) remove(id domain.MessageID) {
	delete(s.entries, id)
	for i, ordered := range s.order {
		if ordered == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
