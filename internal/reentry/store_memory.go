package reentry

import (
	"context"
	"sync"
	"time"

	"conclave/pkg/domain"
	"conclave/pkg/platform/sentinel"
)

// MemoryStore is a mutex-guarded in-memory re-entry store. One entry per
// member; a newer removal overwrites the previous entry.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[domain.MemberID]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[domain.MemberID]Entry),
	}
}

func (s *MemoryStore) Put(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.MemberID] = entry
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id domain.MemberID) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return Entry{}, sentinel.ErrNotFound
	}
	return entry, nil
}

func (s *MemoryStore) Delete(_ context.Context, id domain.MemberID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) PruneBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pruned := 0
	for id, entry := range s.entries {
		if entry.CreatedAt.Before(cutoff) {
			delete(s.entries, id)
			pruned++
		}
	}
	return pruned, nil
}
