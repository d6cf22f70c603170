package reentry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"conclave/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *MemoryStore
	now   time.Time
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (s *MemoryStoreSuite) TestLifecycle() {
	ctx := context.Background()
	entry := Entry{
		MemberID:      "1",
		DisplayName:   "ada",
		WasPrivileged: true,
		InviteCode:    "abc123",
		InviteURL:     "https://invite.test/abc123",
		CreatedAt:     s.now,
	}

	s.Run("get before put", func() {
		_, err := s.store.Get(ctx, "1")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Require().NoError(s.store.Put(ctx, entry))

	s.Run("get returns entry", func() {
		got, err := s.store.Get(ctx, "1")
		s.Require().NoError(err)
		s.Equal(entry, got)
	})

	s.Run("newer removal overwrites", func() {
		later := entry
		later.CreatedAt = s.now.Add(time.Hour)
		later.WasPrivileged = false
		s.Require().NoError(s.store.Put(ctx, later))

		got, err := s.store.Get(ctx, "1")
		s.Require().NoError(err)
		s.False(got.WasPrivileged)
	})

	s.Run("delete consumes exactly once", func() {
		s.Require().NoError(s.store.Delete(ctx, "1"))
		s.ErrorIs(s.store.Delete(ctx, "1"), sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestPruneBefore() {
	ctx := context.Background()

	old := Entry{MemberID: "1", CreatedAt: s.now.Add(-25 * time.Hour)}
	fresh := Entry{MemberID: "2", CreatedAt: s.now.Add(-time.Hour)}
	s.Require().NoError(s.store.Put(ctx, old))
	s.Require().NoError(s.store.Put(ctx, fresh))

	pruned, err := s.store.PruneBefore(ctx, s.now.Add(-24*time.Hour))
	s.Require().NoError(err)
	s.Equal(1, pruned)

	_, err = s.store.Get(ctx, "1")
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.Get(ctx, "2")
	s.NoError(err)
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}
