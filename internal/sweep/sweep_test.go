package sweep

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conclave/internal/protection"
	"conclave/internal/reentry"
	"conclave/internal/roles"
	"conclave/internal/snapshot"
	"conclave/pkg/domain"
	"conclave/pkg/platform/sentinel"
)

type fakeCoordinator struct {
	swept int
}

func (f *fakeCoordinator) SweepExpired(context.Context) int {
	f.swept++
	return 0
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	snapshots := snapshot.NewMemoryStore(10, time.Hour, snapshot.WithMemoryClock(clock))
	reentries := reentry.NewMemoryStore()
	trust := protection.NewTrustedActions(time.Minute, protection.WithTrustClock(clock))
	view := roles.New(nil, "10", roles.WithClock(clock))
	coordinator := &fakeCoordinator{}

	require.NoError(t, snapshots.Put(ctx, snapshot.Snapshot{
		MessageID: "1",
		CachedAt:  now.Add(-2 * time.Hour),
	}))
	require.NoError(t, snapshots.Put(ctx, snapshot.Snapshot{
		MessageID: "2",
		CachedAt:  now,
	}))
	require.NoError(t, reentries.Put(ctx, reentry.Entry{
		MemberID:  "1",
		CreatedAt: now.Add(-25 * time.Hour),
	}))
	require.NoError(t, reentries.Put(ctx, reentry.Entry{
		MemberID:  "2",
		CreatedAt: now.Add(-time.Hour),
	}))
	trust.ExpectRemoval("1")

	now = now.Add(2 * time.Minute)

	s := New(coordinator, snapshots, reentries, trust, view, 24*time.Hour, WithClock(clock))
	s.Sweep(ctx)

	t.Run("expired snapshot pruned, fresh one kept", func(t *testing.T) {
		_, err := snapshots.Get(ctx, "1")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		_, err = snapshots.Get(ctx, "2")
		assert.NoError(t, err)
	})

	t.Run("stale re-entry entry pruned", func(t *testing.T) {
		_, err := reentries.Get(ctx, "1")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		_, err = reentries.Get(ctx, domain.MemberID("2"))
		assert.NoError(t, err)
	})

	t.Run("expired trust registration dropped", func(t *testing.T) {
		assert.False(t, trust.ConsumeRemoval("1"))
	})

	t.Run("coordinator sweep invoked", func(t *testing.T) {
		assert.Equal(t, 1, coordinator.swept)
	})
}
