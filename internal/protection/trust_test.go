package protection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrustedActions(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("consume clears the registration", func(t *testing.T) {
		trust := NewTrustedActions(time.Minute, WithTrustClock(clock))
		trust.ExpectRoleChange("1", "10")

		assert.True(t, trust.ConsumeRoleChange("1", "10"))
		assert.False(t, trust.ConsumeRoleChange("1", "10"), "single use")
	})

	t.Run("unregistered actions are not trusted", func(t *testing.T) {
		trust := NewTrustedActions(time.Minute, WithTrustClock(clock))

		assert.False(t, trust.ConsumeRoleChange("1", "10"))
		assert.False(t, trust.ConsumeRemoval("1"))
	})

	t.Run("role and removal registrations are independent", func(t *testing.T) {
		trust := NewTrustedActions(time.Minute, WithTrustClock(clock))
		trust.ExpectRemoval("1")

		assert.False(t, trust.ConsumeRoleChange("1", "10"))
		assert.True(t, trust.ConsumeRemoval("1"))
	})

	t.Run("expired registration is not trusted", func(t *testing.T) {
		now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		trust := NewTrustedActions(time.Minute, WithTrustClock(func() time.Time { return now }))
		trust.ExpectRemoval("1")

		now = now.Add(2 * time.Minute)
		assert.False(t, trust.ConsumeRemoval("1"))
	})

	t.Run("prune drops only stale entries", func(t *testing.T) {
		now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		trust := NewTrustedActions(time.Minute, WithTrustClock(func() time.Time { return now }))
		trust.ExpectRemoval("1")

		now = now.Add(30 * time.Second)
		trust.ExpectRemoval("2")

		now = now.Add(45 * time.Second)
		assert.Equal(t, 1, trust.PruneExpired())
		assert.True(t, trust.ConsumeRemoval("2"))
	})
}
