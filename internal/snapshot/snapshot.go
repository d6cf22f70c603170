// Package snapshot caches every observed message so deleted content can be
// reposted. The cache is bounded in size and time; losing an entry only
// degrades a repost, never correctness.
package snapshot

import (
	"context"
	"time"

	"conclave/pkg/domain"
)

// Snapshot is the retained copy of one observed message.
type Snapshot struct {
	MessageID  domain.MessageID `json:"message_id"`
	ChannelID  domain.ChannelID `json:"channel_id"`
	AuthorID   domain.MemberID  `json:"author_id"`
	AuthorName string           `json:"author_name"`
	Content    string           `json:"content"`
	SentAt     time.Time        `json:"sent_at"`
	CachedAt   time.Time        `json:"cached_at"`
}

// Store is the snapshot cache port. Implementations return
// sentinel.ErrNotFound for missing or expired entries.
type Store interface {
	Put(ctx context.Context, snap Snapshot) error
	Get(ctx context.Context, id domain.MessageID) (Snapshot, error)
	Delete(ctx context.Context, id domain.MessageID) error
	PruneExpired(ctx context.Context) (int, error)
}
