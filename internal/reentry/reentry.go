// Package reentry tracks single-use restoration entries for members removed
// without authorization. An entry pairs the invite sent to the member with
// what must be restored when they return.
package reentry

import (
	"context"
	"time"

	"conclave/pkg/domain"
)

// Entry is one pending re-entry. Consumed on the member's first return;
// swept after the retention window.
type Entry struct {
	MemberID      domain.MemberID
	DisplayName   string
	WasPrivileged bool
	InviteCode    domain.InviteCode
	InviteURL     string
	CreatedAt     time.Time
}

// Store is the re-entry port. Implementations return sentinel.ErrNotFound
// for absent members.
type Store interface {
	Put(ctx context.Context, entry Entry) error
	Get(ctx context.Context, id domain.MemberID) (Entry, error)
	Delete(ctx context.Context, id domain.MemberID) error
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)
}
