// Package attribution answers "who did this" by correlating a just-observed
// event with the platform audit log. Attribution is best effort: a small page
// is fetched once, entries older than the freshness window are distrusted,
// and any query failure yields no actor. No retries.
package attribution

import (
	"context"
	"log/slog"
	"time"

	"conclave/internal/gateway"
	"conclave/pkg/domain"
)

// AuditReader is the slice of the gateway client the attributor needs.
type AuditReader interface {
	AuditLog(ctx context.Context, action domain.AuditActionKind, limit int) ([]gateway.AuditEntry, error)
}

// Record is a confident attribution of an action to an actor.
type Record struct {
	ActorID   domain.MemberID
	ActorName string
	Action    domain.AuditActionKind
	Reason    string
	CreatedAt time.Time
}

type Attributor struct {
	reader    AuditReader
	freshness time.Duration
	pageSize  int
	logger    *slog.Logger
	clock     func() time.Time
}

type Option func(a *Attributor)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Attributor) {
		a.logger = logger
	}
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(a *Attributor) {
		a.clock = clock
	}
}

func New(reader AuditReader, freshness time.Duration, pageSize int, opts ...Option) *Attributor {
	a := &Attributor{
		reader:    reader,
		freshness: freshness,
		pageSize:  pageSize,
		logger:    slog.Default(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Attribute finds the actor behind an action against target. The second
// return is false when no confident attribution exists, which callers must
// treat as "do not react".
//
// Message deletion entries aggregate per channel, so the target comparison
// is skipped for those kinds. A zero target also skips the comparison.
func (a *Attributor) Attribute(ctx context.Context, action domain.AuditActionKind, target domain.MemberID) (Record, bool) {
	entries, err := a.reader.AuditLog(ctx, action, a.pageSize)
	if err != nil {
		a.logger.WarnContext(ctx, "audit log query failed, treating as unattributed",
			"action", action.String(),
			"error", err,
		)
		return Record{}, false
	}

	if len(entries) == 0 {
		return Record{}, false
	}

	// Only the newest entry can explain the event just observed. Anything
	// behind it predates the action, so a stale or mismatching head means
	// no attribution, never a walk down the page.
	e := entries[0]
	if a.clock().Sub(e.CreatedAt) > a.freshness {
		return Record{}, false
	}
	if !action.TargetCheckSkipped() && target != "" && e.TargetID != target {
		return Record{}, false
	}
	return Record{
		ActorID:   e.ActorID,
		ActorName: e.ActorName,
		Action:    action,
		Reason:    e.Reason,
		CreatedAt: e.CreatedAt,
	}, true
}
