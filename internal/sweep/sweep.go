// Package sweep runs the periodic housekeeping pass: expired snapshots and
// re-entry entries are pruned, stale trusted-action registrations dropped,
// departed-member memory trimmed, and any ballot whose deadline callback was
// lost gets force-resolved.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Coordinator force-resolves ballots past their deadline.
type Coordinator interface {
	SweepExpired(ctx context.Context) int
}

// SnapshotStore prunes expired message snapshots.
type SnapshotStore interface {
	PruneExpired(ctx context.Context) (int, error)
}

// ReentryStore prunes re-entry entries older than the cutoff.
type ReentryStore interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// TrustRegistry prunes expired trusted-action registrations.
type TrustRegistry interface {
	PruneExpired() int
}

// RoleView prunes departed-member memory.
type RoleView interface {
	PruneDeparted(cutoff time.Time) int
}

type Sweeper struct {
	coordinator Coordinator
	snapshots   SnapshotStore
	reentries   ReentryStore
	trust       TrustRegistry
	view        RoleView
	reentryTTL  time.Duration

	logger *slog.Logger
	clock  func() time.Time
	cron   *cron.Cron
}

type Option func(s *Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Sweeper) {
		s.clock = clock
	}
}

func New(
	coordinator Coordinator,
	snapshots SnapshotStore,
	reentries ReentryStore,
	trust TrustRegistry,
	view RoleView,
	reentryTTL time.Duration,
	opts ...Option,
) *Sweeper {
	s := &Sweeper{
		coordinator: coordinator,
		snapshots:   snapshots,
		reentries:   reentries,
		trust:       trust,
		view:        view,
		reentryTTL:  reentryTTL,
		logger:      slog.Default(),
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start schedules the sweep on the given cron spec and runs until the
// context is canceled.
func (s *Sweeper) Start(ctx context.Context, spec string) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(spec, func() { s.Sweep(ctx) }); err != nil {
		return err
	}
	s.cron.Start()

	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}

// Sweep runs one housekeeping pass. Each stage is independent; a failing
// stage is logged and the rest still run.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := s.clock().Add(-s.reentryTTL)

	snapshots, err := s.snapshots.PruneExpired(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "snapshot prune failed", "error", err)
	}

	reentries, err := s.reentries.PruneBefore(ctx, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "re-entry prune failed", "error", err)
	}

	trusted := s.trust.PruneExpired()
	departed := s.view.PruneDeparted(cutoff)
	ballots := s.coordinator.SweepExpired(ctx)

	if snapshots+reentries+trusted+departed+ballots > 0 {
		s.logger.InfoContext(ctx, "sweep completed",
			"snapshots_pruned", snapshots,
			"reentries_pruned", reentries,
			"trusted_pruned", trusted,
			"departed_pruned", departed,
			"ballots_resolved", ballots,
		)
	}
}
