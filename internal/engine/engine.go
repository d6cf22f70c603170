// Package engine is the event front door: a single dispatch goroutine that
// consumes gateway events in arrival order, keeps the membership view
// current, and routes each event to the governance and protection services.
// Sequential dispatch keeps the view consistent with the event that follows.
package engine

import (
	"context"
	"log/slog"
	"time"

	"conclave/internal/ballot"
	"conclave/internal/gateway"
	"conclave/internal/platform/metrics"
	"conclave/internal/securityaudit"
	"conclave/internal/snapshot"
	"conclave/pkg/domain"
)

// Client is the slice of the gateway client the engine uses directly.
type Client interface {
	SendMessage(ctx context.Context, channel domain.ChannelID, msg gateway.OutboundMessage) (domain.MessageID, error)
	KickMember(ctx context.Context, member domain.MemberID, reason string) error
}

// RoleView is the membership view the engine keeps current and consults.
type RoleView interface {
	ApplyJoin(m gateway.Member)
	ApplyRemoval(id domain.MemberID, displayName string)
	ApplyRolesUpdate(id domain.MemberID, displayName string, current []domain.RoleID)
	Member(id domain.MemberID) (gateway.Member, bool)
	IsPrivileged(id domain.MemberID) bool
	NonPrivilegedMembers() []gateway.Member
}

// Governor is the slice of the vote coordinator commands and triggers reach.
type Governor interface {
	Open(ctx context.Context, kind domain.BallotKind, subject, initiator domain.MemberID, reason string) (ballot.Summary, error)
	CancelBySubject(ctx context.Context, subject, actor domain.MemberID) (int, error)
	CastByMessage(ctx context.Context, message domain.MessageID, voter domain.MemberID, buttonID string) error
}

// Protector receives the platform events the protection engine reacts to.
type Protector interface {
	HandleMemberJoined(ctx context.Context, ev gateway.MemberJoined)
	HandleMemberRemoved(ctx context.Context, ev gateway.MemberRemoved)
	HandleBanAdded(ctx context.Context, ev gateway.BanAdded)
	HandleBanRemoved(ctx context.Context, ev gateway.BanRemoved)
	HandleMessageDeleted(ctx context.Context, ev gateway.MessageDeleted)
	HandleMessagesBulkDeleted(ctx context.Context, ev gateway.MessagesBulkDeleted)
	HandleMemberRolesUpdated(ctx context.Context, ev gateway.MemberRolesUpdated)
}

// AuditPublisher records engine decisions on the security trail.
type AuditPublisher interface {
	Publish(ctx context.Context, event securityaudit.Event)
}

// Config carries the command surface settings.
type Config struct {
	Prefix       string
	PurgeChannel domain.ChannelID
}

type Engine struct {
	events    <-chan gateway.Event
	client    Client
	view      RoleView
	governor  Governor
	protector Protector
	snapshots snapshot.Store
	cfg       Config

	logger    *slog.Logger
	publisher AuditPublisher
	metrics   *metrics.Metrics
	clock     func() time.Time
}

type Option func(e *Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(e *Engine) {
		e.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

func New(
	events <-chan gateway.Event,
	client Client,
	view RoleView,
	governor Governor,
	protector Protector,
	snapshots snapshot.Store,
	cfg Config,
	opts ...Option,
) *Engine {
	e := &Engine{
		events:    events,
		client:    client,
		view:      view,
		governor:  governor,
		protector: protector,
		snapshots: snapshots,
		cfg:       cfg,
		logger:    slog.Default(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run consumes events until the context is canceled or the channel closes.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-e.events:
			if !ok {
				return nil
			}
			e.Dispatch(ctx, ev)
		}
	}
}

// Dispatch routes one event. The membership view is updated before the
// services run so they see the state the event produced.
func (e *Engine) Dispatch(ctx context.Context, event gateway.Event) {
	if e.metrics != nil {
		e.metrics.IncEventProcessed(event.EventType())
	}

	switch ev := event.(type) {
	case gateway.MemberJoined:
		e.view.ApplyJoin(ev.Member)
		e.protector.HandleMemberJoined(ctx, ev)

	case gateway.MemberRemoved:
		e.view.ApplyRemoval(ev.MemberID, ev.DisplayName)
		e.protector.HandleMemberRemoved(ctx, ev)

	case gateway.BanAdded:
		e.protector.HandleBanAdded(ctx, ev)

	case gateway.BanRemoved:
		e.protector.HandleBanRemoved(ctx, ev)

	case gateway.MessageCreated:
		e.handleMessage(ctx, ev.Message)

	case gateway.MessageDeleted:
		e.protector.HandleMessageDeleted(ctx, ev)

	case gateway.MessagesBulkDeleted:
		e.protector.HandleMessagesBulkDeleted(ctx, ev)

	case gateway.MemberRolesUpdated:
		e.view.ApplyRolesUpdate(ev.MemberID, ev.DisplayName, ev.Roles)
		e.protector.HandleMemberRolesUpdated(ctx, ev)

	case gateway.InteractionClicked:
		e.handleInteraction(ctx, ev)

	default:
		e.logger.DebugContext(ctx, "unhandled event", "type", event.EventType())
	}
}

func (e *Engine) handleInteraction(ctx context.Context, ev gateway.InteractionClicked) {
	err := e.governor.CastByMessage(ctx, ev.MessageID, ev.MemberID, ev.ButtonID)
	if err != nil {
		// Presses on resolved ballots, foreign buttons, and non-voters all
		// land here; none of them is actionable.
		e.logger.DebugContext(ctx, "interaction not cast",
			"message", ev.MessageID.String(),
			"member", ev.MemberID.String(),
			"error", err,
		)
	}
}

func (e *Engine) logAudit(ctx context.Context, event securityaudit.Event) {
	if e.publisher == nil {
		return
	}
	e.publisher.Publish(ctx, event)
}
