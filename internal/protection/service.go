// Package protection reverses unauthorized actions against privileged
// members: kicks and bans are answered with re-entry invitations, deleted
// messages are reposted, and stripped roles are restored. Every reaction is
// gated on audit attribution; an unattributable action is left alone.
package protection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"conclave/internal/attribution"
	"conclave/internal/gateway"
	"conclave/internal/platform/metrics"
	"conclave/internal/reentry"
	"conclave/internal/securityaudit"
	"conclave/internal/snapshot"
	"conclave/pkg/domain"
	"conclave/pkg/platform/sentinel"
)

// Client is the slice of the gateway client the engine reacts with.
type Client interface {
	SendMessage(ctx context.Context, channel domain.ChannelID, msg gateway.OutboundMessage) (domain.MessageID, error)
	SendDirectMessage(ctx context.Context, member domain.MemberID, msg gateway.OutboundMessage) error
	GrantRole(ctx context.Context, member domain.MemberID, role domain.RoleID) error
	UnbanMember(ctx context.Context, member domain.MemberID, reason string) error
	CreateInvite(ctx context.Context, channel domain.ChannelID, maxUses int, ttl time.Duration) (gateway.Invite, error)
}

// RoleView answers privilege questions, including for recently departed
// members.
type RoleView interface {
	WasPrivileged(id domain.MemberID) bool
	LastKnown(id domain.MemberID) (gateway.Member, bool)
}

// Attributor resolves who performed an action.
type Attributor interface {
	Attribute(ctx context.Context, action domain.AuditActionKind, target domain.MemberID) (attribution.Record, bool)
}

// AuditPublisher records protection decisions on the security trail.
type AuditPublisher interface {
	Publish(ctx context.Context, event securityaudit.Event)
}

// Config carries the identifiers and switches the engine needs.
type Config struct {
	Privileged      domain.RoleID
	Protected       domain.RoleID
	RevertProtected bool
	InviteChannel   domain.ChannelID
	FallbackChannel domain.ChannelID
	ReentryTTL      time.Duration
}

type Service struct {
	client    Client
	view      RoleView
	attr      Attributor
	trust     *TrustedActions
	reentries reentry.Store
	snapshots snapshot.Store
	cfg       Config

	logger    *slog.Logger
	publisher AuditPublisher
	metrics   *metrics.Metrics
	clock     func() time.Time
	wait      func(ctx context.Context, d time.Duration)
}

// rolePropagationDelay is how long the platform needs to settle a rejoin
// before role mutations stick.
const rolePropagationDelay = 2 * time.Second

func sleepFor(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithWait overrides the role-propagation wait, for tests.
func WithWait(wait func(ctx context.Context, d time.Duration)) Option {
	return func(s *Service) {
		s.wait = wait
	}
}

func New(
	client Client,
	view RoleView,
	attr Attributor,
	trust *TrustedActions,
	reentries reentry.Store,
	snapshots snapshot.Store,
	cfg Config,
	opts ...Option,
) *Service {
	s := &Service{
		client:    client,
		view:      view,
		attr:      attr,
		trust:     trust,
		reentries: reentries,
		snapshots: snapshots,
		cfg:       cfg,
		logger:    slog.Default(),
		clock:     time.Now,
		wait:      sleepFor,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Trust exposes the shared registry so the coordinator can register its own
// mutations.
func (s *Service) Trust() *TrustedActions {
	return s.trust
}

// HandleMemberRemoved reacts to a member disappearing. A removal that cannot
// be attributed is a voluntary leave; an attributed removal the coordinator
// registered is a served sanction. Anything else against a privileged member
// gets a re-entry invitation.
func (s *Service) HandleMemberRemoved(ctx context.Context, ev gateway.MemberRemoved) {
	if s.trust.ConsumeRemoval(ev.MemberID) {
		s.logger.DebugContext(ctx, "removal was a registered sanction", "member", ev.MemberID.String())
		return
	}

	record, ok := s.attr.Attribute(ctx, domain.AuditMemberKick, ev.MemberID)
	if !ok {
		s.miss(domain.AuditMemberKick)
		return
	}
	if !s.view.WasPrivileged(ev.MemberID) {
		return
	}

	s.inviteBack(ctx, ev.MemberID, ev.DisplayName, record, securityaudit.EventRemovalReversed)
}

// HandleBanAdded reverses an unauthorized ban of a privileged member: the
// ban is lifted and a re-entry invitation goes out.
func (s *Service) HandleBanAdded(ctx context.Context, ev gateway.BanAdded) {
	record, ok := s.attr.Attribute(ctx, domain.AuditMemberBanAdd, ev.MemberID)
	if !ok {
		s.miss(domain.AuditMemberBanAdd)
		return
	}
	if !s.view.WasPrivileged(ev.MemberID) {
		return
	}

	if err := s.client.UnbanMember(ctx, ev.MemberID, "unauthorized ban reversed"); err != nil {
		s.logger.ErrorContext(ctx, "unban failed",
			"member", ev.MemberID.String(),
			"error", err,
		)
		return
	}

	s.inviteBack(ctx, ev.MemberID, ev.DisplayName, record, securityaudit.EventBanReversed)
}

// HandleBanRemoved records who lifted a ban. Observation only.
func (s *Service) HandleBanRemoved(ctx context.Context, ev gateway.BanRemoved) {
	record, ok := s.attr.Attribute(ctx, domain.AuditMemberBanRemove, ev.MemberID)
	if !ok {
		s.miss(domain.AuditMemberBanRemove)
		return
	}
	s.logAudit(ctx, securityaudit.Event{
		Kind:      securityaudit.EventUnbanObserved,
		Subject:   ev.MemberID,
		Actor:     record.ActorID,
		ActorName: record.ActorName,
	})
}

// HandleMemberJoined restores a returning member from their re-entry entry.
// The entry is consumed only after a successful restoration, so a failed
// grant leaves it for the next join; duplicate join events find the entry
// already gone and do nothing.
func (s *Service) HandleMemberJoined(ctx context.Context, ev gateway.MemberJoined) {
	entry, err := s.reentries.Get(ctx, ev.Member.ID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "re-entry lookup failed",
			"member", ev.Member.ID.String(),
			"error", err,
		)
		return
	}

	if entry.WasPrivileged {
		s.wait(ctx, rolePropagationDelay)
		s.trust.ExpectRoleChange(ev.Member.ID, s.cfg.Privileged)
		if err := s.client.GrantRole(ctx, ev.Member.ID, s.cfg.Privileged); err != nil {
			s.logger.ErrorContext(ctx, "privilege restoration failed, entry retained",
				"member", ev.Member.ID.String(),
				"error", err,
			)
			return
		}
	}

	if err := s.reentries.Delete(ctx, ev.Member.ID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "re-entry consume failed",
			"member", ev.Member.ID.String(),
			"error", err,
		)
	}

	if entry.WasPrivileged {
		welcome := gateway.OutboundMessage{Content: "Welcome back. Your privileges have been restored."}
		if err := s.client.SendDirectMessage(ctx, ev.Member.ID, welcome); err != nil {
			s.logger.DebugContext(ctx, "restoration DM undeliverable",
				"member", ev.Member.ID.String(),
				"error", err,
			)
		}
	}

	s.logAudit(ctx, securityaudit.Event{
		Kind:        securityaudit.EventReentryRestored,
		Subject:     ev.Member.ID,
		SubjectName: entry.DisplayName,
	})
	if s.metrics != nil {
		s.metrics.IncReentryRestored()
	}
	s.logger.InfoContext(ctx, "member restored from re-entry entry",
		"member", ev.Member.ID.String(),
		"was_privileged", entry.WasPrivileged,
	)
}

// HandleMessageDeleted reacts to a privileged member's message deleted by
// someone else: the cached snapshot is reposted, and when the content was
// never cached a notice goes out instead. Self-deletions pass silently.
func (s *Service) HandleMessageDeleted(ctx context.Context, ev gateway.MessageDeleted) {
	snap, err := s.snapshots.Get(ctx, ev.MessageID)
	cached := err == nil
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.ErrorContext(ctx, "snapshot lookup failed",
			"message", ev.MessageID.String(),
			"error", err,
		)
		return
	}

	author := ev.AuthorID
	if author == "" && cached {
		author = snap.AuthorID
	}
	if author == "" || !s.view.WasPrivileged(author) {
		return
	}

	record, ok := s.attr.Attribute(ctx, domain.AuditMessageDelete, "")
	if !ok {
		s.miss(domain.AuditMessageDelete)
		return
	}
	if record.ActorID == author {
		return
	}

	if !cached {
		s.postDeletionNotice(ctx, ev.ChannelID, author, record)
		return
	}

	msg := gateway.OutboundMessage{
		Embed: &gateway.Embed{
			Title:       fmt.Sprintf("Message by %s was deleted", snap.AuthorName),
			Description: snap.Content,
			Footer:      "Deleted by " + record.ActorName,
		},
	}
	if _, err := s.client.SendMessage(ctx, snap.ChannelID, msg); err != nil {
		s.logger.ErrorContext(ctx, "repost failed",
			"message", ev.MessageID.String(),
			"error", err,
		)
		return
	}

	// Consume the snapshot so a replayed deletion cannot repost twice.
	if err := s.snapshots.Delete(ctx, ev.MessageID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "snapshot consume failed",
			"message", ev.MessageID.String(),
			"error", err,
		)
	}

	s.logAudit(ctx, securityaudit.Event{
		Kind:        securityaudit.EventMessageReposted,
		Subject:     snap.AuthorID,
		SubjectName: snap.AuthorName,
		Actor:       record.ActorID,
		ActorName:   record.ActorName,
	})
	if s.metrics != nil {
		s.metrics.IncReversalApplied("message_deleted")
	}
}

// postDeletionNotice marks a foreign deletion whose content is gone: nothing
// to repost, but the deletion must not pass unremarked.
func (s *Service) postDeletionNotice(ctx context.Context, channel domain.ChannelID, author domain.MemberID, record attribution.Record) {
	authorName := author.String()
	if m, ok := s.view.LastKnown(author); ok && m.DisplayName != "" {
		authorName = m.DisplayName
	}

	msg := gateway.OutboundMessage{
		Content: fmt.Sprintf("A message by %s was deleted by %s, but its content was not cached and cannot be recovered.",
			authorName, record.ActorName),
	}
	if _, err := s.client.SendMessage(ctx, channel, msg); err != nil {
		s.logger.ErrorContext(ctx, "deletion notice failed",
			"channel", channel.String(),
			"error", err,
		)
		return
	}

	s.logAudit(ctx, securityaudit.Event{
		Kind:        securityaudit.EventMessageReposted,
		Subject:     author,
		SubjectName: authorName,
		Actor:       record.ActorID,
		ActorName:   record.ActorName,
		Detail:      "content not cached",
	})
}

// HandleMessagesBulkDeleted records a purge on the trail. No restoration.
func (s *Service) HandleMessagesBulkDeleted(ctx context.Context, ev gateway.MessagesBulkDeleted) {
	record, ok := s.attr.Attribute(ctx, domain.AuditMessageBulkDelete, "")
	event := securityaudit.Event{
		Kind:   securityaudit.EventBulkDeleteObserved,
		Detail: fmt.Sprintf("%d messages in channel %s", len(ev.MessageIDs), ev.ChannelID),
	}
	if ok {
		event.Actor = record.ActorID
		event.ActorName = record.ActorName
	} else {
		s.miss(domain.AuditMessageBulkDelete)
	}
	s.logAudit(ctx, event)
}

// HandleMemberRolesUpdated restores the privileged role (and, behind the
// config switch, the protected role) when an attributed actor stripped it.
// Changes the coordinator registered are consumed and left alone.
func (s *Service) HandleMemberRolesUpdated(ctx context.Context, ev gateway.MemberRolesUpdated) {
	// Clear registrations for expected additions so the registry stays small.
	for _, role := range ev.Added {
		s.trust.ConsumeRoleChange(ev.MemberID, role)
	}

	for _, role := range ev.Removed {
		if !s.guardsRole(role) {
			continue
		}
		if s.trust.ConsumeRoleChange(ev.MemberID, role) {
			continue
		}

		record, ok := s.attr.Attribute(ctx, domain.AuditMemberRoleUpdate, ev.MemberID)
		if !ok {
			s.miss(domain.AuditMemberRoleUpdate)
			continue
		}
		// Members may shed their own roles.
		if record.ActorID == ev.MemberID {
			continue
		}

		s.trust.ExpectRoleChange(ev.MemberID, role)
		if err := s.client.GrantRole(ctx, ev.MemberID, role); err != nil {
			s.logger.ErrorContext(ctx, "role restoration failed",
				"member", ev.MemberID.String(),
				"role", role.String(),
				"error", err,
			)
			continue
		}

		s.logAudit(ctx, securityaudit.Event{
			Kind:        securityaudit.EventRoleRestored,
			Subject:     ev.MemberID,
			SubjectName: ev.DisplayName,
			Actor:       record.ActorID,
			ActorName:   record.ActorName,
			Detail:      "role " + role.String(),
		})
		if s.metrics != nil {
			s.metrics.IncReversalApplied("role_removed")
		}
	}
}

func (s *Service) guardsRole(role domain.RoleID) bool {
	if role == s.cfg.Privileged {
		return true
	}
	return s.cfg.RevertProtected && s.cfg.Protected != "" && role == s.cfg.Protected
}

// inviteBack builds the re-entry path for a removed or banned member: a
// single-use invite, a stored entry, and delivery by DM with a public
// fallback.
func (s *Service) inviteBack(ctx context.Context, member domain.MemberID, displayName string, record attribution.Record, kind securityaudit.EventKind) {
	if displayName == "" {
		if m, ok := s.view.LastKnown(member); ok {
			displayName = m.DisplayName
		}
	}

	invite, err := s.client.CreateInvite(ctx, s.cfg.InviteChannel, 1, s.cfg.ReentryTTL)
	if err != nil {
		s.logger.ErrorContext(ctx, "invite creation failed",
			"member", member.String(),
			"error", err,
		)
		return
	}

	entry := reentry.Entry{
		MemberID:      member,
		DisplayName:   displayName,
		WasPrivileged: s.view.WasPrivileged(member),
		InviteCode:    invite.Code,
		InviteURL:     invite.URL,
		CreatedAt:     s.clock(),
	}
	if err := s.reentries.Put(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "re-entry store failed",
			"member", member.String(),
			"error", err,
		)
	}

	msg := gateway.OutboundMessage{
		Content: fmt.Sprintf("You were removed without authorization. Use this invite to return: %s", invite.URL),
	}
	if err := s.client.SendDirectMessage(ctx, member, msg); err != nil {
		s.logger.WarnContext(ctx, "re-entry DM failed, falling back to channel",
			"member", member.String(),
			"error", err,
		)
		fallback := gateway.OutboundMessage{
			Content: fmt.Sprintf("%s was removed without authorization. Re-entry invite: %s", displayName, invite.URL),
		}
		if _, err := s.client.SendMessage(ctx, s.cfg.FallbackChannel, fallback); err != nil {
			s.logger.ErrorContext(ctx, "re-entry fallback post failed",
				"member", member.String(),
				"error", err,
			)
		}
	}

	s.logAudit(ctx, securityaudit.Event{
		Kind:        kind,
		Subject:     member,
		SubjectName: displayName,
		Actor:       record.ActorID,
		ActorName:   record.ActorName,
	})
	if s.metrics != nil {
		s.metrics.IncReversalApplied(string(kind))
	}
	s.logger.InfoContext(ctx, "removal reversed",
		"member", member.String(),
		"actor", record.ActorID.String(),
		"kind", string(kind),
	)
}

func (s *Service) miss(action domain.AuditActionKind) {
	if s.metrics != nil {
		s.metrics.IncAttributionMiss(action.String())
	}
}

func (s *Service) logAudit(ctx context.Context, event securityaudit.Event) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, event)
}
