package gateway

import (
	"context"
	"time"

	"conclave/pkg/domain"
)

// Client is the full outbound port to the chat platform, implemented by the
// relay adapter in gateway/rest. Service packages declare narrow
// consumer-side interfaces and are handed this client, so they stay testable
// with hand-rolled fakes.
type Client interface {
	// Messaging
	SendMessage(ctx context.Context, channel domain.ChannelID, msg OutboundMessage) (domain.MessageID, error)
	EditMessage(ctx context.Context, channel domain.ChannelID, message domain.MessageID, msg OutboundMessage) error
	SendDirectMessage(ctx context.Context, member domain.MemberID, msg OutboundMessage) error

	// Role and membership mutations
	GrantRole(ctx context.Context, member domain.MemberID, role domain.RoleID) error
	RevokeRole(ctx context.Context, member domain.MemberID, role domain.RoleID) error
	KickMember(ctx context.Context, member domain.MemberID, reason string) error
	UnbanMember(ctx context.Context, member domain.MemberID, reason string) error

	// Invites
	CreateInvite(ctx context.Context, channel domain.ChannelID, maxUses int, ttl time.Duration) (Invite, error)

	// Reads
	ListMembers(ctx context.Context) ([]Member, error)
	Member(ctx context.Context, id domain.MemberID) (Member, error)
	AuditLog(ctx context.Context, action domain.AuditActionKind, limit int) ([]AuditEntry, error)
}
