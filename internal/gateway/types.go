package gateway

import (
	"time"

	"conclave/pkg/domain"
)

// Member is the engine's view of a community member.
type Member struct {
	ID          domain.MemberID
	DisplayName string
	Roles       []domain.RoleID
	IsBot       bool
}

// HasRole reports whether the member currently holds the role.
func (m Member) HasRole(role domain.RoleID) bool {
	for _, r := range m.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Message is an observed channel message.
type Message struct {
	ID         domain.MessageID
	ChannelID  domain.ChannelID
	AuthorID   domain.MemberID
	AuthorName string
	Content    string
	SentAt     time.Time
}

// Embed is a rich message block. Only the fields the engine renders.
type Embed struct {
	Title       string
	Description string
	Fields      []EmbedField
	Footer      string
}

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Button is an interactive control attached to a message. ID comes back in
// InteractionClicked events.
type Button struct {
	ID       string
	Label    string
	Disabled bool
}

// OutboundMessage is everything the engine can post or edit.
type OutboundMessage struct {
	Content string
	Embed   *Embed
	Buttons []Button
}

// Invite is a platform invite link.
type Invite struct {
	Code      domain.InviteCode
	ChannelID domain.ChannelID
	URL       string
	MaxUses   int
	ExpiresAt time.Time
}

// AuditEntry is one row of the platform audit log.
type AuditEntry struct {
	ActorID   domain.MemberID
	ActorName string
	TargetID  domain.MemberID
	Action    domain.AuditActionKind
	Reason    string
	CreatedAt time.Time
}
