package gateway

import "conclave/pkg/domain"

// Event is the closed union of platform events the engine reacts to.
// The dispatch loop consumes events one at a time, in arrival order.
type Event interface {
	EventType() string
}

// MemberJoined fires when a member (re)enters the community.
type MemberJoined struct {
	Member Member
}

// MemberRemoved fires when a member leaves, is kicked, or is banned. The
// platform does not say which; attribution decides.
type MemberRemoved struct {
	MemberID    domain.MemberID
	DisplayName string
}

// BanAdded fires when a ban lands. Always preceded or accompanied by a
// MemberRemoved for the same member.
type BanAdded struct {
	MemberID    domain.MemberID
	DisplayName string
}

// BanRemoved fires when a ban is lifted.
type BanRemoved struct {
	MemberID domain.MemberID
}

// MessageCreated fires for every observed message.
type MessageCreated struct {
	Message Message
}

// MessageDeleted fires for a single message deletion. The payload carries
// ids only; content comes from the snapshot cache if we saw the message.
// AuthorID may be empty when the relay could not resolve the author.
type MessageDeleted struct {
	MessageID domain.MessageID
	ChannelID domain.ChannelID
	AuthorID  domain.MemberID
}

// MessagesBulkDeleted fires for a bulk purge in one channel.
type MessagesBulkDeleted struct {
	MessageIDs []domain.MessageID
	ChannelID  domain.ChannelID
}

// MemberRolesUpdated fires when a member's role set changes. Added and
// Removed are the delta; Roles is the resulting set.
type MemberRolesUpdated struct {
	MemberID    domain.MemberID
	DisplayName string
	Added       []domain.RoleID
	Removed     []domain.RoleID
	Roles       []domain.RoleID
}

// InteractionClicked fires when a member presses a message button.
type InteractionClicked struct {
	MessageID domain.MessageID
	ChannelID domain.ChannelID
	MemberID  domain.MemberID
	ButtonID  string
}

func (MemberJoined) EventType() string        { return "member_joined" }
func (MemberRemoved) EventType() string       { return "member_removed" }
func (BanAdded) EventType() string            { return "ban_added" }
func (BanRemoved) EventType() string          { return "ban_removed" }
func (MessageCreated) EventType() string      { return "message_created" }
func (MessageDeleted) EventType() string      { return "message_deleted" }
func (MessagesBulkDeleted) EventType() string { return "messages_bulk_deleted" }
func (MemberRolesUpdated) EventType() string  { return "member_roles_updated" }
func (InteractionClicked) EventType() string  { return "interaction_clicked" }
