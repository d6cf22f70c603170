// Package gatewaytest provides a hand-rolled in-memory gateway.Client for
// service tests. It records every outbound call and lets tests inject errors
// per method.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"conclave/internal/gateway"
	"conclave/pkg/domain"
)

type SentMessage struct {
	Channel domain.ChannelID
	ID      domain.MessageID
	Msg     gateway.OutboundMessage
}

type EditedMessage struct {
	Channel domain.ChannelID
	ID      domain.MessageID
	Msg     gateway.OutboundMessage
}

type DirectMessage struct {
	Member domain.MemberID
	Msg    gateway.OutboundMessage
}

type RoleChange struct {
	Member domain.MemberID
	Role   domain.RoleID
}

type Kick struct {
	Member domain.MemberID
	Reason string
}

// Errs holds injectable per-method errors.
type Errs struct {
	SendMessage       error
	EditMessage       error
	SendDirectMessage error
	GrantRole         error
	RevokeRole        error
	KickMember        error
	UnbanMember       error
	CreateInvite      error
	ListMembers       error
	Member            error
	AuditLog          error
}

// FakeClient implements gateway.Client.
type FakeClient struct {
	mu sync.Mutex

	MembersByID map[domain.MemberID]gateway.Member
	AuditRows   []gateway.AuditEntry

	Sent     []SentMessage
	Edited   []EditedMessage
	DMs      []DirectMessage
	Granted  []RoleChange
	Revoked  []RoleChange
	Kicked   []Kick
	Unbanned []domain.MemberID
	Invites  []gateway.Invite

	Errors Errs

	nextMessageID int
}

var _ gateway.Client = (*FakeClient)(nil)

func NewFakeClient() *FakeClient {
	return &FakeClient{
		MembersByID:   make(map[domain.MemberID]gateway.Member),
		nextMessageID: 9000000,
	}
}

// PutMember seeds or replaces a member.
func (f *FakeClient) PutMember(m gateway.Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MembersByID[m.ID] = m
}

// PutAudit seeds the audit log, newest first, as the platform returns it.
func (f *FakeClient) PutAudit(rows ...gateway.AuditEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AuditRows = append(rows, f.AuditRows...)
}

// SentMessages returns a copy of the recorded sends. Safe to call while a
// worker goroutine is still sending.
func (f *FakeClient) SentMessages() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentMessage(nil), f.Sent...)
}

func (f *FakeClient) SendMessage(_ context.Context, channel domain.ChannelID, msg gateway.OutboundMessage) (domain.MessageID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Errors.SendMessage != nil {
		return "", f.Errors.SendMessage
	}
	f.nextMessageID++
	id := domain.MessageID(fmt.Sprintf("%d", f.nextMessageID))
	f.Sent = append(f.Sent, SentMessage{Channel: channel, ID: id, Msg: msg})
	return id, nil
}

func (f *FakeClient) EditMessage(_ context.Context, channel domain.ChannelID, message domain.MessageID, msg gateway.OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Errors.EditMessage != nil {
		return f.Errors.EditMessage
	}
	f.Edited = append(f.Edited, EditedMessage{Channel: channel, ID: message, Msg: msg})
	return nil
}

func (f *FakeClient) SendDirectMessage(_ context.Context, member domain.MemberID, msg gateway.OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Errors.SendDirectMessage != nil {
		return f.Errors.SendDirectMessage
	}
	f.DMs = append(f.DMs, DirectMessage{Member: member, Msg: msg})
	return nil
}

func (f *FakeClient) GrantRole(_ context.Context, member domain.MemberID, role domain.RoleID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Errors.GrantRole != nil {
		return f.Errors.GrantRole
	}
	f.Granted = append(f.Granted, RoleChange{Member: member, Role: role})
	if m, ok := f.MembersByID[member]; ok && !m.HasRole(role) {
		m.Roles = append(m.Roles, role)
		f.MembersByID[member] = m
	}
	return nil
}

func (f *FakeClient) RevokeRole(_ context.Context, member domain.MemberID, role domain.RoleID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Errors.RevokeRole != nil {
		return f.Errors.RevokeRole
	}
	f.Revoked = append(f.Revoked, RoleChange{Member: member, Role: role})
	if m, ok := f.MembersByID[member]; ok {
		kept := m.Roles[:0]
		for _, r := range m.Roles {
			if r != role {
				kept = append(kept, r)
			}
		}
		m.Roles = kept
		f.MembersByID[member] = m
	}
	return nil
}

func (f *FakeClient) KickMember(_ context.Context, member domain.MemberID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Errors.KickMember != nil {
		return f.Errors.KickMember
	}
	f.Kicked = append(f.Kicked, Kick{Member: member, Reason: reason})
	delete(f.MembersByID, member)
	return nil
}

func (f *FakeClient) UnbanMember(_ context.Context, member domain.MemberID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Errors.UnbanMember != nil {
		return f.Errors.UnbanMember
	}
	f.Unbanned = append(f.Unbanned, member)
	return nil
}

func (f *FakeClient) CreateInvite(_ context.Context, channel domain.ChannelID, maxUses int, ttl time.Duration) (gateway.Invite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Errors.CreateInvite != nil {
		return gateway.Invite{}, f.Errors.CreateInvite
	}
	code := domain.InviteCode(uuid.NewString())
	inv := gateway.Invite{
		Code:      code,
		ChannelID: channel,
		URL:       "https://invite.test/" + code.String(),
		MaxUses:   maxUses,
		ExpiresAt: time.Now().Add(ttl),
	}
	f.Invites = append(f.Invites, inv)
	return inv, nil
}

func (f *FakeClient) ListMembers(_ context.Context) ([]gateway.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Errors.ListMembers != nil {
		return nil, f.Errors.ListMembers
	}
	out := make([]gateway.Member, 0, len(f.MembersByID))
	for _, m := range f.MembersByID {
		out = append(out, m)
	}
	return out, nil
}

func (f *FakeClient) Member(_ context.Context, id domain.MemberID) (gateway.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Errors.Member != nil {
		return gateway.Member{}, f.Errors.Member
	}
	m, ok := f.MembersByID[id]
	if !ok {
		return gateway.Member{}, fmt.Errorf("member %s not found", id)
	}
	return m, nil
}

func (f *FakeClient) AuditLog(_ context.Context, action domain.AuditActionKind, limit int) ([]gateway.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Errors.AuditLog != nil {
		return nil, f.Errors.AuditLog
	}
	out := make([]gateway.AuditEntry, 0, limit)
	for _, row := range f.AuditRows {
		if row.Action != action {
			continue
		}
		out = append(out, row)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
