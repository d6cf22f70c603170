package protection

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"conclave/internal/attribution"
	"conclave/internal/gateway"
	"conclave/internal/gateway/gatewaytest"
	"conclave/internal/reentry"
	"conclave/internal/roles"
	"conclave/internal/securityaudit"
	"conclave/internal/snapshot"
	"conclave/pkg/domain"
)

const (
	privilegedRole  = domain.RoleID("10")
	protectedRole   = domain.RoleID("13")
	inviteChannel   = domain.ChannelID("500")
	fallbackChannel = domain.ChannelID("501")
)

// stubAttributor returns a fixed attribution result.
type stubAttributor struct {
	record attribution.Record
	ok     bool
}

func (a *stubAttributor) Attribute(context.Context, domain.AuditActionKind, domain.MemberID) (attribution.Record, bool) {
	return a.record, a.ok
}

func attributed(actor domain.MemberID) *stubAttributor {
	return &stubAttributor{
		record: attribution.Record{ActorID: actor, ActorName: "actor-" + string(actor)},
		ok:     true,
	}
}

func unattributed() *stubAttributor {
	return &stubAttributor{}
}

type ProtectionSuite struct {
	suite.Suite
	client    *gatewaytest.FakeClient
	view      *roles.Service
	attr      *stubAttributor
	trust     *TrustedActions
	reentries *reentry.MemoryStore
	snapshots *snapshot.MemoryStore
	now       time.Time
	waits     []time.Duration
	svc       *Service
}

func (s *ProtectionSuite) SetupTest() {
	s.client = gatewaytest.NewFakeClient()
	s.view = roles.New(s.client, privilegedRole)
	s.attr = unattributed()
	s.trust = NewTrustedActions(time.Minute)
	s.reentries = reentry.NewMemoryStore()
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.waits = nil
	s.snapshots = snapshot.NewMemoryStore(100, time.Hour, snapshot.WithMemoryClock(func() time.Time { return s.now }))
	s.rebuild()
}

func (s *ProtectionSuite) rebuild() {
	s.svc = New(
		s.client, s.view, s.attr, s.trust, s.reentries, s.snapshots,
		Config{
			Privileged:      privilegedRole,
			Protected:       protectedRole,
			RevertProtected: false,
			InviteChannel:   inviteChannel,
			FallbackChannel: fallbackChannel,
			ReentryTTL:      24 * time.Hour,
		},
		WithClock(func() time.Time { return s.now }),
		WithWait(func(_ context.Context, d time.Duration) { s.waits = append(s.waits, d) }),
	)
}

func (s *ProtectionSuite) setAttr(attr *stubAttributor) {
	s.attr = attr
	s.rebuild()
}

// removePrivileged seeds a privileged member and plays their removal through
// the view, as the dispatch loop does before protection runs.
func (s *ProtectionSuite) removePrivileged(id domain.MemberID, name string) {
	s.view.ApplyJoin(gateway.Member{ID: id, DisplayName: name, Roles: []domain.RoleID{privilegedRole}})
	s.view.ApplyRemoval(id, name)
}

func (s *ProtectionSuite) TestMemberRemoved() {
	ctx := context.Background()

	s.Run("unattributed removal is a voluntary leave", func() {
		s.SetupTest()
		s.removePrivileged("1", "ada")

		s.svc.HandleMemberRemoved(ctx, gateway.MemberRemoved{MemberID: "1", DisplayName: "ada"})

		s.Empty(s.client.Invites)
		s.Empty(s.client.DMs)
	})

	s.Run("registered sanction removal is left alone", func() {
		s.SetupTest()
		s.setAttr(attributed("99"))
		s.removePrivileged("1", "ada")
		s.trust.ExpectRemoval("1")

		s.svc.HandleMemberRemoved(ctx, gateway.MemberRemoved{MemberID: "1", DisplayName: "ada"})

		s.Empty(s.client.Invites)
	})

	s.Run("attributed removal of privileged member reversed", func() {
		s.SetupTest()
		s.setAttr(attributed("99"))
		s.removePrivileged("1", "ada")

		s.svc.HandleMemberRemoved(ctx, gateway.MemberRemoved{MemberID: "1", DisplayName: "ada"})

		s.Require().Len(s.client.Invites, 1)
		s.Equal(inviteChannel, s.client.Invites[0].ChannelID)
		s.Equal(1, s.client.Invites[0].MaxUses)

		entry, err := s.reentries.Get(ctx, "1")
		s.Require().NoError(err)
		s.True(entry.WasPrivileged)
		s.Equal("ada", entry.DisplayName)

		s.Require().Len(s.client.DMs, 1)
		s.Contains(s.client.DMs[0].Msg.Content, s.client.Invites[0].URL)
		s.Empty(s.client.Sent, "no public fallback when the DM lands")
	})

	s.Run("attributed removal of regular member ignored", func() {
		s.SetupTest()
		s.setAttr(attributed("99"))
		s.view.ApplyJoin(gateway.Member{ID: "2", DisplayName: "bob"})
		s.view.ApplyRemoval("2", "bob")

		s.svc.HandleMemberRemoved(ctx, gateway.MemberRemoved{MemberID: "2", DisplayName: "bob"})

		s.Empty(s.client.Invites)
	})

	s.Run("DM failure falls back to public channel", func() {
		s.SetupTest()
		s.setAttr(attributed("99"))
		s.removePrivileged("1", "ada")
		s.client.Errors.SendDirectMessage = errors.New("dms closed")

		s.svc.HandleMemberRemoved(ctx, gateway.MemberRemoved{MemberID: "1", DisplayName: "ada"})

		s.Require().Len(s.client.Sent, 1)
		s.Equal(fallbackChannel, s.client.Sent[0].Channel)
		s.Contains(s.client.Sent[0].Msg.Content, "ada")
	})
}

func (s *ProtectionSuite) TestBanReversalAndReentry() {
	ctx := context.Background()
	s.setAttr(attributed("99"))
	s.removePrivileged("1", "ada")

	s.svc.HandleBanAdded(ctx, gateway.BanAdded{MemberID: "1", DisplayName: "ada"})

	s.Run("ban lifted and invite issued", func() {
		s.Require().Len(s.client.Unbanned, 1)
		s.Equal(domain.MemberID("1"), s.client.Unbanned[0])
		s.Require().Len(s.client.Invites, 1)
	})

	join := gateway.MemberJoined{Member: gateway.Member{ID: "1", DisplayName: "ada"}}
	s.view.ApplyJoin(join.Member)
	s.svc.HandleMemberJoined(ctx, join)

	s.Run("privilege restored on return", func() {
		s.Require().Len(s.client.Granted, 1)
		s.Equal(privilegedRole, s.client.Granted[0].Role)
		s.True(s.trust.ConsumeRoleChange("1", privilegedRole),
			"restoration registered its own grant as trusted")
		s.Equal([]time.Duration{rolePropagationDelay}, s.waits,
			"grant waits out role propagation")
	})

	s.Run("restored member is told by DM", func() {
		s.Require().Len(s.client.DMs, 2, "invite DM plus restoration DM")
		s.Equal(domain.MemberID("1"), s.client.DMs[1].Member)
		s.Contains(s.client.DMs[1].Msg.Content, "restored")
	})

	s.Run("duplicate join restores nothing", func() {
		s.svc.HandleMemberJoined(ctx, join)
		s.Len(s.client.Granted, 1, "entry already consumed")
	})
}

func (s *ProtectionSuite) TestReentryGrantFailureKeepsEntry() {
	ctx := context.Background()
	s.setAttr(attributed("99"))
	s.removePrivileged("1", "ada")
	s.svc.HandleMemberRemoved(ctx, gateway.MemberRemoved{MemberID: "1", DisplayName: "ada"})

	s.client.Errors.GrantRole = errors.New("missing permission")
	join := gateway.MemberJoined{Member: gateway.Member{ID: "1", DisplayName: "ada"}}
	s.svc.HandleMemberJoined(ctx, join)

	_, err := s.reentries.Get(ctx, "1")
	s.NoError(err, "entry retained for the next join")

	s.client.Errors.GrantRole = nil
	s.svc.HandleMemberJoined(ctx, join)

	_, err = s.reentries.Get(ctx, "1")
	s.Error(err, "entry consumed after successful restoration")
	s.Len(s.client.Granted, 1)
}

func (s *ProtectionSuite) TestRestorationDMFailureNonFatal() {
	ctx := context.Background()
	s.setAttr(attributed("99"))
	s.removePrivileged("1", "ada")
	s.svc.HandleMemberRemoved(ctx, gateway.MemberRemoved{MemberID: "1", DisplayName: "ada"})

	s.client.Errors.SendDirectMessage = errors.New("dms closed")
	s.svc.HandleMemberJoined(ctx, gateway.MemberJoined{Member: gateway.Member{ID: "1", DisplayName: "ada"}})

	s.Require().Len(s.client.Granted, 1, "restoration proceeds without the DM")
	_, err := s.reentries.Get(ctx, "1")
	s.Error(err, "entry consumed despite the undeliverable DM")
}

func (s *ProtectionSuite) TestMessageDeleted() {
	ctx := context.Background()

	cache := func(author domain.MemberID, name string) {
		s.Require().NoError(s.snapshots.Put(ctx, snapshot.Snapshot{
			MessageID:  "900",
			ChannelID:  "600",
			AuthorID:   author,
			AuthorName: name,
			Content:    "important words",
			CachedAt:   s.now,
		}))
	}

	s.Run("foreign deletion reposted", func() {
		s.SetupTest()
		s.setAttr(attributed("99"))
		s.view.ApplyJoin(gateway.Member{ID: "1", DisplayName: "ada", Roles: []domain.RoleID{privilegedRole}})
		cache("1", "ada")

		s.svc.HandleMessageDeleted(ctx, gateway.MessageDeleted{MessageID: "900", ChannelID: "600"})

		s.Require().Len(s.client.Sent, 1)
		s.Equal(domain.ChannelID("600"), s.client.Sent[0].Channel)
		s.Require().NotNil(s.client.Sent[0].Msg.Embed)
		s.Equal("important words", s.client.Sent[0].Msg.Embed.Description)

		s.Run("replayed deletion does not repost twice", func() {
			s.svc.HandleMessageDeleted(ctx, gateway.MessageDeleted{MessageID: "900", ChannelID: "600"})
			s.Len(s.client.Sent, 1)
		})
	})

	s.Run("self-deletion passes silently", func() {
		s.SetupTest()
		s.setAttr(attributed("1"))
		s.view.ApplyJoin(gateway.Member{ID: "1", DisplayName: "ada", Roles: []domain.RoleID{privilegedRole}})
		cache("1", "ada")

		s.svc.HandleMessageDeleted(ctx, gateway.MessageDeleted{MessageID: "900", ChannelID: "600"})

		s.Empty(s.client.Sent)
	})

	s.Run("uncached privileged message draws a notice", func() {
		s.SetupTest()
		s.setAttr(attributed("99"))
		s.view.ApplyJoin(gateway.Member{ID: "1", DisplayName: "ada", Roles: []domain.RoleID{privilegedRole}})

		s.svc.HandleMessageDeleted(ctx, gateway.MessageDeleted{MessageID: "404", ChannelID: "600", AuthorID: "1"})

		s.Require().Len(s.client.Sent, 1)
		s.Equal(domain.ChannelID("600"), s.client.Sent[0].Channel)
		s.Contains(s.client.Sent[0].Msg.Content, "ada")
		s.Contains(s.client.Sent[0].Msg.Content, "not cached")
	})

	s.Run("uncached regular member message passes silently", func() {
		s.SetupTest()
		s.setAttr(attributed("99"))
		s.view.ApplyJoin(gateway.Member{ID: "2", DisplayName: "bob"})

		s.svc.HandleMessageDeleted(ctx, gateway.MessageDeleted{MessageID: "404", ChannelID: "600", AuthorID: "2"})

		s.Empty(s.client.Sent)
	})

	s.Run("uncached message without an author passes silently", func() {
		s.SetupTest()
		s.setAttr(attributed("99"))

		s.svc.HandleMessageDeleted(ctx, gateway.MessageDeleted{MessageID: "404", ChannelID: "600"})

		s.Empty(s.client.Sent)
	})

	s.Run("uncached self-deletion passes silently", func() {
		s.SetupTest()
		s.setAttr(attributed("1"))
		s.view.ApplyJoin(gateway.Member{ID: "1", DisplayName: "ada", Roles: []domain.RoleID{privilegedRole}})

		s.svc.HandleMessageDeleted(ctx, gateway.MessageDeleted{MessageID: "404", ChannelID: "600", AuthorID: "1"})

		s.Empty(s.client.Sent)
	})

	s.Run("unattributed deletion passes silently", func() {
		s.SetupTest()
		s.view.ApplyJoin(gateway.Member{ID: "1", DisplayName: "ada", Roles: []domain.RoleID{privilegedRole}})
		cache("1", "ada")

		s.svc.HandleMessageDeleted(ctx, gateway.MessageDeleted{MessageID: "900", ChannelID: "600"})

		s.Empty(s.client.Sent)
	})
}

func (s *ProtectionSuite) TestRolesUpdated() {
	ctx := context.Background()

	member := func() gateway.MemberRolesUpdated {
		return gateway.MemberRolesUpdated{
			MemberID:    "1",
			DisplayName: "ada",
			Removed:     []domain.RoleID{privilegedRole},
		}
	}

	s.Run("registered removal consumed without reaction", func() {
		s.SetupTest()
		s.setAttr(attributed("99"))
		s.trust.ExpectRoleChange("1", privilegedRole)

		s.svc.HandleMemberRolesUpdated(ctx, member())

		s.Empty(s.client.Granted)
	})

	s.Run("attributed strip restored", func() {
		s.SetupTest()
		s.setAttr(attributed("99"))

		s.svc.HandleMemberRolesUpdated(ctx, member())

		s.Require().Len(s.client.Granted, 1)
		s.Equal(privilegedRole, s.client.Granted[0].Role)
	})

	s.Run("self-removal left alone", func() {
		s.SetupTest()
		s.setAttr(attributed("1"))

		s.svc.HandleMemberRolesUpdated(ctx, member())

		s.Empty(s.client.Granted)
	})

	s.Run("unattributed strip left alone", func() {
		s.SetupTest()

		s.svc.HandleMemberRolesUpdated(ctx, member())

		s.Empty(s.client.Granted)
	})

	s.Run("protected role guarded only behind the switch", func() {
		s.SetupTest()
		s.setAttr(attributed("99"))
		ev := gateway.MemberRolesUpdated{MemberID: "1", Removed: []domain.RoleID{protectedRole}}

		s.svc.HandleMemberRolesUpdated(ctx, ev)
		s.Empty(s.client.Granted, "switch off")

		s.svc.cfg.RevertProtected = true
		s.svc.HandleMemberRolesUpdated(ctx, ev)
		s.Require().Len(s.client.Granted, 1)
		s.Equal(protectedRole, s.client.Granted[0].Role)
	})

	s.Run("unguarded role ignored", func() {
		s.SetupTest()
		s.setAttr(attributed("99"))
		ev := gateway.MemberRolesUpdated{MemberID: "1", Removed: []domain.RoleID{"55"}}

		s.svc.HandleMemberRolesUpdated(ctx, ev)

		s.Empty(s.client.Granted)
	})
}

func (s *ProtectionSuite) TestBulkDeleteObserved() {
	ctx := context.Background()
	s.setAttr(attributed("99"))

	recorder := &recordingPublisher{}
	s.svc = New(
		s.client, s.view, s.attr, s.trust, s.reentries, s.snapshots,
		Config{Privileged: privilegedRole, InviteChannel: inviteChannel, FallbackChannel: fallbackChannel, ReentryTTL: time.Hour},
		WithAuditPublisher(recorder),
	)

	s.svc.HandleMessagesBulkDeleted(ctx, gateway.MessagesBulkDeleted{
		MessageIDs: []domain.MessageID{"1", "2", "3"},
		ChannelID:  "600",
	})

	s.Require().Len(recorder.events, 1)
	s.True(strings.HasPrefix(recorder.events[0].Detail, "3 messages"))
	s.Equal(domain.MemberID("99"), recorder.events[0].Actor)
}

type recordingPublisher struct {
	events []securityaudit.Event
}

func (r *recordingPublisher) Publish(_ context.Context, event securityaudit.Event) {
	r.events = append(r.events, event)
}

func TestProtectionSuite(t *testing.T) {
	suite.Run(t, new(ProtectionSuite))
}
