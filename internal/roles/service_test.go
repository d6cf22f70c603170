package roles

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"conclave/internal/gateway"
	"conclave/internal/gateway/gatewaytest"
	"conclave/pkg/domain"
)

const privilegedRole = domain.RoleID("100")

type RolesServiceSuite struct {
	suite.Suite
	client *gatewaytest.FakeClient
	now    time.Time
	svc    *Service
}

func (s *RolesServiceSuite) SetupTest() {
	s.client = gatewaytest.NewFakeClient()
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.svc = New(s.client, privilegedRole, WithClock(func() time.Time { return s.now }))
}

func (s *RolesServiceSuite) TestSeed() {
	s.client.PutMember(gateway.Member{ID: "1", DisplayName: "ada", Roles: []domain.RoleID{privilegedRole}})
	s.client.PutMember(gateway.Member{ID: "2", DisplayName: "bot", IsBot: true})

	s.Require().NoError(s.svc.Seed(context.Background()))

	s.Run("privileged member visible", func() {
		s.True(s.svc.IsPrivileged("1"))
	})

	s.Run("non-privileged member visible but not privileged", func() {
		_, ok := s.svc.Member("2")
		s.True(ok)
		s.False(s.svc.IsPrivileged("2"))
	})
}

func (s *RolesServiceSuite) TestDepartedMemory() {
	s.svc.ApplyJoin(gateway.Member{ID: "1", DisplayName: "ada", Roles: []domain.RoleID{privilegedRole}})

	s.Run("privileged before removal", func() {
		s.True(s.svc.WasPrivileged("1"))
	})

	s.svc.ApplyRemoval("1", "ada")

	s.Run("removed from live view", func() {
		_, ok := s.svc.Member("1")
		s.False(ok)
		s.False(s.svc.IsPrivileged("1"))
	})

	s.Run("departed memory answers was-privileged", func() {
		s.True(s.svc.WasPrivileged("1"))
		m, ok := s.svc.LastKnown("1")
		s.True(ok)
		s.Equal("ada", m.DisplayName)
	})

	s.Run("rejoin clears departed memory", func() {
		s.svc.ApplyJoin(gateway.Member{ID: "1", DisplayName: "ada"})
		s.False(s.svc.WasPrivileged("1"))
	})
}

func (s *RolesServiceSuite) TestRolesUpdate() {
	s.svc.ApplyJoin(gateway.Member{ID: "1", DisplayName: "ada"})

	s.svc.ApplyRolesUpdate("1", "ada", []domain.RoleID{privilegedRole})
	s.True(s.svc.IsPrivileged("1"))

	s.svc.ApplyRolesUpdate("1", "ada", nil)
	s.False(s.svc.IsPrivileged("1"))

	s.Run("unknown member is added", func() {
		s.svc.ApplyRolesUpdate("9", "new", []domain.RoleID{privilegedRole})
		s.True(s.svc.IsPrivileged("9"))
	})
}

func (s *RolesServiceSuite) TestPools() {
	s.svc.ApplyJoin(gateway.Member{ID: "1", Roles: []domain.RoleID{privilegedRole}})
	s.svc.ApplyJoin(gateway.Member{ID: "2", Roles: []domain.RoleID{privilegedRole}})
	s.svc.ApplyJoin(gateway.Member{ID: "3"})
	s.svc.ApplyJoin(gateway.Member{ID: "4", IsBot: true})

	s.Len(s.svc.PrivilegedMembers(), 2)

	nonPriv := s.svc.NonPrivilegedMembers()
	s.Require().Len(nonPriv, 1)
	s.Equal(domain.MemberID("3"), nonPriv[0].ID)
}

func (s *RolesServiceSuite) TestPruneDeparted() {
	s.svc.ApplyJoin(gateway.Member{ID: "1", Roles: []domain.RoleID{privilegedRole}})
	s.svc.ApplyRemoval("1", "ada")

	s.Run("fresh record survives", func() {
		s.Equal(0, s.svc.PruneDeparted(s.now.Add(-time.Hour)))
		s.True(s.svc.WasPrivileged("1"))
	})

	s.Run("stale record pruned", func() {
		s.Equal(1, s.svc.PruneDeparted(s.now.Add(time.Hour)))
		s.False(s.svc.WasPrivileged("1"))
	})
}

func TestRolesServiceSuite(t *testing.T) {
	suite.Run(t, new(RolesServiceSuite))
}
