// Package roles maintains the engine's authoritative view of community
// membership and role holdings. The view is seeded from a full member fetch
// at startup and kept current by gateway events; queries never hit the
// platform.
package roles

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"conclave/internal/gateway"
	"conclave/pkg/domain"
)

// MemberLister is the slice of the gateway client the view needs to seed.
type MemberLister interface {
	ListMembers(ctx context.Context) ([]gateway.Member, error)
}

type departedRecord struct {
	member gateway.Member
	at     time.Time
}

// Service is the in-memory membership view. Removal events keep a short
// departed-member memory so a BanAdded arriving after its MemberRemoved can
// still answer "was this member privileged".
type Service struct {
	lister     MemberLister
	privileged domain.RoleID
	logger     *slog.Logger
	clock      func() time.Time

	mu       sync.RWMutex
	members  map[domain.MemberID]gateway.Member
	departed map[domain.MemberID]departedRecord
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

func New(lister MemberLister, privileged domain.RoleID, opts ...Option) *Service {
	s := &Service{
		lister:     lister,
		privileged: privileged,
		logger:     slog.Default(),
		clock:      time.Now,
		members:    make(map[domain.MemberID]gateway.Member),
		departed:   make(map[domain.MemberID]departedRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed replaces the view with a full member fetch. Called once at startup;
// startup fails if the fetch does.
func (s *Service) Seed(ctx context.Context) error {
	members, err := s.lister.ListMembers(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = make(map[domain.MemberID]gateway.Member, len(members))
	for _, m := range members {
		s.members[m.ID] = m
	}
	s.logger.InfoContext(ctx, "membership view seeded", "members", len(members))
	return nil
}

// ApplyJoin records a (re)joining member and clears any departed memory.
func (s *Service) ApplyJoin(m gateway.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
	delete(s.departed, m.ID)
}

// ApplyRemoval drops the member from the live view and remembers their last
// known record. An unknown member is remembered with the display name only.
func (s *Service) ApplyRemoval(id domain.MemberID, displayName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		m = gateway.Member{ID: id, DisplayName: displayName}
	}
	delete(s.members, id)
	s.departed[id] = departedRecord{member: m, at: s.clock()}
}

// ApplyRolesUpdate replaces the member's role set. Unknown members are added;
// the platform sends role updates for members we may have missed.
func (s *Service) ApplyRolesUpdate(id domain.MemberID, displayName string, current []domain.RoleID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		m = gateway.Member{ID: id, DisplayName: displayName}
	}
	if displayName != "" {
		m.DisplayName = displayName
	}
	m.Roles = current
	s.members[id] = m
}

// Member returns the live record for a member.
func (s *Service) Member(id domain.MemberID) (gateway.Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	return m, ok
}

// LastKnown returns the live record, or the departed record if the member
// recently left.
func (s *Service) LastKnown(id domain.MemberID) (gateway.Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.members[id]; ok {
		return m, true
	}
	if rec, ok := s.departed[id]; ok {
		return rec.member, true
	}
	return gateway.Member{}, false
}

// IsPrivileged reports whether the member currently holds the privileged role.
func (s *Service) IsPrivileged(id domain.MemberID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	return ok && m.HasRole(s.privileged)
}

// WasPrivileged reports whether the member holds the privileged role now, or
// held it when they departed.
func (s *Service) WasPrivileged(id domain.MemberID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.members[id]; ok {
		return m.HasRole(s.privileged)
	}
	if rec, ok := s.departed[id]; ok {
		return rec.member.HasRole(s.privileged)
	}
	return false
}

// PrivilegedMembers returns the current eligible voting pool.
func (s *Service) PrivilegedMembers() []gateway.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]gateway.Member, 0)
	for _, m := range s.members {
		if m.HasRole(s.privileged) {
			out = append(out, m)
		}
	}
	return out
}

// NonPrivilegedMembers returns members without the privileged role, bots
// excluded. Used by the diagnostic purge.
func (s *Service) NonPrivilegedMembers() []gateway.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]gateway.Member, 0)
	for _, m := range s.members {
		if m.IsBot || m.HasRole(s.privileged) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// PruneDeparted drops departed memory older than the cutoff. Called by the
// periodic sweep.
func (s *Service) PruneDeparted(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	pruned := 0
	for id, rec := range s.departed {
		if rec.at.Before(cutoff) {
			delete(s.departed, id)
			pruned++
		}
	}
	return pruned
}
