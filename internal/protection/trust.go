package protection

import (
	"sync"
	"time"

	"conclave/pkg/domain"
)

// TrustedActions is the hand-off between the vote coordinator and the
// protection engine. The coordinator registers a mutation it is about to
// make; when the matching platform event arrives, the engine consumes the
// registration instead of treating the mutation as hostile. Entries expire
// so a mutation that never happened cannot whitelist a later hostile one.
type TrustedActions struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.Mutex
	entries map[string]time.Time
}

type TrustOption func(t *TrustedActions)

// WithTrustClock overrides the time source, for tests.
func WithTrustClock(clock func() time.Time) TrustOption {
	return func(t *TrustedActions) {
		t.clock = clock
	}
}

func NewTrustedActions(ttl time.Duration, opts ...TrustOption) *TrustedActions {
	t := &TrustedActions{
		ttl:     ttl,
		clock:   time.Now,
		entries: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func roleKey(member domain.MemberID, role domain.RoleID) string {
	return "role:" + member.String() + ":" + role.String()
}

func removalKey(member domain.MemberID) string {
	return "removal:" + member.String()
}

// ExpectRoleChange registers an upcoming grant or revoke of role on member.
func (t *TrustedActions) ExpectRoleChange(member domain.MemberID, role domain.RoleID) {
	t.expect(roleKey(member, role))
}

// ExpectRemoval registers an upcoming kick of member.
func (t *TrustedActions) ExpectRemoval(member domain.MemberID) {
	t.expect(removalKey(member))
}

// ConsumeRoleChange reports and clears a registered role change.
func (t *TrustedActions) ConsumeRoleChange(member domain.MemberID, role domain.RoleID) bool {
	return t.consume(roleKey(member, role))
}

// ConsumeRemoval reports and clears a registered removal.
func (t *TrustedActions) ConsumeRemoval(member domain.MemberID) bool {
	return t.consume(removalKey(member))
}

func (t *TrustedActions) expect(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key] = t.clock().Add(t.ttl)
}

func (t *TrustedActions) consume(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	expiry, ok := t.entries[key]
	if !ok {
		return false
	}
	delete(t.entries, key)
	return t.clock().Before(expiry)
}

// PruneExpired drops stale registrations. Called by the periodic sweep.
func (t *TrustedActions) PruneExpired() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	pruned := 0
	for key, expiry := range t.entries {
		if !now.Before(expiry) {
			delete(t.entries, key)
			pruned++
		}
	}
	return pruned
}
