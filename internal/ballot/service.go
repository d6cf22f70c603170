package ballot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"conclave/internal/gateway"
	"conclave/internal/platform/metrics"
	"conclave/internal/securityaudit"
	"conclave/pkg/domain"
	dErrors "conclave/pkg/domain-errors"
)

// Messenger is the slice of the gateway client the coordinator posts with.
type Messenger interface {
	SendMessage(ctx context.Context, channel domain.ChannelID, msg gateway.OutboundMessage) (domain.MessageID, error)
	EditMessage(ctx context.Context, channel domain.ChannelID, message domain.MessageID, msg gateway.OutboundMessage) error
}

// RoleView answers membership questions from the seeded view.
type RoleView interface {
	IsPrivileged(id domain.MemberID) bool
	Member(id domain.MemberID) (gateway.Member, bool)
	PrivilegedMembers() []gateway.Member
}

// RoleMutator applies the role side effects of resolution.
type RoleMutator interface {
	GrantRole(ctx context.Context, member domain.MemberID, role domain.RoleID) error
	RevokeRole(ctx context.Context, member domain.MemberID, role domain.RoleID) error
	KickMember(ctx context.Context, member domain.MemberID, reason string) error
}

// Trust registers the coordinator's own mutations so the protection engine
// does not reverse them. Every registration happens before the mutation.
type Trust interface {
	ExpectRoleChange(member domain.MemberID, role domain.RoleID)
	ExpectRemoval(member domain.MemberID)
}

// Deferrer runs the deadline and restoration callbacks.
type Deferrer interface {
	Schedule(key string, d time.Duration, fn func())
	Cancel(key string) bool
}

// AuditPublisher records governance outcomes on the security trail.
type AuditPublisher interface {
	Publish(ctx context.Context, event securityaudit.Event)
}

// RoleIDs are the community roles resolution mutates.
type RoleIDs struct {
	Privileged domain.RoleID
	Pending    domain.RoleID
	Sanctioned domain.RoleID
}

type subjectKey struct {
	subject  domain.MemberID
	category domain.BallotCategory
}

// Coordinator owns all ballot state. Open, cast, and cancel arrive on the
// dispatch goroutine; deadline callbacks arrive on timer goroutines. The
// mutex plus the resolved flag make resolution exactly-once.
type Coordinator struct {
	messenger Messenger
	view      RoleView
	mutator   RoleMutator
	trust     Trust
	deferrer  Deferrer

	channel      domain.ChannelID
	roleIDs      RoleIDs
	policies     map[domain.BallotKind]Policy
	restoreAfter time.Duration

	logger    *slog.Logger
	publisher AuditPublisher
	metrics   *metrics.Metrics
	clock     func() time.Time

	mu        sync.Mutex
	ballots   map[domain.BallotID]*Ballot
	bySubject map[subjectKey]domain.BallotID
	byMessage map[domain.MessageID]domain.BallotID
}

type Option func(c *Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(c *Coordinator) {
		c.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Coordinator) {
		c.clock = clock
	}
}

func NewCoordinator(
	messenger Messenger,
	view RoleView,
	mutator RoleMutator,
	trust Trust,
	deferrer Deferrer,
	channel domain.ChannelID,
	roleIDs RoleIDs,
	policies map[domain.BallotKind]Policy,
	restoreAfter time.Duration,
	opts ...Option,
) *Coordinator {
	c := &Coordinator{
		messenger:    messenger,
		view:         view,
		mutator:      mutator,
		trust:        trust,
		deferrer:     deferrer,
		channel:      channel,
		roleIDs:      roleIDs,
		policies:     policies,
		restoreAfter: restoreAfter,
		logger:       slog.Default(),
		clock:        time.Now,
		ballots:      make(map[domain.BallotID]*Ballot),
		bySubject:    make(map[subjectKey]domain.BallotID),
		byMessage:    make(map[domain.MessageID]domain.BallotID),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func deadlineKey(id domain.BallotID) string {
	return "ballot:" + id.String()
}

func restoreKey(member domain.MemberID) string {
	return "sanction-restore:" + member.String()
}

// Open starts a ballot against subject. At most one open ballot per
// (subject, kind category); a second open is a conflict, which command
// handlers surface and the severe trigger treats as already-handled.
func (c *Coordinator) Open(ctx context.Context, kind domain.BallotKind, subject, initiator domain.MemberID, reason string) (Summary, error) {
	policy, ok := c.policies[kind]
	if !ok {
		return Summary{}, dErrors.Newf(dErrors.CodeValidation, "no policy for ballot kind %s", kind)
	}

	subjectMember, known := c.view.Member(subject)
	if !known {
		return Summary{}, dErrors.New(dErrors.CodeNotFound, "subject is not a community member")
	}

	if kind.IsSanction() {
		if !subjectMember.HasRole(c.roleIDs.Privileged) {
			return Summary{}, dErrors.New(dErrors.CodeValidation, "subject is not a privileged member")
		}
	} else {
		if subjectMember.HasRole(c.roleIDs.Privileged) {
			return Summary{}, dErrors.New(dErrors.CodeConflict, "subject is already a privileged member")
		}
		if subjectMember.HasRole(c.roleIDs.Pending) {
			return Summary{}, dErrors.New(dErrors.CodeConflict, "subject already has an admission vote pending")
		}
	}

	eligible := 0
	for _, m := range c.view.PrivilegedMembers() {
		if m.ID == subject {
			continue
		}
		eligible++
	}
	if eligible == 0 {
		return Summary{}, dErrors.New(dErrors.CodeInvariantViolation, "no eligible voters")
	}

	now := c.clock()
	b := &Ballot{
		ID:          domain.NewBallotID(),
		Kind:        kind,
		Subject:     subject,
		SubjectName: subjectMember.DisplayName,
		Initiator:   initiator,
		Reason:      reason,
		Policy:      policy,
		Eligible:    eligible,
		ChannelID:   c.channel,
		OpenedAt:    now,
		Deadline:    now.Add(policy.Deadline),
		Votes:       make(map[domain.MemberID]vote),
	}
	if initiatorMember, ok := c.view.Member(initiator); ok {
		b.InitiatorName = initiatorMember.DisplayName
	}

	key := subjectKey{subject: subject, category: kind.Category()}

	c.mu.Lock()
	if existing, ok := c.bySubject[key]; ok {
		c.mu.Unlock()
		return Summary{}, dErrors.Wrap(
			fmt.Errorf("open ballot %s", existing),
			dErrors.CodeConflict,
			"subject already has an open ballot in this category",
		)
	}
	c.ballots[b.ID] = b
	c.bySubject[key] = b.ID
	c.mu.Unlock()

	if kind == domain.BallotKindAdmission {
		c.trust.ExpectRoleChange(subject, c.roleIDs.Pending)
		if err := c.mutator.GrantRole(ctx, subject, c.roleIDs.Pending); err != nil {
			c.logger.WarnContext(ctx, "pending marker grant failed",
				"ballot_id", b.ID.String(),
				"subject", subject.String(),
				"error", err,
			)
		}
	}

	messageID, err := c.messenger.SendMessage(ctx, c.channel, render(b))
	if err != nil {
		c.mu.Lock()
		delete(c.ballots, b.ID)
		delete(c.bySubject, key)
		c.mu.Unlock()
		return Summary{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "could not post ballot")
	}

	c.mu.Lock()
	b.MessageID = messageID
	c.byMessage[messageID] = b.ID
	summary := b.summary()
	c.mu.Unlock()

	id := b.ID
	c.deferrer.Schedule(deadlineKey(id), policy.Deadline, func() {
		c.ResolveDeadline(context.Background(), id)
	})

	c.logAudit(ctx, securityaudit.Event{
		Kind:        securityaudit.EventBallotOpened,
		Subject:     subject,
		SubjectName: b.SubjectName,
		Actor:       initiator,
		ActorName:   b.InitiatorName,
		Detail:      string(kind),
	})
	if c.metrics != nil {
		c.metrics.IncBallotOpened(kind.String())
	}
	c.logger.InfoContext(ctx, "ballot opened",
		"ballot_id", id.String(),
		"kind", kind.String(),
		"subject", subject.String(),
		"eligible", eligible,
	)
	return summary, nil
}

// Cast records or overwrites a vote, re-renders the message, and resolves
// early when the outcome can no longer change.
func (c *Coordinator) Cast(ctx context.Context, id domain.BallotID, voter domain.MemberID, choice domain.Choice) error {
	if !c.view.IsPrivileged(voter) {
		return dErrors.New(dErrors.CodeForbidden, "only privileged members may vote")
	}

	voterName := voter.String()
	if m, ok := c.view.Member(voter); ok && m.DisplayName != "" {
		voterName = m.DisplayName
	}

	c.mu.Lock()
	b, ok := c.ballots[id]
	if !ok {
		c.mu.Unlock()
		return dErrors.New(dErrors.CodeNotFound, "ballot not found")
	}
	if b.Resolved {
		c.mu.Unlock()
		return dErrors.New(dErrors.CodeConflict, "ballot already resolved")
	}
	if b.Kind.IsSanction() && voter == b.Subject {
		c.mu.Unlock()
		return dErrors.New(dErrors.CodeForbidden, "the subject of a sanction ballot cannot vote")
	}

	b.Votes[voter] = vote{Choice: choice, VoterName: voterName}
	t := b.tally()
	msg := render(b)
	channel, message := b.ChannelID, b.MessageID
	kind := b.Kind
	outcome, certain := certainOutcome(b.Policy, t)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.IncVoteCast(kind.String())
	}

	if certain {
		c.resolve(ctx, id, outcome)
		return nil
	}

	if err := c.messenger.EditMessage(ctx, channel, message, msg); err != nil {
		c.logger.WarnContext(ctx, "tally re-render failed",
			"ballot_id", id.String(),
			"error", err,
		)
	}
	return nil
}

// CastByMessage routes a button press to its ballot. Unknown messages and
// unknown buttons are not ballots' business; callers ignore the not-found.
func (c *Coordinator) CastByMessage(ctx context.Context, message domain.MessageID, voter domain.MemberID, buttonID string) error {
	var choice domain.Choice
	switch buttonID {
	case ButtonYes:
		choice = domain.ChoiceYes
	case ButtonNo:
		choice = domain.ChoiceNo
	default:
		return dErrors.New(dErrors.CodeNotFound, "unknown control")
	}

	c.mu.Lock()
	id, ok := c.byMessage[message]
	c.mu.Unlock()
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "no ballot on this message")
	}
	return c.Cast(ctx, id, voter, choice)
}

// ResolveDeadline is the deadline callback. A no-op when the ballot resolved
// early or was canceled; duplicate firings are harmless.
func (c *Coordinator) ResolveDeadline(ctx context.Context, id domain.BallotID) {
	c.mu.Lock()
	b, ok := c.ballots[id]
	if !ok || b.Resolved {
		c.mu.Unlock()
		return
	}
	outcome := decide(b.Policy, b.tally())
	c.mu.Unlock()

	c.resolve(ctx, id, outcome)
}

// Cancel is the moderator override: controls are disabled and the ballot is
// closed without role effects.
func (c *Coordinator) Cancel(ctx context.Context, id domain.BallotID, actor domain.MemberID) error {
	c.mu.Lock()
	b, ok := c.ballots[id]
	if !ok {
		c.mu.Unlock()
		return dErrors.New(dErrors.CodeNotFound, "ballot not found")
	}
	if b.Resolved {
		c.mu.Unlock()
		return dErrors.New(dErrors.CodeConflict, "ballot already resolved")
	}
	subject, subjectName := b.Subject, b.SubjectName
	c.mu.Unlock()

	c.resolve(ctx, id, domain.OutcomeCanceled)

	actorName := actor.String()
	if m, ok := c.view.Member(actor); ok && m.DisplayName != "" {
		actorName = m.DisplayName
	}
	c.logAudit(ctx, securityaudit.Event{
		Kind:        securityaudit.EventBallotCanceled,
		Subject:     subject,
		SubjectName: subjectName,
		Actor:       actor,
		ActorName:   actorName,
	})
	return nil
}

// CancelBySubject cancels every open ballot against the subject. Returns how
// many were canceled.
func (c *Coordinator) CancelBySubject(ctx context.Context, subject, actor domain.MemberID) (int, error) {
	c.mu.Lock()
	ids := make([]domain.BallotID, 0, 2)
	for _, category := range []domain.BallotCategory{domain.CategoryAdmission, domain.CategorySanction} {
		if id, ok := c.bySubject[subjectKey{subject: subject, category: category}]; ok {
			ids = append(ids, id)
		}
	}
	c.mu.Unlock()

	canceled := 0
	for _, id := range ids {
		if err := c.Cancel(ctx, id, actor); err == nil {
			canceled++
		}
	}
	if canceled == 0 {
		return 0, dErrors.New(dErrors.CodeNotFound, "no open ballot for subject")
	}
	return canceled, nil
}

// List returns summaries of all open ballots, oldest first.
func (c *Coordinator) List() []Summary {
	c.mu.Lock()
	out := make([]Summary, 0, len(c.ballots))
	for _, b := range c.ballots {
		if b.Resolved {
			continue
		}
		out = append(out, b.summary())
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out
}

// Get returns one ballot summary, resolved or not, while it is still held.
func (c *Coordinator) Get(id domain.BallotID) (Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.ballots[id]
	if !ok {
		return Summary{}, dErrors.New(dErrors.CodeNotFound, "ballot not found")
	}
	return b.summary(), nil
}

// SweepExpired force-resolves open ballots whose deadline passed without the
// deferred callback firing. Defensive; normally resolves nothing.
func (c *Coordinator) SweepExpired(ctx context.Context) int {
	now := c.clock()

	c.mu.Lock()
	type expired struct {
		id      domain.BallotID
		outcome domain.Outcome
	}
	var stale []expired
	for id, b := range c.ballots {
		if !b.Resolved && now.After(b.Deadline) {
			stale = append(stale, expired{id: id, outcome: decide(b.Policy, b.tally())})
		}
	}
	c.mu.Unlock()

	for _, e := range stale {
		c.logger.WarnContext(ctx, "ballot past deadline without callback, resolving in sweep",
			"ballot_id", e.id.String(),
		)
		c.resolve(ctx, e.id, e.outcome)
	}
	return len(stale)
}

// resolve transitions the ballot to Resolved exactly once, disables the
// controls, and then applies role effects. Effects come after the edit so a
// member can never act on live controls of a decided ballot.
func (c *Coordinator) resolve(ctx context.Context, id domain.BallotID, outcome domain.Outcome) {
	c.mu.Lock()
	b, ok := c.ballots[id]
	if !ok || b.Resolved {
		c.mu.Unlock()
		return
	}
	b.Resolved = true
	b.Outcome = outcome
	b.ResolvedAt = c.clock()

	delete(c.bySubject, subjectKey{subject: b.Subject, category: b.Kind.Category()})
	delete(c.byMessage, b.MessageID)

	snapshot := *b
	msg := render(b)
	c.mu.Unlock()

	c.deferrer.Cancel(deadlineKey(id))

	if err := c.messenger.EditMessage(ctx, snapshot.ChannelID, snapshot.MessageID, msg); err != nil {
		c.logger.WarnContext(ctx, "control disable failed",
			"ballot_id", id.String(),
			"error", err,
		)
	}

	c.applyEffects(ctx, snapshot, outcome)

	if outcome != domain.OutcomeCanceled {
		c.logAudit(ctx, securityaudit.Event{
			Kind:        securityaudit.EventBallotResolved,
			Subject:     snapshot.Subject,
			SubjectName: snapshot.SubjectName,
			Detail:      fmt.Sprintf("%s: %s", snapshot.Kind, outcome),
		})
	}
	if c.metrics != nil {
		c.metrics.IncBallotResolved(snapshot.Kind.String(), outcome.String())
	}
	c.logger.InfoContext(ctx, "ballot resolved",
		"ballot_id", id.String(),
		"kind", snapshot.Kind.String(),
		"outcome", outcome.String(),
	)
}

// applyEffects runs the role side effects of a resolution. A canceled ballot
// has no outcome effects, but an admission ballot still sheds its pending
// marker so the subject is not stuck mid-procedure.
func (c *Coordinator) applyEffects(ctx context.Context, b Ballot, outcome domain.Outcome) {
	switch b.Kind {
	case domain.BallotKindAdmission:
		c.trust.ExpectRoleChange(b.Subject, c.roleIDs.Pending)
		if err := c.mutator.RevokeRole(ctx, b.Subject, c.roleIDs.Pending); err != nil {
			c.logger.WarnContext(ctx, "pending marker revoke failed",
				"ballot_id", b.ID.String(), "error", err)
		}
		if outcome == domain.OutcomeApproved {
			c.trust.ExpectRoleChange(b.Subject, c.roleIDs.Privileged)
			if err := c.mutator.GrantRole(ctx, b.Subject, c.roleIDs.Privileged); err != nil {
				c.logger.ErrorContext(ctx, "privileged grant failed",
					"ballot_id", b.ID.String(), "error", err)
			}
		}

	case domain.BallotKindManualSanction:
		if outcome != domain.OutcomeApproved {
			return
		}
		c.trust.ExpectRoleChange(b.Subject, c.roleIDs.Privileged)
		if err := c.mutator.RevokeRole(ctx, b.Subject, c.roleIDs.Privileged); err != nil {
			c.logger.ErrorContext(ctx, "privileged revoke failed",
				"ballot_id", b.ID.String(), "error", err)
		}
		c.trust.ExpectRoleChange(b.Subject, c.roleIDs.Sanctioned)
		if err := c.mutator.GrantRole(ctx, b.Subject, c.roleIDs.Sanctioned); err != nil {
			c.logger.ErrorContext(ctx, "sanctioned grant failed",
				"ballot_id", b.ID.String(), "error", err)
		}

		subject := b.Subject
		c.deferrer.Schedule(restoreKey(subject), c.restoreAfter, func() {
			c.restoreSanctioned(context.Background(), subject)
		})

	case domain.BallotKindSevereSanction:
		if outcome != domain.OutcomeApproved {
			return
		}
		c.trust.ExpectRemoval(b.Subject)
		if err := c.mutator.KickMember(ctx, b.Subject, "severe sanction approved"); err != nil {
			c.logger.ErrorContext(ctx, "sanction kick failed",
				"ballot_id", b.ID.String(), "error", err)
		}
	}
}

// restoreSanctioned lifts a served sanction: sanctioned role off, privileged
// role back. Runs on a deferred callback; idempotent because the mutations
// are.
func (c *Coordinator) restoreSanctioned(ctx context.Context, subject domain.MemberID) {
	c.trust.ExpectRoleChange(subject, c.roleIDs.Sanctioned)
	if err := c.mutator.RevokeRole(ctx, subject, c.roleIDs.Sanctioned); err != nil {
		c.logger.ErrorContext(ctx, "sanctioned revoke failed",
			"subject", subject.String(), "error", err)
	}
	c.trust.ExpectRoleChange(subject, c.roleIDs.Privileged)
	if err := c.mutator.GrantRole(ctx, subject, c.roleIDs.Privileged); err != nil {
		c.logger.ErrorContext(ctx, "privileged restore failed",
			"subject", subject.String(), "error", err)
	}

	subjectName := subject.String()
	if m, ok := c.view.Member(subject); ok && m.DisplayName != "" {
		subjectName = m.DisplayName
	}
	c.logAudit(ctx, securityaudit.Event{
		Kind:        securityaudit.EventRoleRestored,
		Subject:     subject,
		SubjectName: subjectName,
		Detail:      "sanction served",
	})
	c.logger.InfoContext(ctx, "sanction served, privileges restored",
		"subject", subject.String(),
	)
}

func (c *Coordinator) logAudit(ctx context.Context, event securityaudit.Event) {
	if c.publisher == nil {
		return
	}
	c.publisher.Publish(ctx, event)
}
