// Package securityaudit records every protection decision and governance
// outcome as an append-only trail, and fans events out to the moderation log
// channel. Keep the event transport-agnostic so stores and sinks can vary.
package securityaudit

import (
	"time"

	"github.com/google/uuid"

	"conclave/pkg/domain"
)

// EventKind names what happened.
type EventKind string

const (
	// Protection reactions
	EventRemovalReversed EventKind = "removal_reversed"
	EventBanReversed     EventKind = "ban_reversed"
	EventMessageReposted EventKind = "message_reposted"
	EventRoleRestored    EventKind = "role_restored"
	EventReentryRestored EventKind = "reentry_restored"

	// Observations recorded without reversal
	EventBulkDeleteObserved EventKind = "bulk_delete_observed"
	EventUnbanObserved      EventKind = "unban_observed"

	// Governance outcomes
	EventBallotOpened   EventKind = "ballot_opened"
	EventBallotResolved EventKind = "ballot_resolved"
	EventBallotCanceled EventKind = "ballot_canceled"
	EventMemberPurged   EventKind = "member_purged"
)

// Event is one row of the trail. Subject is who the action happened to;
// Actor is who did it, when attribution produced one.
type Event struct {
	ID          uuid.UUID       `json:"id"`
	Kind        EventKind       `json:"kind"`
	At          time.Time       `json:"at"`
	Subject     domain.MemberID `json:"subject,omitempty"`
	SubjectName string          `json:"subject_name,omitempty"`
	Actor       domain.MemberID `json:"actor,omitempty"`
	ActorName   string          `json:"actor_name,omitempty"`
	Detail      string          `json:"detail,omitempty"`
}
