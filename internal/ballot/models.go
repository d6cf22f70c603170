// Package ballot implements the vote coordinator: opening ballots, casting
// and overwriting votes, early and deadline resolution, and the role effects
// each ballot kind carries.
package ballot

import (
	"time"

	"conclave/pkg/domain"
)

// Policy is the per-kind configuration the coordinator runs a ballot under.
type Policy struct {
	Visibility domain.Visibility
	Rule       domain.ResolutionRule
	Missing    domain.MissingVotePolicy
	Deadline   time.Duration
}

// Ballot is one governance procedure in flight or just concluded. The
// eligible pool is snapshotted at open; casting additionally requires holding
// the privileged role at cast time.
type Ballot struct {
	ID            domain.BallotID
	Kind          domain.BallotKind
	Subject       domain.MemberID
	SubjectName   string
	Initiator     domain.MemberID
	InitiatorName string
	Reason        string

	Policy   Policy
	Eligible int

	ChannelID domain.ChannelID
	MessageID domain.MessageID

	OpenedAt time.Time
	Deadline time.Time

	Votes map[domain.MemberID]vote

	Resolved   bool
	Outcome    domain.Outcome
	ResolvedAt time.Time
}

type vote struct {
	Choice    domain.Choice
	VoterName string
}

// Summary is the read-only projection served by the ops API.
type Summary struct {
	ID          domain.BallotID   `json:"id"`
	Kind        domain.BallotKind `json:"kind"`
	Subject     domain.MemberID   `json:"subject"`
	SubjectName string            `json:"subject_name"`
	OpenedAt    time.Time         `json:"opened_at"`
	Deadline    time.Time         `json:"deadline"`
	Yes         int               `json:"yes"`
	No          int               `json:"no"`
	Eligible    int               `json:"eligible"`
	Resolved    bool              `json:"resolved"`
	Outcome     domain.Outcome    `json:"outcome,omitempty"`
}

func (b *Ballot) summary() Summary {
	t := b.tally()
	return Summary{
		ID:          b.ID,
		Kind:        b.Kind,
		Subject:     b.Subject,
		SubjectName: b.SubjectName,
		OpenedAt:    b.OpenedAt,
		Deadline:    b.Deadline,
		Yes:         t.Yes,
		No:          t.No,
		Eligible:    b.Eligible,
		Resolved:    b.Resolved,
		Outcome:     b.Outcome,
	}
}
