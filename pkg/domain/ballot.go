package domain

import dErrors "conclave/pkg/domain-errors"

// BallotKind identifies which governance procedure a ballot runs.
// Invariant: the value must be one of the supported kinds.
type BallotKind string

const (
	BallotKindAdmission      BallotKind = "admission"
	BallotKindManualSanction BallotKind = "manual_sanction"
	BallotKindSevereSanction BallotKind = "severe_sanction"
)

// BallotCategory groups kinds for the one-open-ballot-per-subject rule.
// Both sanction kinds share a category: a member cannot face a manual and a
// severe sanction ballot at the same time.
type BallotCategory string

const (
	CategoryAdmission BallotCategory = "admission"
	CategorySanction  BallotCategory = "sanction"
)

var validBallotKinds = map[BallotKind]bool{
	BallotKindAdmission:      true,
	BallotKindManualSanction: true,
	BallotKindSevereSanction: true,
}

// ParseBallotKind constructs a BallotKind from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseBallotKind(s string) (BallotKind, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "ballot kind cannot be empty")
	}
	k := BallotKind(s)
	if !k.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid ballot kind")
	}
	return k, nil
}

func (k BallotKind) IsValid() bool {
	return validBallotKinds[k]
}

func (k BallotKind) String() string {
	return string(k)
}

// Category returns the uniqueness category of the kind.
func (k BallotKind) Category() BallotCategory {
	if k == BallotKindAdmission {
		return CategoryAdmission
	}
	return CategorySanction
}

// IsSanction reports whether the kind targets an existing privileged member.
func (k BallotKind) IsSanction() bool {
	return k == BallotKindManualSanction || k == BallotKindSevereSanction
}

// Choice is a cast vote. There is no abstain choice; not voting is the only
// way to abstain, and the kind's missing-vote policy decides what that means.
type Choice string

const (
	ChoiceYes Choice = "yes"
	ChoiceNo  Choice = "no"
)

var validChoices = map[Choice]bool{
	ChoiceYes: true,
	ChoiceNo:  true,
}

func ParseChoice(s string) (Choice, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "choice cannot be empty")
	}
	c := Choice(s)
	if !c.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid choice")
	}
	return c, nil
}

func (c Choice) IsValid() bool {
	return validChoices[c]
}

func (c Choice) String() string {
	return string(c)
}

// Visibility controls what the rendered tally exposes. Anonymous ballots show
// aggregate counts only; public ballots list voter names per choice.
type Visibility string

const (
	VisibilityAnonymous Visibility = "anonymous"
	VisibilityPublic    Visibility = "public"
)

var validVisibilities = map[Visibility]bool{
	VisibilityAnonymous: true,
	VisibilityPublic:    true,
}

func ParseVisibility(s string) (Visibility, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "visibility cannot be empty")
	}
	v := Visibility(s)
	if !v.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid visibility")
	}
	return v, nil
}

func (v Visibility) IsValid() bool {
	return validVisibilities[v]
}

func (v Visibility) String() string {
	return string(v)
}

// ResolutionRule decides approval from effective yes/no counts.
//
//   - unanimous: every effective vote is yes and at least one vote was cast
//   - simple_majority: yes strictly exceeds no
//   - absolute_majority: yes strictly exceeds half the eligible pool
type ResolutionRule string

const (
	RuleUnanimous        ResolutionRule = "unanimous"
	RuleSimpleMajority   ResolutionRule = "simple_majority"
	RuleAbsoluteMajority ResolutionRule = "absolute_majority"
)

var validResolutionRules = map[ResolutionRule]bool{
	RuleUnanimous:        true,
	RuleSimpleMajority:   true,
	RuleAbsoluteMajority: true,
}

func ParseResolutionRule(s string) (ResolutionRule, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "resolution rule cannot be empty")
	}
	r := ResolutionRule(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid resolution rule")
	}
	return r, nil
}

func (r ResolutionRule) IsValid() bool {
	return validResolutionRules[r]
}

func (r ResolutionRule) String() string {
	return string(r)
}

// MissingVotePolicy decides how eligible members who never voted count at
// resolution time.
type MissingVotePolicy string

const (
	MissingCountAsYes MissingVotePolicy = "count_as_yes"
	MissingCountAsNo  MissingVotePolicy = "count_as_no"
	MissingIgnore     MissingVotePolicy = "ignore"
)

var validMissingVotePolicies = map[MissingVotePolicy]bool{
	MissingCountAsYes: true,
	MissingCountAsNo:  true,
	MissingIgnore:     true,
}

func ParseMissingVotePolicy(s string) (MissingVotePolicy, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "missing-vote policy cannot be empty")
	}
	p := MissingVotePolicy(s)
	if !p.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid missing-vote policy")
	}
	return p, nil
}

func (p MissingVotePolicy) IsValid() bool {
	return validMissingVotePolicies[p]
}

func (p MissingVotePolicy) String() string {
	return string(p)
}

// Outcome is the terminal disposition of a ballot.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
	OutcomeCanceled Outcome = "canceled"
)

func (o Outcome) String() string {
	return string(o)
}
