package ballot

import "conclave/pkg/domain"

// Tally is the current effective count of a ballot.
type Tally struct {
	Yes      int
	No       int
	Cast     int
	Eligible int
}

func (b *Ballot) tally() Tally {
	t := Tally{Eligible: b.Eligible}
	for _, v := range b.Votes {
		t.Cast++
		if v.Choice == domain.ChoiceYes {
			t.Yes++
		} else {
			t.No++
		}
	}
	return t
}

// decide applies the missing-vote policy and then the resolution rule.
// Called at deadline (or cancel-free forced resolution); missing votes only
// exist once no further casting can happen.
func decide(p Policy, t Tally) domain.Outcome {
	yes, no := t.Yes, t.No
	missing := t.Eligible - t.Cast
	if missing < 0 {
		missing = 0
	}

	switch p.Missing {
	case domain.MissingCountAsYes:
		yes += missing
	case domain.MissingCountAsNo:
		no += missing
	}

	if approves(p.Rule, yes, no, t.Eligible) {
		return domain.OutcomeApproved
	}
	return domain.OutcomeRejected
}

func approves(rule domain.ResolutionRule, yes, no, eligible int) bool {
	switch rule {
	case domain.RuleUnanimous:
		return no == 0 && yes > 0
	case domain.RuleSimpleMajority:
		return yes > no
	case domain.RuleAbsoluteMajority:
		return yes*2 > eligible
	default:
		return false
	}
}

// certainOutcome reports whether every possible continuation of the ballot
// resolves the same way: the outcome with all remaining voters casting yes
// equals the outcome with all of them casting no. The missing-vote policy
// plays no part here; before the deadline nobody is missing yet.
func certainOutcome(p Policy, t Tally) (domain.Outcome, bool) {
	remaining := t.Eligible - t.Cast
	if remaining < 0 {
		remaining = 0
	}

	allYes := approves(p.Rule, t.Yes+remaining, t.No, t.Eligible)
	allNo := approves(p.Rule, t.Yes, t.No+remaining, t.Eligible)
	if allYes != allNo {
		return "", false
	}
	if allYes {
		return domain.OutcomeApproved, true
	}
	return domain.OutcomeRejected, true
}
