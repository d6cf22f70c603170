package ballot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"conclave/pkg/domain"
)

func policy(rule domain.ResolutionRule, missing domain.MissingVotePolicy) Policy {
	return Policy{Rule: rule, Missing: missing}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		tally   Tally
		outcome domain.Outcome
	}{
		{
			"simple majority of cast approves 3y 1n of 5",
			policy(domain.RuleSimpleMajority, domain.MissingIgnore),
			Tally{Yes: 3, No: 1, Cast: 4, Eligible: 5},
			domain.OutcomeApproved,
		},
		{
			"simple majority of cast approves 2y 1n of 4",
			policy(domain.RuleSimpleMajority, domain.MissingIgnore),
			Tally{Yes: 2, No: 1, Cast: 3, Eligible: 4},
			domain.OutcomeApproved,
		},
		{
			"simple majority tie rejects",
			policy(domain.RuleSimpleMajority, domain.MissingIgnore),
			Tally{Yes: 2, No: 2, Cast: 4, Eligible: 6},
			domain.OutcomeRejected,
		},
		{
			"absolute majority with missing-as-no rejects 4y of 10",
			policy(domain.RuleAbsoluteMajority, domain.MissingCountAsNo),
			Tally{Yes: 4, No: 0, Cast: 4, Eligible: 10},
			domain.OutcomeRejected,
		},
		{
			"absolute majority approves 6y of 10",
			policy(domain.RuleAbsoluteMajority, domain.MissingCountAsNo),
			Tally{Yes: 6, No: 1, Cast: 7, Eligible: 10},
			domain.OutcomeApproved,
		},
		{
			"absolute majority exact half rejects",
			policy(domain.RuleAbsoluteMajority, domain.MissingCountAsNo),
			Tally{Yes: 5, No: 5, Cast: 10, Eligible: 10},
			domain.OutcomeRejected,
		},
		{
			"unanimous approves when every cast vote is yes",
			policy(domain.RuleUnanimous, domain.MissingIgnore),
			Tally{Yes: 3, No: 0, Cast: 3, Eligible: 5},
			domain.OutcomeApproved,
		},
		{
			"unanimous rejects on a single no",
			policy(domain.RuleUnanimous, domain.MissingIgnore),
			Tally{Yes: 4, No: 1, Cast: 5, Eligible: 5},
			domain.OutcomeRejected,
		},
		{
			"unanimous rejects with zero votes",
			policy(domain.RuleUnanimous, domain.MissingIgnore),
			Tally{Eligible: 5},
			domain.OutcomeRejected,
		},
		{
			"missing-as-yes carries an empty admission",
			policy(domain.RuleSimpleMajority, domain.MissingCountAsYes),
			Tally{Eligible: 5},
			domain.OutcomeApproved,
		},
		{
			"missing-as-no sinks a bare majority of cast",
			policy(domain.RuleSimpleMajority, domain.MissingCountAsNo),
			Tally{Yes: 2, No: 1, Cast: 3, Eligible: 8},
			domain.OutcomeRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.outcome, decide(tt.policy, tt.tally))
		})
	}
}

func TestCertainOutcome(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		tally   Tally
		outcome domain.Outcome
		certain bool
	}{
		{
			"3y 1n of 5 is already approved either way",
			policy(domain.RuleSimpleMajority, domain.MissingIgnore),
			Tally{Yes: 3, No: 1, Cast: 4, Eligible: 5},
			domain.OutcomeApproved, true,
		},
		{
			"2y 1n of 5 can still swing",
			policy(domain.RuleSimpleMajority, domain.MissingIgnore),
			Tally{Yes: 2, No: 1, Cast: 3, Eligible: 5},
			"", false,
		},
		{
			"absolute majority reached resolves early",
			policy(domain.RuleAbsoluteMajority, domain.MissingCountAsNo),
			Tally{Yes: 6, No: 0, Cast: 6, Eligible: 10},
			domain.OutcomeApproved, true,
		},
		{
			"absolute majority unreachable resolves early",
			policy(domain.RuleAbsoluteMajority, domain.MissingCountAsNo),
			Tally{Yes: 0, No: 6, Cast: 6, Eligible: 10},
			domain.OutcomeRejected, true,
		},
		{
			"unanimous dies on the first no",
			policy(domain.RuleUnanimous, domain.MissingIgnore),
			Tally{Yes: 1, No: 1, Cast: 2, Eligible: 5},
			domain.OutcomeRejected, true,
		},
		{
			"unanimous with only yes votes stays open",
			policy(domain.RuleUnanimous, domain.MissingIgnore),
			Tally{Yes: 2, No: 0, Cast: 2, Eligible: 5},
			"", false,
		},
		{
			"full turnout is always certain",
			policy(domain.RuleSimpleMajority, domain.MissingIgnore),
			Tally{Yes: 2, No: 3, Cast: 5, Eligible: 5},
			domain.OutcomeRejected, true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, certain := certainOutcome(tt.policy, tt.tally)
			assert.Equal(t, tt.certain, certain)
			if tt.certain {
				assert.Equal(t, tt.outcome, outcome)
			}
		})
	}
}
