package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "conclave/pkg/domain-errors"
)

func TestParseBallotKind(t *testing.T) {
	t.Run("accepts supported kinds", func(t *testing.T) {
		for _, s := range []string{"admission", "manual_sanction", "severe_sanction"} {
			k, err := ParseBallotKind(s)
			require.NoError(t, err)
			assert.True(t, k.IsValid())
		}
	})

	t.Run("rejects empty and unknown", func(t *testing.T) {
		for _, s := range []string{"", "referendum", "ADMISSION"} {
			_, err := ParseBallotKind(s)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		}
	})
}

func TestBallotKind_Category(t *testing.T) {
	assert.Equal(t, CategoryAdmission, BallotKindAdmission.Category())
	assert.Equal(t, CategorySanction, BallotKindManualSanction.Category())
	assert.Equal(t, CategorySanction, BallotKindSevereSanction.Category())
}

func TestBallotKind_IsSanction(t *testing.T) {
	assert.False(t, BallotKindAdmission.IsSanction())
	assert.True(t, BallotKindManualSanction.IsSanction())
	assert.True(t, BallotKindSevereSanction.IsSanction())
}

func TestGovernanceEnums_Parse(t *testing.T) {
	t.Run("choice", func(t *testing.T) {
		c, err := ParseChoice("yes")
		require.NoError(t, err)
		assert.Equal(t, ChoiceYes, c)

		_, err = ParseChoice("abstain")
		require.Error(t, err)
	})

	t.Run("visibility", func(t *testing.T) {
		v, err := ParseVisibility("anonymous")
		require.NoError(t, err)
		assert.Equal(t, VisibilityAnonymous, v)

		_, err = ParseVisibility("secret")
		require.Error(t, err)
	})

	t.Run("resolution rule", func(t *testing.T) {
		r, err := ParseResolutionRule("absolute_majority")
		require.NoError(t, err)
		assert.Equal(t, RuleAbsoluteMajority, r)

		_, err = ParseResolutionRule("plurality")
		require.Error(t, err)
	})

	t.Run("missing-vote policy", func(t *testing.T) {
		p, err := ParseMissingVotePolicy("count_as_no")
		require.NoError(t, err)
		assert.Equal(t, MissingCountAsNo, p)

		_, err = ParseMissingVotePolicy("quorum")
		require.Error(t, err)
	})
}

func TestAuditActionKind_TargetCheckSkipped(t *testing.T) {
	assert.True(t, AuditMessageDelete.TargetCheckSkipped())
	assert.True(t, AuditMessageBulkDelete.TargetCheckSkipped())
	assert.False(t, AuditMemberKick.TargetCheckSkipped())
	assert.False(t, AuditMemberBanAdd.TargetCheckSkipped())
}
