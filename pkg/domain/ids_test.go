package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "conclave/pkg/domain-errors"
)

// TestParseSnowflakeIDs_Invariants validates the parsing invariant:
// platform ids must be non-empty, bounded, numeric strings.
func TestParseSnowflakeIDs_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseMemberID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects non-numeric input", func(t *testing.T) {
		_, err := ParseMemberID("not-a-snowflake")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects oversized input", func(t *testing.T) {
		_, err := ParseMemberID(strings.Repeat("1", 100))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects embedded whitespace", func(t *testing.T) {
		_, err := ParseMemberID("123 456")
		require.Error(t, err)
	})

	t.Run("accepts valid snowflake", func(t *testing.T) {
		id, err := ParseMemberID("302050872383242240")
		require.NoError(t, err)
		assert.Equal(t, MemberID("302050872383242240"), id)
	})
}

// TestAllSnowflakeTypes_ConsistentBehavior ensures every platform id type has
// identical parsing behavior.
func TestAllSnowflakeTypes_ConsistentBehavior(t *testing.T) {
	valid := "302050872383242240"
	invalidInputs := []string{"", "invalid", "'; DROP TABLE members;--", "../../etc/passwd"}

	t.Run("all accept valid snowflake", func(t *testing.T) {
		_, errMember := ParseMemberID(valid)
		_, errRole := ParseRoleID(valid)
		_, errChannel := ParseChannelID(valid)
		_, errMessage := ParseMessageID(valid)

		require.NoError(t, errMember)
		require.NoError(t, errRole)
		require.NoError(t, errChannel)
		require.NoError(t, errMessage)
	})

	for _, input := range invalidInputs {
		t.Run("all reject: "+input, func(t *testing.T) {
			_, errMember := ParseMemberID(input)
			_, errRole := ParseRoleID(input)
			_, errChannel := ParseChannelID(input)
			_, errMessage := ParseMessageID(input)

			require.Error(t, errMember)
			require.Error(t, errRole)
			require.Error(t, errChannel)
			require.Error(t, errMessage)
		})
	}
}

func TestMemberID_Mention(t *testing.T) {
	assert.Equal(t, "<@42>", MemberID("42").Mention())
}

func TestParseInviteCode(t *testing.T) {
	t.Run("accepts platform code", func(t *testing.T) {
		code, err := ParseInviteCode("aBcD1234")
		require.NoError(t, err)
		assert.Equal(t, InviteCode("aBcD1234"), code)
	})

	t.Run("accepts locally generated uuid fallback", func(t *testing.T) {
		_, err := ParseInviteCode(uuid.NewString())
		require.NoError(t, err)
	})

	t.Run("rejects empty and malformed", func(t *testing.T) {
		for _, input := range []string{"", "has space", "slash/code", strings.Repeat("a", 100)} {
			_, err := ParseInviteCode(input)
			require.Error(t, err, "input %q", input)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		}
	})
}

// TestParseBallotID_Invariants validates the parsing invariant:
// ballot ids must be valid, non-empty, non-nil UUIDs.
func TestParseBallotID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseBallotID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseBallotID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseBallotID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("round-trips generated id", func(t *testing.T) {
		id := NewBallotID()
		require.False(t, id.IsNil())
		parsed, err := ParseBallotID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	})
}

// TestTypeDistinction verifies the compiler enforces type safety.
// This is a compile-time check - if this compiles, the invariant holds.
func TestTypeDistinction(t *testing.T) {
	memberID := MemberID("1")
	roleID := RoleID("2")

	// These would fail to compile if types were interchangeable:
	// var _ MemberID = roleID   // compile error
	// var _ RoleID = memberID   // compile error

	assert.NotEqual(t, string(memberID), string(roleID))
}
