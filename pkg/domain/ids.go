package domain

import (
	"strings"
	"unicode"

	"github.com/google/uuid"

	dErrors "conclave/pkg/domain-errors"
)

// Platform identifiers (members, roles, channels, messages) are opaque
// numeric strings assigned by the chat platform. They are never generated
// locally; parsing enforces shape at trust boundaries.
//
// Usage: construct via the Parse* functions when reading gateway payloads or
// API input; direct casting bypasses validation.
type (
	MemberID  string
	RoleID    string
	ChannelID string
	MessageID string
)

// InviteCode is the short token of a platform invite link. Unlike the numeric
// ids above it is alphanumeric.
type InviteCode string

// BallotID identifies a ballot. Generated locally, never by the platform.
type BallotID uuid.UUID

const maxSnowflakeLen = 32

func parseSnowflake(s, what string) (string, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	if len(s) > maxSnowflakeLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, what+" too long")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", dErrors.New(dErrors.CodeInvalidInput, what+" must be numeric")
		}
	}
	return s, nil
}

func ParseMemberID(s string) (MemberID, error) {
	v, err := parseSnowflake(s, "member id")
	return MemberID(v), err
}

func ParseRoleID(s string) (RoleID, error) {
	v, err := parseSnowflake(s, "role id")
	return RoleID(v), err
}

func ParseChannelID(s string) (ChannelID, error) {
	v, err := parseSnowflake(s, "channel id")
	return ChannelID(v), err
}

func ParseMessageID(s string) (MessageID, error) {
	v, err := parseSnowflake(s, "message id")
	return MessageID(v), err
}

// ParseInviteCode validates an invite token: non-empty, bounded, and
// alphanumeric (dashes allowed, as locally generated fallback codes are UUIDs).
func ParseInviteCode(s string) (InviteCode, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invite code cannot be empty")
	}
	if len(s) > 64 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invite code too long")
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' {
			return "", dErrors.New(dErrors.CodeInvalidInput, "invite code contains invalid characters")
		}
	}
	return InviteCode(s), nil
}

func (m MemberID) String() string  { return string(m) }
func (r RoleID) String() string    { return string(r) }
func (c ChannelID) String() string { return string(c) }
func (m MessageID) String() string { return string(m) }
func (i InviteCode) String() string { return string(i) }

// Mention renders the member as a platform mention token.
func (m MemberID) Mention() string { return "<@" + string(m) + ">" }

// NewBallotID generates a fresh ballot id.
func NewBallotID() BallotID {
	return BallotID(uuid.New())
}

// ParseBallotID constructs a BallotID from external input (ops API paths).
//
// Errors: returns CodeInvalidInput when the value is empty, malformed, or the
// nil UUID; no other errors are expected.
func ParseBallotID(s string) (BallotID, error) {
	if strings.TrimSpace(s) == "" {
		return BallotID{}, dErrors.New(dErrors.CodeInvalidInput, "ballot id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return BallotID{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid ballot id")
	}
	if u == uuid.Nil {
		return BallotID{}, dErrors.New(dErrors.CodeInvalidInput, "ballot id cannot be nil")
	}
	return BallotID(u), nil
}

func (b BallotID) String() string {
	return uuid.UUID(b).String()
}

func (b BallotID) IsNil() bool {
	return uuid.UUID(b) == uuid.Nil
}
