package domain

import dErrors "conclave/pkg/domain-errors"

// AuditActionKind names a platform audit-log action the engine attributes.
// Values mirror the platform's audit log action types.
type AuditActionKind string

const (
	AuditMemberKick        AuditActionKind = "member_kick"
	AuditMemberBanAdd      AuditActionKind = "member_ban_add"
	AuditMemberBanRemove   AuditActionKind = "member_ban_remove"
	AuditMemberRoleUpdate  AuditActionKind = "member_role_update"
	AuditMessageDelete     AuditActionKind = "message_delete"
	AuditMessageBulkDelete AuditActionKind = "message_bulk_delete"
)

var validAuditActionKinds = map[AuditActionKind]bool{
	AuditMemberKick:        true,
	AuditMemberBanAdd:      true,
	AuditMemberBanRemove:   true,
	AuditMemberRoleUpdate:  true,
	AuditMessageDelete:     true,
	AuditMessageBulkDelete: true,
}

func ParseAuditActionKind(s string) (AuditActionKind, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "audit action kind cannot be empty")
	}
	k := AuditActionKind(s)
	if !k.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid audit action kind")
	}
	return k, nil
}

func (k AuditActionKind) IsValid() bool {
	return validAuditActionKinds[k]
}

func (k AuditActionKind) String() string {
	return string(k)
}

// TargetCheckSkipped reports whether attribution for this action kind must
// not compare the audit entry's target against the event's target. Deletion
// entries aggregate counts per channel, so their target is unreliable.
func (k AuditActionKind) TargetCheckSkipped() bool {
	return k == AuditMessageDelete || k == AuditMessageBulkDelete
}
