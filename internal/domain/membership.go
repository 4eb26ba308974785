package domain

import "time"

// ReferenceType names what a membership or permission check is scoped to.
type ReferenceType string

const (
	ReferenceEnvironment ReferenceType = "ENVIRONMENT"
	ReferenceAPI         ReferenceType = "API"
	ReferenceApplication ReferenceType = "APPLICATION"
)

// Reference points at a governed object.
type Reference struct {
	Type ReferenceType
	ID   string
}

// Role names.
const (
	RolePrimaryOwner = "PRIMARY_OWNER"
	RoleOwner        = "OWNER"
	RoleUser         = "USER"
	RoleReviewer     = "REVIEWER"
	RoleAdmin        = "ADMIN"
)

// Membership grants a role on a reference to a principal.
type Membership struct {
	ID        string
	MemberID  string
	Reference Reference
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewMembership creates a membership.
func NewMembership(id, memberID string, ref Reference, role string) Membership {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return Membership{
		ID:        id,
		MemberID:  memberID,
		Reference: ref,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
