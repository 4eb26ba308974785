package domain

import "strings"

// Permission is a family of operations guarded by the oracle.
type Permission string

const (
	PermEnvironmentAPI         Permission = "ENVIRONMENT_API"
	PermEnvironmentApplication Permission = "ENVIRONMENT_APPLICATION"
	PermEnvironmentAnalytics   Permission = "ENVIRONMENT_ANALYTICS"

	PermAPIDefinition    Permission = "API_DEFINITION"
	PermAPIPlan          Permission = "API_PLAN"
	PermAPISubscription  Permission = "API_SUBSCRIPTION"
	PermAPIMember        Permission = "API_MEMBER"
	PermAPIDocumentation Permission = "API_DOCUMENTATION"
	PermAPIAlert         Permission = "API_ALERT"
	PermAPIAnalytics     Permission = "API_ANALYTICS"
	PermAPIAudit         Permission = "API_AUDIT"
	PermAPIReviews       Permission = "API_REVIEWS"

	PermApplicationDefinition   Permission = "APPLICATION_DEFINITION"
	PermApplicationSubscription Permission = "APPLICATION_SUBSCRIPTION"
	PermApplicationMember       Permission = "APPLICATION_MEMBER"
)

// Act is one of the CRUD operations of a permission.
type Act byte

const (
	Create Act = 'C'
	Read   Act = 'R'
	Update Act = 'U'
	Delete Act = 'D'
)

// Acts is a set of operations, written like "CRUD".
type Acts string

// Has reports whether every act is in the set.
func (a Acts) Has(acts ...Act) bool {
	for _, act := range acts {
		if !strings.ContainsRune(string(a), rune(act)) {
			return false
		}
	}
	return true
}

// Role is a named set of permissions within one reference type.
type Role struct {
	Scope       ReferenceType
	Name        string
	Permissions map[Permission]Acts
}

// Grants reports whether the role allows every act on the permission.
func (r Role) Grants(p Permission, acts ...Act) bool {
	granted, ok := r.Permissions[p]
	return ok && granted.Has(acts...)
}

const crud Acts = "CRUD"

// BuiltInRoles returns the role catalog. System roles cannot be edited.
func BuiltInRoles() []Role {
	return []Role{
		{
			Scope: ReferenceEnvironment,
			Name:  RoleAdmin,
			Permissions: map[Permission]Acts{
				PermEnvironmentAPI:         crud,
				PermEnvironmentApplication: crud,
				PermEnvironmentAnalytics:   "R",
			},
		},
		{
			Scope: ReferenceEnvironment,
			Name:  RoleUser,
			Permissions: map[Permission]Acts{
				PermEnvironmentAPI:         "C",
				PermEnvironmentApplication: "C",
			},
		},
		{
			Scope: ReferenceAPI,
			Name:  RolePrimaryOwner,
			Permissions: map[Permission]Acts{
				PermAPIDefinition:    crud,
				PermAPIPlan:          crud,
				PermAPISubscription:  crud,
				PermAPIMember:        crud,
				PermAPIDocumentation: crud,
				PermAPIAlert:         crud,
				PermAPIAnalytics:     "R",
				PermAPIAudit:         "R",
				PermAPIReviews:       "R",
			},
		},
		{
			Scope: ReferenceAPI,
			Name:  RoleOwner,
			Permissions: map[Permission]Acts{
				PermAPIDefinition:    "RU",
				PermAPIPlan:          crud,
				PermAPISubscription:  crud,
				PermAPIMember:        "CRU",
				PermAPIDocumentation: crud,
				PermAPIAlert:         crud,
				PermAPIAnalytics:     "R",
				PermAPIAudit:         "R",
				PermAPIReviews:       "R",
			},
		},
		{
			Scope: ReferenceAPI,
			Name:  RoleUser,
			Permissions: map[Permission]Acts{
				PermAPIDefinition:    "R",
				PermAPIPlan:          "R",
				PermAPIDocumentation: "R",
				PermAPIAnalytics:     "R",
			},
		},
		{
			Scope: ReferenceAPI,
			Name:  RoleReviewer,
			Permissions: map[Permission]Acts{
				PermAPIDefinition:    "R",
				PermAPIPlan:          "R",
				PermAPIDocumentation: "R",
				PermAPIReviews:       "RU",
			},
		},
		{
			Scope: ReferenceApplication,
			Name:  RolePrimaryOwner,
			Permissions: map[Permission]Acts{
				PermApplicationDefinition:   crud,
				PermApplicationSubscription: crud,
				PermApplicationMember:       crud,
			},
		},
		{
			Scope: ReferenceApplication,
			Name:  RoleOwner,
			Permissions: map[Permission]Acts{
				PermApplicationDefinition:   "RU",
				PermApplicationSubscription: crud,
				PermApplicationMember:       "CRU",
			},
		},
		{
			Scope: ReferenceApplication,
			Name:  RoleUser,
			Permissions: map[Permission]Acts{
				PermApplicationDefinition:   "R",
				PermApplicationSubscription: "R",
				PermApplicationMember:       "R",
			},
		},
	}
}

// FindRole looks up a built-in role by scope and name.
func FindRole(scope ReferenceType, name string) (Role, bool) {
	for _, r := range BuiltInRoles() {
		if r.Scope == scope && r.Name == name {
			return r, true
		}
	}
	return Role{}, false
}
