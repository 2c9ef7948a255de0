package iam

import (
	"github.com/google/uuid"
)

// Role names as stored in the role table
const (
	RoleSuperAdmin = "super_admin"
	RoleOrgAdmin   = "org_admin"
	RoleMember     = "member"
	RoleViewer     = "viewer"
)

// User is the directory record exposed to the identity subsystem
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Role      string    `json:"role,omitempty"`
}

// DisplayName returns the user's full name, falling back to the email
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}

// ActorFacts describes what an acting user is allowed to do
type ActorFacts struct {
	UserID       uuid.UUID
	IsSuperAdmin bool
	IsOrgAdmin   bool
	// Organizations where the actor holds an admin or owner membership
	AdminOrganizationIDs []uuid.UUID
	Roles                []string
}

// TargetFacts describes a user someone wants to act upon
type TargetFacts struct {
	UserID          uuid.UUID
	Role            string
	OrganizationIDs []uuid.UUID
}

// IsSuperAdmin reports whether the target holds the platform super admin role
func (t TargetFacts) IsSuperAdmin() bool {
	return t.Role == RoleSuperAdmin
}

// IsOrgAdmin reports whether the target holds an organization admin role
func (t TargetFacts) IsOrgAdmin() bool {
	return t.Role == RoleOrgAdmin
}
