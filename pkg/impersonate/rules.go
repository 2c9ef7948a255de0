package impersonate

import (
	"github.com/google/uuid"
	"github.com/tenantops/admin-idm/pkg/iam"
)

// Authorization rules for impersonation. These are pure functions over role
// facts so they can be tested exhaustively without a database.

// CanImpersonate reports whether the actor holds a role that is allowed to
// impersonate at all
func CanImpersonate(actor iam.ActorFacts) bool {
	return actor.IsSuperAdmin || actor.IsOrgAdmin
}

// CanBeImpersonated reports whether the target may ever be impersonated.
// Super admins can never be impersonated, by anyone.
func CanBeImpersonated(target iam.TargetFacts) bool {
	return !target.IsSuperAdmin()
}

// OrgsOverlap reports whether the actor administers at least one
// organization the target belongs to
func OrgsOverlap(adminOrgs, targetOrgs []uuid.UUID) bool {
	if len(adminOrgs) == 0 || len(targetOrgs) == 0 {
		return false
	}
	admin := make(map[uuid.UUID]struct{}, len(adminOrgs))
	for _, id := range adminOrgs {
		admin[id] = struct{}{}
	}
	for _, id := range targetOrgs {
		if _, ok := admin[id]; ok {
			return true
		}
	}
	return false
}

// canOrgAdminImpersonate applies the org-admin constraints: the target must
// belong to an org the actor administers and must not hold an admin role.
// Org admins impersonating other org admins stays disallowed even within
// the same org.
func canOrgAdminImpersonate(actor iam.ActorFacts, target iam.TargetFacts) bool {
	if target.IsSuperAdmin() || target.IsOrgAdmin() {
		return false
	}
	return OrgsOverlap(actor.AdminOrganizationIDs, target.OrganizationIDs)
}

// Authorize decides whether the actor may impersonate the target. Returns
// ErrForbidden when not; self-impersonation is always refused.
func Authorize(actor iam.ActorFacts, target iam.TargetFacts) error {
	if actor.UserID == target.UserID {
		return ErrForbidden
	}
	if !CanImpersonate(actor) {
		return ErrForbidden
	}
	if !CanBeImpersonated(target) {
		return ErrForbidden
	}
	if actor.IsSuperAdmin {
		return nil
	}
	if canOrgAdminImpersonate(actor, target) {
		return nil
	}
	return ErrForbidden
}

// AuthorizeInOrg applies Authorize and additionally pins the session to one
// organization when the caller named one: the target must belong to it and,
// unless the actor is a super admin, the actor must administer it.
func AuthorizeInOrg(actor iam.ActorFacts, target iam.TargetFacts, orgID *uuid.UUID) error {
	if err := Authorize(actor, target); err != nil {
		return err
	}
	if orgID == nil {
		return nil
	}
	if !containsOrg(target.OrganizationIDs, *orgID) {
		return ErrForbidden
	}
	if actor.IsSuperAdmin {
		return nil
	}
	if !containsOrg(actor.AdminOrganizationIDs, *orgID) {
		return ErrForbidden
	}
	return nil
}

func containsOrg(orgs []uuid.UUID, orgID uuid.UUID) bool {
	for _, id := range orgs {
		if id == orgID {
			return true
		}
	}
	return false
}
