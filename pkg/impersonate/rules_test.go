package impersonate

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/tenantops/admin-idm/pkg/iam"
)

func superAdminActor() iam.ActorFacts {
	return iam.ActorFacts{
		UserID:       uuid.New(),
		IsSuperAdmin: true,
		Roles:        []string{iam.RoleSuperAdmin},
	}
}

func orgAdminActor(adminOrgs ...uuid.UUID) iam.ActorFacts {
	return iam.ActorFacts{
		UserID:               uuid.New(),
		IsOrgAdmin:           true,
		AdminOrganizationIDs: adminOrgs,
		Roles:                []string{iam.RoleOrgAdmin},
	}
}

func memberTarget(orgs ...uuid.UUID) iam.TargetFacts {
	return iam.TargetFacts{
		UserID:          uuid.New(),
		Role:            iam.RoleMember,
		OrganizationIDs: orgs,
	}
}

func TestAuthorizeSuperAdmin(t *testing.T) {
	actor := superAdminActor()

	// Super admin may impersonate members and org admins anywhere
	assert.NoError(t, Authorize(actor, memberTarget()))
	assert.NoError(t, Authorize(actor, iam.TargetFacts{
		UserID: uuid.New(),
		Role:   iam.RoleOrgAdmin,
	}))

	// But never another super admin
	err := Authorize(actor, iam.TargetFacts{
		UserID: uuid.New(),
		Role:   iam.RoleSuperAdmin,
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeOrgAdmin(t *testing.T) {
	orgA := uuid.New()
	orgB := uuid.New()
	actor := orgAdminActor(orgA)

	// Member of an administered org: allowed
	assert.NoError(t, Authorize(actor, memberTarget(orgA)))

	// Member of an unrelated org: forbidden
	assert.ErrorIs(t, Authorize(actor, memberTarget(orgB)), ErrForbidden)

	// Member of no org at all: forbidden
	assert.ErrorIs(t, Authorize(actor, memberTarget()), ErrForbidden)

	// Other admins are off limits even inside the administered org
	assert.ErrorIs(t, Authorize(actor, iam.TargetFacts{
		UserID:          uuid.New(),
		Role:            iam.RoleOrgAdmin,
		OrganizationIDs: []uuid.UUID{orgA},
	}), ErrForbidden)
	assert.ErrorIs(t, Authorize(actor, iam.TargetFacts{
		UserID:          uuid.New(),
		Role:            iam.RoleSuperAdmin,
		OrganizationIDs: []uuid.UUID{orgA},
	}), ErrForbidden)
}

func TestAuthorizeNonAdmin(t *testing.T) {
	orgA := uuid.New()
	actor := iam.ActorFacts{
		UserID: uuid.New(),
		Roles:  []string{iam.RoleMember},
	}

	assert.ErrorIs(t, Authorize(actor, memberTarget(orgA)), ErrForbidden)
}

func TestAuthorizeSelf(t *testing.T) {
	actor := superAdminActor()
	target := iam.TargetFacts{
		UserID: actor.UserID,
		Role:   iam.RoleMember,
	}

	assert.ErrorIs(t, Authorize(actor, target), ErrForbidden)
}

func TestOrgsOverlap(t *testing.T) {
	orgA := uuid.New()
	orgB := uuid.New()
	orgC := uuid.New()

	assert.True(t, OrgsOverlap([]uuid.UUID{orgA, orgB}, []uuid.UUID{orgB, orgC}))
	assert.False(t, OrgsOverlap([]uuid.UUID{orgA}, []uuid.UUID{orgC}))
	assert.False(t, OrgsOverlap(nil, []uuid.UUID{orgA}))
	assert.False(t, OrgsOverlap([]uuid.UUID{orgA}, nil))
}

func TestAuthorizeInOrg(t *testing.T) {
	orgA := uuid.New()
	orgB := uuid.New()
	actor := orgAdminActor(orgA)
	target := memberTarget(orgA, orgB)

	assert.NoError(t, AuthorizeInOrg(actor, target, nil))
	assert.NoError(t, AuthorizeInOrg(actor, target, &orgA))

	// The actor does not administer orgB even though the target belongs to it
	assert.ErrorIs(t, AuthorizeInOrg(actor, target, &orgB), ErrForbidden)

	// The target is not in the named organization
	other := uuid.New()
	assert.ErrorIs(t, AuthorizeInOrg(actor, target, &other), ErrForbidden)

	// A super admin only needs the target to belong to the organization
	super := superAdminActor()
	assert.NoError(t, AuthorizeInOrg(super, target, &orgB))
	assert.ErrorIs(t, AuthorizeInOrg(super, target, &other), ErrForbidden)
}
