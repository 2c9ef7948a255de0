package iam

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// InMemUser is the seed record for the in-memory repository
type InMemUser struct {
	User            User
	Roles           []string
	OrganizationIDs []uuid.UUID
	AdminOrgIDs     []uuid.UUID
}

// InMemRepository is an in-memory RoleFactsRepository and UserDirectory
// used by tests and the quickstart binary.
type InMemRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]InMemUser
}

// NewInMemRepository creates an empty in-memory repository
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		users: make(map[uuid.UUID]InMemUser),
	}
}

// AddUser registers or replaces a user record
func (r *InMemRepository) AddUser(u InMemUser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.User.ID] = u
}

// GetActorFacts implements RoleFactsRepository
func (r *InMemRepository) GetActorFacts(_ context.Context, userID uuid.UUID) (ActorFacts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	facts := ActorFacts{UserID: userID}
	u, ok := r.users[userID]
	if !ok {
		return facts, nil
	}

	facts.Roles = append(facts.Roles, u.Roles...)
	for _, role := range u.Roles {
		switch role {
		case RoleSuperAdmin:
			facts.IsSuperAdmin = true
		case RoleOrgAdmin:
			facts.IsOrgAdmin = true
		}
	}
	facts.AdminOrganizationIDs = append(facts.AdminOrganizationIDs, u.AdminOrgIDs...)
	return facts, nil
}

// GetTargetFacts implements RoleFactsRepository
func (r *InMemRepository) GetTargetFacts(_ context.Context, userID uuid.UUID) (TargetFacts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	facts := TargetFacts{UserID: userID, Role: RoleMember}
	u, ok := r.users[userID]
	if !ok {
		return facts, nil
	}

	for _, role := range u.Roles {
		if role == RoleSuperAdmin {
			facts.Role = RoleSuperAdmin
			break
		}
		if role == RoleOrgAdmin {
			facts.Role = RoleOrgAdmin
		}
	}
	facts.OrganizationIDs = append(facts.OrganizationIDs, u.OrganizationIDs...)
	return facts, nil
}

// FindByID implements UserDirectory
func (r *InMemRepository) FindByID(_ context.Context, userID uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, nil
	}
	user := u.User
	return &user, nil
}
