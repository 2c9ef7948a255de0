package iam

import (
	"context"

	"github.com/google/uuid"
)

// RoleFactsRepository supplies the read-only role facts the authorization
// rules evaluate. Facts are fetched fresh on every decision; they are never
// cached across requests.
type RoleFactsRepository interface {
	GetActorFacts(ctx context.Context, userID uuid.UUID) (ActorFacts, error)
	GetTargetFacts(ctx context.Context, userID uuid.UUID) (TargetFacts, error)
}

// UserDirectory resolves user ids to directory records
type UserDirectory interface {
	FindByID(ctx context.Context, userID uuid.UUID) (*User, error)
}
