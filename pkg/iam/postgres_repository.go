package iam

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements RoleFactsRepository and UserDirectory
// over the users, user_roles and organization_members tables.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL IAM repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
	}
}

// GetActorFacts loads the acting user's roles and admin organizations
func (r *PostgresRepository) GetActorFacts(ctx context.Context, userID uuid.UUID) (ActorFacts, error) {
	facts := ActorFacts{UserID: userID}

	rows, err := r.pool.Query(ctx, `
		SELECT r.name
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1
	`, userID)
	if err != nil {
		return ActorFacts{}, fmt.Errorf("failed to query actor roles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return ActorFacts{}, fmt.Errorf("failed to scan role: %w", err)
		}
		facts.Roles = append(facts.Roles, name)
		switch name {
		case RoleSuperAdmin:
			facts.IsSuperAdmin = true
		case RoleOrgAdmin:
			facts.IsOrgAdmin = true
		}
	}
	if rows.Err() != nil {
		return ActorFacts{}, fmt.Errorf("error iterating roles: %w", rows.Err())
	}

	adminOrgRows, err := r.pool.Query(ctx, `
		SELECT organization_id
		FROM organization_members
		WHERE user_id = $1
		  AND role IN ('admin', 'owner')
	`, userID)
	if err != nil {
		return ActorFacts{}, fmt.Errorf("failed to query admin organizations: %w", err)
	}
	defer adminOrgRows.Close()

	for adminOrgRows.Next() {
		var orgID uuid.UUID
		if err := adminOrgRows.Scan(&orgID); err != nil {
			return ActorFacts{}, fmt.Errorf("failed to scan organization id: %w", err)
		}
		facts.AdminOrganizationIDs = append(facts.AdminOrganizationIDs, orgID)
	}
	if adminOrgRows.Err() != nil {
		return ActorFacts{}, fmt.Errorf("error iterating organizations: %w", adminOrgRows.Err())
	}

	return facts, nil
}

// GetTargetFacts loads a target user's primary role and organization memberships
func (r *PostgresRepository) GetTargetFacts(ctx context.Context, userID uuid.UUID) (TargetFacts, error) {
	facts := TargetFacts{UserID: userID}

	// A user may hold several roles; the most privileged one decides
	// whether they can be impersonated.
	var role sql.NullString
	err := r.pool.QueryRow(ctx, `
		SELECT r.name
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1
		ORDER BY CASE r.name
			WHEN 'super_admin' THEN 0
			WHEN 'org_admin' THEN 1
			WHEN 'member' THEN 2
			ELSE 3
		END
		LIMIT 1
	`, userID).Scan(&role)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return TargetFacts{}, fmt.Errorf("failed to query target role: %w", err)
	}
	if role.Valid {
		facts.Role = role.String
	} else {
		facts.Role = RoleMember
	}

	rows, err := r.pool.Query(ctx, `
		SELECT organization_id
		FROM organization_members
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return TargetFacts{}, fmt.Errorf("failed to query target organizations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orgID uuid.UUID
		if err := rows.Scan(&orgID); err != nil {
			return TargetFacts{}, fmt.Errorf("failed to scan organization id: %w", err)
		}
		facts.OrganizationIDs = append(facts.OrganizationIDs, orgID)
	}
	if rows.Err() != nil {
		return TargetFacts{}, fmt.Errorf("error iterating organizations: %w", rows.Err())
	}

	return facts, nil
}

// FindByID resolves a user id to a directory record, nil if absent
func (r *PostgresRepository) FindByID(ctx context.Context, userID uuid.UUID) (*User, error) {
	user := &User{}
	var firstName, lastName sql.NullString

	err := r.pool.QueryRow(ctx, `
		SELECT id, email, first_name, last_name
		FROM users
		WHERE id = $1
		  AND deleted_at IS NULL
	`, userID).Scan(&user.ID, &user.Email, &firstName, &lastName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	user.FirstName = firstName.String
	user.LastName = lastName.String
	return user, nil
}
