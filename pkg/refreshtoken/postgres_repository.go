package refreshtoken

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tenantops/admin-idm/pkg/utils"
)

// PostgresRepository implements TokenRepository backed by PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Insert(ctx context.Context, token RefreshToken) error {
	query := `
		INSERT INTO refresh_token (id, token_hash, user_id, family_id, issued_at, expires_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		token.ID,
		token.TokenHash,
		token.UserID,
		token.FamilyID,
		token.IssuedAt,
		token.ExpiresAt,
		utils.ToNullString(token.UserAgent),
		utils.ToNullString(token.IPAddress),
	)
	if err != nil {
		return fmt.Errorf("failed to insert refresh token: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	query := `
		SELECT id, token_hash, user_id, family_id, issued_at, expires_at, rotated_at, revoked_at,
		       COALESCE(user_agent, ''), COALESCE(ip_address, '')
		FROM refresh_token
		WHERE token_hash = $1
	`

	var token RefreshToken
	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.TokenHash,
		&token.UserID,
		&token.FamilyID,
		&token.IssuedAt,
		&token.ExpiresAt,
		&token.RotatedAt,
		&token.RevokedAt,
		&token.UserAgent,
		&token.IPAddress,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}
	return &token, nil
}

// MarkRotated performs the rotation compare-and-swap. The WHERE clause only
// matches a token that is still unrotated and unrevoked, so of two racing
// rotations exactly one observes an affected row.
func (r *PostgresRepository) MarkRotated(ctx context.Context, tokenID uuid.UUID, rotatedAt time.Time) (bool, error) {
	query := `
		UPDATE refresh_token
		SET rotated_at = $1
		WHERE id = $2 AND rotated_at IS NULL AND revoked_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, rotatedAt, tokenID)
	if err != nil {
		return false, fmt.Errorf("failed to mark refresh token rotated: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (r *PostgresRepository) RevokeByID(ctx context.Context, tokenID uuid.UUID, revokedAt time.Time) error {
	query := `
		UPDATE refresh_token
		SET revoked_at = $1
		WHERE id = $2 AND revoked_at IS NULL
	`

	_, err := r.pool.Exec(ctx, query, revokedAt, tokenID)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RevokeFamily(ctx context.Context, familyID uuid.UUID, revokedAt time.Time) (int64, error) {
	query := `
		UPDATE refresh_token
		SET revoked_at = $1
		WHERE family_id = $2 AND revoked_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, revokedAt, familyID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke token family: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID, revokedAt time.Time) (int64, error) {
	query := `
		UPDATE refresh_token
		SET revoked_at = $1
		WHERE user_id = $2 AND revoked_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, revokedAt, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke user tokens: %w", err)
	}
	return result.RowsAffected(), nil
}
