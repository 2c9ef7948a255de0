package refreshtoken

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TokenRepository persists refresh token rows.
type TokenRepository interface {
	// Insert stores a new token row
	Insert(ctx context.Context, token RefreshToken) error

	// FindByHash looks a token up by secret hash, including rotated and
	// revoked rows. Returns nil, nil when no row matches.
	FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// MarkRotated stamps rotated_at on the token only if it has not been
	// rotated or revoked yet. Returns false when another request already
	// consumed the token. This is the compare-and-swap that makes
	// concurrent rotation safe.
	MarkRotated(ctx context.Context, tokenID uuid.UUID, rotatedAt time.Time) (bool, error)

	// RevokeByID revokes a single token
	RevokeByID(ctx context.Context, tokenID uuid.UUID, revokedAt time.Time) error

	// RevokeFamily revokes every not-yet-revoked token in a family and
	// returns the number of rows affected
	RevokeFamily(ctx context.Context, familyID uuid.UUID, revokedAt time.Time) (int64, error)

	// RevokeAllForUser revokes every not-yet-revoked token belonging to a
	// user across all families
	RevokeAllForUser(ctx context.Context, userID uuid.UUID, revokedAt time.Time) (int64, error)
}
