package refreshtoken

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is one link in a token family chain. Rows are never deleted;
// rotation and revocation only set the corresponding timestamps, leaving an
// append-only audit trail of every secret ever issued.
//
// Only the SHA-256 hash of the secret is stored. The raw secret exists
// exactly once, in the IssuedToken handed back to the client.
type RefreshToken struct {
	ID        uuid.UUID  `json:"id"`
	TokenHash string     `json:"-"`
	UserID    uuid.UUID  `json:"user_id"`
	FamilyID  uuid.UUID  `json:"family_id"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RotatedAt *time.Time `json:"rotated_at,omitempty"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	UserAgent string     `json:"user_agent,omitempty"`
	IPAddress string     `json:"ip_address,omitempty"`
}

// IsExpired reports whether the token's lifetime has elapsed
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsRotated reports whether this exact token was already exchanged
func (t *RefreshToken) IsRotated() bool {
	return t.RotatedAt != nil
}

// IsRevoked reports whether the token or its family has been revoked
func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsActive reports whether the token can still be exchanged
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.IsRotated() && !t.IsRevoked() && !t.IsExpired(now)
}

// Metadata captures the client context a token was issued under
type Metadata struct {
	UserAgent string
	IPAddress string
}

// IssuedToken pairs a stored token row with its raw secret. The secret is
// returned to the caller once and is not recoverable afterwards.
type IssuedToken struct {
	Raw   string
	Token RefreshToken
}
