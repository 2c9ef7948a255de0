package refreshtoken

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemRepository implements TokenRepository with an in-memory map for
// testing. It mirrors the conditional-update semantics of the Postgres
// implementation: MarkRotated only succeeds on an unrotated, unrevoked row.
type InMemRepository struct {
	mu     sync.Mutex
	byHash map[string]*RefreshToken
	byID   map[uuid.UUID]*RefreshToken
}

func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		byHash: make(map[string]*RefreshToken),
		byID:   make(map[uuid.UUID]*RefreshToken),
	}
}

func (r *InMemRepository) Insert(ctx context.Context, token RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := token
	r.byHash[stored.TokenHash] = &stored
	r.byID[stored.ID] = &stored
	return nil
}

func (r *InMemRepository) FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.byHash[tokenHash]
	if !ok {
		return nil, nil
	}
	copy := *token
	return &copy, nil
}

func (r *InMemRepository) MarkRotated(ctx context.Context, tokenID uuid.UUID, rotatedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.byID[tokenID]
	if !ok || token.RotatedAt != nil || token.RevokedAt != nil {
		return false, nil
	}
	t := rotatedAt
	token.RotatedAt = &t
	return true, nil
}

func (r *InMemRepository) RevokeByID(ctx context.Context, tokenID uuid.UUID, revokedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.byID[tokenID]
	if !ok || token.RevokedAt != nil {
		return nil
	}
	t := revokedAt
	token.RevokedAt = &t
	return nil
}

func (r *InMemRepository) RevokeFamily(ctx context.Context, familyID uuid.UUID, revokedAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, token := range r.byID {
		if token.FamilyID == familyID && token.RevokedAt == nil {
			t := revokedAt
			token.RevokedAt = &t
			count++
		}
	}
	return count, nil
}

func (r *InMemRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID, revokedAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, token := range r.byID {
		if token.UserID == userID && token.RevokedAt == nil {
			t := revokedAt
			token.RevokedAt = &t
			count++
		}
	}
	return count, nil
}
