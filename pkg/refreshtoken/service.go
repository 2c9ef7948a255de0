package refreshtoken

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tenantops/admin-idm/pkg/audit"
	"github.com/tenantops/admin-idm/pkg/iam"
	"github.com/tenantops/admin-idm/pkg/tokengenerator"
	"github.com/tenantops/admin-idm/pkg/utils"
)

const (
	// DefaultExpiry is the refresh token lifetime when none is configured
	DefaultExpiry = 30 * 24 * time.Hour
	// DefaultSecretBytes is the entropy of a generated token secret
	DefaultSecretBytes = 32
)

// Service issues and rotates refresh tokens. Each login starts a new token
// family; rotation extends the chain one link at a time, and presenting an
// already-rotated link is treated as theft and kills the whole family.
type Service struct {
	repo         TokenRepository
	tokenService *tokengenerator.TokenService
	directory    iam.UserDirectory
	roleFacts    iam.RoleFactsRepository
	recorder     *audit.Recorder
	expiry       time.Duration
	secretBytes  int
}

// Option configures the service
type Option func(*Service)

// WithExpiry overrides the refresh token lifetime
func WithExpiry(expiry time.Duration) Option {
	return func(s *Service) {
		s.expiry = expiry
	}
}

// WithSecretBytes overrides the secret entropy
func WithSecretBytes(n int) Option {
	return func(s *Service) {
		s.secretBytes = n
	}
}

// WithRecorder attaches an audit recorder
func WithRecorder(recorder *audit.Recorder) Option {
	return func(s *Service) {
		s.recorder = recorder
	}
}

func NewService(repo TokenRepository, tokenService *tokengenerator.TokenService, directory iam.UserDirectory, roleFacts iam.RoleFactsRepository, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		tokenService: tokenService,
		directory:    directory,
		roleFacts:    roleFacts,
		expiry:       DefaultExpiry,
		secretBytes:  DefaultSecretBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RotateResult carries the outcome of a successful rotation: the next
// refresh token in the chain and a fresh access token for its owner.
type RotateResult struct {
	RefreshToken IssuedToken
	AccessToken  tokengenerator.AccessToken
	User         *iam.User
}

// Issue mints a new refresh token at the head of a brand new family.
// Called at login.
func (s *Service) Issue(ctx context.Context, userID uuid.UUID, meta Metadata) (*IssuedToken, error) {
	return s.issue(ctx, userID, uuid.New(), meta)
}

func (s *Service) issue(ctx context.Context, userID, familyID uuid.UUID, meta Metadata) (*IssuedToken, error) {
	raw, err := utils.GenerateSecureToken(s.secretBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token secret: %w", err)
	}

	now := time.Now().UTC()
	token := RefreshToken{
		ID:        uuid.New(),
		TokenHash: utils.HashToken(raw),
		UserID:    userID,
		FamilyID:  familyID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.expiry),
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
	}

	if err := s.repo.Insert(ctx, token); err != nil {
		return nil, err
	}
	return &IssuedToken{Raw: raw, Token: token}, nil
}

// Rotate exchanges a presented refresh token for a new refresh/access token
// pair. Presenting a token that was already rotated revokes the entire
// family and returns ErrReuseDetected. Callers at the HTTP boundary must
// collapse every error here into a generic 401, see IsUnauthorized.
func (s *Service) Rotate(ctx context.Context, rawToken string, meta Metadata) (*RotateResult, error) {
	if rawToken == "" {
		return nil, ErrInvalidToken
	}

	token, err := s.repo.FindByHash(ctx, utils.HashToken(rawToken))
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, ErrInvalidToken
	}

	now := time.Now().UTC()
	if token.IsRevoked() {
		return nil, ErrTokenRevoked
	}
	if token.IsRotated() {
		return nil, s.handleReuse(ctx, token, meta)
	}
	if token.IsExpired(now) {
		return nil, ErrTokenExpired
	}

	rotated, err := s.repo.MarkRotated(ctx, token.ID, now)
	if err != nil {
		return nil, err
	}
	if !rotated {
		// Lost the race: another request consumed this token first.
		// Indistinguishable from replay of a stolen token, so treat it
		// the same way.
		return nil, s.handleReuse(ctx, token, meta)
	}

	next, err := s.issue(ctx, token.UserID, token.FamilyID, meta)
	if err != nil {
		return nil, err
	}

	user, err := s.directory.FindByID(ctx, token.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}

	facts, err := s.roleFacts.GetActorFacts(ctx, token.UserID)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.tokenService.GenerateAccessToken(user.ID.String(), user.Email, facts.Roles)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	s.record(audit.NewEntry(audit.CategoryAuthentication, audit.ActionTokenRotated).
		WithActor(token.UserID.String()).
		WithDetail("family_id", token.FamilyID.String()).
		WithDetail("ip_address", meta.IPAddress).
		WithDetail("user_agent", meta.UserAgent))

	return &RotateResult{
		RefreshToken: *next,
		AccessToken:  accessToken,
		User:         user,
	}, nil
}

// handleReuse revokes the whole family after a replayed token and always
// returns ErrReuseDetected
func (s *Service) handleReuse(ctx context.Context, token *RefreshToken, meta Metadata) error {
	revoked, err := s.repo.RevokeFamily(ctx, token.FamilyID, time.Now().UTC())
	if err != nil {
		slog.Error("Failed to revoke token family after reuse", "familyId", token.FamilyID, "err", err)
	} else {
		slog.Warn("Refresh token reuse detected, family revoked",
			"userId", token.UserID, "familyId", token.FamilyID, "revokedCount", revoked)
	}

	s.record(audit.NewEntry(audit.CategoryAuthentication, audit.ActionTokenReuseDetected).
		WithActor(token.UserID.String()).
		WithDetail("family_id", token.FamilyID.String()).
		WithDetail("revoked_count", revoked).
		WithDetail("ip_address", meta.IPAddress).
		WithDetail("user_agent", meta.UserAgent))

	return ErrReuseDetected
}

// RevokeFamily revokes every token in a family. Used at logout.
func (s *Service) RevokeFamily(ctx context.Context, familyID uuid.UUID) (int64, error) {
	return s.repo.RevokeFamily(ctx, familyID, time.Now().UTC())
}

// RevokeByRawToken revokes the family of the presented token. Unknown
// tokens are ignored so logout stays idempotent.
func (s *Service) RevokeByRawToken(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	token, err := s.repo.FindByHash(ctx, utils.HashToken(rawToken))
	if err != nil {
		return err
	}
	if token == nil {
		return nil
	}
	_, err = s.repo.RevokeFamily(ctx, token.FamilyID, time.Now().UTC())
	return err
}

// RevokeAllForUser revokes every token the user holds across all families
// and devices. Used for logout-everywhere and after impersonation abuse.
func (s *Service) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.RevokeAllForUser(ctx, userID, time.Now().UTC())
}

func (s *Service) record(entry audit.Entry) {
	if s.recorder != nil {
		s.recorder.Record(entry)
	}
}
