package auth

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tenantops/admin-idm/pkg/audit"
	"github.com/tenantops/admin-idm/pkg/iam"
	"github.com/tenantops/admin-idm/pkg/refreshtoken"
	"github.com/tenantops/admin-idm/pkg/tokengenerator"
)

// Service authenticates users and manages their refresh token families.
type Service struct {
	credentials   CredentialStore
	directory     iam.UserDirectory
	roleFacts     iam.RoleFactsRepository
	refreshTokens *refreshtoken.Service
	tokenService  *tokengenerator.TokenService
	recorder      *audit.Recorder
}

// Option configures the service
type Option func(*Service)

// WithRecorder attaches an audit recorder
func WithRecorder(recorder *audit.Recorder) Option {
	return func(s *Service) {
		s.recorder = recorder
	}
}

func NewService(credentials CredentialStore, directory iam.UserDirectory, roleFacts iam.RoleFactsRepository, refreshTokens *refreshtoken.Service, tokenService *tokengenerator.TokenService, opts ...Option) *Service {
	s := &Service{
		credentials:   credentials,
		directory:     directory,
		roleFacts:     roleFacts,
		refreshTokens: refreshTokens,
		tokenService:  tokenService,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login verifies the credentials and, on success, issues an access token
// and the head of a fresh refresh token family. Every failure is
// ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string, meta refreshtoken.Metadata) (*LoginResult, error) {
	login, err := s.credentials.FindLoginByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if login == nil {
		return nil, ErrInvalidCredentials
	}

	if ok, _ := CheckPasswordHash(password, login.PasswordHash); !ok {
		return nil, ErrInvalidCredentials
	}

	user, err := s.directory.FindByID(ctx, login.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	facts, err := s.roleFacts.GetActorFacts(ctx, login.UserID)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.tokenService.GenerateAccessToken(user.ID.String(), user.Email, facts.Roles)
	if err != nil {
		return nil, err
	}

	issued, err := s.refreshTokens.Issue(ctx, login.UserID, meta)
	if err != nil {
		return nil, err
	}

	slog.Info("Login succeeded", "userId", login.UserID)

	s.record(audit.NewEntry(audit.CategoryAuthentication, audit.ActionLoginSucceeded).
		WithActor(login.UserID.String()).
		WithRequestMeta(meta.IPAddress, meta.UserAgent))

	return &LoginResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: *issued,
	}, nil
}

// Refresh rotates the presented refresh token into a fresh pair. Every
// failure must reach the client as a bare 401.
func (s *Service) Refresh(ctx context.Context, rawToken string, meta refreshtoken.Metadata) (*refreshtoken.RotateResult, error) {
	return s.refreshTokens.Rotate(ctx, rawToken, meta)
}

// Logout revokes the family of the presented refresh token. Unknown tokens
// are ignored, logout always succeeds.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	if err := s.refreshTokens.RevokeByRawToken(ctx, rawToken); err != nil {
		return err
	}
	s.record(audit.NewEntry(audit.CategoryAuthentication, audit.ActionLogout))
	return nil
}

// LogoutAll revokes every refresh token the user holds, all families and
// devices at once
func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := s.refreshTokens.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	slog.Info("Logged out everywhere", "userId", userID, "revokedCount", count)

	s.record(audit.NewEntry(audit.CategoryAuthentication, audit.ActionLogoutAll).
		WithActor(userID.String()).
		WithDetail("revoked_count", count))
	return count, nil
}

func (s *Service) record(entry audit.Entry) {
	if s.recorder != nil {
		s.recorder.Record(entry)
	}
}
