package impersonate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sosodev/duration"
	"github.com/tenantops/admin-idm/pkg/audit"
	"github.com/tenantops/admin-idm/pkg/iam"
	"github.com/tenantops/admin-idm/pkg/tokengenerator"
)

const (
	// DefaultSessionDuration applies when the start request names none
	DefaultSessionDuration = time.Hour
	// DefaultMaxSessionDuration caps what a start request may ask for
	DefaultMaxSessionDuration = 4 * time.Hour
)

// Service manages impersonation sessions. Authorization is evaluated
// against role facts fetched fresh at start time, never against claims in
// the caller's token.
type Service struct {
	repo            SessionRepository
	roleFacts       iam.RoleFactsRepository
	directory       iam.UserDirectory
	tokenService    *tokengenerator.TokenService
	recorder        *audit.Recorder
	defaultDuration time.Duration
	maxDuration     time.Duration
}

// Option configures the service
type Option func(*Service)

// WithDefaultDuration overrides the default session duration
func WithDefaultDuration(d time.Duration) Option {
	return func(s *Service) {
		s.defaultDuration = d
	}
}

// WithMaxDuration overrides the session duration cap
func WithMaxDuration(d time.Duration) Option {
	return func(s *Service) {
		s.maxDuration = d
	}
}

// WithRecorder attaches an audit recorder
func WithRecorder(recorder *audit.Recorder) Option {
	return func(s *Service) {
		s.recorder = recorder
	}
}

func NewService(repo SessionRepository, roleFacts iam.RoleFactsRepository, directory iam.UserDirectory, tokenService *tokengenerator.TokenService, opts ...Option) *Service {
	s := &Service{
		repo:            repo,
		roleFacts:       roleFacts,
		directory:       directory,
		tokenService:    tokenService,
		defaultDuration: DefaultSessionDuration,
		maxDuration:     DefaultMaxSessionDuration,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins an impersonation session and mints a delegated access token
// for the target. requested is the desired session duration; zero means the
// configured default.
func (s *Service) Start(ctx context.Context, impersonatorID, targetID uuid.UUID, orgID *uuid.UUID, reason string, requested time.Duration, meta Metadata) (*StartResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	duration := requested
	if duration == 0 {
		duration = s.defaultDuration
	}
	if duration < 0 || duration > s.maxDuration {
		return nil, ErrInvalidDuration
	}

	target, err := s.directory.FindByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrTargetNotFound
	}

	actorFacts, err := s.roleFacts.GetActorFacts(ctx, impersonatorID)
	if err != nil {
		return nil, err
	}
	targetFacts, err := s.roleFacts.GetTargetFacts(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if err := AuthorizeInOrg(actorFacts, targetFacts, orgID); err != nil {
		slog.Warn("Impersonation denied",
			"impersonatorId", impersonatorID, "targetId", targetID)
		return nil, err
	}

	now := time.Now().UTC()
	session := Session{
		ID:             uuid.New(),
		ImpersonatorID: impersonatorID,
		TargetID:       targetID,
		OrganizationID: orgID,
		Reason:         reason,
		UserAgent:      meta.UserAgent,
		IPAddress:      meta.IPAddress,
		Status:         StatusActive,
		StartedAt:      now,
		ExpiresAt:      now.Add(duration),
	}

	// The partial unique index settles concurrent starts: the second
	// insert comes back as ErrAlreadyImpersonating.
	if err := s.repo.Insert(ctx, session); err != nil {
		return nil, err
	}

	accessToken, err := s.tokenService.GenerateImpersonationToken(
		target.ID.String(), target.Email, []string{targetFacts.Role},
		impersonatorID.String(), session.ID.String(), duration)
	if err != nil {
		// Roll the session back so the impersonator is not stuck with an
		// active session they never got a token for.
		if _, rbErr := s.repo.UpdateStatus(ctx, session.ID, StatusEnded, time.Now().UTC(), &impersonatorID); rbErr != nil {
			slog.Error("Failed to roll back impersonation session", "sessionId", session.ID, "err", rbErr)
		}
		return nil, fmt.Errorf("failed to generate impersonation token: %w", err)
	}

	slog.Info("Impersonation started",
		"sessionId", session.ID, "impersonatorId", impersonatorID,
		"targetId", targetID, "expiresAt", session.ExpiresAt)

	s.record(audit.NewEntry(audit.CategoryAuthentication, audit.ActionImpersonationStarted).
		WithActor(impersonatorID.String()).
		WithTarget(targetID.String()).
		WithRequestMeta(meta.IPAddress, meta.UserAgent).
		WithDetail("session_id", session.ID.String()).
		WithDetail("target_email", target.Email).
		WithDetail("reason", reason).
		WithDetail("expires_at", session.ExpiresAt))

	return &StartResult{
		Session:     session,
		Target:      target,
		AccessToken: accessToken.Token,
		TokenExpiry: accessToken.Expiry,
	}, nil
}

// End terminates a session on behalf of its own impersonator. A nil
// sessionID means the caller's current active session.
func (s *Service) End(ctx context.Context, impersonatorID uuid.UUID, sessionID *uuid.UUID) (*Session, error) {
	var session *Session
	var err error
	if sessionID != nil {
		session, err = s.repo.FindByID(ctx, *sessionID)
	} else {
		session, err = s.repo.FindActiveByImpersonator(ctx, impersonatorID)
	}
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.ImpersonatorID != impersonatorID {
		return nil, ErrSessionNotFound
	}

	return s.terminate(ctx, session, StatusEnded, impersonatorID, audit.ActionImpersonationEnded)
}

// Revoke terminates another admin's session. Only super admins may revoke.
func (s *Service) Revoke(ctx context.Context, revokerID, sessionID uuid.UUID) (*Session, error) {
	facts, err := s.roleFacts.GetActorFacts(ctx, revokerID)
	if err != nil {
		return nil, err
	}
	if !facts.IsSuperAdmin {
		return nil, ErrForbidden
	}

	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	return s.terminate(ctx, session, StatusRevoked, revokerID, audit.ActionImpersonationRevoked)
}

func (s *Service) terminate(ctx context.Context, session *Session, status string, endedBy uuid.UUID, action string) (*Session, error) {
	now := time.Now().UTC()
	updated, err := s.repo.UpdateStatus(ctx, session.ID, status, now, &endedBy)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, ErrSessionNotActive
	}

	session.Status = status
	session.EndedAt = &now
	session.EndedBy = &endedBy

	slog.Info("Impersonation session terminated",
		"sessionId", session.ID, "status", status, "endedBy", endedBy)

	s.record(audit.NewEntry(audit.CategoryAuthentication, action).
		WithActor(endedBy.String()).
		WithTarget(session.TargetID.String()).
		WithDetail("session_id", session.ID.String()).
		WithDetail("impersonator_id", session.ImpersonatorID.String()).
		WithDetail("duration_seconds", int64(now.Sub(session.StartedAt).Seconds())))

	return session, nil
}

// ExpireOldSessions moves every active session past its expiry to the
// expired status. Run periodically from the server.
func (s *Service) ExpireOldSessions(ctx context.Context) (int64, error) {
	count, err := s.repo.SweepExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		slog.Info("Expired impersonation sessions", "count", count)
		s.record(audit.NewEntry(audit.CategoryAuthentication, audit.ActionImpersonationsExpired).
			WithDetail("count", count))
	}
	return count, nil
}

// Status reports the caller's current impersonation state. An active
// session past its expiry is swept to expired on the way out rather than
// reported as live.
func (s *Service) Status(ctx context.Context, impersonatorID uuid.UUID) (StatusResponse, error) {
	session, err := s.repo.FindActiveByImpersonator(ctx, impersonatorID)
	if err != nil {
		return StatusResponse{}, err
	}
	if session == nil {
		return StatusResponse{Impersonating: false}, nil
	}

	now := time.Now().UTC()
	if session.IsPastExpiry(now) {
		if _, err := s.repo.UpdateStatus(ctx, session.ID, StatusExpired, now, nil); err != nil {
			slog.Error("Failed to expire stale impersonation session", "sessionId", session.ID, "err", err)
		}
		return StatusResponse{Impersonating: false}, nil
	}

	response := StatusResponse{Impersonating: true, Session: session}
	response.Impersonator = s.lookupParty(ctx, session.ImpersonatorID)
	response.Target = s.lookupParty(ctx, session.TargetID)
	return response, nil
}

// lookupParty resolves a user into its banner display form. A lookup
// failure degrades to a nil party rather than failing the status call.
func (s *Service) lookupParty(ctx context.Context, userID uuid.UUID) *Party {
	user, err := s.directory.FindByID(ctx, userID)
	if err != nil {
		slog.Error("Failed to resolve session participant", "userId", userID, "err", err)
		return nil
	}
	if user == nil {
		return nil
	}
	return &Party{ID: user.ID, Email: user.Email, DisplayName: user.DisplayName()}
}

// ListActive returns a page of currently active sessions
func (s *Service) ListActive(ctx context.Context, params ListParams) (SessionPage, error) {
	params.Status = StatusActive
	return s.repo.List(ctx, params)
}

// ListHistory returns a page of sessions in any status
func (s *Service) ListHistory(ctx context.Context, params ListParams) (SessionPage, error) {
	return s.repo.List(ctx, params)
}

// ParseSessionDuration parses an ISO 8601 duration from a start request
// and checks it against the cap. Empty input means the default.
func (s *Service) ParseSessionDuration(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	parsed, err := duration.Parse(raw)
	if err != nil {
		return 0, ErrInvalidDuration
	}
	d := parsed.ToTimeDuration()
	if d <= 0 || d > s.maxDuration {
		return 0, ErrInvalidDuration
	}
	return d, nil
}

func (s *Service) record(entry audit.Entry) {
	if s.recorder != nil {
		s.recorder.Record(entry)
	}
}
