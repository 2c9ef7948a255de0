package impersonate

import (
	"time"

	"github.com/google/uuid"

	"github.com/tenantops/admin-idm/pkg/iam"
)

// Session statuses. A session starts active and moves to exactly one of the
// terminal statuses; there are no other transitions.
const (
	StatusActive  = "active"
	StatusEnded   = "ended"
	StatusExpired = "expired"
	StatusRevoked = "revoked"
)

// Session is one impersonation session. EndedAt is set together with any
// terminal status; EndedBy records who terminated it (the impersonator for
// ended, another admin for revoked, empty for expired).
type Session struct {
	ID             uuid.UUID  `json:"id"`
	ImpersonatorID uuid.UUID  `json:"impersonator_id"`
	TargetID       uuid.UUID  `json:"target_id"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	Reason         string     `json:"reason"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	EndedBy        *uuid.UUID `json:"ended_by,omitempty"`
	UserAgent      string     `json:"user_agent,omitempty"`
	IPAddress      string     `json:"ip_address,omitempty"`
}

// Metadata carries request attributes recorded on the session
type Metadata struct {
	UserAgent string
	IPAddress string
}

// IsActive reports whether the session is in the active status. Note that
// an active session past ExpiresAt is still unusable, see Service.
func (s *Session) IsActive() bool {
	return s.Status == StatusActive
}

// IsPastExpiry reports whether the session's window has elapsed
func (s *Session) IsPastExpiry(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// StartRequest is the payload for starting an impersonation session
type StartRequest struct {
	TargetUserID string `json:"target_user_id"`
	// OrganizationID optionally pins the session to one organization the
	// caller administers.
	OrganizationID string `json:"organization_id,omitempty"`
	Reason         string `json:"reason"`
	// Duration is an optional ISO 8601 duration, e.g. "PT30M". Empty means
	// the configured default.
	Duration string `json:"duration,omitempty"`
	// DurationMs is an alternative to Duration for clients that already
	// count in milliseconds. When both are set DurationMs wins.
	DurationMs int64 `json:"duration_ms,omitempty"`
}

// EndRequest optionally names the session to end. Empty means the caller's
// current active session.
type EndRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

// StartResult carries the new session and the impersonation access token
type StartResult struct {
	Session     Session
	Target      *iam.User
	AccessToken string
	TokenExpiry time.Time
}

// Party is the display slice of a session participant, for UI banners
type Party struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
}

// StatusResponse describes the caller's current impersonation state
type StatusResponse struct {
	Impersonating bool     `json:"impersonating"`
	Session       *Session `json:"session,omitempty"`
	Impersonator  *Party   `json:"impersonator,omitempty"`
	Target        *Party   `json:"target,omitempty"`
}

// SessionPage is one page of session listings
type SessionPage struct {
	Sessions []Session `json:"sessions"`
	Total    int64     `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}

// ListParams narrows and pages a session listing
type ListParams struct {
	ImpersonatorID *uuid.UUID
	TargetID       *uuid.UUID
	Status         string
	Limit          int
	Offset         int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Normalize clamps paging parameters to sane bounds
func (p *ListParams) Normalize() {
	if p.Limit <= 0 {
		p.Limit = DefaultListLimit
	}
	if p.Limit > MaxListLimit {
		p.Limit = MaxListLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}
