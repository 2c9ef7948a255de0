// Package audit records security events emitted by the identity subsystem.
// Recording is fire-and-forget: a slow or failing sink must never add
// latency or failure coupling to the token and session operations it
// describes.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event categories
const (
	CategoryAuthentication = "authentication"
)

// Event actions
const (
	ActionLoginSucceeded        = "login_succeeded"
	ActionLogout                = "logout"
	ActionLogoutAll             = "logout_all"
	ActionTokenRotated          = "refresh_token_rotated"
	ActionTokenReuseDetected    = "token_reuse_detected"
	ActionImpersonationStarted  = "impersonation_started"
	ActionImpersonationEnded    = "impersonation_ended"
	ActionImpersonationRevoked  = "impersonation_revoked"
	ActionImpersonationsExpired = "impersonations_expired"
)

// Entry is a single audit event
type Entry struct {
	ID        uuid.UUID              `json:"id"`
	Category  string                 `json:"category"`
	Action    string                 `json:"action"`
	ActorID   string                 `json:"actor_id,omitempty"`
	TargetID  string                 `json:"target_id,omitempty"`
	IPAddress string                 `json:"ip_address,omitempty"`
	UserAgent string                 `json:"user_agent,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewEntry creates an entry with a fresh id and timestamp
func NewEntry(category, action string) Entry {
	return Entry{
		ID:        uuid.New(),
		Category:  category,
		Action:    action,
		CreatedAt: time.Now().UTC(),
		Details:   make(map[string]interface{}),
	}
}

// WithActor sets the acting user
func (e Entry) WithActor(actorID string) Entry {
	e.ActorID = actorID
	return e
}

// WithTarget sets the affected user
func (e Entry) WithTarget(targetID string) Entry {
	e.TargetID = targetID
	return e
}

// WithRequestMeta sets the client address and user agent
func (e Entry) WithRequestMeta(ipAddress, userAgent string) Entry {
	e.IPAddress = ipAddress
	e.UserAgent = userAgent
	return e
}

// WithDetail adds a detail to the entry
func (e Entry) WithDetail(key string, value interface{}) Entry {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Sink persists audit entries
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}
