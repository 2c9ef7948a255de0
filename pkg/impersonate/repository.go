package impersonate

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionRepository persists impersonation sessions.
type SessionRepository interface {
	// Insert stores a new active session. Returns ErrAlreadyImpersonating
	// when the impersonator already has an active session; the database
	// enforces this with a partial unique index, so two concurrent starts
	// cannot both succeed.
	Insert(ctx context.Context, session Session) error

	// FindByID returns a session by id, any status. Returns nil, nil when
	// no row matches.
	FindByID(ctx context.Context, sessionID uuid.UUID) (*Session, error)

	// FindActiveByImpersonator returns the impersonator's active session,
	// or nil, nil when there is none
	FindActiveByImpersonator(ctx context.Context, impersonatorID uuid.UUID) (*Session, error)

	// UpdateStatus moves an active session to the given terminal status.
	// Returns false when the session was not active, so concurrent
	// end/revoke/expire settle on exactly one terminal status.
	UpdateStatus(ctx context.Context, sessionID uuid.UUID, status string, endedAt time.Time, endedBy *uuid.UUID) (bool, error)

	// SweepExpired moves every active session past its expiry to the
	// expired status and returns the number of sessions swept
	SweepExpired(ctx context.Context, now time.Time) (int64, error)

	// List returns a page of sessions matching params, newest first
	List(ctx context.Context, params ListParams) (SessionPage, error)
}
