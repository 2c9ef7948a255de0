package impersonate

import "errors"

var (
	// ErrForbidden indicates the caller may not impersonate the target
	ErrForbidden = errors.New("not authorized to impersonate this user")
	// ErrTargetNotFound indicates the requested target does not exist
	ErrTargetNotFound = errors.New("target user not found")
	// ErrSessionNotFound indicates no session matched the request
	ErrSessionNotFound = errors.New("impersonation session not found")
	// ErrAlreadyImpersonating indicates the caller already has an active
	// session and must end it before starting another
	ErrAlreadyImpersonating = errors.New("you already have an active impersonation session, end it first")
	// ErrSessionNotActive indicates the session is already in a terminal
	// status and cannot be ended or revoked again
	ErrSessionNotActive = errors.New("impersonation session is not active")
	// ErrInvalidDuration indicates a malformed or out-of-range duration
	ErrInvalidDuration = errors.New("invalid impersonation duration")
	// ErrReasonRequired indicates the start request carried no reason
	ErrReasonRequired = errors.New("a reason is required to start impersonation")
)
