package auth

import "context"

// CredentialStore looks credential records up at login time.
type CredentialStore interface {
	// FindLoginByEmail returns the credential record for an email, or
	// nil, nil when the email is unknown
	FindLoginByEmail(ctx context.Context, email string) (*Login, error)
}
