package auth

import (
	"errors"

	"github.com/google/uuid"
	"github.com/tenantops/admin-idm/pkg/iam"
	"github.com/tenantops/admin-idm/pkg/refreshtoken"
	"github.com/tenantops/admin-idm/pkg/tokengenerator"
)

// ErrInvalidCredentials covers every login failure. Wrong email and wrong
// password are deliberately indistinguishable.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Login is a credential record
type Login struct {
	UserID       uuid.UUID
	Email        string
	PasswordHash string
}

// LoginRequest is the payload for password login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult carries the token pair issued at login
type LoginResult struct {
	User         *iam.User
	AccessToken  tokengenerator.AccessToken
	RefreshToken refreshtoken.IssuedToken
}
