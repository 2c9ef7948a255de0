package tokengenerator

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token cookie names
const (
	ACCESS_TOKEN_NAME  = "access_token"
	REFRESH_TOKEN_NAME = "refresh_token"
)

// DefaultAccessTokenExpiry applies when no expiry has been configured
const DefaultAccessTokenExpiry = 5 * time.Minute

// AccessToken is a freshly minted, signed access token
type AccessToken struct {
	Token  string
	Expiry time.Time
}

// TokenService mints and parses the access tokens this service issues.
// Refresh tokens are opaque random secrets owned by the refreshtoken
// package and are never JWTs.
type TokenService struct {
	generator TokenGenerator
	expiry    time.Duration
}

// TokenServiceOption configures a TokenService
type TokenServiceOption func(*TokenService)

// WithAccessTokenExpiry sets the access token expiry duration
func WithAccessTokenExpiry(expiry time.Duration) TokenServiceOption {
	return func(ts *TokenService) {
		ts.expiry = expiry
	}
}

// NewTokenService creates a new TokenService
func NewTokenService(generator TokenGenerator, options ...TokenServiceOption) *TokenService {
	ts := &TokenService{
		generator: generator,
		expiry:    DefaultAccessTokenExpiry,
	}
	for _, option := range options {
		option(ts)
	}
	return ts
}

// GenerateAccessToken mints an access token for a user acting as themselves
func (ts *TokenService) GenerateAccessToken(userID, email string, roles []string) (AccessToken, error) {
	extraClaims := map[string]interface{}{
		"email": email,
	}
	if len(roles) > 0 {
		extraClaims["roles"] = roles
	}

	token, expiry, err := ts.generator.GenerateToken(userID, ts.expiry, extraClaims)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: token, Expiry: expiry}, nil
}

// GenerateImpersonationToken mints a delegated access token for the target
// user, valid for the impersonation session window. The impersonation
// claims let downstream authorization distinguish "user acting as
// themselves" from "admin acting as user"; they grant no privilege beyond
// the target's own.
func (ts *TokenService) GenerateImpersonationToken(targetUserID, targetEmail string, roles []string, impersonatorID, sessionID string, expiry time.Duration) (AccessToken, error) {
	extraClaims := map[string]interface{}{
		"email":            targetEmail,
		"is_impersonation": true,
		"impersonator_id":  impersonatorID,
		"session_id":       sessionID,
	}
	if len(roles) > 0 {
		extraClaims["roles"] = roles
	}

	token, expiresAt, err := ts.generator.GenerateToken(targetUserID, expiry, extraClaims)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: token, Expiry: expiresAt}, nil
}

// ParseToken parses and validates an access token
func (ts *TokenService) ParseToken(tokenStr string) (*jwt.Token, error) {
	return ts.generator.ParseToken(tokenStr)
}

// AccessTokenExpiry returns the configured access token lifetime
func (ts *TokenService) AccessTokenExpiry() time.Duration {
	return ts.expiry
}
