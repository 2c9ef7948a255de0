package tokengenerator

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	generator := NewJwtTokenGenerator("test-secret", "admin-idm", "admin-idm")
	subject := uuid.New().String()

	tokenStr, expiry, err := generator.GenerateToken(subject, 5*time.Minute, map[string]interface{}{
		"email": "alice@example.com",
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expiry, 5*time.Second)

	token, err := generator.ParseToken(tokenStr)
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, subject, claims["sub"])
	assert.Equal(t, "admin-idm", claims["iss"])

	extra, ok := claims["extra_claims"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "alice@example.com", extra["email"])
}

func TestParseTokenWrongSecret(t *testing.T) {
	generator := NewJwtTokenGenerator("test-secret", "admin-idm", "admin-idm")
	tokenStr, _, err := generator.GenerateToken(uuid.New().String(), 5*time.Minute, nil)
	require.NoError(t, err)

	other := NewJwtTokenGenerator("different-secret", "admin-idm", "admin-idm")
	_, err = other.ParseToken(tokenStr)
	assert.Error(t, err)
}

func TestParseExpiredToken(t *testing.T) {
	generator := NewJwtTokenGenerator("test-secret", "admin-idm", "admin-idm")
	tokenStr, _, err := generator.GenerateToken(uuid.New().String(), -time.Minute, nil)
	require.NoError(t, err)

	_, err = generator.ParseToken(tokenStr)
	assert.Error(t, err)
}

func TestGenerateAccessToken(t *testing.T) {
	generator := NewJwtTokenGenerator("test-secret", "admin-idm", "admin-idm")
	service := NewTokenService(generator, WithAccessTokenExpiry(10*time.Minute))
	userID := uuid.New().String()

	accessToken, err := service.GenerateAccessToken(userID, "alice@example.com", []string{"member"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), accessToken.Expiry, 5*time.Second)

	token, err := service.ParseToken(accessToken.Token)
	require.NoError(t, err)

	claims := token.Claims.(jwt.MapClaims)
	extra := claims["extra_claims"].(map[string]interface{})
	assert.Equal(t, "alice@example.com", extra["email"])
	assert.Nil(t, extra["is_impersonation"])
}

func TestGenerateImpersonationToken(t *testing.T) {
	generator := NewJwtTokenGenerator("test-secret", "admin-idm", "admin-idm")
	service := NewTokenService(generator)
	targetID := uuid.New().String()
	impersonatorID := uuid.New().String()
	sessionID := uuid.New().String()

	accessToken, err := service.GenerateImpersonationToken(
		targetID, "target@example.com", []string{"member"},
		impersonatorID, sessionID, time.Hour)
	require.NoError(t, err)

	// The token lives for the session window, not the access expiry
	assert.WithinDuration(t, time.Now().Add(time.Hour), accessToken.Expiry, 5*time.Second)

	token, err := service.ParseToken(accessToken.Token)
	require.NoError(t, err)

	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, targetID, claims["sub"])

	extra := claims["extra_claims"].(map[string]interface{})
	assert.Equal(t, true, extra["is_impersonation"])
	assert.Equal(t, impersonatorID, extra["impersonator_id"])
	assert.Equal(t, sessionID, extra["session_id"])
}
