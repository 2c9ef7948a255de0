package client

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-jwt-secret-key")

// createTestToken mints a JWT shaped like the ones this service issues
func createTestToken(t *testing.T, userID string, extra ExtraClaims) string {
	t.Helper()
	tokenAuth := jwtauth.New("HS256", testSecret, nil)

	extraClaims := map[string]interface{}{
		"email": extra.Email,
		"roles": extra.Roles,
	}
	if extra.IsImpersonation {
		extraClaims["is_impersonation"] = true
		extraClaims["impersonator_id"] = extra.ImpersonatorID
		extraClaims["session_id"] = extra.SessionID
	}

	_, tokenString, err := tokenAuth.Encode(map[string]interface{}{
		"sub":          userID,
		"exp":          time.Now().Add(time.Hour).Unix(),
		"extra_claims": extraClaims,
	})
	require.NoError(t, err)
	return tokenString
}

// authStack builds the middleware chain the server mounts in front of
// authenticated routes
func authStack(inner http.Handler, adminOnly bool) http.Handler {
	tokenAuth := jwtauth.New("HS256", testSecret, nil)
	handler := inner
	if adminOnly {
		handler = AdminRoleMiddleware(handler)
	}
	handler = AuthUserMiddleware(handler)
	handler = jwtauth.Authenticator(tokenAuth)(handler)
	return Verifier(tokenAuth)(handler)
}

func TestAuthUserMiddleware(t *testing.T) {
	userID := uuid.New().String()
	token := createTestToken(t, userID, ExtraClaims{
		Email: "alice@example.com",
		Roles: []string{"member"},
	})

	var captured *AuthUser
	handler := authStack(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = r.Context().Value(AuthUserKey).(*AuthUser)
	}), false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, userID, captured.UserId)
	assert.Equal(t, userID, captured.UserUuid.String())
	assert.Equal(t, "alice@example.com", captured.ExtraClaims.Email)
	assert.False(t, captured.IsImpersonating())
}

func TestAuthUserMiddlewareReadsCookie(t *testing.T) {
	userID := uuid.New().String()
	token := createTestToken(t, userID, ExtraClaims{Roles: []string{"member"}})

	handler := authStack(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ACCESS_TOKEN_NAME, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthUserMiddlewareRejectsMissingToken(t *testing.T) {
	handler := authStack(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}), false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthUserMiddlewareRejectsNonUUIDSubject(t *testing.T) {
	token := createTestToken(t, "not-a-uuid", ExtraClaims{})

	handler := authStack(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}), false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoleMiddleware(t *testing.T) {
	cases := []struct {
		name     string
		roles    []string
		expected int
	}{
		{"super admin", []string{"super_admin"}, http.StatusOK},
		{"org admin", []string{"org_admin"}, http.StatusOK},
		{"member", []string{"member"}, http.StatusForbidden},
		{"no roles", nil, http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token := createTestToken(t, uuid.New().String(), ExtraClaims{Roles: tc.roles})

			handler := authStack(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), true)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.expected, rec.Code)
		})
	}
}

func TestImpersonationClaims(t *testing.T) {
	impersonatorID := uuid.New().String()
	sessionID := uuid.New().String()
	token := createTestToken(t, uuid.New().String(), ExtraClaims{
		Email:           "target@example.com",
		Roles:           []string{"member"},
		IsImpersonation: true,
		ImpersonatorID:  impersonatorID,
		SessionID:       sessionID,
	})

	var captured *AuthUser
	handler := authStack(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = r.Context().Value(AuthUserKey).(*AuthUser)
	}), false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.True(t, captured.IsImpersonating())
	assert.Equal(t, impersonatorID, captured.ExtraClaims.ImpersonatorID)
	assert.Equal(t, sessionID, captured.ExtraClaims.SessionID)
}
