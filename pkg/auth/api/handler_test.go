package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantops/admin-idm/pkg/auth"
	"github.com/tenantops/admin-idm/pkg/iam"
	"github.com/tenantops/admin-idm/pkg/refreshtoken"
	"github.com/tenantops/admin-idm/pkg/tokengenerator"
)

func setupTestHandler(t *testing.T) *chi.Mux {
	t.Helper()

	users := iam.NewInMemRepository()
	userID := uuid.New()
	users.AddUser(iam.InMemUser{
		User:  iam.User{ID: userID, Email: "alice@example.com", Role: iam.RoleMember},
		Roles: []string{iam.RoleMember},
	})

	credentials := auth.NewInMemCredentialStore()
	hash, err := auth.HashPassword("s3cret")
	require.NoError(t, err)
	credentials.AddLogin(auth.Login{
		UserID:       userID,
		Email:        "alice@example.com",
		PasswordHash: hash,
	})

	generator := tokengenerator.NewJwtTokenGenerator("test-secret", "admin-idm", "admin-idm")
	tokenService := tokengenerator.NewTokenService(generator)
	refreshTokens := refreshtoken.NewService(refreshtoken.NewInMemRepository(), tokenService, users, users)
	service := auth.NewService(credentials, users, users, refreshTokens, tokenService)

	handler := NewHandler(service, tokengenerator.NewCookieSetter(true, false, http.SameSiteLaxMode))
	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	return router
}

func postJSON(t *testing.T, router *chi.Mux, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func loginAndGetRefreshToken(t *testing.T, router *chi.Mux) string {
	t.Helper()
	rec := postJSON(t, router, "/login", map[string]string{
		"email":    "alice@example.com",
		"password": "s3cret",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RefreshToken)
	return resp.RefreshToken
}

func TestLoginEndpoint(t *testing.T) {
	router := setupTestHandler(t)

	rec := postJSON(t, router, "/login", map[string]string{
		"email":    "alice@example.com",
		"password": "s3cret",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)

	// Both tokens also land in cookies
	cookies := rec.Result().Cookies()
	var names []string
	for _, c := range cookies {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "access_token")
	assert.Contains(t, names, "refresh_token")
}

func TestLoginEndpointBadCredentials(t *testing.T) {
	router := setupTestHandler(t)

	rec := postJSON(t, router, "/login", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
}

func TestRefreshEndpoint(t *testing.T) {
	router := setupTestHandler(t)
	refreshToken := loginAndGetRefreshToken(t, router)

	rec := postJSON(t, router, "/refresh", map[string]string{
		"refresh_token": refreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEqual(t, refreshToken, resp.RefreshToken)
	assert.NotEmpty(t, resp.AccessToken)
}

// Every rotation failure must come back as the same bare 401, whether the
// token never existed, was already rotated, or was missing entirely.
func TestRefreshEndpointOpaqueFailures(t *testing.T) {
	router := setupTestHandler(t)
	refreshToken := loginAndGetRefreshToken(t, router)

	// Rotate once so the original token becomes a replay
	rec := postJSON(t, router, "/refresh", map[string]string{"refresh_token": refreshToken})
	require.Equal(t, http.StatusOK, rec.Code)

	cases := map[string]map[string]string{
		"missing token": {},
		"unknown token": {"refresh_token": "never-issued"},
		"replayed token": {"refresh_token": refreshToken},
		"revoked family": {"refresh_token": refreshToken},
	}

	var bodies []string
	for name, body := range cases {
		rec := postJSON(t, router, "/refresh", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
		bodies = append(bodies, rec.Body.String())
	}
	for _, body := range bodies {
		assert.JSONEq(t, `{"error":"unauthorized"}`, body)
	}
}

func TestRefreshEndpointReadsCookie(t *testing.T) {
	router := setupTestHandler(t)
	refreshToken := loginAndGetRefreshToken(t, router)

	req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: refreshToken})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutEndpoint(t *testing.T) {
	router := setupTestHandler(t)
	refreshToken := loginAndGetRefreshToken(t, router)

	rec := postJSON(t, router, "/logout", map[string]string{"refresh_token": refreshToken})
	require.Equal(t, http.StatusOK, rec.Code)

	// Cookies are cleared
	for _, c := range rec.Result().Cookies() {
		assert.Equal(t, -1, c.MaxAge, c.Name)
	}

	// The revoked token can no longer be rotated
	rec = postJSON(t, router, "/refresh", map[string]string{"refresh_token": refreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Logout with nothing at all still succeeds
	rec = postJSON(t, router, "/logout", map[string]string{})
	assert.Equal(t, http.StatusOK, rec.Code)
}
