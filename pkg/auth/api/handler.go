package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tenantops/admin-idm/pkg/auth"
	"github.com/tenantops/admin-idm/pkg/client"
	"github.com/tenantops/admin-idm/pkg/refreshtoken"
	"github.com/tenantops/admin-idm/pkg/tokengenerator"
)

// Handler handles HTTP requests for login and token lifecycle
type Handler struct {
	service      *auth.Service
	cookieSetter tokengenerator.CookieSetter
}

// NewHandler creates a new auth handler
func NewHandler(service *auth.Service, cookieSetter tokengenerator.CookieSetter) *Handler {
	return &Handler{
		service:      service,
		cookieSetter: cookieSetter,
	}
}

// RegisterRoutes registers the public auth routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)
	r.Post("/logout", h.Logout)
}

// RegisterProtectedRoutes registers routes that need an authenticated user.
// Mount under the token-verified route group.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Post("/logout-all", h.LogoutAll)
}

// ErrorResponse is the JSON error body
type ErrorResponse struct {
	Error string `json:"error"`
}

// TokenResponse is the JSON body carrying a fresh token pair
type TokenResponse struct {
	AccessToken        string    `json:"access_token"`
	AccessTokenExpiry  time.Time `json:"access_token_expiry"`
	// ExpiresIn is the access token lifetime in seconds
	ExpiresIn          int64     `json:"expires_in"`
	RefreshToken       string    `json:"refresh_token"`
	RefreshTokenExpiry time.Time `json:"refresh_token_expiry"`
}

// refreshRequest is the optional JSON body naming the refresh token when
// it is not carried in a cookie
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func newTokenResponse(accessToken tokengenerator.AccessToken, refreshToken refreshtoken.IssuedToken) TokenResponse {
	expiresIn := int64(time.Until(accessToken.Expiry).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	return TokenResponse{
		AccessToken:        accessToken.Token,
		AccessTokenExpiry:  accessToken.Expiry,
		ExpiresIn:          expiresIn,
		RefreshToken:       refreshToken.Raw,
		RefreshTokenExpiry: refreshToken.Token.ExpiresAt,
	}
}

func renderUnauthorized(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, ErrorResponse{Error: "unauthorized"})
}

func requestMeta(r *http.Request) refreshtoken.Metadata {
	return refreshtoken.Metadata{
		UserAgent: r.UserAgent(),
		IPAddress: r.RemoteAddr,
	}
}

// Login handles POST /login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password, requestMeta(r))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			renderUnauthorized(w, r)
			return
		}
		slog.Error("Failed to log user in", "err", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: "Internal server error"})
		return
	}

	h.setTokenCookies(w, result.AccessToken.Token, result.AccessToken.Expiry,
		result.RefreshToken.Raw, result.RefreshToken.Token.ExpiresAt)

	render.Status(r, http.StatusOK)
	render.JSON(w, r, newTokenResponse(result.AccessToken, result.RefreshToken))
}

// Refresh handles POST /token/refresh. Whatever went wrong, the client
// sees the same bare 401: the response must not reveal whether a presented
// token ever existed, was expired, or was replayed.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	rawToken := h.refreshTokenFromRequest(r)
	if rawToken == "" {
		renderUnauthorized(w, r)
		return
	}

	result, err := h.service.Refresh(r.Context(), rawToken, requestMeta(r))
	if err != nil {
		if !refreshtoken.IsUnauthorized(err) {
			slog.Error("Failed to rotate refresh token", "err", err)
		}
		renderUnauthorized(w, r)
		return
	}

	h.setTokenCookies(w, result.AccessToken.Token, result.AccessToken.Expiry,
		result.RefreshToken.Raw, result.RefreshToken.Token.ExpiresAt)

	render.Status(r, http.StatusOK)
	render.JSON(w, r, newTokenResponse(result.AccessToken, result.RefreshToken))
}

// Logout handles POST /logout. Succeeds no matter what was presented.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	rawToken := h.refreshTokenFromRequest(r)
	if rawToken != "" {
		if err := h.service.Logout(r.Context(), rawToken); err != nil {
			slog.Error("Failed to revoke refresh token family", "err", err)
		}
	}

	h.cookieSetter.ClearCookie(w, client.ACCESS_TOKEN_NAME)
	h.cookieSetter.ClearCookie(w, client.REFRESH_TOKEN_NAME)

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"message": "logged out"})
}

// LogoutAll handles POST /logout-all for the authenticated user
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	authUser, ok := r.Context().Value(client.AuthUserKey).(*client.AuthUser)
	if !ok {
		renderUnauthorized(w, r)
		return
	}

	count, err := h.service.LogoutAll(r.Context(), authUser.UserUuid)
	if err != nil {
		slog.Error("Failed to log user out everywhere", "userId", authUser.UserId, "err", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: "Internal server error"})
		return
	}

	h.cookieSetter.ClearCookie(w, client.ACCESS_TOKEN_NAME)
	h.cookieSetter.ClearCookie(w, client.REFRESH_TOKEN_NAME)

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]interface{}{
		"message":       "logged out everywhere",
		"revoked_count": count,
	})
}

// refreshTokenFromRequest reads the refresh token from the cookie first,
// then from the JSON body
func (h *Handler) refreshTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(client.REFRESH_TOKEN_NAME); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if r.Body == nil || r.ContentLength == 0 {
		return ""
	}
	var req refreshRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		return ""
	}
	return req.RefreshToken
}

func (h *Handler) setTokenCookies(w http.ResponseWriter, accessToken string, accessExpiry time.Time, refreshToken string, refreshExpiry time.Time) {
	if err := h.cookieSetter.SetCookie(w, client.ACCESS_TOKEN_NAME, accessToken, accessExpiry); err != nil {
		slog.Error("Failed to set access token cookie", "err", err)
	}
	if err := h.cookieSetter.SetCookie(w, client.REFRESH_TOKEN_NAME, refreshToken, refreshExpiry); err != nil {
		slog.Error("Failed to set refresh token cookie", "err", err)
	}
}
