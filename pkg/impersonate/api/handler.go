package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/tenantops/admin-idm/pkg/client"
	"github.com/tenantops/admin-idm/pkg/iam"
	"github.com/tenantops/admin-idm/pkg/impersonate"
	"github.com/tenantops/admin-idm/pkg/tokengenerator"
)

// Handler handles HTTP requests for impersonation session management
type Handler struct {
	service      *impersonate.Service
	cookieSetter tokengenerator.CookieSetter
}

// NewHandler creates a new impersonation handler
func NewHandler(service *impersonate.Service, cookieSetter tokengenerator.CookieSetter) *Handler {
	return &Handler{
		service:      service,
		cookieSetter: cookieSetter,
	}
}

// RegisterRoutes registers the impersonation routes. Mount under an
// authenticated, admin-only route group.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/start", h.Start)
	r.Post("/end", h.End)
	r.Post("/sessions/{sessionID}/revoke", h.Revoke)
	r.Get("/status", h.Status)
	r.Get("/sessions", h.ListActive)
	r.Get("/history", h.ListHistory)
}

// ErrorResponse is the JSON error body
type ErrorResponse struct {
	Error string `json:"error"`
}

// SessionView is the wire representation of a session. RemainingSeconds is
// populated for active sessions only.
type SessionView struct {
	ID               uuid.UUID  `json:"id"`
	ImpersonatorID   uuid.UUID  `json:"impersonator_id"`
	TargetID         uuid.UUID  `json:"target_id"`
	OrganizationID   *uuid.UUID `json:"organization_id,omitempty"`
	Reason           string     `json:"reason"`
	Status           string     `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	EndedBy          *uuid.UUID `json:"ended_by,omitempty"`
	UserAgent        string     `json:"user_agent,omitempty"`
	IPAddress        string     `json:"ip_address,omitempty"`
	RemainingSeconds int64      `json:"remaining_seconds,omitempty"`
}

// SessionPageView is one page of session views
type SessionPageView struct {
	Sessions []SessionView `json:"sessions"`
	Total    int64         `json:"total"`
	Limit    int           `json:"limit"`
	Offset   int           `json:"offset"`
}

func newSessionView(session impersonate.Session) SessionView {
	var view SessionView
	if err := copier.Copy(&view, &session); err != nil {
		slog.Error("Failed to copy session view", "err", err)
	}
	if session.Status == impersonate.StatusActive {
		if remaining := time.Until(session.ExpiresAt); remaining > 0 {
			view.RemainingSeconds = int64(remaining.Seconds())
		}
	}
	return view
}

func newSessionPageView(page impersonate.SessionPage) SessionPageView {
	view := SessionPageView{
		Sessions: make([]SessionView, 0, len(page.Sessions)),
		Total:    page.Total,
		Limit:    page.Limit,
		Offset:   page.Offset,
	}
	for _, session := range page.Sessions {
		view.Sessions = append(view.Sessions, newSessionView(session))
	}
	return view
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.Is(err, impersonate.ErrForbidden):
		status = http.StatusForbidden
		message = err.Error()
	case errors.Is(err, impersonate.ErrTargetNotFound),
		errors.Is(err, impersonate.ErrSessionNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, impersonate.ErrAlreadyImpersonating),
		errors.Is(err, impersonate.ErrSessionNotActive):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, impersonate.ErrReasonRequired),
		errors.Is(err, impersonate.ErrInvalidDuration):
		status = http.StatusBadRequest
		message = err.Error()
	default:
		slog.Error("Failed to handle impersonation request", "err", err)
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: message})
}

func authUser(w http.ResponseWriter, r *http.Request) (*client.AuthUser, bool) {
	user, ok := r.Context().Value(client.AuthUserKey).(*client.AuthUser)
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, ErrorResponse{Error: "Unauthorized"})
		return nil, false
	}
	return user, true
}

// StartResponse is the JSON body returned from a successful start
type StartResponse struct {
	Session     SessionView `json:"session"`
	TargetUser  *iam.User   `json:"target_user"`
	AccessToken string      `json:"access_token"`
}

// Start handles POST /start
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	user, ok := authUser(w, r)
	if !ok {
		return
	}

	var req impersonate.StartRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}

	targetID, err := uuid.Parse(req.TargetUserID)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid target user id"})
		return
	}

	var orgID *uuid.UUID
	if req.OrganizationID != "" {
		parsed, err := uuid.Parse(req.OrganizationID)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, ErrorResponse{Error: "Invalid organization id"})
			return
		}
		orgID = &parsed
	}

	var duration time.Duration
	if req.DurationMs > 0 {
		duration = time.Duration(req.DurationMs) * time.Millisecond
	} else {
		var err error
		duration, err = h.service.ParseSessionDuration(req.Duration)
		if err != nil {
			renderError(w, r, err)
			return
		}
	}

	meta := impersonate.Metadata{UserAgent: r.UserAgent(), IPAddress: r.RemoteAddr}
	result, err := h.service.Start(r.Context(), user.UserUuid, targetID, orgID, req.Reason, duration, meta)
	if err != nil {
		renderError(w, r, err)
		return
	}

	if err := h.cookieSetter.SetCookie(w, client.ACCESS_TOKEN_NAME, result.AccessToken, result.TokenExpiry); err != nil {
		slog.Error("Failed to set impersonation cookie", "err", err)
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, StartResponse{
		Session:     newSessionView(result.Session),
		TargetUser:  result.Target,
		AccessToken: result.AccessToken,
	})
}

// End handles POST /end
func (h *Handler) End(w http.ResponseWriter, r *http.Request) {
	user, ok := authUser(w, r)
	if !ok {
		return
	}

	// Body is optional; with no session id the current session ends
	var req impersonate.EndRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
			return
		}
	}

	var sessionID *uuid.UUID
	if req.SessionID != "" {
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, ErrorResponse{Error: "Invalid session id"})
			return
		}
		sessionID = &id
	}

	session, err := h.service.End(r.Context(), user.UserUuid, sessionID)
	if err != nil {
		renderError(w, r, err)
		return
	}

	// Drop the impersonation cookie so the browser goes back to the
	// impersonator's own credentials
	if err := h.cookieSetter.ClearCookie(w, client.ACCESS_TOKEN_NAME); err != nil {
		slog.Error("Failed to clear impersonation cookie", "err", err)
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, newSessionView(*session))
}

// Revoke handles POST /sessions/{sessionID}/revoke
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	user, ok := authUser(w, r)
	if !ok {
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid session id"})
		return
	}

	session, err := h.service.Revoke(r.Context(), user.UserUuid, sessionID)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, newSessionView(*session))
}

// Status handles GET /status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	user, ok := authUser(w, r)
	if !ok {
		return
	}

	status, err := h.service.Status(r.Context(), user.UserUuid)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, status)
}

// ListActive handles GET /sessions
func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	if _, ok := authUser(w, r); !ok {
		return
	}

	page, err := h.service.ListActive(r.Context(), listParams(r))
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, newSessionPageView(page))
}

// ListHistory handles GET /history
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if _, ok := authUser(w, r); !ok {
		return
	}

	page, err := h.service.ListHistory(r.Context(), listParams(r))
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, newSessionPageView(page))
}

func listParams(r *http.Request) impersonate.ListParams {
	params := impersonate.ListParams{
		Status: r.URL.Query().Get("status"),
	}
	if raw := r.URL.Query().Get("impersonator_id"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			params.ImpersonatorID = &id
		}
	}
	if raw := r.URL.Query().Get("target_id"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			params.TargetID = &id
		}
	}
	if limit := parseIntParam(r, "limit"); limit > 0 {
		params.Limit = limit
	}
	if offset := parseIntParam(r, "offset"); offset > 0 {
		params.Offset = offset
	}
	return params
}

func parseIntParam(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}
