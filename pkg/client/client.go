package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
)

// ExtraClaims carries the non-registered claims this service mints into
// access tokens. The impersonation fields are present only on delegated
// tokens minted by the impersonation session manager.
type ExtraClaims struct {
	Email           string   `json:"email,omitempty"`
	Roles           []string `json:"roles,omitempty"`
	IsImpersonation bool     `json:"is_impersonation,omitempty"`
	ImpersonatorID  string   `json:"impersonator_id,omitempty"`
	SessionID       string   `json:"session_id,omitempty"`
}

type AuthUser struct {
	UserId string `json:"user_id,omitempty"`
	// UserUuid is the parsed form of UserId, convenient for repository calls
	UserUuid    uuid.UUID
	ExtraClaims ExtraClaims `json:"extra_claims,omitempty"`
}

func (i AuthUser) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user", i.UserId),
		slog.Bool("is_impersonation", i.ExtraClaims.IsImpersonation),
	)
}

// IsImpersonating reports whether this request is made with a delegated
// access token minted for an impersonation session.
func (i *AuthUser) IsImpersonating() bool {
	return i.ExtraClaims.IsImpersonation
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation. This technique
// for defining context keys was copied from Go 1.7's new use of context in net/http.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "biz context value " + k.name
}

const (
	ACCESS_TOKEN_NAME  = "access_token"
	REFRESH_TOKEN_NAME = "refresh_token"
)

var (
	AuthUserKey = &contextKey{"AuthUser"}
)

func LoadFromMap[T any](m map[string]interface{}, c *T) error {
	data, err := json.Marshal(m)
	if err == nil {
		err = json.Unmarshal(data, c)
	}
	return err
}

// AuthUserMiddleware extracts the verified JWT claims placed in the request
// context by jwtauth and materializes an AuthUser for downstream handlers.
func AuthUserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, jwtClaims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			http.Error(w, fmt.Sprintf("missing or invalid JWT: %v", err), http.StatusUnauthorized)
			return
		}
		if jwtClaims == nil {
			http.Error(w, "missing JWT claims", http.StatusUnauthorized)
			return
		}

		claims := make(map[string]interface{}, len(jwtClaims))
		for k, v := range jwtClaims {
			claims[k] = v
		}

		authUser := new(AuthUser)

		if sub, ok := claims["sub"].(string); ok {
			authUser.UserId = sub
		}
		if authUser.UserId == "" {
			http.Error(w, "missing user ID in token", http.StatusUnauthorized)
			return
		}

		if extraClaimsRaw, exists := claims["extra_claims"]; exists {
			extraClaims, ok := extraClaimsRaw.(map[string]interface{})
			if !ok {
				http.Error(w, "invalid extra claims format", http.StatusUnauthorized)
				return
			}
			if err := LoadFromMap(extraClaims, &authUser.ExtraClaims); err != nil {
				slog.Error("Failed to parse extra claims", "err", err)
				http.Error(w, "invalid extra claims data", http.StatusUnauthorized)
				return
			}
		}

		userUUID, err := uuid.Parse(authUser.UserId)
		if err != nil {
			slog.Warn("Failed to parse user ID as UUID", "userId", authUser.UserId, "err", err)
			http.Error(w, "invalid user ID in token", http.StatusUnauthorized)
			return
		}
		authUser.UserUuid = userUUID

		slog.Debug("authenticated user", "userId", authUser.UserId, "roles", authUser.ExtraClaims.Roles)

		ctx := context.WithValue(r.Context(), AuthUserKey, authUser)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Verifier wraps jwtauth.Verify so tokens are accepted from either the
// Authorization header or the access token cookie.
func Verifier(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return jwtauth.Verify(ja, jwtauth.TokenFromHeader, TokenFromCookie)(next)
	}
}

func TokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(ACCESS_TOKEN_NAME)
	if err != nil {
		return ""
	}
	return cookie.Value
}
