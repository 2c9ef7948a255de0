package client

import (
	"log/slog"
	"net/http"
)

// AdminRoleMiddleware restricts a route group to users carrying an admin
// role claim. It must run after AuthUserMiddleware.
func AdminRoleMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authUser, ok := r.Context().Value(AuthUserKey).(*AuthUser)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if !HasAnyRole(authUser, "super_admin", "org_admin", "admin") {
			slog.Warn("User lacks admin role",
				"userId", authUser.UserId,
				"roles", authUser.ExtraClaims.Roles)
			http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HasAnyRole checks if the user carries any of the given roles
func HasAnyRole(user *AuthUser, roles ...string) bool {
	if user == nil || user.ExtraClaims.Roles == nil {
		return false
	}

	for _, userRole := range user.ExtraClaims.Roles {
		for _, role := range roles {
			if userRole == role {
				return true
			}
		}
	}
	return false
}
