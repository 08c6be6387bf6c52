// Package middleware authenticates bearer tokens and enforces portal roles.
package middleware

import (
	"net/http"
	"strings"

	"github.com/cscportal/portal-backend/internal/auth/jwt"
	"github.com/cscportal/portal-backend/pkg/errors"
	"github.com/cscportal/portal-backend/pkg/httputil"
	"github.com/cscportal/portal-backend/pkg/logger"
	"github.com/cscportal/portal-backend/pkg/permissions"
)

// Authenticate validates the bearer token and adds user context.
// The user id is also copied to X-User-ID for the request logger.
func Authenticate(manager *jwt.Manager, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.Error(w, errors.Unauthorized("missing authorization header"))
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				httputil.Error(w, errors.Unauthorized("invalid authorization header format"))
				return
			}

			claims, err := manager.Validate(parts[1])
			if err != nil {
				log.Debug().Err(err).Msg("token validation failed")
				httputil.Error(w, err)
				return
			}

			r.Header.Set("X-User-ID", claims.UserID)
			ctx := httputil.WithUserContext(r.Context(), claims.UserID, claims.Email, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole allows callers whose role ranks at or above minimum
func RequireRole(minimum string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !permissions.RoleAtLeast(httputil.GetUserRole(r.Context()), minimum) {
				httputil.Error(w, errors.Forbidden("access denied"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission allows callers whose role grants permission
func RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !permissions.RoleHas(httputil.GetUserRole(r.Context()), permission) {
				httputil.Error(w, errors.Forbidden("access denied"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
