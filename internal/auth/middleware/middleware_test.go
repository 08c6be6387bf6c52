package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cscportal/portal-backend/internal/auth/domain"
	"github.com/cscportal/portal-backend/internal/auth/jwt"
	"github.com/cscportal/portal-backend/pkg/config"
	"github.com/cscportal/portal-backend/pkg/httputil"
	"github.com/cscportal/portal-backend/pkg/logger"
	"github.com/cscportal/portal-backend/pkg/permissions"
	"github.com/cscportal/portal-backend/pkg/testutil"
)

func setup(t *testing.T) (http.Handler, func(role string) string) {
	t.Helper()
	manager := jwt.NewManager(&config.JWTConfig{Secret: "test", AccessExpiry: time.Hour, Issuer: "csc-portal"})

	echo := func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{
			"user_id": httputil.GetUserID(r.Context()),
			"role":    httputil.GetUserRole(r.Context()),
			"header":  r.Header.Get("X-User-ID"),
		})
	}

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(Authenticate(manager, logger.NewNop()))
		r.Get("/me", echo)
		r.With(RequireRole(permissions.RoleAdmin)).Get("/admin", echo)
		r.With(RequireRole(permissions.RoleSuperuser)).Get("/superuser", echo)
		r.With(RequirePermission(permissions.CatalogManage)).Get("/catalog", echo)
	})

	tokenFor := func(role string) string {
		token, err := manager.Generate(&domain.User{ID: "user-" + role, Email: role + "@example.com", Role: role})
		require.NoError(t, err)
		return token.AccessToken
	}
	return r, tokenFor
}

func TestAuthenticate(t *testing.T) {
	router, tokenFor := setup(t)

	rr := testutil.ExecuteRequest(router, testutil.WithBearer(testutil.NewHTTPRequest(http.MethodGet, "/me", nil), tokenFor(permissions.RoleUser)))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var resp struct {
		Data map[string]string `json:"data"`
	}
	testutil.ParseJSONBody(t, rr, &resp)
	assert.Equal(t, "user-user", resp.Data["user_id"])
	assert.Equal(t, "user-user", resp.Data["header"])
	assert.Equal(t, permissions.RoleUser, resp.Data["role"])
}

func TestAuthenticate_Rejects(t *testing.T) {
	router, _ := setup(t)

	testutil.RunHTTPTestCases(t, router, []testutil.HTTPTestCase{
		{Name: "no header", Method: http.MethodGet, Path: "/me", WantStatus: http.StatusUnauthorized},
		{Name: "basic scheme", Method: http.MethodGet, Path: "/me", Headers: map[string]string{"Authorization": "Basic abc"}, WantStatus: http.StatusUnauthorized},
		{Name: "garbage token", Method: http.MethodGet, Path: "/me", Token: "abc.def.ghi", WantStatus: http.StatusUnauthorized, WantBodyContains: []string{"TOKEN_INVALID"}},
	})
}

func TestRoleTiers(t *testing.T) {
	router, tokenFor := setup(t)

	tests := []struct {
		role string
		path string
		want int
	}{
		{permissions.RoleUser, "/admin", http.StatusForbidden},
		{permissions.RoleAdmin, "/admin", http.StatusOK},
		{permissions.RoleSuperuser, "/admin", http.StatusOK},
		{permissions.RoleAdmin, "/superuser", http.StatusForbidden},
		{permissions.RoleSuperuser, "/superuser", http.StatusOK},
		{permissions.RoleUser, "/catalog", http.StatusForbidden},
		{permissions.RoleAdmin, "/catalog", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.role+tt.path, func(t *testing.T) {
			req := testutil.WithBearer(testutil.NewHTTPRequest(http.MethodGet, tt.path, nil), tokenFor(tt.role))
			rr := testutil.ExecuteRequest(router, req)
			testutil.AssertStatus(t, rr, tt.want)
		})
	}
}
