// Package gateway assembles the portal's HTTP surface: shared middleware,
// public routes and the role-gated API groups.
package gateway

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	apphandler "github.com/cscportal/portal-backend/internal/application/handler"
	authdomain "github.com/cscportal/portal-backend/internal/auth/domain"
	authhandler "github.com/cscportal/portal-backend/internal/auth/handler"
	"github.com/cscportal/portal-backend/internal/auth/jwt"
	authmw "github.com/cscportal/portal-backend/internal/auth/middleware"
	cataloghandler "github.com/cscportal/portal-backend/internal/catalog/handler"
	settingshandler "github.com/cscportal/portal-backend/internal/settings/handler"
	"github.com/cscportal/portal-backend/pkg/httputil"
	"github.com/cscportal/portal-backend/pkg/logger"
	"github.com/cscportal/portal-backend/pkg/metrics"
	"github.com/cscportal/portal-backend/pkg/permissions"
)

// Handlers groups the per-module HTTP handlers
type Handlers struct {
	Auth         *authhandler.AuthHandler
	Catalog      *cataloghandler.ServiceHandler
	Applications *apphandler.ApplicationHandler
	Settings     *settingshandler.SettingsHandler
}

// Options configures the router
type Options struct {
	AllowedOrigins []string
	Tokens         *jwt.Manager
	Metrics        *metrics.Metrics
	// Files serves signed local downloads. Nil disables /files.
	Files FileOpener
	// Health reports dependency status for /health.
	Health func(ctx context.Context) map[string]interface{}
}

// NewRouter builds the portal router
func NewRouter(h Handlers, opts Options, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(opts.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{"status": "healthy", "service": "portal-service"}
		if opts.Health != nil {
			for k, v := range opts.Health(r.Context()) {
				body[k] = v
			}
		}
		httputil.JSON(w, http.StatusOK, body)
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}
	r.Get("/files/{token}", serveFile(opts.Files, log))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/site", h.Settings.Site)
		r.Get("/services", h.Catalog.List)
		r.Get("/services/{id}", h.Catalog.Get)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Auth.Register)
			r.Post("/login", h.Auth.Login(authdomain.PortalCitizen))
			r.Post("/admin/login", h.Auth.Login(authdomain.PortalAdmin))
			r.Post("/superuser/login", h.Auth.Login(authdomain.PortalSuperuser))
		})

		r.Group(func(r chi.Router) {
			r.Use(authmw.Authenticate(opts.Tokens, log))

			r.Get("/me", h.Auth.Me)
			r.Post("/me/password", h.Auth.ChangePassword)

			r.Get("/applications", h.Applications.ListMine)
			r.Get("/applications/{id}", h.Applications.Get)
			r.Post("/services/{id}/applications", h.Applications.Submit)
			r.Get("/documents/{id}/url", h.Applications.DocumentURL)

			r.Route("/admin", func(r chi.Router) {
				r.Use(authmw.RequireRole(permissions.RoleAdmin))

				r.Route("/applications", func(r chi.Router) {
					r.Use(authmw.RequirePermission(permissions.ApplicationsReview))
					r.Get("/", h.Applications.List)
					r.Get("/{id}", h.Applications.Get)
					r.Patch("/{id}/status", h.Applications.SetStatus)
					r.With(authmw.RequirePermission(permissions.DocumentsRespond)).
						Post("/{id}/documents", h.Applications.UploadResponse)
				})

				r.Route("/services", func(r chi.Router) {
					r.Use(authmw.RequirePermission(permissions.CatalogManage))
					r.Post("/", h.Catalog.Create)
					r.Put("/{id}", h.Catalog.Update)
					r.Delete("/{id}", h.Catalog.Delete)
					r.Put("/{id}/schema", h.Catalog.SetSchema)
				})

				r.Route("/settings", func(r chi.Router) {
					r.Use(authmw.RequirePermission(permissions.SettingsManage))
					r.Get("/", h.Settings.Get)
					r.Put("/", h.Settings.Update)
				})
			})

			r.Route("/superuser", func(r chi.Router) {
				r.Use(authmw.RequireRole(permissions.RoleSuperuser))
				r.Use(authmw.RequirePermission(permissions.UsersManage))
				r.Get("/users", h.Auth.ListUsers)
				r.Post("/users", h.Auth.CreateUser)
				r.Patch("/users/{id}/role", h.Auth.SetRole)
			})
		})
	})

	return r
}

func allowedOrigins(configured []string) []string {
	if len(configured) == 0 {
		return []string{"http://localhost:3000", "http://localhost:5173"}
	}
	return configured
}
