package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cscportal/portal-backend/internal/auth/domain"
	"github.com/cscportal/portal-backend/internal/auth/service"
	"github.com/cscportal/portal-backend/pkg/httputil"
	"github.com/cscportal/portal-backend/pkg/logger"
)

// AuthHandler handles authentication and account endpoints
type AuthHandler struct {
	service *service.AuthService
	logger  *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(svc *service.AuthService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		service: svc,
		logger:  log,
	}
}

// Register handles citizen registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	user, err := h.service.Register(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, user)
}

// Login returns a handler for the given portal's login form
func (h *AuthHandler) Login(portal domain.Portal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.LoginRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		if err := httputil.Validate(&req); err != nil {
			httputil.Error(w, err)
			return
		}

		response, err := h.service.Login(r.Context(), &req, portal)
		if err != nil {
			httputil.Error(w, err)
			return
		}

		httputil.JSON(w, http.StatusOK, response)
	}
}

// Me returns the current user's account
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetCurrentUser(r.Context(), httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, user)
}

// ChangePassword changes the current user's password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req service.ChangePasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), httputil.GetUserID(r.Context()), &req); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// ListUsers lists every account
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, users)
}

// CreateUser creates an account with a chosen role
func (h *AuthHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req service.CreateStaffRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	user, err := h.service.CreateStaff(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, user)
}

// SetRole changes a user's role
func (h *AuthHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req service.SetRoleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	user, err := h.service.SetRole(r.Context(), httputil.GetUserID(r.Context()), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, user)
}
