package handler

import (
	"context"
	"net/http"

	catalog "github.com/cscportal/portal-backend/internal/catalog/domain"
	"github.com/cscportal/portal-backend/internal/settings/domain"
	"github.com/cscportal/portal-backend/internal/settings/service"
	"github.com/cscportal/portal-backend/pkg/httputil"
	"github.com/cscportal/portal-backend/pkg/logger"
)

// ServiceLister supplies the catalog shown on the public site
type ServiceLister interface {
	List(ctx context.Context) ([]*catalog.Service, error)
}

// SettingsHandler handles site settings endpoints
type SettingsHandler struct {
	service  *service.SettingsService
	services ServiceLister
	logger   *logger.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(svc *service.SettingsService, services ServiceLister, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{
		service:  svc,
		services: services,
		logger:   log,
	}
}

// SiteResponse is what the public landing page renders
type SiteResponse struct {
	Settings domain.Settings    `json:"settings"`
	Services []*catalog.Service `json:"services"`
}

// Site returns the settings together with the service catalog
func (h *SettingsHandler) Site(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.All(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	services, err := h.services.List(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, SiteResponse{Settings: settings, Services: services})
}

// Get returns the current settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.All(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, settings)
}

// Update stores the submitted key/value pairs
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := httputil.DecodeJSON(r, &values); err != nil {
		httputil.Error(w, err)
		return
	}

	settings, err := h.service.Update(r.Context(), values)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	h.logger.Info().
		Str("user_id", httputil.GetUserID(r.Context())).
		Int("keys", len(values)).
		Msg("site settings updated")

	httputil.JSON(w, http.StatusOK, settings)
}
