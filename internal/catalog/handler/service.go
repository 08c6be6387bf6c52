package handler

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cscportal/portal-backend/internal/catalog/service"
	"github.com/cscportal/portal-backend/pkg/errors"
	"github.com/cscportal/portal-backend/pkg/httputil"
	"github.com/cscportal/portal-backend/pkg/logger"
)

// ServiceHandler handles catalog endpoints
type ServiceHandler struct {
	service *service.CatalogService
	logger  *logger.Logger
}

// NewServiceHandler creates a new catalog handler
func NewServiceHandler(svc *service.CatalogService, log *logger.Logger) *ServiceHandler {
	return &ServiceHandler{
		service: svc,
		logger:  log,
	}
}

// List lists the catalog
func (h *ServiceHandler) List(w http.ResponseWriter, r *http.Request) {
	services, err := h.service.List(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, services)
}

// Get returns one service with its form fields and document slots
func (h *ServiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, detail)
}

// Create adds a service
func (h *ServiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateServiceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	svc, err := h.service.Create(r.Context(), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, svc)
}

// Update edits a service's descriptive fields
func (h *ServiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateServiceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	svc, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, svc)
}

// Delete removes a service
func (h *ServiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// schemaBody accepts each list either as a JSON string holding the
// editor's text or as an inline JSON array.
type schemaBody struct {
	FormSchema        json.RawMessage `json:"form_schema"`
	RequiredDocuments json.RawMessage `json:"required_documents"`
}

func listText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(raw), nil
}

// SetSchema replaces a service's form fields and document slots
func (h *ServiceHandler) SetSchema(w http.ResponseWriter, r *http.Request) {
	var body schemaBody
	if err := httputil.DecodeJSON(r, &body); err != nil {
		httputil.Error(w, err)
		return
	}

	formText, err := listText(body.FormSchema)
	if err != nil {
		httputil.Error(w, errors.Validation(map[string]string{"form_schema": "must be a list or a string"}))
		return
	}
	docsText, err := listText(body.RequiredDocuments)
	if err != nil {
		httputil.Error(w, errors.Validation(map[string]string{"required_documents": "must be a list or a string"}))
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.SetSchemaText(r.Context(), id, &service.SchemaTextRequest{
		FormSchema:        formText,
		RequiredDocuments: docsText,
	}); err != nil {
		httputil.Error(w, err)
		return
	}

	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, detail)
}
