package handler

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cscportal/portal-backend/internal/application/domain"
	"github.com/cscportal/portal-backend/internal/application/intake"
	"github.com/cscportal/portal-backend/internal/application/service"
	"github.com/cscportal/portal-backend/pkg/errors"
	"github.com/cscportal/portal-backend/pkg/httputil"
	"github.com/cscportal/portal-backend/pkg/logger"
)

// ApplicationHandler handles application and document endpoints
type ApplicationHandler struct {
	service  *service.RecordManager
	maxBytes int64
	logger   *logger.Logger
}

// NewApplicationHandler creates a new application handler. maxBytes bounds
// every multipart body.
func NewApplicationHandler(svc *service.RecordManager, maxBytes int64, log *logger.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		service:  svc,
		maxBytes: maxBytes,
		logger:   log,
	}
}

// StatusRequest is the staff status form. An unknown status is ignored;
// an absent notes field keeps the stored notes.
type StatusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes" validate:"omitempty,max=5000"`
}

func principal(r *http.Request) service.Principal {
	return service.Principal{
		UserID: httputil.GetUserID(r.Context()),
		Role:   httputil.GetUserRole(r.Context()),
	}
}

// Submit creates an application from a multipart form
func (h *ApplicationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	form, err := h.parseMultipart(w, r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	defer form.RemoveAll()

	result, err := h.service.Submit(r.Context(), httputil.GetUserID(r.Context()), chi.URLParam(r, "id"), rawSubmission(form))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, result)
}

// ListMine lists the caller's own applications
func (h *ApplicationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)

	apps, total, err := h.service.ListForUser(r.Context(), httputil.GetUserID(r.Context()), page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, apps, httputil.NewMeta(page, perPage, total))
}

// List lists every application for staff, optionally by status
func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)
	filter := domain.ListFilter{
		Status:  domain.Status(r.URL.Query().Get("status")),
		Page:    page,
		PerPage: perPage,
	}

	apps, total, err := h.service.ListAll(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, apps, httputil.NewMeta(page, perPage, total))
}

// Get returns one application with documents and history
func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.Get(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, detail)
}

// SetStatus updates status and notes
func (h *ApplicationHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	app, err := h.service.SetStatus(r.Context(), chi.URLParam(r, "id"), domain.Status(req.Status), req.Notes, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, app)
}

// UploadResponse attaches a staff document to an application.
// The form carries a label field and a file field.
func (h *ApplicationHandler) UploadResponse(w http.ResponseWriter, r *http.Request) {
	form, err := h.parseMultipart(w, r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	defer form.RemoveAll()

	doc, err := h.service.UploadResponse(r.Context(), chi.URLParam(r, "id"), firstValue(form, "label"), firstFile(form, "file"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, doc)
}

// DocumentURL returns a signed download link
func (h *ApplicationHandler) DocumentURL(w http.ResponseWriter, r *http.Request) {
	signed, err := h.service.DocumentURL(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, signed)
}

func (h *ApplicationHandler) parseMultipart(w http.ResponseWriter, r *http.Request) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	// Parts beyond the in-memory threshold spill to temp files removed by RemoveAll
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errors.New("PAYLOAD_TOO_LARGE", "upload exceeds the size limit", http.StatusRequestEntityTooLarge)
		}
		return nil, errors.BadRequest("invalid multipart form")
	}
	return r.MultipartForm, nil
}

func rawSubmission(form *multipart.Form) intake.RawSubmission {
	raw := intake.RawSubmission{
		Values: make(map[string]string, len(form.Value)),
		Files:  make(map[string]*intake.Upload, len(form.File)),
	}
	for key := range form.Value {
		raw.Values[key] = firstValue(form, key)
	}
	for key := range form.File {
		if up := firstFile(form, key); up != nil {
			raw.Files[key] = up
		}
	}
	return raw
}

func firstValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

func firstFile(form *multipart.Form, key string) *intake.Upload {
	headers := form.File[key]
	if len(headers) == 0 {
		return nil
	}
	fh := headers[0]
	return &intake.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
