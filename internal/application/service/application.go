package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cscportal/portal-backend/internal/application/domain"
	"github.com/cscportal/portal-backend/internal/application/events"
	"github.com/cscportal/portal-backend/internal/application/intake"
	catalog "github.com/cscportal/portal-backend/internal/catalog/domain"
	"github.com/cscportal/portal-backend/pkg/config"
	"github.com/cscportal/portal-backend/pkg/errors"
	"github.com/cscportal/portal-backend/pkg/logger"
	"github.com/cscportal/portal-backend/pkg/metrics"
	"github.com/cscportal/portal-backend/pkg/permissions"
	"github.com/cscportal/portal-backend/pkg/storage"
)

// ApplicationStore is the application persistence the manager needs
type ApplicationStore interface {
	Create(ctx context.Context, app *domain.Application) error
	GetByID(ctx context.Context, id string) (*domain.Application, error)
	ListByUser(ctx context.Context, userID string, page, perPage int) ([]*domain.Application, int64, error)
	List(ctx context.Context, filter domain.ListFilter) ([]*domain.Application, int64, error)
	UpdateStatus(ctx context.Context, id string, status *domain.Status, notes *string, changedBy string) (*domain.Application, domain.Status, error)
	History(ctx context.Context, applicationID string) ([]*domain.StatusChange, error)
}

// DocumentStore is the document row persistence the manager needs
type DocumentStore interface {
	Create(ctx context.Context, doc *domain.Document) error
	ListByApplication(ctx context.Context, applicationID string) ([]*domain.Document, error)
	GetAccess(ctx context.Context, id string) (*domain.DocumentAccess, error)
}

// SchemaSource resolves a service and its current schema
type SchemaSource interface {
	Get(ctx context.Context, id string) (*catalog.ServiceDetail, error)
}

// Principal is the caller an access decision is made for
type Principal struct {
	UserID string
	Role   string
}

func (p Principal) canRead(ownerID string) bool {
	return p.UserID == ownerID || permissions.RoleHas(p.Role, permissions.DocumentsReadAny)
}

// CreateInput is an already interpreted submission
type CreateInput struct {
	UserID          string
	ServiceID       string
	ServiceTitle    string
	ApplicationType string
	SubmittedData   domain.SubmittedData
	Staged          []intake.StagedFile
}

// CreateResult is the outcome of a submission. Warnings list every staged
// file that was not stored; they never turn the result into an error.
type CreateResult struct {
	Application *domain.Application `json:"application"`
	Documents   []*domain.Document  `json:"documents"`
	Warnings    []intake.Warning    `json:"warnings"`
}

// SignedURL is a time-limited download link
type SignedURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Options tunes the record manager
type Options struct {
	SignedURLTTL time.Duration
	// Now defaults to time.Now
	Now func() time.Time
}

// RecordManager creates applications, stores their documents and serves
// them back to citizens and staff.
type RecordManager struct {
	apps    ApplicationStore
	docs    DocumentStore
	catalog SchemaSource
	store   storage.Store
	events  *events.ApplicationEventPublisher
	metrics *metrics.Metrics
	logger  *logger.Logger
	ttl     time.Duration
	now     func() time.Time
}

// NewRecordManager creates a record manager. publisher and m may be nil.
func NewRecordManager(
	apps ApplicationStore,
	docs DocumentStore,
	catalog SchemaSource,
	store storage.Store,
	publisher *events.ApplicationEventPublisher,
	m *metrics.Metrics,
	log *logger.Logger,
	opts Options,
) *RecordManager {
	if store == nil {
		store = storage.Unconfigured{}
	}
	if opts.SignedURLTTL <= 0 {
		opts.SignedURLTTL = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &RecordManager{
		apps:    apps,
		docs:    docs,
		catalog: catalog,
		store:   store,
		events:  publisher,
		metrics: m,
		logger:  log.WithComponent("applications"),
		ttl:     opts.SignedURLTTL,
		now:     opts.Now,
	}
}

// Submit interprets raw against the service's current schema and creates
// the application. The service must exist.
func (s *RecordManager) Submit(ctx context.Context, userID, serviceID string, raw intake.RawSubmission) (*CreateResult, error) {
	detail, err := s.catalog.Get(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	schema := catalog.Schema{Fields: detail.FormSchema, Documents: detail.RequiredDocuments}
	interpreted := intake.Interpret(schema, raw)

	applicationType := strings.TrimSpace(raw.Values["application_type"])
	if applicationType == "" {
		applicationType = domain.DefaultApplicationType
	}

	return s.Create(ctx, CreateInput{
		UserID:          userID,
		ServiceID:       detail.ID,
		ServiceTitle:    detail.Title,
		ApplicationType: applicationType,
		SubmittedData:   interpreted.Data,
		Staged:          interpreted.Staged,
	})
}

// Create persists the application and then stores each staged file in
// order. Only the application insert can fail the call.
func (s *RecordManager) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	app := &domain.Application{
		UserID:          in.UserID,
		ServiceID:       in.ServiceID,
		ApplicationType: in.ApplicationType,
		SubmittedData:   in.SubmittedData,
		Status:          domain.StatusPending,
	}
	if err := s.apps.Create(ctx, app); err != nil {
		return nil, err
	}
	app.ServiceTitle = in.ServiceTitle

	log := s.logger.WithApplicationID(app.ID).WithUserID(in.UserID)
	result := &CreateResult{
		Application: app,
		Documents:   []*domain.Document{},
		Warnings:    []intake.Warning{},
	}

	now := s.now().UTC()
	for _, staged := range in.Staged {
		doc, reason := s.storeRequestDocument(ctx, app, staged, now)
		if reason != "" {
			log.Warn().
				Str("label", staged.Label).
				Str("filename", staged.Upload.Filename).
				Str("reason", reason).
				Msg("document not stored")
			result.Warnings = append(result.Warnings, intake.Warning{Label: staged.Label, Reason: reason})
			continue
		}
		result.Documents = append(result.Documents, doc)
	}

	s.metrics.ApplicationSubmitted(in.ServiceTitle)

	failed := make([]string, 0, len(result.Warnings))
	for _, w := range result.Warnings {
		failed = append(failed, w.Label)
	}
	s.events.PublishSubmitted(ctx, app, in.ServiceTitle, len(result.Documents), failed)

	log.Info().
		Int("documents", len(result.Documents)).
		Int("warnings", len(result.Warnings)).
		Msg("application submitted")

	return result, nil
}

// storeRequestDocument returns the recorded document, or a reason it was skipped
func (s *RecordManager) storeRequestDocument(ctx context.Context, app *domain.Application, staged intake.StagedFile, now time.Time) (*domain.Document, string) {
	direction := string(domain.DirectionRequest)

	key, err := intake.StorageKey(app.UserID, app.ID, now, staged.SlotIndex, staged.SubIndex, staged.Upload.Filename)
	if err != nil {
		s.metrics.DocumentUpload(direction, metrics.OutcomeFailed)
		return nil, "could not name file"
	}

	if err := s.put(ctx, key, staged.Upload); err != nil {
		if s.unconfigured() {
			s.metrics.DocumentUpload(direction, metrics.OutcomeSkipped)
			return nil, "document storage is not configured"
		}
		s.metrics.DocumentUpload(direction, metrics.OutcomeFailed)
		s.logger.Error().Err(err).Str("key", key).Msg("document upload failed")
		return nil, "upload failed"
	}

	doc := &domain.Document{
		ApplicationID: app.ID,
		StorageKey:    key,
		OriginalName:  staged.Upload.Filename,
		Label:         staged.Label,
		UploadedBy:    domain.UploadedByUser,
		DocType:       domain.DirectionRequest,
	}
	if err := s.attach(ctx, doc); err != nil {
		s.metrics.DocumentUpload(direction, metrics.OutcomeFailed)
		s.logger.Error().Err(err).Str("key", key).Msg("stored file could not be recorded")
		return nil, "could not record document"
	}

	s.metrics.DocumentUpload(direction, metrics.OutcomeStored)
	return doc, ""
}

func (s *RecordManager) put(ctx context.Context, key string, up *intake.Upload) error {
	body, err := up.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer body.Close()

	contentType, reader, err := intake.Sniff(body, up.ContentType)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}
	return s.store.Put(ctx, key, reader, contentType)
}

func (s *RecordManager) unconfigured() bool {
	d, ok := s.store.(storage.Describer)
	return ok && d.Driver() == config.StorageDriverNone
}

// SetStatus writes a status and notes chosen by staff. A status outside the
// four known values leaves the status as it was; nil notes leave the notes
// as they were. Any status may follow any other.
func (s *RecordManager) SetStatus(ctx context.Context, applicationID string, status domain.Status, notes *string, changedBy string) (*domain.Application, error) {
	var next *domain.Status
	if status.Valid() {
		next = &status
	} else if status != "" {
		s.logger.Warn().
			Str("application_id", applicationID).
			Str("status", string(status)).
			Msg("ignoring unknown status")
	}

	app, previous, err := s.apps.UpdateStatus(ctx, applicationID, next, notes, changedBy)
	if err != nil {
		return nil, err
	}

	if next != nil {
		s.metrics.StatusChanged(string(*next))
	}
	if next != nil || notes != nil {
		s.events.PublishStatusChanged(ctx, app, previous, notes != nil, changedBy)
	}

	return app, nil
}

// AttachDocument links an already stored file to an existing application
func (s *RecordManager) AttachDocument(ctx context.Context, applicationID, storageKey, originalName, label string, uploadedBy domain.UploaderRole, direction domain.Direction) (*domain.Document, error) {
	if !uploadedBy.Valid() {
		return nil, errors.Validation(map[string]string{"uploaded_by": "must be user or admin"})
	}
	if !direction.Valid() {
		return nil, errors.Validation(map[string]string{"doc_type": "must be request or response"})
	}
	if storageKey == "" {
		return nil, errors.Validation(map[string]string{"storage_key": "is required"})
	}

	if _, err := s.apps.GetByID(ctx, applicationID); err != nil {
		return nil, err
	}

	doc := &domain.Document{
		ApplicationID: applicationID,
		StorageKey:    storageKey,
		OriginalName:  originalName,
		Label:         label,
		UploadedBy:    uploadedBy,
		DocType:       direction,
	}
	if err := s.attach(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// attach records a stored file against an application known to exist.
// Citizen submissions and staff responses both end here.
func (s *RecordManager) attach(ctx context.Context, doc *domain.Document) error {
	if err := s.docs.Create(ctx, doc); err != nil {
		return err
	}
	s.events.PublishDocumentAttached(ctx, doc)
	return nil
}

// UploadResponse stores a file from staff and attaches it as a response
// document. Unlike a submission, a storage failure is returned.
func (s *RecordManager) UploadResponse(ctx context.Context, applicationID, label string, up *intake.Upload) (*domain.Document, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, errors.Validation(map[string]string{"label": "is required"})
	}
	if up == nil || up.Filename == "" || up.Open == nil {
		return nil, errors.Validation(map[string]string{"file": "is required"})
	}

	if _, err := s.apps.GetByID(ctx, applicationID); err != nil {
		return nil, err
	}

	direction := string(domain.DirectionResponse)
	key, err := intake.ResponseStorageKey(applicationID, s.now().UTC(), up.Filename)
	if err != nil {
		return nil, errors.Internal("could not name file")
	}

	if err := s.put(ctx, key, up); err != nil {
		s.metrics.DocumentUpload(direction, metrics.OutcomeFailed)
		s.logger.Error().Err(err).Str("application_id", applicationID).Msg("response upload failed")
		return nil, errors.StorageUnavailable(err)
	}
	s.metrics.DocumentUpload(direction, metrics.OutcomeStored)

	return s.AttachDocument(ctx, applicationID, key, up.Filename, label, domain.UploadedByAdmin, domain.DirectionResponse)
}

// ListForUser lists one citizen's applications, newest first
func (s *RecordManager) ListForUser(ctx context.Context, userID string, page, perPage int) ([]*domain.Application, int64, error) {
	return s.apps.ListByUser(ctx, userID, page, perPage)
}

// ListAll lists every application for staff. An unknown status filter is an error.
func (s *RecordManager) ListAll(ctx context.Context, filter domain.ListFilter) ([]*domain.Application, int64, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, errors.Validation(map[string]string{"status": "must be one of Pending, Processing, Completed, Rejected"})
	}
	return s.apps.List(ctx, filter)
}

// Get returns an application with its documents and history. Citizens may
// only read their own; anyone else's reads as not found.
func (s *RecordManager) Get(ctx context.Context, principal Principal, applicationID string) (*domain.ApplicationDetail, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !principal.canRead(app.UserID) {
		s.logger.Debug().Str("application_id", app.ID).Str("user_id", principal.UserID).Msg("read denied")
		return nil, errors.NotFound("application")
	}

	set, err := s.Documents(ctx, app.ID)
	if err != nil {
		return nil, err
	}

	history, err := s.apps.History(ctx, app.ID)
	if err != nil {
		return nil, err
	}

	return &domain.ApplicationDetail{Application: app, Documents: set, History: history}, nil
}

// Documents returns an application's documents split by direction
func (s *RecordManager) Documents(ctx context.Context, applicationID string) (domain.DocumentSet, error) {
	docs, err := s.docs.ListByApplication(ctx, applicationID)
	if err != nil {
		return domain.DocumentSet{}, err
	}
	return domain.SplitDocuments(docs), nil
}

// DocumentURL mints a signed download link for a document the principal may read
func (s *RecordManager) DocumentURL(ctx context.Context, principal Principal, documentID string) (*SignedURL, error) {
	access, err := s.docs.GetAccess(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !principal.canRead(access.OwnerID) {
		s.logger.Debug().Str("document_id", documentID).Str("user_id", principal.UserID).Msg("read denied")
		return nil, errors.NotFound("document")
	}

	expires := s.now().Add(s.ttl).UTC()
	url, err := s.store.SignedURL(ctx, access.StorageKey, s.ttl)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errors.NotFound("document")
		}
		return nil, errors.StorageUnavailable(err)
	}

	return &SignedURL{URL: url, ExpiresAt: expires}, nil
}
