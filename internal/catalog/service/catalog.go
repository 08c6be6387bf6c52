package service

import (
	"context"
	"strings"

	"github.com/cscportal/portal-backend/internal/catalog/domain"
	"github.com/cscportal/portal-backend/pkg/errors"
	"github.com/cscportal/portal-backend/pkg/logger"
	"github.com/cscportal/portal-backend/pkg/metrics"
)

// ServiceStore is the persistence the catalog needs
type ServiceStore interface {
	List(ctx context.Context) ([]*domain.Service, error)
	GetByID(ctx context.Context, id string) (*domain.Service, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, svc *domain.Service) error
	Update(ctx context.Context, svc *domain.Service) error
	UpdateSchema(ctx context.Context, id string, formSchema, requiredDocuments *string) error
	Delete(ctx context.Context, id string) error
}

// CatalogService owns the service catalog and its per-service schemas
type CatalogService struct {
	repo    ServiceStore
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewCatalogService creates a new catalog service. m may be nil.
func NewCatalogService(repo ServiceStore, m *metrics.Metrics, log *logger.Logger) *CatalogService {
	return &CatalogService{
		repo:    repo,
		metrics: m,
		logger:  log.WithComponent("catalog"),
	}
}

// CreateServiceRequest represents a create service request
type CreateServiceRequest struct {
	Title       string `json:"title" validate:"required,max=100"`
	Description string `json:"description" validate:"required,max=500"`
	IconPath    string `json:"icon_path" validate:"max=100"`
	DocsNew     string `json:"docs_new"`
	DocsUpdate  string `json:"docs_update"`
	StatusLink  string `json:"status_link" validate:"omitempty,url,max=255"`
}

// UpdateServiceRequest represents a partial service update
type UpdateServiceRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,min=1,max=500"`
	IconPath    *string `json:"icon_path" validate:"omitempty,max=100"`
	DocsNew     *string `json:"docs_new"`
	DocsUpdate  *string `json:"docs_update"`
	StatusLink  *string `json:"status_link" validate:"omitempty,url,max=255"`
}

// SchemaTextRequest carries the admin editor's raw JSON lists
type SchemaTextRequest struct {
	FormSchema        string `json:"form_schema"`
	RequiredDocuments string `json:"required_documents"`
}

// List returns the whole catalog
func (s *CatalogService) List(ctx context.Context) ([]*domain.Service, error) {
	return s.repo.List(ctx)
}

// Get returns a service together with its interpreted schema
func (s *CatalogService) Get(ctx context.Context, id string) (*domain.ServiceDetail, error) {
	svc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	schema := s.interpret(svc)
	return &domain.ServiceDetail{
		Service:           svc,
		FormSchema:        schema.Fields,
		RequiredDocuments: schema.Documents,
	}, nil
}

// GetSchema returns the typed schema of a service. A stored list that is
// absent or unreadable comes back empty; only a missing service is an error.
func (s *CatalogService) GetSchema(ctx context.Context, serviceID string) (domain.Schema, error) {
	svc, err := s.repo.GetByID(ctx, serviceID)
	if err != nil {
		return domain.Schema{}, err
	}
	return s.interpret(svc), nil
}

func (s *CatalogService) interpret(svc *domain.Service) domain.Schema {
	schema, errs := domain.ParseSchema(svc.FormSchemaText, svc.RequiredDocumentsText)
	for _, err := range errs {
		list := "schema"
		var schemaErr *domain.SchemaError
		if errors.As(err, &schemaErr) {
			list = schemaErr.List
		}
		s.metrics.SchemaParseFailed(list)
		s.logger.Warn().
			Err(err).
			Str("service_id", svc.ID).
			Str("list", list).
			Msg("stored schema unreadable, treating as empty")
	}
	return schema
}

// SetSchema validates both lists and persists them. Invalid input is
// rejected with a validation error and the stored schema is not touched.
func (s *CatalogService) SetSchema(ctx context.Context, serviceID string, fields []domain.FieldDescriptor, documents []domain.DocumentSlotDescriptor) error {
	formText, docsText, err := domain.EncodeSchema(domain.Schema{Fields: fields, Documents: documents})
	if err != nil {
		return schemaValidationError(err)
	}

	if err := s.repo.UpdateSchema(ctx, serviceID, formText, docsText); err != nil {
		return err
	}

	s.logger.Info().
		Str("service_id", serviceID).
		Int("fields", len(fields)).
		Int("documents", len(documents)).
		Msg("service schema updated")
	return nil
}

// SetSchemaText is the admin editor path: both lists arrive as raw JSON text.
func (s *CatalogService) SetSchemaText(ctx context.Context, serviceID string, req *SchemaTextRequest) error {
	fields, err := domain.DecodeFields(req.FormSchema)
	if err != nil {
		return schemaValidationError(err)
	}
	documents, err := domain.DecodeDocuments(req.RequiredDocuments)
	if err != nil {
		return schemaValidationError(err)
	}
	return s.SetSchema(ctx, serviceID, fields, documents)
}

func schemaValidationError(err error) error {
	var schemaErr *domain.SchemaError
	if errors.As(err, &schemaErr) {
		return errors.Validation(map[string]string{schemaErr.List: schemaErr.Error()})
	}
	return errors.Validation(map[string]string{"schema": err.Error()})
}

// Create adds a service without a schema
func (s *CatalogService) Create(ctx context.Context, req *CreateServiceRequest) (*domain.Service, error) {
	svc := &domain.Service{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		IconPath:    strings.TrimSpace(req.IconPath),
		DocsNew:     req.DocsNew,
		DocsUpdate:  req.DocsUpdate,
		StatusLink:  strings.TrimSpace(req.StatusLink),
	}

	if err := s.repo.Create(ctx, svc); err != nil {
		return nil, err
	}

	s.logger.Info().Str("service_id", svc.ID).Str("title", svc.Title).Msg("service created")
	return svc, nil
}

// Update applies the non-nil fields of req
func (s *CatalogService) Update(ctx context.Context, id string, req *UpdateServiceRequest) (*domain.Service, error) {
	svc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		svc.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		svc.Description = strings.TrimSpace(*req.Description)
	}
	if req.IconPath != nil {
		svc.IconPath = strings.TrimSpace(*req.IconPath)
		if svc.IconPath == "" {
			svc.IconPath = domain.DefaultIconPath
		}
	}
	if req.DocsNew != nil {
		svc.DocsNew = *req.DocsNew
	}
	if req.DocsUpdate != nil {
		svc.DocsUpdate = *req.DocsUpdate
	}
	if req.StatusLink != nil {
		svc.StatusLink = strings.TrimSpace(*req.StatusLink)
	}

	if err := s.repo.Update(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

// Delete removes a service and, by cascade, its applications
func (s *CatalogService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("service_id", id).Msg("service deleted")
	return nil
}

// SeedDefaults installs the starter catalog when no service exists yet.
// It returns the number of services created.
func (s *CatalogService) SeedDefaults(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	created := 0
	for _, def := range domain.DefaultCatalog {
		_, docsText, err := domain.EncodeSchema(domain.Schema{Documents: def.Documents})
		if err != nil {
			return created, err
		}

		svc := &domain.Service{
			Title:                 def.Title,
			Description:           def.Description,
			IconPath:              def.IconPath,
			RequiredDocumentsText: docsText,
		}
		if err := s.repo.Create(ctx, svc); err != nil {
			return created, err
		}
		created++
	}

	s.logger.Info().Int("services", created).Msg("default catalog seeded")
	return created, nil
}
