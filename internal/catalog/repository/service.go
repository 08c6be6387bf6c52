package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/cscportal/portal-backend/internal/catalog/domain"
	"github.com/cscportal/portal-backend/pkg/database"
	"github.com/cscportal/portal-backend/pkg/errors"
)

const serviceColumns = `
	id, title, description, icon_path, docs_new, docs_update, status_link,
	form_schema, required_documents, created_at, updated_at`

// ServiceRepository handles catalog persistence
type ServiceRepository struct {
	db *database.DB
}

// NewServiceRepository creates a new service repository
func NewServiceRepository(db *database.DB) *ServiceRepository {
	return &ServiceRepository{db: db}
}

// List returns every service in catalog order
func (r *ServiceRepository) List(ctx context.Context) ([]*domain.Service, error) {
	services := []*domain.Service{}
	query := `SELECT ` + serviceColumns + ` FROM services ORDER BY created_at, title`
	if err := r.db.SelectContext(ctx, &services, query); err != nil {
		return nil, err
	}
	return services, nil
}

// GetByID gets a service by ID
func (r *ServiceRepository) GetByID(ctx context.Context, id string) (*domain.Service, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NotFound("service")
	}

	var svc domain.Service
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = $1`
	err := r.db.GetContext(ctx, &svc, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("service")
	}
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

// Count returns the number of services
func (r *ServiceRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM services`); err != nil {
		return 0, err
	}
	return n, nil
}

// Create inserts a service, assigning its ID and timestamps
func (r *ServiceRepository) Create(ctx context.Context, svc *domain.Service) error {
	if svc.ID == "" {
		svc.ID = uuid.New().String()
	}
	if svc.IconPath == "" {
		svc.IconPath = domain.DefaultIconPath
	}

	query := `
		INSERT INTO services (
			id, title, description, icon_path, docs_new, docs_update, status_link,
			form_schema, required_documents
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		svc.ID, svc.Title, svc.Description, svc.IconPath, svc.DocsNew, svc.DocsUpdate, svc.StatusLink,
		svc.FormSchemaText, svc.RequiredDocumentsText,
	).Scan(&svc.CreatedAt, &svc.UpdatedAt)
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}

// Update rewrites the descriptive columns. The schema columns are left alone.
func (r *ServiceRepository) Update(ctx context.Context, svc *domain.Service) error {
	if _, err := uuid.Parse(svc.ID); err != nil {
		return errors.NotFound("service")
	}

	query := `
		UPDATE services
		SET title = $2, description = $3, icon_path = $4, docs_new = $5,
		    docs_update = $6, status_link = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		svc.ID, svc.Title, svc.Description, svc.IconPath, svc.DocsNew, svc.DocsUpdate, svc.StatusLink,
	).Scan(&svc.CreatedAt, &svc.UpdatedAt)
	if err == sql.ErrNoRows {
		return errors.NotFound("service")
	}
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}

// UpdateSchema replaces both stored schema lists. Nil stores NULL.
func (r *ServiceRepository) UpdateSchema(ctx context.Context, id string, formSchema, requiredDocuments *string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.NotFound("service")
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE services
		SET form_schema = $2, required_documents = $3, updated_at = NOW()
		WHERE id = $1`,
		id, formSchema, requiredDocuments)
	if err != nil {
		return err
	}
	return requireAffected(result, "service")
}

// Delete removes a service. Applications and their documents cascade.
func (r *ServiceRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.NotFound("service")
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(result, "service")
}

func requireAffected(result sql.Result, resource string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFound(resource)
	}
	return nil
}
