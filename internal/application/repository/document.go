package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/cscportal/portal-backend/internal/application/domain"
	"github.com/cscportal/portal-backend/pkg/database"
	"github.com/cscportal/portal-backend/pkg/errors"
)

// DocumentRepository handles application document rows
type DocumentRepository struct {
	db *database.DB
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *database.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create records a stored file against an application
func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}

	query := `
		INSERT INTO application_documents (id, application_id, storage_key, original_name, label, uploaded_by, doc_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		doc.ID, doc.ApplicationID, doc.StorageKey, doc.OriginalName, doc.Label, doc.UploadedBy, doc.DocType,
	).Scan(&doc.CreatedAt)
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}

// ListByApplication returns an application's documents in upload order
func (r *DocumentRepository) ListByApplication(ctx context.Context, applicationID string) ([]*domain.Document, error) {
	docs := []*domain.Document{}
	err := r.db.SelectContext(ctx, &docs, `
		SELECT id, application_id, storage_key, original_name, label, uploaded_by, doc_type, created_at
		FROM application_documents
		WHERE application_id = $1
		ORDER BY created_at, id`, applicationID)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// GetAccess loads a document together with the owner of its application
func (r *DocumentRepository) GetAccess(ctx context.Context, id string) (*domain.DocumentAccess, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NotFound("document")
	}

	var access domain.DocumentAccess
	err := r.db.GetContext(ctx, &access, `
		SELECT d.id, d.application_id, d.storage_key, d.original_name, d.label,
		       d.uploaded_by, d.doc_type, d.created_at, a.user_id AS owner_id
		FROM application_documents d
		JOIN applications a ON a.id = d.application_id
		WHERE d.id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("document")
	}
	if err != nil {
		return nil, err
	}
	return &access, nil
}
