package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cscportal/portal-backend/internal/application/domain"
	"github.com/cscportal/portal-backend/pkg/database"
	"github.com/cscportal/portal-backend/pkg/errors"
)

const applicationColumns = `
	a.id, a.user_id, a.service_id, a.application_type, a.submitted_data,
	a.status, a.admin_notes, a.created_at, a.updated_at`

// ApplicationRepository handles application persistence
type ApplicationRepository struct {
	db *database.DB
}

// NewApplicationRepository creates a new application repository
func NewApplicationRepository(db *database.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create inserts the application and its first history row in one
// transaction. Nothing is written when either insert fails.
func (r *ApplicationRepository) Create(ctx context.Context, app *domain.Application) error {
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	if app.Status == "" {
		app.Status = domain.StatusPending
	}
	if app.ApplicationType == "" {
		app.ApplicationType = domain.DefaultApplicationType
	}
	if app.SubmittedData == nil {
		app.SubmittedData = domain.SubmittedData{}
	}

	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO applications (id, user_id, service_id, application_type, submitted_data, status, admin_notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at, updated_at
		`
		if err := tx.QueryRowxContext(ctx, query,
			app.ID, app.UserID, app.ServiceID, app.ApplicationType, app.SubmittedData, app.Status, app.AdminNotes,
		).Scan(&app.CreatedAt, &app.UpdatedAt); err != nil {
			return err
		}

		return insertHistory(ctx, tx, app.ID, app.Status, &app.UserID)
	})
	if appErr := database.MapPQError(err); appErr != nil {
		return appErr
	}
	return err
}

func insertHistory(ctx context.Context, tx *sqlx.Tx, applicationID string, status domain.Status, changedBy *string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO application_status_history (application_id, status, changed_by)
		VALUES ($1, $2, $3)`,
		applicationID, status, changedBy)
	return err
}

// GetByID gets an application with its service title
func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*domain.Application, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NotFound("application")
	}

	var app domain.Application
	query := `
		SELECT ` + applicationColumns + `, s.title AS service_title,
		       u.name AS applicant_name, u.email AS applicant_email
		FROM applications a
		JOIN services s ON s.id = a.service_id
		JOIN users u ON u.id = a.user_id
		WHERE a.id = $1
	`
	err := r.db.GetContext(ctx, &app, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("application")
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// ListByUser lists one citizen's applications, newest first
func (r *ApplicationRepository) ListByUser(ctx context.Context, userID string, page, perPage int) ([]*domain.Application, int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM applications WHERE user_id = $1`, userID); err != nil {
		return nil, 0, err
	}

	filter := domain.ListFilter{Page: page, PerPage: perPage}
	apps := []*domain.Application{}
	query := `
		SELECT ` + applicationColumns + `, s.title AS service_title
		FROM applications a
		JOIN services s ON s.id = a.service_id
		WHERE a.user_id = $1
		ORDER BY a.created_at DESC, a.id
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &apps, query, userID, filter.PerPage, filter.Offset()); err != nil {
		return nil, 0, err
	}
	return apps, total, nil
}

// List lists every application for staff, optionally filtered by status
func (r *ApplicationRepository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Application, int64, error) {
	var status *string
	if filter.Status != "" {
		s := string(filter.Status)
		status = &s
	}

	var total int64
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM applications WHERE ($1::varchar IS NULL OR status = $1)`, status); err != nil {
		return nil, 0, err
	}

	apps := []*domain.Application{}
	query := `
		SELECT ` + applicationColumns + `, s.title AS service_title,
		       u.name AS applicant_name, u.email AS applicant_email
		FROM applications a
		JOIN services s ON s.id = a.service_id
		JOIN users u ON u.id = a.user_id
		WHERE ($1::varchar IS NULL OR a.status = $1)
		ORDER BY a.created_at DESC, a.id
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &apps, query, status, filter.PerPage, filter.Offset()); err != nil {
		return nil, 0, err
	}
	return apps, total, nil
}

// UpdateStatus writes status and notes; a nil argument keeps the stored
// value. A history row is added only when status is given. It returns the
// updated application and the status it had before.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id string, status *domain.Status, notes *string, changedBy string) (*domain.Application, domain.Status, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, "", errors.NotFound("application")
	}

	var (
		app      domain.Application
		previous domain.Status
	)

	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &previous,
			`SELECT status FROM applications WHERE id = $1 FOR UPDATE`, id); err != nil {
			return err
		}

		var statusArg *string
		if status != nil {
			s := string(*status)
			statusArg = &s
		}

		query := `
			UPDATE applications a
			SET status = COALESCE($2::varchar, a.status),
			    admin_notes = COALESCE($3::text, a.admin_notes),
			    updated_at = NOW()
			WHERE a.id = $1
			RETURNING ` + applicationColumns
		if err := tx.GetContext(ctx, &app, query, id, statusArg, notes); err != nil {
			return err
		}

		if status == nil {
			return nil
		}

		var actor *string
		if changedBy != "" {
			actor = &changedBy
		}
		return insertHistory(ctx, tx, id, *status, actor)
	})
	if err == sql.ErrNoRows {
		return nil, "", errors.NotFound("application")
	}
	if appErr := database.MapPQError(err); appErr != nil {
		return nil, "", appErr
	}
	if err != nil {
		return nil, "", err
	}
	return &app, previous, nil
}

// History returns an application's status changes, oldest first
func (r *ApplicationRepository) History(ctx context.Context, applicationID string) ([]*domain.StatusChange, error) {
	changes := []*domain.StatusChange{}
	err := r.db.SelectContext(ctx, &changes, `
		SELECT id, application_id, status, changed_by, created_at
		FROM application_status_history
		WHERE application_id = $1
		ORDER BY id`, applicationID)
	if err != nil {
		return nil, err
	}
	return changes, nil
}
