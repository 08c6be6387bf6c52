package database

import (
	"strings"

	"github.com/lib/pq"

	"github.com/cscportal/portal-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error or has no specific mapping.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	case "23514":
		return mapCheckConstraint(pqErr)

	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	case "23503":
		return errors.BadRequest("referenced record does not exist")

	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps CHECK constraint names from the migrations to field errors.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "role_valid"):
		return errors.Validation(map[string]string{
			"role": "must be one of: user, admin, superuser",
		})

	case strings.Contains(constraint, "status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: Pending, Processing, Completed, Rejected",
		})

	case strings.Contains(constraint, "uploaded_by_valid"):
		return errors.Validation(map[string]string{
			"uploaded_by": "must be one of: user, admin",
		})

	case strings.Contains(constraint, "doc_type_valid"):
		return errors.Validation(map[string]string{
			"doc_type": "must be one of: request, response",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "users_email"):
		return "an account with this email already exists"
	case strings.Contains(constraint, "services_title"):
		return "a service with this title already exists"
	default:
		return "a record with these values already exists"
	}
}
