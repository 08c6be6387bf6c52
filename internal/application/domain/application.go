package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the review state of an application. Any status may follow any other.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusCompleted  Status = "Completed"
	StatusRejected   Status = "Rejected"
)

// Statuses lists every accepted status value
var Statuses = []Status{StatusPending, StatusProcessing, StatusCompleted, StatusRejected}

// Valid reports whether s is exactly one of the four status values
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// DefaultApplicationType is used when the form leaves application_type blank
const DefaultApplicationType = "New"

// SubmittedData maps a form field name to the submitted value. Stored as JSONB.
type SubmittedData map[string]string

// Value implements driver.Valuer
func (d SubmittedData) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Scan implements sql.Scanner
func (d *SubmittedData) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = SubmittedData{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("submitted_data: unsupported type %T", src)
	}

	out := SubmittedData{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("submitted_data: %w", err)
	}
	*d = out
	return nil
}

// Application is one citizen's request against one service
type Application struct {
	ID              string        `json:"id" db:"id"`
	UserID          string        `json:"user_id" db:"user_id"`
	ServiceID       string        `json:"service_id" db:"service_id"`
	ApplicationType string        `json:"application_type" db:"application_type"`
	SubmittedData   SubmittedData `json:"submitted_data" db:"submitted_data"`
	Status          Status        `json:"status" db:"status"`
	AdminNotes      string        `json:"admin_notes" db:"admin_notes"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`

	// Filled by listing queries that join the catalog and users
	ServiceTitle   string `json:"service_title,omitempty" db:"service_title"`
	ApplicantName  string `json:"applicant_name,omitempty" db:"applicant_name"`
	ApplicantEmail string `json:"applicant_email,omitempty" db:"applicant_email"`
}

// StatusChange is one row of an application's status history
type StatusChange struct {
	ID            int64     `json:"id" db:"id"`
	ApplicationID string    `json:"application_id" db:"application_id"`
	Status        Status    `json:"status" db:"status"`
	ChangedBy     *string   `json:"changed_by,omitempty" db:"changed_by"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// ListFilter narrows the staff application listing
type ListFilter struct {
	Status  Status
	Page    int
	PerPage int
}

// Offset returns the row offset for the filter's page
func (f ListFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PerPage
}

// ApplicationDetail is an application with its documents and status history
type ApplicationDetail struct {
	*Application
	Documents DocumentSet     `json:"documents"`
	History   []*StatusChange `json:"history"`
}
