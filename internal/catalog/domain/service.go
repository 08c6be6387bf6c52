package domain

import (
	"time"
)

// DefaultIconPath is used when a service is created without an icon
const DefaultIconPath = "img/service-icon.png"

// Service is one catalog entry. The schema columns hold the raw stored text;
// use Schema() to read them as typed descriptors.
type Service struct {
	ID                    string    `json:"id" db:"id"`
	Title                 string    `json:"title" db:"title"`
	Description           string    `json:"description" db:"description"`
	IconPath              string    `json:"icon_path" db:"icon_path"`
	DocsNew               string    `json:"docs_new" db:"docs_new"`
	DocsUpdate            string    `json:"docs_update" db:"docs_update"`
	StatusLink            string    `json:"status_link" db:"status_link"`
	FormSchemaText        *string   `json:"-" db:"form_schema"`
	RequiredDocumentsText *string   `json:"-" db:"required_documents"`
	CreatedAt             time.Time `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time `json:"updated_at" db:"updated_at"`
}

// ServiceDetail is a service together with its interpreted schema
type ServiceDetail struct {
	*Service
	FormSchema        []FieldDescriptor        `json:"form_schema"`
	RequiredDocuments []DocumentSlotDescriptor `json:"required_documents"`
}
