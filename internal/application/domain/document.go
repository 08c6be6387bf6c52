package domain

import (
	"time"
)

// UploaderRole records who uploaded a document
type UploaderRole string

const (
	UploadedByUser  UploaderRole = "user"
	UploadedByAdmin UploaderRole = "admin"
)

// Valid reports whether r is a known uploader role
func (r UploaderRole) Valid() bool {
	return r == UploadedByUser || r == UploadedByAdmin
}

// Direction says which portal surfaces a document
type Direction string

const (
	// DirectionRequest documents travel from the citizen to staff
	DirectionRequest Direction = "request"
	// DirectionResponse documents travel from staff back to the citizen
	DirectionResponse Direction = "response"
)

// Valid reports whether d is a known direction
func (d Direction) Valid() bool {
	return d == DirectionRequest || d == DirectionResponse
}

// Document is one stored file attached to an application
type Document struct {
	ID            string       `json:"id" db:"id"`
	ApplicationID string       `json:"application_id" db:"application_id"`
	StorageKey    string       `json:"-" db:"storage_key"`
	OriginalName  string       `json:"original_name" db:"original_name"`
	Label         string       `json:"label" db:"label"`
	UploadedBy    UploaderRole `json:"uploaded_by" db:"uploaded_by"`
	DocType       Direction    `json:"doc_type" db:"doc_type"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
}

// DocumentSet splits an application's documents by direction
type DocumentSet struct {
	Requests  []*Document `json:"requests"`
	Responses []*Document `json:"responses"`
}

// SplitDocuments groups docs by direction, keeping their order
func SplitDocuments(docs []*Document) DocumentSet {
	set := DocumentSet{Requests: []*Document{}, Responses: []*Document{}}
	for _, d := range docs {
		if d.DocType == DirectionResponse {
			set.Responses = append(set.Responses, d)
		} else {
			set.Requests = append(set.Requests, d)
		}
	}
	return set
}

// DocumentAccess is the minimal view needed to authorise a download
type DocumentAccess struct {
	Document
	OwnerID string `db:"owner_id"`
}
