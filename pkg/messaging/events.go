package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventApplicationSubmitted        = "application.submitted"
	EventApplicationStatusChanged    = "application.status_changed"
	EventApplicationDocumentAttached = "application.document_attached"
)

// ExchangeApplicationEvents is the topic exchange for application lifecycle events
const ExchangeApplicationEvents = "application.events"

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// ApplicationSubmittedEvent is published after a submission is persisted
type ApplicationSubmittedEvent struct {
	ApplicationID   string   `json:"application_id"`
	UserID          string   `json:"user_id"`
	ServiceID       string   `json:"service_id"`
	ServiceTitle    string   `json:"service_title"`
	ApplicationType string   `json:"application_type"`
	DocumentCount   int      `json:"document_count"`
	FailedUploads   []string `json:"failed_uploads,omitempty"`
}

// ApplicationStatusChangedEvent is published when staff change status or notes
type ApplicationStatusChangedEvent struct {
	ApplicationID string `json:"application_id"`
	UserID        string `json:"user_id"`
	OldStatus     string `json:"old_status"`
	NewStatus     string `json:"new_status"`
	NotesUpdated  bool   `json:"notes_updated"`
	ChangedBy     string `json:"changed_by,omitempty"`
}

// ApplicationDocumentAttachedEvent is published when a document is linked after submission
type ApplicationDocumentAttachedEvent struct {
	ApplicationID string `json:"application_id"`
	DocumentID    string `json:"document_id"`
	Label         string `json:"label"`
	UploadedBy    string `json:"uploaded_by"`
	Direction     string `json:"direction"`
}
