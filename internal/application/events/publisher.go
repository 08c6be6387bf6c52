package events

import (
	"context"

	"github.com/cscportal/portal-backend/internal/application/domain"
	"github.com/cscportal/portal-backend/pkg/logger"
	"github.com/cscportal/portal-backend/pkg/messaging"
)

// ApplicationEventPublisher publishes application lifecycle events.
// Publish failures are logged and never returned to the caller.
type ApplicationEventPublisher struct {
	publisher messaging.EventPublisher
	logger    *logger.Logger
}

// NewApplicationEventPublisher wraps any messaging.EventPublisher
func NewApplicationEventPublisher(publisher messaging.EventPublisher, log *logger.Logger) *ApplicationEventPublisher {
	return &ApplicationEventPublisher{
		publisher: publisher,
		logger:    log,
	}
}

// PublishSubmitted publishes an application submitted event
func (p *ApplicationEventPublisher) PublishSubmitted(ctx context.Context, app *domain.Application, serviceTitle string, documents int, failed []string) {
	if p == nil {
		return
	}

	data := messaging.ApplicationSubmittedEvent{
		ApplicationID:   app.ID,
		UserID:          app.UserID,
		ServiceID:       app.ServiceID,
		ServiceTitle:    serviceTitle,
		ApplicationType: app.ApplicationType,
		DocumentCount:   documents,
		FailedUploads:   failed,
	}

	if err := p.publisher.Publish(ctx, messaging.EventApplicationSubmitted, data); err != nil {
		p.logger.Error().Err(err).Str("application_id", app.ID).Msg("failed to publish application submitted event")
	}
}

// PublishStatusChanged publishes a status changed event
func (p *ApplicationEventPublisher) PublishStatusChanged(ctx context.Context, app *domain.Application, previous domain.Status, notesUpdated bool, changedBy string) {
	if p == nil {
		return
	}

	data := messaging.ApplicationStatusChangedEvent{
		ApplicationID: app.ID,
		UserID:        app.UserID,
		OldStatus:     string(previous),
		NewStatus:     string(app.Status),
		NotesUpdated:  notesUpdated,
		ChangedBy:     changedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventApplicationStatusChanged, data); err != nil {
		p.logger.Error().Err(err).Str("application_id", app.ID).Msg("failed to publish status changed event")
	}
}

// PublishDocumentAttached publishes a document attached event
func (p *ApplicationEventPublisher) PublishDocumentAttached(ctx context.Context, doc *domain.Document) {
	if p == nil {
		return
	}

	data := messaging.ApplicationDocumentAttachedEvent{
		ApplicationID: doc.ApplicationID,
		DocumentID:    doc.ID,
		Label:         doc.Label,
		UploadedBy:    string(doc.UploadedBy),
		Direction:     string(doc.DocType),
	}

	if err := p.publisher.Publish(ctx, messaging.EventApplicationDocumentAttached, data); err != nil {
		p.logger.Error().Err(err).Str("document_id", doc.ID).Msg("failed to publish document attached event")
	}
}
