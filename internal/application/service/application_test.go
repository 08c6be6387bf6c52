package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cscportal/portal-backend/internal/application/domain"
	"github.com/cscportal/portal-backend/internal/application/events"
	"github.com/cscportal/portal-backend/internal/application/intake"
	catalog "github.com/cscportal/portal-backend/internal/catalog/domain"
	"github.com/cscportal/portal-backend/pkg/errors"
	"github.com/cscportal/portal-backend/pkg/logger"
	"github.com/cscportal/portal-backend/pkg/messaging"
	"github.com/cscportal/portal-backend/pkg/metrics"
	"github.com/cscportal/portal-backend/pkg/permissions"
	"github.com/cscportal/portal-backend/pkg/storage"
	"github.com/cscportal/portal-backend/pkg/testutil"
)

const (
	citizen  = "citizen-1"
	stranger = "citizen-2"
	staffer  = "staff-1"
	passport = "svc-passport"
)

var fixedNow = time.Date(2024, 3, 1, 10, 30, 5, 0, time.UTC)

type harness struct {
	manager   *RecordManager
	apps      *fakeApplications
	docs      *fakeDocuments
	store     *testutil.MemoryStore
	publisher *testutil.MockPublisher
}

func newHarness(t *testing.T, store storage.Store) *harness {
	t.Helper()

	mem, _ := store.(*testutil.MemoryStore)
	h := &harness{
		apps:      newFakeApplications(),
		docs:      &fakeDocuments{owners: map[string]string{}},
		store:     mem,
		publisher: testutil.NewMockPublisher(),
	}

	services := fakeCatalog{
		passport: {
			Service: &catalog.Service{ID: passport, Title: "Passport"},
			FormSchema: []catalog.FieldDescriptor{
				{Name: "dob", Label: "Date of Birth", Type: catalog.FieldDate, Required: true},
			},
			RequiredDocuments: []catalog.DocumentSlotDescriptor{
				{Label: "Photo ID", Required: true},
				{Label: "Address Proof", SubInputs: []string{"Front", "Back"}},
			},
		},
	}

	log := logger.NewNop()
	h.manager = NewRecordManager(
		h.apps, h.docs, services, store,
		events.NewApplicationEventPublisher(h.publisher, log),
		metrics.New("portal_test"),
		log,
		Options{SignedURLTTL: 15 * time.Minute, Now: func() time.Time { return fixedNow }},
	)
	return h
}

// submit records the owner so access checks in fakeDocuments work
func (h *harness) submit(t *testing.T, raw intake.RawSubmission) *CreateResult {
	t.Helper()
	result, err := h.manager.Submit(context.Background(), citizen, passport, raw)
	require.NoError(t, err)
	h.docs.owners[result.Application.ID] = citizen
	return result
}

func (h *harness) eventsOfType(eventType string) []testutil.PublishedEvent {
	var out []testutil.PublishedEvent
	for _, e := range h.publisher.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func TestSubmit_PhotoIDScenario(t *testing.T) {
	h := newHarness(t, testutil.NewMemoryStore())

	result := h.submit(t, intake.RawSubmission{
		Values: map[string]string{"dob": "2000-01-01", "ignored": "x"},
		Files:  map[string]*intake.Upload{"doc_field_0": fileUpload("photo.png", "\x89PNG\r\n\x1a\nrest")},
	})

	app := result.Application
	assert.Equal(t, domain.StatusPending, app.Status)
	assert.Equal(t, domain.DefaultApplicationType, app.ApplicationType)
	assert.Equal(t, domain.SubmittedData{"dob": "2000-01-01"}, app.SubmittedData)
	assert.Empty(t, result.Warnings)

	require.Len(t, result.Documents, 1)
	doc := result.Documents[0]
	assert.Equal(t, "Photo ID", doc.Label)
	assert.Equal(t, "photo.png", doc.OriginalName)
	assert.Equal(t, domain.UploadedByUser, doc.UploadedBy)
	assert.Equal(t, domain.DirectionRequest, doc.DocType)
	assert.True(t, strings.HasPrefix(doc.StorageKey, "applications/citizen-1/"+app.ID+"/20240301103005_0_"))

	obj, ok := h.store.Object(doc.StorageKey)
	require.True(t, ok)
	assert.Equal(t, "image/png", obj.ContentType)

	h.publisher.AssertEventPublished(t, messaging.EventApplicationSubmitted)
}

func TestSubmit_ApplicationTypeFromForm(t *testing.T) {
	h := newHarness(t, testutil.NewMemoryStore())

	result := h.submit(t, intake.RawSubmission{Values: map[string]string{"application_type": " Update "}})
	assert.Equal(t, "Update", result.Application.ApplicationType)
	assert.Equal(t, domain.SubmittedData{"dob": ""}, result.Application.SubmittedData)
	assert.Empty(t, result.Documents)
}

func TestSubmit_UnknownService(t *testing.T) {
	h := newHarness(t, testutil.NewMemoryStore())

	_, err := h.manager.Submit(context.Background(), citizen, "nope", intake.RawSubmission{})
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.Empty(t, h.apps.apps)
}

func TestSubmit_PartialUploadFailure(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.FailOn = func(key string) bool { return strings.Contains(key, "_1_1_") }
	h := newHarness(t, store)

	result := h.submit(t, intake.RawSubmission{
		Files: map[string]*intake.Upload{
			"doc_field_0": fileUpload("id.pdf", "%PDF-1.4"),
			"doc_1_1":     fileUpload("back.jpg", "jpeg"),
		},
	})

	require.Len(t, result.Documents, 1)
	assert.Equal(t, "Photo ID", result.Documents[0].Label)

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "Address Proof - Back", result.Warnings[0].Label)
	assert.Equal(t, "upload failed", result.Warnings[0].Reason)

	submitted := h.eventsOfType(messaging.EventApplicationSubmitted)
	require.Len(t, submitted, 1)
	event := submitted[0].Payload.(messaging.ApplicationSubmittedEvent)
	assert.Equal(t, 1, event.DocumentCount)
	assert.Equal(t, []string{"Address Proof - Back"}, event.FailedUploads)
}

func TestSubmit_UnconfiguredStorageStillCreates(t *testing.T) {
	h := newHarness(t, storage.Unconfigured{})

	result, err := h.manager.Submit(context.Background(), citizen, passport, intake.RawSubmission{
		Values: map[string]string{"dob": "1990-05-05"},
		Files:  map[string]*intake.Upload{"doc_field_0": fileUpload("id.pdf", "%PDF")},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.Application.ID)
	assert.Empty(t, result.Documents)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "Photo ID", result.Warnings[0].Label)
	assert.Equal(t, "document storage is not configured", result.Warnings[0].Reason)
}

func TestSubmit_DocumentRowFailureIsAWarning(t *testing.T) {
	h := newHarness(t, testutil.NewMemoryStore())
	h.docs.failOn = func(doc *domain.Document) bool { return doc.Label == "Photo ID" }

	result := h.submit(t, intake.RawSubmission{
		Files: map[string]*intake.Upload{"doc_field_0": fileUpload("id.pdf", "%PDF")},
	})
	assert.Empty(t, result.Documents)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "could not record document", result.Warnings[0].Reason)
}

func TestSubmit_PublishesDocumentAttachedPerStoredFile(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.FailOn = func(key string) bool { return strings.Contains(key, "_1_1_") }
	h := newHarness(t, store)

	result := h.submit(t, intake.RawSubmission{
		Files: map[string]*intake.Upload{
			"doc_field_0": fileUpload("id.pdf", "%PDF-1.4"),
			"doc_1_0":     fileUpload("front.jpg", "jpeg"),
			"doc_1_1":     fileUpload("back.jpg", "jpeg"),
		},
	})
	require.Len(t, result.Documents, 2)

	attached := h.eventsOfType(messaging.EventApplicationDocumentAttached)
	require.Len(t, attached, 2)
	for i, e := range attached {
		data := e.Payload.(messaging.ApplicationDocumentAttachedEvent)
		assert.Equal(t, result.Application.ID, data.ApplicationID)
		assert.Equal(t, result.Documents[i].ID, data.DocumentID)
		assert.Equal(t, "user", data.UploadedBy)
		assert.Equal(t, "request", data.Direction)
	}
}

func TestSubmit_NoDocumentAttachedWhenRowFails(t *testing.T) {
	h := newHarness(t, testutil.NewMemoryStore())
	h.docs.failOn = func(doc *domain.Document) bool { return true }

	h.submit(t, intake.RawSubmission{
		Files: map[string]*intake.Upload{"doc_field_0": fileUpload("id.pdf", "%PDF")},
	})
	assert.Empty(t, h.eventsOfType(messaging.EventApplicationDocumentAttached))
	h.publisher.AssertEventPublished(t, messaging.EventApplicationSubmitted)
}

func TestCreate_InsertFailureIsReturned(t *testing.T) {
	h := newHarness(t, testutil.NewMemoryStore())
	h.apps.createErr = errors.BadRequest("referenced record does not exist")

	_, err := h.manager.Create(context.Background(), CreateInput{
		UserID:    citizen,
		ServiceID: passport,
		Staged:    []intake.StagedFile{{Label: "Photo ID", SubIndex: intake.NoSubIndex, Upload: fileUpload("a.pdf", "x")}},
	})
	assert.ErrorIs(t, err, errors.ErrBadRequest)
	assert.Empty(t, h.store.Keys())
	h.publisher.AssertNoEventsPublished(t)
}

func TestSetStatus_NilNotesKeepStoredNotes(t *testing.T) {
	h := newHarness(t, testutil.NewMemoryStore())
	app := h.submit(t, intake.RawSubmission{}).Application
	ctx := context.Background()

	done := "done"
	updated, err := h.manager.SetStatus(ctx, app.ID, domain.StatusCompleted, &done, staffer)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, updated.Status)
	assert.Equal(t, "done", updated.AdminNotes)

	updated, err = h.manager.SetStatus(ctx, app.ID, domain.StatusPending, nil, staffer)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, updated.Status)
	assert.Equal(t, "done", updated.AdminNotes)

	empty := ""
	updated, err = h.manager.SetStatus(ctx, app.ID, domain.StatusPending, &empty, staffer)
	require.NoError(t, err)
	assert.Equal(t, "", updated.AdminNotes)
}

func TestSetStatus_InvalidStatusIsIgnored(t *testing.T) {
	h := newHarness(t, testutil.NewMemoryStore())
	app := h.submit(t, intake.RawSubmission{}).Application
	h.publisher.Reset()

	notes := "checked"
	updated, err := h.manager.SetStatus(context.Background(), app.ID, domain.Status("Archived"), &notes, staffer)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, updated.Status)
	assert.Equal(t, "checked", updated.AdminNotes)

	history, _ := h.apps.History(context.Background(), app.ID)
	assert.Len(t, history, 1)

	data := h.publisher.Events()[0].Payload.(messaging.ApplicationStatusChangedEvent)
	assert.Equal(t, "Pending", data.NewStatus)
	assert.True(t, data.NotesUpdated)
}

func TestSetStatus_AnyToAny(t *testing.T) {
	h := newHarness(t, testutil.NewMemoryStore())
	app := h.submit(t, intake.RawSubmission{}).Application

	for _, status := range []domain.Status{
		domain.StatusRejected, domain.StatusProcessing, domain.StatusCompleted, domain.StatusPending,
	} {
		updated, err := h.manager.SetStatus(context.Background(), app.ID, status, nil, staffer)
		require.NoError(t, err)
		assert.Equal(t, status, updated.Status)
	}
}

func TestSetStatus_MissingApplication(t *testing.T) {
	h := newHarness(t, testutil.NewMemoryStore())

	_, err := h.manager.SetStatus(context.Background(), "missing", domain.StatusCompleted, nil, staffer)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	h.publisher.AssertNoEventsPublished(t)
}

func TestAttachDocument(t *testing.T) {
	h := newHarness(t, testutil.NewMemoryStore())
	app := h.submit(t, intake.RawSubmission{}).Application
	ctx := context.Background()

	doc, err := h.manager.AttachDocument(ctx, app.ID, "applications/x/k", "k.pdf", "Receipt", domain.UploadedByAdmin, domain.DirectionResponse)
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	h.publisher.AssertEventPublished(t, messaging.EventApplicationDocumentAttached)

	_, err = h.manager.AttachDocument(ctx, "missing", "k2", "k.pdf", "Receipt", domain.UploadedByAdmin, domain.DirectionResponse)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = h.manager.AttachDocument(ctx, app.ID, "k3", "k.pdf", "Receipt", domain.UploaderRole("robot"), domain.DirectionResponse)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestUploadResponse(t *testing.T) {
	h := newHarness(t, testutil.NewMemoryStore())
	app := h.submit(t, intake.RawSubmission{}).Application

	doc, err := h.manager.UploadResponse(context.Background(), app.ID, "Certificate", fileUpload("cert.pdf", "%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, domain.UploadedByAdmin, doc.UploadedBy)
	assert.Equal(t, domain.DirectionResponse, doc.DocType)
	assert.True(t, strings.HasPrefix(doc.StorageKey, "applications/responses/"+app.ID+"/"))

	set, err := h.manager.Documents(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Empty(t, set.Requests)
	assert.Len(t, set.Responses, 1)
}

func TestUploadResponse_StorageUnavailable(t *testing.T) {
	h := newHarness(t, storage.Unconfigured{})
	app := h.submit(t, intake.RawSubmission{}).Application

	_, err := h.manager.UploadResponse(context.Background(), app.ID, "Certificate", fileUpload("cert.pdf", "x"))
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "STORAGE_UNAVAILABLE", appErr.Code)
	assert.Equal(t, 503, appErr.StatusCode)
}

func TestUploadResponse_RequiresLabelAndFile(t *testing.T) {
	h := newHarness(t, testutil.NewMemoryStore())
	app := h.submit(t, intake.RawSubmission{}).Application

	_, err := h.manager.UploadResponse(context.Background(), app.ID, " ", fileUpload("a.pdf", "x"))
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = h.manager.UploadResponse(context.Background(), app.ID, "Certificate", nil)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestGet_AccessControl(t *testing.T) {
	h := newHarness(t, testutil.NewMemoryStore())
	app := h.submit(t, intake.RawSubmission{}).Application
	ctx := context.Background()

	detail, err := h.manager.Get(ctx, Principal{UserID: citizen, Role: permissions.RoleUser}, app.ID)
	require.NoError(t, err)
	assert.Equal(t, app.ID, detail.ID)
	assert.Len(t, detail.History, 1)

	_, foreignErr := h.manager.Get(ctx, Principal{UserID: stranger, Role: permissions.RoleUser}, app.ID)
	assert.ErrorIs(t, foreignErr, errors.ErrNotFound)

	_, err = h.manager.Get(ctx, Principal{UserID: staffer, Role: permissions.RoleAdmin}, app.ID)
	assert.NoError(t, err)

	_, missingErr := h.manager.Get(ctx, Principal{UserID: citizen, Role: permissions.RoleUser}, "missing")
	assert.ErrorIs(t, missingErr, errors.ErrNotFound)
	assert.Equal(t, missingErr.Error(), foreignErr.Error())
}

func TestDocumentURL(t *testing.T) {
	h := newHarness(t, testutil.NewMemoryStore())
	result := h.submit(t, intake.RawSubmission{
		Files: map[string]*intake.Upload{"doc_field_0": fileUpload("id.pdf", "%PDF")},
	})
	docID := result.Documents[0].ID
	ctx := context.Background()

	signed, err := h.manager.DocumentURL(ctx, Principal{UserID: citizen, Role: permissions.RoleUser}, docID)
	require.NoError(t, err)
	assert.Contains(t, signed.URL, "expires=900")
	assert.Equal(t, fixedNow.Add(15*time.Minute), signed.ExpiresAt)

	_, foreignErr := h.manager.DocumentURL(ctx, Principal{UserID: stranger, Role: permissions.RoleUser}, docID)
	assert.ErrorIs(t, foreignErr, errors.ErrNotFound)

	_, err = h.manager.DocumentURL(ctx, Principal{UserID: staffer, Role: permissions.RoleSuperuser}, docID)
	assert.NoError(t, err)

	_, missingErr := h.manager.DocumentURL(ctx, Principal{UserID: citizen, Role: permissions.RoleUser}, "doc-404")
	assert.ErrorIs(t, missingErr, errors.ErrNotFound)
	assert.Equal(t, missingErr.Error(), foreignErr.Error())
}

func TestDocumentURL_UnconfiguredStorage(t *testing.T) {
	h := newHarness(t, storage.Unconfigured{})
	app := h.submit(t, intake.RawSubmission{}).Application
	h.docs.docs = append(h.docs.docs, &domain.Document{ID: "doc-x", ApplicationID: app.ID, StorageKey: "k"})

	_, err := h.manager.DocumentURL(context.Background(), Principal{UserID: citizen, Role: permissions.RoleUser}, "doc-x")
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 503, appErr.StatusCode)
}

func TestListAll_RejectsUnknownStatus(t *testing.T) {
	h := newHarness(t, testutil.NewMemoryStore())
	h.submit(t, intake.RawSubmission{})

	_, _, err := h.manager.ListAll(context.Background(), domain.ListFilter{Status: "Lost"})
	assert.ErrorIs(t, err, errors.ErrValidation)

	apps, total, err := h.manager.ListAll(context.Background(), domain.ListFilter{Status: domain.StatusPending})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, apps, 1)
}
