package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cscportal/portal-backend/internal/application/domain"
	"github.com/cscportal/portal-backend/internal/application/intake"
	catalog "github.com/cscportal/portal-backend/internal/catalog/domain"
	"github.com/cscportal/portal-backend/pkg/errors"
)

type fakeApplications struct {
	mu        sync.Mutex
	apps      map[string]*domain.Application
	history   map[string][]*domain.StatusChange
	createErr error
	seq       int
}

func newFakeApplications() *fakeApplications {
	return &fakeApplications{
		apps:    map[string]*domain.Application{},
		history: map[string][]*domain.StatusChange{},
	}
}

func (f *fakeApplications) Create(ctx context.Context, app *domain.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.seq++
	app.ID = fmt.Sprintf("app-%d", f.seq)
	app.CreatedAt = time.Now()
	app.UpdatedAt = app.CreatedAt
	stored := *app
	f.apps[app.ID] = &stored
	f.history[app.ID] = append(f.history[app.ID], &domain.StatusChange{ApplicationID: app.ID, Status: app.Status})
	return nil
}

func (f *fakeApplications) GetByID(ctx context.Context, id string) (*domain.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return nil, errors.NotFound("application")
	}
	out := *app
	return &out, nil
}

func (f *fakeApplications) ListByUser(ctx context.Context, userID string, page, perPage int) ([]*domain.Application, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Application{}
	for _, app := range f.apps {
		if app.UserID == userID {
			out = append(out, app)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (f *fakeApplications) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Application, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Application{}
	for _, app := range f.apps {
		if filter.Status == "" || app.Status == filter.Status {
			out = append(out, app)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeApplications) UpdateStatus(ctx context.Context, id string, status *domain.Status, notes *string, changedBy string) (*domain.Application, domain.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return nil, "", errors.NotFound("application")
	}
	previous := app.Status
	if status != nil {
		app.Status = *status
		by := changedBy
		f.history[id] = append(f.history[id], &domain.StatusChange{ApplicationID: id, Status: *status, ChangedBy: &by})
	}
	if notes != nil {
		app.AdminNotes = *notes
	}
	out := *app
	return &out, previous, nil
}

func (f *fakeApplications) History(ctx context.Context, applicationID string) ([]*domain.StatusChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.StatusChange{}, f.history[applicationID]...), nil
}

type fakeDocuments struct {
	mu     sync.Mutex
	docs   []*domain.Document
	owners map[string]string
	failOn func(doc *domain.Document) bool
}

func (f *fakeDocuments) Create(ctx context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != nil && f.failOn(doc) {
		return errors.Conflict("duplicate storage key")
	}
	doc.ID = fmt.Sprintf("doc-%d", len(f.docs)+1)
	doc.CreatedAt = time.Now()
	f.docs = append(f.docs, doc)
	return nil
}

func (f *fakeDocuments) ListByApplication(ctx context.Context, applicationID string) ([]*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Document{}
	for _, d := range f.docs {
		if d.ApplicationID == applicationID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDocuments) GetAccess(ctx context.Context, id string) (*domain.DocumentAccess, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.ID == id {
			return &domain.DocumentAccess{Document: *d, OwnerID: f.owners[d.ApplicationID]}, nil
		}
	}
	return nil, errors.NotFound("document")
}

type fakeCatalog map[string]*catalog.ServiceDetail

func (f fakeCatalog) Get(ctx context.Context, id string) (*catalog.ServiceDetail, error) {
	detail, ok := f[id]
	if !ok {
		return nil, errors.NotFound("service")
	}
	return detail, nil
}

func fileUpload(name, content string) *intake.Upload {
	return &intake.Upload{
		Filename: name,
		Size:     int64(len(content)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}
