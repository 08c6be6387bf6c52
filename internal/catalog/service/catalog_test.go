package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cscportal/portal-backend/internal/catalog/domain"
	"github.com/cscportal/portal-backend/pkg/errors"
	"github.com/cscportal/portal-backend/pkg/logger"
	"github.com/cscportal/portal-backend/pkg/metrics"
)

type fakeServiceStore struct {
	mu       sync.Mutex
	services map[string]*domain.Service
	writes   int
}

func newFakeServiceStore() *fakeServiceStore {
	return &fakeServiceStore{services: map[string]*domain.Service{}}
}

func (f *fakeServiceStore) List(ctx context.Context) ([]*domain.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Service, 0, len(f.services))
	for _, s := range f.services {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (f *fakeServiceStore) GetByID(ctx context.Context, id string) (*domain.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.services[id]
	if !ok {
		return nil, errors.NotFound("service")
	}
	cp := *s
	return &cp, nil
}

func (f *fakeServiceStore) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.services), nil
}

func (f *fakeServiceStore) Create(ctx context.Context, svc *domain.Service) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.services {
		if s.Title == svc.Title {
			return errors.Conflict("a service with this title already exists")
		}
	}
	if svc.ID == "" {
		svc.ID = uuid.New().String()
	}
	svc.CreatedAt = time.Now()
	cp := *svc
	f.services[svc.ID] = &cp
	f.writes++
	return nil
}

func (f *fakeServiceStore) Update(ctx context.Context, svc *domain.Service) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.services[svc.ID]; !ok {
		return errors.NotFound("service")
	}
	cp := *svc
	f.services[svc.ID] = &cp
	f.writes++
	return nil
}

func (f *fakeServiceStore) UpdateSchema(ctx context.Context, id string, formSchema, requiredDocuments *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.services[id]
	if !ok {
		return errors.NotFound("service")
	}
	s.FormSchemaText = formSchema
	s.RequiredDocumentsText = requiredDocuments
	f.writes++
	return nil
}

func (f *fakeServiceStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.services[id]; !ok {
		return errors.NotFound("service")
	}
	delete(f.services, id)
	return nil
}

func (f *fakeServiceStore) put(svc *domain.Service) *domain.Service {
	f.mu.Lock()
	defer f.mu.Unlock()
	if svc.ID == "" {
		svc.ID = uuid.New().String()
	}
	f.services[svc.ID] = svc
	return svc
}

func strPtr(s string) *string { return &s }

func newTestService(store ServiceStore) *CatalogService {
	return NewCatalogService(store, metrics.New("test"), logger.NewNop())
}

func TestGetSchema_MalformedDegradesToEmpty(t *testing.T) {
	store := newFakeServiceStore()
	svc := store.put(&domain.Service{
		Title:                 "Broken",
		FormSchemaText:        strPtr("{definitely not json"),
		RequiredDocumentsText: strPtr(`[{"label": 42}]`),
	})

	schema, err := newTestService(store).GetSchema(context.Background(), svc.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.FieldDescriptor{}, schema.Fields)
	assert.Equal(t, []domain.DocumentSlotDescriptor{}, schema.Documents)
}

func TestGetSchema_MissingService(t *testing.T) {
	_, err := newTestService(newFakeServiceStore()).GetSchema(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestSetSchema_PersistsAndReadsBack(t *testing.T) {
	store := newFakeServiceStore()
	svc := store.put(&domain.Service{Title: "Aadhaar"})
	cs := newTestService(store)
	ctx := context.Background()

	fields := []domain.FieldDescriptor{{Name: "dob", Label: "Date of Birth", Type: domain.FieldDate, Required: true}}
	docs := []domain.DocumentSlotDescriptor{{Label: "Aadhaar Card", Required: true, SubInputs: []string{"Front", "Back"}}}
	require.NoError(t, cs.SetSchema(ctx, svc.ID, fields, docs))

	schema, err := cs.GetSchema(ctx, svc.ID)
	require.NoError(t, err)
	assert.Equal(t, fields, schema.Fields)
	assert.Equal(t, docs, schema.Documents)
}

func TestSetSchema_EmptyListsClearColumns(t *testing.T) {
	store := newFakeServiceStore()
	svc := store.put(&domain.Service{
		Title:                 "PAN",
		FormSchemaText:        strPtr(`[{"name":"a","label":"A","type":"text"}]`),
		RequiredDocumentsText: strPtr(`[{"label":"ID","required":true}]`),
	})

	require.NoError(t, newTestService(store).SetSchema(context.Background(), svc.ID, nil, nil))

	stored, _ := store.GetByID(context.Background(), svc.ID)
	assert.Nil(t, stored.FormSchemaText)
	assert.Nil(t, stored.RequiredDocumentsText)
}

func TestSetSchemaText_UnparseableDocumentsLeaveStoreUntouched(t *testing.T) {
	original := `[{"label":"Photo ID","required":true}]`
	originalFields := `[{"name":"dob","label":"Date of Birth","type":"date","required":true}]`

	store := newFakeServiceStore()
	svc := store.put(&domain.Service{
		Title:                 "Voter ID",
		FormSchemaText:        strPtr(originalFields),
		RequiredDocumentsText: strPtr(original),
	})
	writesBefore := store.writes

	err := newTestService(store).SetSchemaText(context.Background(), svc.ID, &SchemaTextRequest{
		FormSchema:        `[{"name":"father_name","label":"Father's Name"}]`,
		RequiredDocuments: `[{"label": "Photo ID", "required": tru`,
	})

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.ErrorIs(t, err, errors.ErrValidation)
	assert.Contains(t, appErr.Details, domain.ListRequiredDocuments)

	stored, _ := store.GetByID(context.Background(), svc.ID)
	assert.Equal(t, original, *stored.RequiredDocumentsText)
	assert.Equal(t, originalFields, *stored.FormSchemaText)
	assert.Equal(t, writesBefore, store.writes)
}

func TestSetSchema_InvalidDescriptorRejected(t *testing.T) {
	store := newFakeServiceStore()
	svc := store.put(&domain.Service{Title: "Ration Card"})

	err := newTestService(store).SetSchema(context.Background(), svc.ID,
		[]domain.FieldDescriptor{{Name: "", Label: "Nameless"}}, nil)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Details, domain.ListFormSchema)
	assert.Equal(t, 0, store.writes)
}

func TestSetSchema_MissingService(t *testing.T) {
	err := newTestService(newFakeServiceStore()).SetSchema(context.Background(), uuid.New().String(), nil, nil)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestUpdate_PartialFields(t *testing.T) {
	store := newFakeServiceStore()
	svc := store.put(&domain.Service{Title: "Passport", Description: "Old", IconPath: "fa-solid fa-passport"})

	empty := ""
	updated, err := newTestService(store).Update(context.Background(), svc.ID, &UpdateServiceRequest{
		Description: strPtr("  New Passport, Police Clearance  "),
		IconPath:    &empty,
	})
	require.NoError(t, err)
	assert.Equal(t, "Passport", updated.Title)
	assert.Equal(t, "New Passport, Police Clearance", updated.Description)
	assert.Equal(t, domain.DefaultIconPath, updated.IconPath)
}

func TestSeedDefaults(t *testing.T) {
	store := newFakeServiceStore()
	cs := newTestService(store)
	ctx := context.Background()

	n, err := cs.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(domain.DefaultCatalog), n)

	n, err = cs.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "seeding is skipped once the catalog has entries")

	services, _ := cs.List(ctx)
	for _, svc := range services {
		if svc.Title != "Aadhaar Card Services" {
			continue
		}
		detail, err := cs.Get(ctx, svc.ID)
		require.NoError(t, err)
		assert.Equal(t, []domain.DocumentSlotDescriptor{
			{Label: "Aadhaar Card Copy", Required: true},
			{Label: "Address Proof", Required: false},
		}, detail.RequiredDocuments)
		assert.Empty(t, detail.FormSchema)
	}
}
