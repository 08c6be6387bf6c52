//go:build integration

package repository

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cscportal/portal-backend/internal/application/domain"
	"github.com/cscportal/portal-backend/pkg/errors"
	"github.com/cscportal/portal-backend/pkg/testutil"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	ctx := context.Background()
	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatal(err)
	}
	code := m.Run()
	testutil.TerminateContainer(ctx)
	os.Exit(code)
}

func TestApplicationLifecycle_Postgres(t *testing.T) {
	ctx := context.Background()
	suite.Reset(t, ctx)

	citizen := suite.SeedUser(t, ctx, suite.Fixtures.User())
	admin := suite.SeedUser(t, ctx, suite.Fixtures.Admin())
	svc := suite.SeedService(t, ctx, suite.Fixtures.Service(testutil.WithTitle("PAN Card Service")))

	apps := NewApplicationRepository(suite.DB)
	docs := NewDocumentRepository(suite.DB)

	app := &domain.Application{
		UserID:        citizen.ID,
		ServiceID:     svc.ID,
		SubmittedData: domain.SubmittedData{"Date of Birth": "1990-01-01"},
	}
	require.NoError(t, apps.Create(ctx, app))
	assert.Equal(t, domain.StatusPending, app.Status)
	assert.Equal(t, "New", app.ApplicationType)

	got, err := apps.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "PAN Card Service", got.ServiceTitle)
	assert.Equal(t, citizen.Email, got.ApplicantEmail)
	assert.Equal(t, "1990-01-01", got.SubmittedData["Date of Birth"])

	doc := &domain.Document{
		ApplicationID: app.ID,
		StorageKey:    "applications/" + citizen.ID + "/" + app.ID + "/20240301103005_0_id.png",
		OriginalName:  "id.png",
		Label:         "Photo ID",
		UploadedBy:    domain.UploadedByUser,
		DocType:       domain.DirectionRequest,
	}
	require.NoError(t, docs.Create(ctx, doc))

	access, err := docs.GetAccess(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, citizen.ID, access.OwnerID)

	status := domain.StatusCompleted
	notes := "collect from counter"
	updated, previous, err := apps.UpdateStatus(ctx, app.ID, &status, &notes, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, previous)
	assert.Equal(t, domain.StatusCompleted, updated.Status)
	assert.Equal(t, notes, updated.AdminNotes)

	// notes only: status and history untouched
	notes = "ready since Monday"
	updated, _, err = apps.UpdateStatus(ctx, app.ID, nil, &notes, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, updated.Status)
	assert.Equal(t, notes, updated.AdminNotes)

	history, err := apps.History(ctx, app.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.StatusPending, history[0].Status)
	assert.Equal(t, domain.StatusCompleted, history[1].Status)

	list, total, err := apps.List(ctx, domain.ListFilter{Status: domain.StatusCompleted, Page: 1, PerPage: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, app.ID, list[0].ID)

	mine, total, err := apps.ListByUser(ctx, admin.ID, 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, mine)
}

func TestApplicationCreate_UnknownServiceRollsBack(t *testing.T) {
	ctx := context.Background()
	suite.Reset(t, ctx)

	citizen := suite.SeedUser(t, ctx, suite.Fixtures.User())
	apps := NewApplicationRepository(suite.DB)

	err := apps.Create(ctx, &domain.Application{
		UserID:    citizen.ID,
		ServiceID: "00000000-0000-0000-0000-000000000000",
	})
	require.ErrorIs(t, err, errors.ErrBadRequest)

	var n int
	require.NoError(t, suite.DB.GetContext(ctx, &n, `SELECT COUNT(*) FROM application_status_history`))
	assert.Zero(t, n)
}

func TestDeletingServiceCascades(t *testing.T) {
	ctx := context.Background()
	suite.Reset(t, ctx)

	citizen := suite.SeedUser(t, ctx, suite.Fixtures.User())
	svc := suite.SeedService(t, ctx, suite.Fixtures.Service())
	apps := NewApplicationRepository(suite.DB)

	app := &domain.Application{UserID: citizen.ID, ServiceID: svc.ID}
	require.NoError(t, apps.Create(ctx, app))

	_, err := suite.DB.ExecContext(ctx, `DELETE FROM services WHERE id = $1`, svc.ID)
	require.NoError(t, err)

	_, err = apps.GetByID(ctx, app.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestDeletingUserWithApplicationsIsRestricted(t *testing.T) {
	ctx := context.Background()
	suite.Reset(t, ctx)

	citizen := suite.SeedUser(t, ctx, suite.Fixtures.User())
	svc := suite.SeedService(t, ctx, suite.Fixtures.Service())
	apps := NewApplicationRepository(suite.DB)

	app := &domain.Application{UserID: citizen.ID, ServiceID: svc.ID}
	require.NoError(t, apps.Create(ctx, app))

	_, err := suite.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, citizen.ID)
	require.Error(t, err)

	var pqErr *pq.Error
	require.True(t, errors.As(err, &pqErr))
	assert.Equal(t, pq.ErrorCode("23503"), pqErr.Code)

	_, err = apps.GetByID(ctx, app.ID)
	assert.NoError(t, err)
}
