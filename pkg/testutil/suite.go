package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/cscportal/portal-backend/pkg/database"
	"github.com/cscportal/portal-backend/pkg/logger"
)

var (
	// shared across all integration tests in one package
	globalContainer *PostgresContainer
	globalDB        *database.DB
	containerOnce   sync.Once
	containerErr    error
)

// IntegrationSuite provides a base for integration tests with real PostgreSQL
type IntegrationSuite struct {
	Container *PostgresContainer
	DB        *database.DB
	Fixtures  *FixtureFactory
	Logger    *logger.Logger
}

// NewIntegrationSuite starts (or reuses) the shared container and migrates it.
//
// Usage:
//
//	var suite *testutil.IntegrationSuite
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    var err error
//	    suite, err = testutil.NewIntegrationSuite(ctx)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    testutil.TerminateContainer(ctx)
//	    os.Exit(code)
//	}
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	log := logger.NewNop()

	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
		if containerErr != nil {
			return
		}
		globalDB, containerErr = globalContainer.MigratedDB(ctx, log)
	})
	if containerErr != nil {
		return nil, containerErr
	}

	return &IntegrationSuite{
		Container: globalContainer,
		DB:        globalDB,
		Fixtures:  NewFixtureFactory(),
		Logger:    log,
	}, nil
}

// Reset empties every portal table. Call it at the start of each test.
func (s *IntegrationSuite) Reset(t *testing.T, ctx context.Context) {
	t.Helper()
	_, err := s.DB.ExecContext(ctx, `
		TRUNCATE application_status_history, application_documents, applications,
		         services, users, site_settings RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("failed to reset database: %v", err)
	}
}

// SeedUser inserts a user fixture or fails the test
func (s *IntegrationSuite) SeedUser(t *testing.T, ctx context.Context, u UserFixture) UserFixture {
	t.Helper()
	if err := InsertUser(ctx, s.DB, u); err != nil {
		t.Fatal(err)
	}
	return u
}

// SeedService inserts a service fixture or fails the test
func (s *IntegrationSuite) SeedService(t *testing.T, ctx context.Context, svc ServiceFixture) ServiceFixture {
	t.Helper()
	if err := InsertService(ctx, s.DB, svc); err != nil {
		t.Fatal(err)
	}
	return svc
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalDB != nil {
		_ = globalDB.Close()
	}
	if globalContainer != nil {
		if err := globalContainer.Terminate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to terminate postgres container: %v\n", err)
		}
	}
}
