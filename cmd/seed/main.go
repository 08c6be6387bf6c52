package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cscportal/portal-backend/internal/auth/jwt"
	authrepo "github.com/cscportal/portal-backend/internal/auth/repository"
	authservice "github.com/cscportal/portal-backend/internal/auth/service"
	catalogrepo "github.com/cscportal/portal-backend/internal/catalog/repository"
	catalogservice "github.com/cscportal/portal-backend/internal/catalog/service"
	settingsrepo "github.com/cscportal/portal-backend/internal/settings/repository"
	settingsservice "github.com/cscportal/portal-backend/internal/settings/service"
	"github.com/cscportal/portal-backend/pkg/config"
	"github.com/cscportal/portal-backend/pkg/database"
	"github.com/cscportal/portal-backend/pkg/logger"
)

// seed applies migrations, then fills an empty database with the default
// catalog, the site settings and the bootstrap superuser.
func main() {
	cfg, err := config.Load("seed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("seed", cfg.Server.Environment)
	ctx := context.Background()

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	catalog := catalogservice.NewCatalogService(catalogrepo.NewServiceRepository(db), nil, log)
	services, err := catalog.SeedDefaults(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to seed service catalog")
	}

	settings := settingsservice.NewSettingsService(settingsrepo.NewSettingsRepository(db), log)
	settingsSeeded, err := settings.SeedDefaults(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to seed site settings")
	}

	auth := authservice.NewAuthService(authrepo.NewUserRepository(db), jwt.NewManager(&cfg.JWT), log)
	b := cfg.Bootstrap
	superuser, err := auth.EnsureSuperuser(ctx, b.SuperuserName, b.SuperuserEmail, b.SuperuserPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create superuser")
	}

	log.Info().
		Int("services", services).
		Bool("settings", settingsSeeded).
		Bool("superuser", superuser).
		Msg("seed complete")
}
