package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cscportal/portal-backend/internal/application/events"
	apphandler "github.com/cscportal/portal-backend/internal/application/handler"
	apprepo "github.com/cscportal/portal-backend/internal/application/repository"
	appservice "github.com/cscportal/portal-backend/internal/application/service"
	authhandler "github.com/cscportal/portal-backend/internal/auth/handler"
	"github.com/cscportal/portal-backend/internal/auth/jwt"
	authrepo "github.com/cscportal/portal-backend/internal/auth/repository"
	authservice "github.com/cscportal/portal-backend/internal/auth/service"
	cataloghandler "github.com/cscportal/portal-backend/internal/catalog/handler"
	catalogrepo "github.com/cscportal/portal-backend/internal/catalog/repository"
	catalogservice "github.com/cscportal/portal-backend/internal/catalog/service"
	"github.com/cscportal/portal-backend/internal/gateway"
	settingshandler "github.com/cscportal/portal-backend/internal/settings/handler"
	settingsrepo "github.com/cscportal/portal-backend/internal/settings/repository"
	settingsservice "github.com/cscportal/portal-backend/internal/settings/service"
	"github.com/cscportal/portal-backend/pkg/config"
	"github.com/cscportal/portal-backend/pkg/database"
	"github.com/cscportal/portal-backend/pkg/logger"
	"github.com/cscportal/portal-backend/pkg/messaging"
	"github.com/cscportal/portal-backend/pkg/metrics"
	"github.com/cscportal/portal-backend/pkg/storage"
)

const serviceName = "portal-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting Portal Service")

	ctx := context.Background()

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	store, err := storage.New(ctx, &cfg.Storage, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise document storage")
	}

	// Events are dropped after logging when RabbitMQ is disabled
	var (
		publisher messaging.EventPublisher = messaging.NewNopPublisher(log)
		rmq       *messaging.RabbitMQ
	)
	if cfg.RabbitMQ.Enabled {
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		publisher, err = messaging.NewPublisher(rmq, messaging.ExchangeApplicationEvents, serviceName, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
	}

	m := metrics.New("portal")
	jwtManager := jwt.NewManager(&cfg.JWT)

	// Repositories
	userRepo := authrepo.NewUserRepository(db)
	serviceRepo := catalogrepo.NewServiceRepository(db)
	applicationRepo := apprepo.NewApplicationRepository(db)
	documentRepo := apprepo.NewDocumentRepository(db)
	settingsRepo := settingsrepo.NewSettingsRepository(db)

	// Services
	authService := authservice.NewAuthService(userRepo, jwtManager, log)
	catalogService := catalogservice.NewCatalogService(serviceRepo, m, log)
	settingsService := settingsservice.NewSettingsService(settingsRepo, log)
	recordManager := appservice.NewRecordManager(
		applicationRepo,
		documentRepo,
		catalogService,
		store,
		events.NewApplicationEventPublisher(publisher, log),
		m,
		log,
		appservice.Options{SignedURLTTL: cfg.Storage.SignedURLTTL},
	)

	bootstrap(ctx, cfg, authService, catalogService, settingsService, log)

	var files gateway.FileOpener
	if local, ok := store.(*storage.LocalStore); ok {
		files = local
	}

	router := gateway.NewRouter(gateway.Handlers{
		Auth:         authhandler.NewAuthHandler(authService, log),
		Catalog:      cataloghandler.NewServiceHandler(catalogService, log),
		Applications: apphandler.NewApplicationHandler(recordManager, cfg.Uploads.MaxBytes, log),
		Settings:     settingshandler.NewSettingsHandler(settingsService, catalogService, log),
	}, gateway.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Tokens:         jwtManager,
		Metrics:        m,
		Files:          files,
		Health: func(ctx context.Context) map[string]interface{} {
			health := map[string]interface{}{
				"database": db.Health(ctx),
				"storage":  storageDriver(store),
			}
			if rmq != nil {
				health["rabbitmq"] = rmq.Health()
			}
			return health
		},
	}, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// bootstrap seeds the first superuser, the default catalog and the site
// settings. Failures are logged; the portal still starts.
func bootstrap(
	ctx context.Context,
	cfg *config.Config,
	auth *authservice.AuthService,
	catalog *catalogservice.CatalogService,
	settings *settingsservice.SettingsService,
	log *logger.Logger,
) {
	b := cfg.Bootstrap
	if created, err := auth.EnsureSuperuser(ctx, b.SuperuserName, b.SuperuserEmail, b.SuperuserPassword); err != nil {
		log.Error().Err(err).Msg("failed to bootstrap superuser")
	} else if created {
		log.Info().Str("email", b.SuperuserEmail).Msg("superuser account created")
	}

	if _, err := catalog.SeedDefaults(ctx); err != nil {
		log.Error().Err(err).Msg("failed to seed service catalog")
	}

	if _, err := settings.SeedDefaults(ctx); err != nil {
		log.Error().Err(err).Msg("failed to seed site settings")
	}
}

func storageDriver(store storage.Store) string {
	if d, ok := store.(storage.Describer); ok {
		return d.Driver()
	}
	return "unknown"
}
