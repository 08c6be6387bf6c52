package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cscportal/portal-backend/pkg/config"
	"github.com/cscportal/portal-backend/pkg/database"
	"github.com/cscportal/portal-backend/pkg/logger"
)

const usage = "usage: migrate [up|down|status]"

func main() {
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	cfg, err := config.Load("migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("migrate", cfg.Server.Environment)

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx := context.Background()
	switch command {
	case "up":
		err = db.Migrate(ctx)
	case "down":
		err = db.Rollback(ctx)
	case "status":
		err = db.MigrationStatus(ctx)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", command).Msg("migration failed")
	}

	log.Info().Str("command", command).Msg("migration complete")
}
