// Command seed loads a YAML ticket catalog into MySQL.  All tickets are
// validated before anything is written and then upserted in a single
// transaction.
//
//	seed --file catalog.yaml [--dry-run]
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/iliyamo/ticket-booking/internal/config"
	"github.com/iliyamo/ticket-booking/internal/database"
	"github.com/iliyamo/ticket-booking/internal/repository"
)

func main() {
	file := pflag.StringP("file", "f", "catalog.yaml", "path to the YAML ticket catalog")
	dryRun := pflag.Bool("dry-run", false, "validate the catalog without writing")
	migrate := pflag.Bool("migrate", true, "create missing tables before seeding")
	pflag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(*file, *dryRun, *migrate, log); err != nil {
		log.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(path string, dryRun, migrate bool, log *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	tickets, err := parseCatalog(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	log.Info("catalog valid", "file", path, "tickets", len(tickets))
	if dryRun {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if migrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
	}
	store := repository.NewMySQLStore(db, cfg.TxIsolation())
	if err := store.UpsertTickets(ctx, tickets); err != nil {
		return fmt.Errorf("upsert tickets: %w", err)
	}
	log.Info("catalog loaded", "tickets", len(tickets))
	return nil
}
