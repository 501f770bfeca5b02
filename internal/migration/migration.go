package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// MigrationsTable keeps the fee ledger's schema version apart from other
// services sharing the database.
const MigrationsTable = "seatfee_schema_migrations"

var ErrDirtySchema = errors.New("fee ledger schema is dirty")

// RunMigrations applies every embedded up migration that has not run yet.
// A schema left dirty by a failed run is reported rather than forced.
func RunMigrations(db *sql.DB, log *zap.Logger) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	from, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("%w at version %d", ErrDirtySchema, from)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	latest, err := latestVersion()
	if err != nil {
		return err
	}
	log.Info("fee ledger schema migrated",
		zap.Uint("from_version", from),
		zap.Uint("to_version", latest),
		zap.Bool("changed", upErr == nil),
	)
	return nil
}

// latestVersion is the highest version among the embedded migrations.
func latestVersion() (uint, error) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	if err != nil {
		return 0, fmt.Errorf("read migrations: %w", err)
	}

	var latest uint
	for _, entry := range entries {
		prefix, _, ok := strings.Cut(entry.Name(), "_")
		if !ok {
			return 0, fmt.Errorf("migration %s has no version prefix", entry.Name())
		}
		version, err := strconv.ParseUint(prefix, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("migration %s: %w", entry.Name(), err)
		}
		if uint(version) > latest {
			latest = uint(version)
		}
	}
	return latest, nil
}
