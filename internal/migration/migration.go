package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

var ErrDirtySchema = errors.New("dirty_schema")

// schemaSource exposes the embedded finance schema to golang-migrate.
func schemaSource() (source.Driver, error) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open finance schema: %w", err)
	}
	return iofs.New(sub, ".")
}

// RunMigrations brings a postgres database up to the latest finance schema
// and returns the version it ended on. A schema left dirty by a failed run
// is reported instead of being migrated over.
func RunMigrations(db *sql.DB, log *zap.Logger) (uint, error) {
	if db == nil {
		return 0, errors.New("migration database handle is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	src, err := schemaSource()
	if err != nil {
		return 0, err
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return 0, fmt.Errorf("create migration driver: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return 0, fmt.Errorf("create migrator: %w", err)
	}
	migrator.Log = migrateLogger{log: log.Named("migration")}

	if _, dirty, err := migrator.Version(); err == nil && dirty {
		return 0, ErrDirtySchema
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply finance schema: %w", err)
	}
	// migrator.Close would close the shared *sql.DB.

	version, _, err := migrator.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// migrateLogger routes golang-migrate progress lines into zap.
type migrateLogger struct {
	log *zap.Logger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...))
}

func (l migrateLogger) Verbose() bool {
	return l.log.Core().Enabled(zap.DebugLevel)
}
