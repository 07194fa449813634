package schema

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/file"
)

// MigrationConfig configures RunMigrations/GetMigrationVersion against
// the audit registry database (not the Cassandra keyspace the wrapped
// driver talks to, which this package never touches).
type MigrationConfig struct {
	MigrationsPath string
	DatabaseType   string // "sqlite" or "postgres"
	DatabasePath   string // sqlite only
	DatabaseURL    string // postgres only
}

// RunMigrations applies every pending migration to the audit registry
// schema, bootstrapping the audit_events table on first run.
func RunMigrations(cfg *MigrationConfig) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	m, err := newMigrator(db, cfg)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// RollbackMigrations rolls back the audit registry schema by steps
// migrations, or all of them if steps is 0.
func RollbackMigrations(cfg *MigrationConfig, steps int) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	m, err := newMigrator(db, cfg)
	if err != nil {
		return err
	}

	if steps == 0 {
		if err := m.Down(); err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("failed to rollback all migrations: %w", err)
		}
		return nil
	}
	if err := m.Steps(-steps); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to rollback %d migration(s): %w", steps, err)
	}
	return nil
}

// GetMigrationVersion returns the audit registry schema's current
// migration version.
func GetMigrationVersion(cfg *MigrationConfig) (uint, bool, error) {
	db, err := openDatabase(cfg)
	if err != nil {
		return 0, false, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	m, err := newMigrator(db, cfg)
	if err != nil {
		return 0, false, err
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

func newMigrator(db *sql.DB, cfg *MigrationConfig) (*migrate.Migrate, error) {
	driver, err := createMigrationDriver(db, cfg.DatabaseType)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	migrationsPath := cfg.MigrationsPath
	if !filepath.IsAbs(migrationsPath) {
		absPath, err := filepath.Abs(migrationsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve migrations path: %w", err)
		}
		migrationsPath = absPath
	}

	sourceURL := fmt.Sprintf("file://%s", migrationsPath)
	sourceInstance, err := (&file.File{}).Open(sourceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations source: %w", err)
	}

	m, err := migrate.NewWithInstance("file", sourceInstance, cfg.DatabaseType, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}

func openDatabase(cfg *MigrationConfig) (*sql.DB, error) {
	switch cfg.DatabaseType {
	case "sqlite":
		if cfg.DatabasePath == "" {
			return nil, fmt.Errorf("database path is required for SQLite")
		}
		db, err := sql.Open("sqlite", cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}
		return db, nil

	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL is required for PostgreSQL")
		}
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL database: %w", err)
		}
		return db, nil

	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.DatabaseType)
	}
}

func createMigrationDriver(db *sql.DB, dbType string) (database.Driver, error) {
	switch dbType {
	case "sqlite":
		return sqlite3.WithInstance(db, &sqlite3.Config{})
	case "postgres":
		return postgres.WithInstance(db, &postgres.Config{})
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}
