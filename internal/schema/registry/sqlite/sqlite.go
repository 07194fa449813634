// Package sqlite implements the audit registry backend on top of an
// embedded modernc.org/sqlite database, adapted from the teacher's
// internal/storage/sqlite incident store (WAL mode, busy timeout,
// connection pool defaults).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/axonops/resilient-cassandra-client/internal/schema"
)

func init() {
	schema.RegisterSQLiteBackend(func(path string) (schema.Registry, error) {
		cfg := DefaultConfig()
		cfg.Path = path
		return New(cfg)
	})
}

// Config holds SQLite connection settings.
type Config struct {
	Path            string
	BusyTimeout     time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns sensible pool and busy-timeout defaults.
func DefaultConfig() *Config {
	return &Config{
		Path:            "./resilient-cassandra-client-audit.db",
		BusyTimeout:     5 * time.Second,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}
}

// Store implements schema.Registry against an embedded SQLite database.
type Store struct {
	db *sql.DB
}

// New opens the database file (or ":memory:") with WAL mode enabled
// and verifies connectivity before returning.
func New(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	dbPath := cfg.Path
	if dbPath != ":memory:" {
		absPath, err := filepath.Abs(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
		dbPath = absPath
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)",
		dbPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// RecordEvent inserts a single audit event row.
func (s *Store) RecordEvent(ctx context.Context, event schema.AuditEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (event_id, kind, address, detail, recorded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING`,
		event.EventID, string(event.Kind), event.Address, event.Detail, event.Recorded,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// ListEvents returns events matching filters, most recent first.
func (s *Store) ListEvents(ctx context.Context, filters schema.EventFilters) ([]schema.AuditEvent, error) {
	query := `SELECT event_id, kind, address, detail, recorded_at FROM audit_events WHERE 1=1`
	args := []interface{}{}

	if filters.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(filters.Kind))
	}
	if filters.Since != nil {
		query += " AND recorded_at > ?"
		args = append(args, *filters.Since)
	}
	query += " ORDER BY recorded_at DESC"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}
	if filters.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filters.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var events []schema.AuditEvent
	for rows.Next() {
		var e schema.AuditEvent
		var kind string
		if err := rows.Scan(&e.EventID, &kind, &e.Address, &e.Detail, &e.Recorded); err != nil {
			return nil, fmt.Errorf("failed to scan audit event row: %w", err)
		}
		e.Kind = schema.EventKind(kind)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit event rows: %w", err)
	}
	return events, nil
}

// Health pings the underlying connection.
func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}
