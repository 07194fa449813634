// Package postgres implements the audit registry backend on top of
// PostgreSQL, adapted from the teacher's internal/storage/postgres
// incident store: connection pooling and defaults, a single insert per
// event instead of the teacher's multi-table incident transaction.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/axonops/resilient-cassandra-client/internal/schema"
)

func init() {
	schema.RegisterPostgresBackend(func(ctx context.Context, connString string) (schema.Registry, error) {
		return New(ctx, &Config{ConnectionString: connString})
	})
}

// Config holds PostgreSQL-specific connection pool settings.
type Config struct {
	ConnectionString string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// Store implements schema.Registry against a PostgreSQL database.
type Store struct {
	db *sql.DB
}

// New opens a connection pool and verifies connectivity before
// returning, matching the teacher's fail-fast New(ctx, cfg) pattern.
func New(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	db, err := sql.Open("postgres", cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

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
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING`,
		event.EventID, string(event.Kind), event.Address, event.Detail, event.Recorded,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit_event: %w", err)
	}
	return nil
}

// ListEvents returns events matching filters, most recent first.
func (s *Store) ListEvents(ctx context.Context, filters schema.EventFilters) ([]schema.AuditEvent, error) {
	query := `SELECT event_id, kind, address, detail, recorded_at FROM audit_events WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if filters.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argIndex)
		args = append(args, string(filters.Kind))
		argIndex++
	}
	if filters.Since != nil {
		query += fmt.Sprintf(" AND recorded_at > $%d", argIndex)
		args = append(args, *filters.Since)
		argIndex++
	}
	query += " ORDER BY recorded_at DESC"
	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filters.Limit)
		argIndex++
	}
	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filters.Offset)
		argIndex++
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit_events: %w", err)
	}
	defer rows.Close()

	var events []schema.AuditEvent
	for rows.Next() {
		var e schema.AuditEvent
		var kind string
		if err := rows.Scan(&e.EventID, &kind, &e.Address, &e.Detail, &e.Recorded); err != nil {
			return nil, fmt.Errorf("failed to scan audit_event: %w", err)
		}
		e.Kind = schema.EventKind(kind)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit_events: %w", err)
	}
	return events, nil
}

// Health pings the underlying connection.
func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
