// Package schema provides an optional durable audit trail for the
// resilient client's own lifecycle events (host failures/recoveries,
// operation-mode transitions, session and cluster recreations). It is
// separate from the Cassandra keyspace the wrapped driver talks to: the
// audit registry is a small side database the operator points at
// Postgres or SQLite, bootstrapped by RunMigrations.
package schema

import (
	"context"
	"fmt"
	"time"
)

// EventKind classifies an AuditEvent for filtering and display.
type EventKind string

const (
	EventHostFailure       EventKind = "host_failure"
	EventHostRecovery      EventKind = "host_recovery"
	EventModeTransition    EventKind = "mode_transition"
	EventSessionRecreation EventKind = "session_recreation"
	EventClusterRecreation EventKind = "cluster_recreation"
	EventTopologyChange    EventKind = "topology_change"
)

// AuditEvent is a single durable record of a resilient-client lifecycle
// event, as persisted by a Registry implementation.
type AuditEvent struct {
	EventID   string
	Kind      EventKind
	Address   string // empty for cluster-wide events
	Detail    string
	Recorded  time.Time
}

// EventFilters narrows ListEvents. A zero-value EventFilters matches
// every persisted event.
type EventFilters struct {
	Kind   EventKind
	Since  *time.Time
	Limit  int
	Offset int
}

// Registry persists and retrieves AuditEvents. It is intentionally
// small: the resilient client itself is the source of truth for live
// state (MetricsRegistry, hostRegistry); Registry exists purely for
// after-the-fact inspection across restarts.
type Registry interface {
	RecordEvent(ctx context.Context, event AuditEvent) error
	ListEvents(ctx context.Context, filters EventFilters) ([]AuditEvent, error)
	Health(ctx context.Context) error
	Close() error
}

// RegistryConfig selects and configures the backend NewRegistry builds.
// Exactly one of Postgres or SQLite should be set; Postgres takes
// precedence if both are non-empty, matching the teacher's
// connection-string-presence dispatch in storage.NewStorage.
type RegistryConfig struct {
	PostgresConnectionString string
	SQLitePath               string
}

// newPostgresRegistry and newSQLiteRegistry are set by the
// registry/postgres and registry/sqlite packages' init() functions
// (through RegisterPostgresBackend/RegisterSQLiteBackend) to avoid schema importing
// those packages directly, which would create an import cycle since
// both import schema for the Registry/AuditEvent types.
var (
	newPostgresRegistry func(ctx context.Context, connString string) (Registry, error)
	newSQLiteRegistry   func(path string) (Registry, error)
)

// RegisterPostgresBackend is called by registry/postgres's init().
func RegisterPostgresBackend(f func(ctx context.Context, connString string) (Registry, error)) {
	newPostgresRegistry = f
}

// RegisterSQLiteBackend is called by registry/sqlite's init().
func RegisterSQLiteBackend(f func(path string) (Registry, error)) {
	newSQLiteRegistry = f
}

// NewRegistry builds a Registry from cfg. Returns nil, nil if neither
// backend is configured, meaning the caller should skip auditing
// entirely (it is optional, per spec.md's storage Non-goals).
func NewRegistry(ctx context.Context, cfg RegistryConfig) (Registry, error) {
	switch {
	case cfg.PostgresConnectionString != "":
		if newPostgresRegistry == nil {
			return nil, fmt.Errorf("postgres registry backend not linked into the binary")
		}
		return newPostgresRegistry(ctx, cfg.PostgresConnectionString)
	case cfg.SQLitePath != "":
		if newSQLiteRegistry == nil {
			return nil, fmt.Errorf("sqlite registry backend not linked into the binary")
		}
		return newSQLiteRegistry(cfg.SQLitePath)
	default:
		return nil, nil
	}
}
