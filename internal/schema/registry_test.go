package schema

import (
	"context"
	"testing"
)

func TestNewRegistryUnconfiguredReturnsNil(t *testing.T) {
	reg, err := NewRegistry(context.Background(), RegistryConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg != nil {
		t.Fatal("expected a nil Registry when no backend is configured")
	}
}

func TestNewRegistryPostgresTakesPrecedence(t *testing.T) {
	var gotConnString, gotPath string
	RegisterPostgresBackend(func(ctx context.Context, connString string) (Registry, error) {
		gotConnString = connString
		return nil, nil
	})
	RegisterSQLiteBackend(func(path string) (Registry, error) {
		gotPath = path
		return nil, nil
	})
	defer func() {
		newPostgresRegistry = nil
		newSQLiteRegistry = nil
	}()

	_, err := NewRegistry(context.Background(), RegistryConfig{
		PostgresConnectionString: "postgres://example",
		SQLitePath:               "./audit.db",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotConnString != "postgres://example" {
		t.Errorf("postgres backend not invoked with expected connection string, got %q", gotConnString)
	}
	if gotPath != "" {
		t.Errorf("sqlite backend should not have been invoked when postgres is configured, got %q", gotPath)
	}
}
