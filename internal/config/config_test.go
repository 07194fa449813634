package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func newTestViper() *viper.Viper {
	return viper.New()
}

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad_RequiresLocalDatacenter(t *testing.T) {
	v := newTestViper()
	v.AddConfigPath(t.TempDir())
	v.Set("contact_points", []string{"10.0.0.1"})

	_, err := Load(v)
	if err == nil {
		t.Fatal("Load() should fail when local_datacenter is not set")
	}
}

func TestLoad_RequiresContactPoints(t *testing.T) {
	v := newTestViper()
	v.AddConfigPath(t.TempDir())
	v.Set("local_datacenter", "dc1")

	_, err := Load(v)
	if err == nil {
		t.Fatal("Load() should fail when contact_points is empty")
	}
}

func TestLoad_FromConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfigFile(t, tmpDir, "resilient-cassandra-client.yaml", `
contact_points:
  - "10.0.0.1"
  - "10.0.0.2"
local_datacenter: "dc1"
keyspace: "app"
consistency: "LOCAL_QUORUM"
log_level: "debug"
`)

	v := newTestViper()
	v.SetConfigName("resilient-cassandra-client")
	v.SetConfigType("yaml")
	v.AddConfigPath(tmpDir)

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if len(cfg.ContactPoints) != 2 || cfg.ContactPoints[0] != "10.0.0.1" {
		t.Errorf("ContactPoints = %v, want [10.0.0.1 10.0.0.2]", cfg.ContactPoints)
	}
	if cfg.LocalDatacenter != "dc1" {
		t.Errorf("LocalDatacenter = %q, want dc1", cfg.LocalDatacenter)
	}
	if cfg.Keyspace != "app" {
		t.Errorf("Keyspace = %q, want app", cfg.Keyspace)
	}
	if cfg.Consistency != "LOCAL_QUORUM" {
		t.Errorf("Consistency = %q, want LOCAL_QUORUM", cfg.Consistency)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfigFile(t, tmpDir, "resilient-cassandra-client.yaml", `
contact_points:
  - "10.0.0.1"
local_datacenter: "dc1"
`)

	v := newTestViper()
	v.SetConfigName("resilient-cassandra-client")
	v.SetConfigType("yaml")
	v.AddConfigPath(tmpDir)

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Consistency != "QUORUM" {
		t.Errorf("Consistency = %q, want QUORUM (default)", cfg.Consistency)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info (default)", cfg.LogLevel)
	}
	if cfg.MigrationsPath != "./migrations" {
		t.Errorf("MigrationsPath = %q, want ./migrations (default)", cfg.MigrationsPath)
	}
}

func TestLoad_EnvVarsOverrideConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfigFile(t, tmpDir, "resilient-cassandra-client.yaml", `
contact_points:
  - "10.0.0.1"
local_datacenter: "dc1"
log_level: "warn"
`)

	v := newTestViper()
	v.SetConfigName("resilient-cassandra-client")
	v.SetConfigType("yaml")
	v.AddConfigPath(tmpDir)

	os.Setenv("RCC_LOG_LEVEL", "error")
	defer os.Unsetenv("RCC_LOG_LEVEL")

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want error (env should override file)", cfg.LogLevel)
	}
	if cfg.LocalDatacenter != "dc1" {
		t.Errorf("LocalDatacenter = %q, want dc1 (from file)", cfg.LocalDatacenter)
	}
}

func TestBindFlags_FlagOverridesEverything(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfigFile(t, tmpDir, "resilient-cassandra-client.yaml", `
contact_points:
  - "10.0.0.1"
local_datacenter: "dc1"
`)

	v := newTestViper()
	v.SetConfigName("resilient-cassandra-client")
	v.SetConfigType("yaml")
	v.AddConfigPath(tmpDir)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(v, flags)
	if err := flags.Parse([]string{"--local-datacenter=dc2"}); err != nil {
		t.Fatalf("flags.Parse() failed: %v", err)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.LocalDatacenter != "dc2" {
		t.Errorf("LocalDatacenter = %q, want dc2 (flag should win)", cfg.LocalDatacenter)
	}
}

func TestLoad_TLSFields(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfigFile(t, tmpDir, "resilient-cassandra-client.yaml", `
contact_points:
  - "10.0.0.1"
local_datacenter: "dc1"
tls_enabled: true
tls_cert_path: "/certs/client.pem"
tls_key_path: "/certs/client.key"
tls_ca_path: "/certs/ca.pem"
tls_skip_verify: false
`)

	v := newTestViper()
	v.SetConfigName("resilient-cassandra-client")
	v.SetConfigType("yaml")
	v.AddConfigPath(tmpDir)

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !cfg.TLSEnabled {
		t.Error("TLSEnabled = false, want true")
	}
	if cfg.TLSCertPath != "/certs/client.pem" {
		t.Errorf("TLSCertPath = %q, want /certs/client.pem", cfg.TLSCertPath)
	}
	if cfg.TLSCAPath != "/certs/ca.pem" {
		t.Errorf("TLSCAPath = %q, want /certs/ca.pem", cfg.TLSCAPath)
	}
}

func TestLoad_AuditBackendFields(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfigFile(t, tmpDir, "resilient-cassandra-client.yaml", `
contact_points:
  - "10.0.0.1"
local_datacenter: "dc1"
audit_sqlite_path: "./audit.db"
migrations_path: "./db/migrations"
`)

	v := newTestViper()
	v.SetConfigName("resilient-cassandra-client")
	v.SetConfigType("yaml")
	v.AddConfigPath(tmpDir)

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.AuditSQLitePath != "./audit.db" {
		t.Errorf("AuditSQLitePath = %q, want ./audit.db", cfg.AuditSQLitePath)
	}
	if cfg.AuditPostgresURL != "" {
		t.Errorf("AuditPostgresURL = %q, want empty", cfg.AuditPostgresURL)
	}
	if cfg.MigrationsPath != "./db/migrations" {
		t.Errorf("MigrationsPath = %q, want ./db/migrations", cfg.MigrationsPath)
	}
}
