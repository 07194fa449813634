// Package config loads the resilient client's runtime configuration
// through the teacher's layering: command-line flags override
// environment variables, which override a YAML file, which overrides
// the package's own defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the connection-level settings needed to construct a
// resilient client: contact points, authentication, and the audit
// registry backend. Fine-grained timing/threshold knobs live in
// TuningConfig.
type Config struct {
	ContactPoints   []string `mapstructure:"contact_points"`
	LocalDatacenter string   `mapstructure:"local_datacenter"`
	Keyspace        string   `mapstructure:"keyspace"`
	Username        string   `mapstructure:"username"`
	Password        string   `mapstructure:"password"`
	Consistency     string   `mapstructure:"consistency"`

	TLSEnabled    bool   `mapstructure:"tls_enabled"`
	TLSCertPath   string `mapstructure:"tls_cert_path"`
	TLSKeyPath    string `mapstructure:"tls_key_path"`
	TLSCAPath     string `mapstructure:"tls_ca_path"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify"`

	LogLevel string `mapstructure:"log_level"`

	AuditPostgresURL string `mapstructure:"audit_postgres_url"`
	AuditSQLitePath  string `mapstructure:"audit_sqlite_path"`
	MigrationsPath   string `mapstructure:"migrations_path"`
}

// BindFlags registers the cobra/pflag flags this package understands
// and binds them into v, so the precedence chain flag > env > file >
// default is enforced by viper itself rather than by hand-rolled
// merge logic.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.StringSlice("contact-points", nil, "Cassandra contact points (host or host:port)")
	flags.String("local-datacenter", "", "local datacenter name (required)")
	flags.String("keyspace", "", "default keyspace")
	flags.String("username", "", "Cassandra username")
	flags.String("password", "", "Cassandra password")
	flags.String("consistency", "QUORUM", "default consistency level")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("audit-postgres-url", "", "PostgreSQL connection string for the audit registry")
	flags.String("audit-sqlite-path", "", "SQLite file path for the audit registry")
	flags.String("migrations-path", "./migrations", "path to the audit registry's migration files")

	_ = v.BindPFlag("contact_points", flags.Lookup("contact-points"))
	_ = v.BindPFlag("local_datacenter", flags.Lookup("local-datacenter"))
	_ = v.BindPFlag("keyspace", flags.Lookup("keyspace"))
	_ = v.BindPFlag("username", flags.Lookup("username"))
	_ = v.BindPFlag("password", flags.Lookup("password"))
	_ = v.BindPFlag("consistency", flags.Lookup("consistency"))
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = v.BindPFlag("audit_postgres_url", flags.Lookup("audit-postgres-url"))
	_ = v.BindPFlag("audit_sqlite_path", flags.Lookup("audit-sqlite-path"))
	_ = v.BindPFlag("migrations_path", flags.Lookup("migrations-path"))
}

// Load reads Config from (in ascending priority) defaults, an optional
// YAML file found on the standard search path, environment variables
// prefixed RCC_, and whatever flags BindFlags already bound into v.
func Load(v *viper.Viper) (*Config, error) {
	v.SetDefault("consistency", "QUORUM")
	v.SetDefault("log_level", "info")
	v.SetDefault("migrations_path", "./migrations")

	v.SetConfigName("resilient-cassandra-client")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/resilient-cassandra-client")

	v.SetEnvPrefix("RCC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.LocalDatacenter == "" {
		return nil, fmt.Errorf("local_datacenter is required (set --local-datacenter, RCC_LOCAL_DATACENTER, or local_datacenter in the config file)")
	}
	if len(cfg.ContactPoints) == 0 {
		return nil, fmt.Errorf("at least one contact point is required (set --contact-points, RCC_CONTACT_POINTS, or contact_points in the config file)")
	}

	return &cfg, nil
}
