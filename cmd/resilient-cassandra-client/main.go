// Command resilient-cassandra-client runs a standalone resilient client
// process: it connects to a Cassandra cluster, keeps an audit trail of
// failover events in an optional database-backed registry, serves a
// health/diagnostics report over HTTP, and logs operation-mode
// transitions until it receives a shutdown signal.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/axonops/resilient-cassandra-client/internal/cassandra"
	"github.com/axonops/resilient-cassandra-client/internal/config"
	"github.com/axonops/resilient-cassandra-client/internal/diagnostics"
	"github.com/axonops/resilient-cassandra-client/internal/schema"

	_ "github.com/axonops/resilient-cassandra-client/internal/schema/registry/postgres"
	_ "github.com/axonops/resilient-cassandra-client/internal/schema/registry/sqlite"
)

var (
	// Version information (set via ldflags at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	configFile  string
	tuningFile  string
	healthPort  int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "resilient-cassandra-client",
	Short: "Resilient Cassandra Client",
	Long:  "Client-side fault-tolerance layer wrapping gocql with failure detection, recovery, and circuit breaking",
	RunE:  run,
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information and exit")
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to config file (default: searches ., ./configs, /etc/resilient-cassandra-client)")
	rootCmd.Flags().StringVar(&tuningFile, "tuning-file", "", "Path to tuning file (default: searches the same path as --config)")
	rootCmd.Flags().IntVar(&healthPort, "health-port", 8080, "Port for the health/diagnostics HTTP endpoint (0 to disable)")

	v := viper.New()
	config.BindFlags(v, rootCmd.Flags())
	viperInstance = v
}

var viperInstance *viper.Viper

func run(cmd *cobra.Command, _ []string) error {
	versionFlag, _ := cmd.Flags().GetBool("version")
	if versionFlag {
		fmt.Printf("resilient-cassandra-client version %s\n", Version)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		fmt.Printf("  Git Commit: %s\n", GitCommit)
		return nil
	}

	if configFile != "" {
		viperInstance.SetConfigFile(configFile)
	}
	cfg, err := config.Load(viperInstance)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	setupLogging(cfg.LogLevel)

	tuning, err := config.LoadTuningWithFile(tuningFile)
	if err != nil {
		return fmt.Errorf("failed to load tuning configuration: %w", err)
	}

	printStartupBanner(cfg, configFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	registryCfg := schema.RegistryConfig{
		PostgresConnectionString: cfg.AuditPostgresURL,
		SQLitePath:               cfg.AuditSQLitePath,
	}
	if registryCfg.PostgresConnectionString != "" || registryCfg.SQLitePath != "" {
		migrationCfg := &schema.MigrationConfig{MigrationsPath: cfg.MigrationsPath}
		if registryCfg.PostgresConnectionString != "" {
			migrationCfg.DatabaseType = "postgres"
			migrationCfg.DatabaseURL = registryCfg.PostgresConnectionString
		} else {
			migrationCfg.DatabaseType = "sqlite"
			migrationCfg.DatabasePath = registryCfg.SQLitePath
		}
		if err := schema.RunMigrations(migrationCfg); err != nil {
			return fmt.Errorf("failed to run audit registry migrations: %w", err)
		}
	}

	registry, err := schema.NewRegistry(ctx, registryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize audit registry: %w", err)
	}
	if registry != nil {
		slog.Info("audit registry initialized")
		defer registry.Close()
	} else {
		slog.Info("audit registry disabled", "reason", "no backend configured")
	}

	opts, err := buildClientOptions(cfg, tuning)
	if err != nil {
		return fmt.Errorf("failed to build client options: %w", err)
	}
	if registry != nil {
		opts.Audit = newAuditAdapter(registry)
	}

	client, err := cassandra.NewClient(opts)
	if err != nil {
		return fmt.Errorf("failed to start resilient client: %w", err)
	}
	defer client.Dispose()

	if healthPort > 0 {
		go serveHealth(client, healthPort)
	} else {
		slog.Info("health monitoring server disabled", "reason", "health-port=0")
	}

	slog.Info("resilient cassandra client started", "contact_points", cfg.ContactPoints, "local_dc", cfg.LocalDatacenter)

	<-ctx.Done()
	slog.Info("shutting down...")
	return nil
}

// buildClientOptions merges the connection-level Config and the
// tuning file into a cassandra.ResilientClientOptions, translating TLS
// and credential fields that TuningConfig.ApplyTo deliberately leaves
// out (it only knows primitive timing/threshold values).
func buildClientOptions(cfg *config.Config, tuning *config.TuningConfig) (cassandra.ResilientClientOptions, error) {
	shape := tuning.ApplyTo(cfg.ContactPoints, cfg.LocalDatacenter)

	opts := cassandra.ResilientClientOptions{
		ContactPoints:              shape.ContactPoints,
		LocalDatacenter:            shape.LocalDatacenter,
		Consistency:                cfg.Consistency,
		HostMonitoringInterval:     time.Duration(shape.HostMonitoringIntervalSec) * time.Second,
		ConnectionRefreshInterval:  time.Duration(shape.ConnectionRefreshIntervalSec) * time.Second,
		HealthCheckInterval:        time.Duration(shape.HealthCheckIntervalSec) * time.Second,
		ConnectTimeoutMs:           shape.ConnectTimeoutMs,
		ReadTimeoutMs:              shape.ReadTimeoutMs,
		ReconnectDelayMs:           shape.ReconnectDelayMs,
		MaxRetryAttempts:           shape.MaxRetryAttempts,
		RetryBaseDelayMs:           shape.RetryBaseDelayMs,
		RetryMaxDelayMs:            shape.RetryMaxDelayMs,
		EnableSpeculativeExecution: shape.EnableSpeculativeExecution,
		SpeculativeDelayMs:         shape.SpeculativeDelayMs,
		MaxSpeculativeExecutions:   shape.MaxSpeculativeExecutions,
		ConnectionsPerHost:         shape.ConnectionsPerHost,
		SlowQueryThresholdMs:       shape.SlowQueryThresholdMs,
		CircuitBreaker: cassandra.CircuitBreakerOptions{
			FailureThreshold:           shape.CircuitBreakerFailureThreshold,
			OpenDuration:               time.Duration(shape.CircuitBreakerOpenDurationSec) * time.Second,
			SuccessThresholdInHalfOpen: shape.CircuitBreakerSuccessThreshold,
		},
	}

	if cfg.Username != "" || cfg.Password != "" {
		opts.Credentials = &cassandra.Credentials{Username: cfg.Username, Password: cfg.Password}
	}

	if cfg.TLSEnabled {
		tlsOpts, err := buildTLSOptions(cfg)
		if err != nil {
			return cassandra.ResilientClientOptions{}, err
		}
		opts.TLS = tlsOpts
	}

	return opts, nil
}

func buildTLSOptions(cfg *config.Config) (*cassandra.TLSOptions, error) {
	tlsOpts := &cassandra.TLSOptions{
		Enabled:            true,
		CertPath:           cfg.TLSCertPath,
		KeyPath:            cfg.TLSKeyPath,
		CAPath:             cfg.TLSCAPath,
		InsecureSkipVerify: cfg.TLSSkipVerify,
	}

	tlsConfig := &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify}

	if cfg.TLSCertPath != "" && cfg.TLSKeyPath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertPath, cfg.TLSKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if cfg.TLSCAPath != "" {
		caCert, err := os.ReadFile(cfg.TLSCAPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate at %s", cfg.TLSCAPath)
		}
		tlsConfig.RootCAs = pool
	}

	tlsOpts.Config = tlsConfig
	return tlsOpts, nil
}

// auditKinds maps the cassandra package's dependency-free event kind
// strings onto schema's EventKind enum, so cassandra never needs to
// import schema just to describe an event.
var auditKinds = map[string]schema.EventKind{
	cassandra.AuditHostFailure:       schema.EventHostFailure,
	cassandra.AuditHostRecovery:      schema.EventHostRecovery,
	cassandra.AuditModeTransition:    schema.EventModeTransition,
	cassandra.AuditSessionRecreation: schema.EventSessionRecreation,
	cassandra.AuditClusterRecreation: schema.EventClusterRecreation,
	cassandra.AuditTopologyChange:    schema.EventTopologyChange,
}

// auditAdapter implements cassandra.AuditSink by persisting every event
// through a schema.Registry, stamping each with a fresh UUID the way
// the registry backends expect as their primary key.
type auditAdapter struct {
	registry schema.Registry
}

func newAuditAdapter(registry schema.Registry) *auditAdapter {
	return &auditAdapter{registry: registry}
}

func (a *auditAdapter) RecordEvent(ctx context.Context, event cassandra.AuditEvent) {
	kind, ok := auditKinds[event.Kind]
	if !ok {
		kind = schema.EventKind(event.Kind)
	}
	err := a.registry.RecordEvent(ctx, schema.AuditEvent{
		EventID:  uuid.New().String(),
		Kind:     kind,
		Address:  event.Address,
		Detail:   event.Detail,
		Recorded: time.Now(),
	})
	if err != nil {
		slog.Error("failed to record audit event", "kind", event.Kind, "error", err)
	}
}

// serveHealth exposes a plain-text liveness endpoint (/health) and the
// HTML (/diagnostics) and Markdown (/diagnostics.md) diagnostics report
// over HTTP, mirroring the teacher's health server
// but reporting this client's own MetricsSnapshot rather than cluster
// fault events.
func serveHealth(client *cassandra.Client, port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/diagnostics", func(w http.ResponseWriter, r *http.Request) {
		report := diagnostics.NewReport(client)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(report.RenderHTML()))
	})
	mux.HandleFunc("/diagnostics.md", func(w http.ResponseWriter, r *http.Request) {
		report := diagnostics.NewReport(client)
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(report.RenderMarkdown()))
	})

	addr := fmt.Sprintf(":%d", port)
	slog.Info("starting health monitoring server", "port", port, "endpoint", fmt.Sprintf("http://localhost:%d/diagnostics", port))
	server := &http.Server{Addr: addr, Handler: mux}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("health server failed", "error", err)
	}
}

func setupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func printStartupBanner(cfg *config.Config, configSource string) {
	if configSource == "" {
		configSource = "(defaults only)"
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║         Resilient Cassandra Client                            ║")
	fmt.Printf("║         Version: %-45s║\n", truncateString(Version, 45))
	fmt.Printf("║         Built:   %-45s║\n", truncateString(BuildTime, 45))
	fmt.Println("╠═══════════════════════════════════════════════════════════════╣")
	fmt.Printf("║  Config File:      %-45s ║\n", truncateString(configSource, 45))
	fmt.Printf("║  Local DC:         %-45s ║\n", truncateString(cfg.LocalDatacenter, 45))
	fmt.Printf("║  Contact Points:   %-45s ║\n", truncateString(fmt.Sprintf("%v", cfg.ContactPoints), 45))
	fmt.Printf("║  Keyspace:         %-45s ║\n", truncateString(cfg.Keyspace, 45))
	fmt.Printf("║  Consistency:      %-45s ║\n", truncateString(cfg.Consistency, 45))
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Println()
}

// truncateString truncates a string to maxLen, adding "..." if truncated
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
