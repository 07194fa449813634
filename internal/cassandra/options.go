package cassandra

import (
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TLSOptions configures optional transport security for the cluster
// connection, mirroring gocql's SslOptions shape (grounded on
// jaegertracing/jaeger's cassandra config, which builds gocql.SslOptions
// from a *tls.Config it assembles itself).
type TLSOptions struct {
	Enabled            bool
	Config             *tls.Config
	CertPath           string
	KeyPath            string
	CAPath             string
	InsecureSkipVerify bool
}

// Credentials holds optional username/password authentication.
type Credentials struct {
	Username string
	Password string
}

// ResilientClientOptions is the immutable configuration accepted by
// NewClient. All fields have the defaults documented in spec.md §3;
// LocalDatacenter is the only required field.
type ResilientClientOptions struct {
	ContactPoints []string
	DefaultPort   int
	Credentials   *Credentials
	TLS           *TLSOptions
	Consistency   string // parsed via gocql.ParseConsistency

	LocalDatacenter string

	HostMonitoringInterval    time.Duration
	ConnectionRefreshInterval time.Duration
	HealthCheckInterval       time.Duration

	ConnectTimeoutMs int
	ReadTimeoutMs    int
	ReconnectDelayMs int

	MaxRetryAttempts int
	RetryBaseDelayMs int
	RetryMaxDelayMs  int

	EnableSpeculativeExecution bool
	SpeculativeDelayMs         int
	MaxSpeculativeExecutions   int

	ConnectionsPerHost  int
	SlowQueryThresholdMs int

	CircuitBreaker CircuitBreakerOptions

	// Audit receives a durable record of host failures/recoveries, mode
	// transitions, session/cluster recreations, and topology changes.
	// Nil (the default) means these events are only ever visible through
	// logging and MetricsSnapshot.
	Audit AuditSink
}

// DefaultOptions returns a ResilientClientOptions populated with every
// default from spec.md §3 except LocalDatacenter and ContactPoints,
// which the caller must supply.
func DefaultOptions() ResilientClientOptions {
	return ResilientClientOptions{
		DefaultPort:               9042,
		HostMonitoringInterval:    5 * time.Second,
		ConnectionRefreshInterval: 60 * time.Second,
		HealthCheckInterval:       30 * time.Second,
		ConnectTimeoutMs:          3000,
		ReadTimeoutMs:             5000,
		ReconnectDelayMs:          1000,
		MaxRetryAttempts:          3,
		RetryBaseDelayMs:          100,
		RetryMaxDelayMs:           1000,
		EnableSpeculativeExecution: true,
		SpeculativeDelayMs:         200,
		MaxSpeculativeExecutions:   2,
		ConnectionsPerHost:         2,
		SlowQueryThresholdMs:       1000,
		CircuitBreaker:             DefaultCircuitBreakerOptions(),
	}
}

// Validate enforces the boundary behaviors spec.md §8 requires at
// construction time: a blank LocalDatacenter is an ArgumentError, not
// a deferred runtime failure.
func (o ResilientClientOptions) Validate() error {
	if strings.TrimSpace(o.LocalDatacenter) == "" {
		return &ClientError{Kind: KindArgumentError, Cause: fmt.Errorf("localDatacenter is required and must be non-empty")}
	}
	if len(o.ContactPoints) == 0 {
		return &ClientError{Kind: KindArgumentError, Cause: fmt.Errorf("at least one contact point is required")}
	}
	return nil
}

// splitHostPort parses a "host" or "host:port" contact point. A
// non-integer port (e.g. "cassandra1:main") is treated as part of a
// plain hostname rather than rejected, per spec.md §8's boundary
// behavior.
func splitHostPort(contactPoint string, defaultPort int) (host string, port int) {
	idx := strings.LastIndex(contactPoint, ":")
	if idx < 0 {
		return contactPoint, defaultPort
	}
	maybePort := contactPoint[idx+1:]
	if p, err := strconv.Atoi(maybePort); err == nil {
		return contactPoint[:idx], p
	}
	return contactPoint, defaultPort
}
