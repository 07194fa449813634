package cassandra

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
)

// buildCluster constructs a configured, not-yet-connected gocql cluster
// handle from ResilientClientOptions. It is the Go analogue of
// jaegertracing/jaeger's Configuration.NewCluster (see
// other_examples/...jaeger...cassandra-config-config.go.go), generalized
// to also honor the resilient client's own reconnection, speculative
// execution, and timeout-minimum rules from spec.md §4.1.
func buildCluster(opts ResilientClientOptions) (*gocql.ClusterConfig, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	hosts := make([]string, 0, len(opts.ContactPoints))
	port := opts.DefaultPort
	if port == 0 {
		port = 9042
	}
	for _, cp := range opts.ContactPoints {
		host, p := splitHostPort(cp, port)
		hosts = append(hosts, host)
		port = p // last explicit port wins if contact points disagree; gocql takes one cluster-wide port
	}

	cluster := gocql.NewCluster(hosts...)
	cluster.Port = port
	cluster.NumConns = opts.ConnectionsPerHost

	// spec.md §4.1: connect/read timeouts are the minimum of the
	// configured value and the resilient client's own ceiling, so a
	// misconfigured large timeout can never block failure detection
	// longer than the client's own defaults allow.
	cluster.ConnectTimeout = minDuration(
		time.Duration(opts.ConnectTimeoutMs)*time.Millisecond,
		time.Duration(DefaultOptions().ConnectTimeoutMs)*time.Millisecond,
	)
	cluster.Timeout = minDuration(
		time.Duration(opts.ReadTimeoutMs)*time.Millisecond,
		time.Duration(DefaultOptions().ReadTimeoutMs)*time.Millisecond,
	)

	cluster.SocketKeepalive = 30 * time.Second

	cluster.ReconnectionPolicy = &gocql.ConstantReconnectionPolicy{
		MaxRetries: -1, // retry indefinitely; HostMonitor/SessionSupervisor own recovery detection
		Interval:   time.Duration(opts.ReconnectDelayMs) * time.Millisecond,
	}

	if opts.Consistency != "" {
		cluster.Consistency = gocql.ParseConsistency(opts.Consistency)
	} else {
		cluster.Consistency = gocql.Quorum
	}

	// Prefer local DC, round-robin inside the DC, token-aware within
	// the replica set for that token — spec.md §4.1's required policy.
	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(
		gocql.DCAwareRoundRobinPolicy(opts.LocalDatacenter),
	)

	// Driver-level retry policy: gocql's own SimpleRetryPolicy, set to a
	// single retry. The resilient client's own
	// retry wrapper (QueryExecutor) is what spec.md §4.9 actually
	// describes; this is the driver-level backstop beneath it.
	cluster.RetryPolicy = &gocql.SimpleRetryPolicy{NumRetries: 1}

	if opts.Credentials != nil {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: opts.Credentials.Username,
			Password: opts.Credentials.Password,
		}
	}

	if opts.TLS != nil && opts.TLS.Enabled {
		cluster.SslOpts = &gocql.SslOptions{
			Config:                 opts.TLS.Config,
			CertPath:               opts.TLS.CertPath,
			KeyPath:                opts.TLS.KeyPath,
			CaPath:                 opts.TLS.CAPath,
			EnableHostVerification: !opts.TLS.InsecureSkipVerify,
		}
	}

	if opts.EnableSpeculativeExecution {
		cluster.DefaultTimestamp = true
	}

	return cluster, nil
}

// defaultSpeculativePolicy builds the per-query speculative execution
// policy the executor attaches to idempotent statements, per spec.md
// §4.1: constant speculative execution with (speculativeDelayMs,
// maxSpeculativeExecutions).
func defaultSpeculativePolicy(opts ResilientClientOptions) gocql.SpeculativeExecutionPolicy {
	if !opts.EnableSpeculativeExecution {
		return nil
	}
	return &gocql.SimpleSpeculativeExecution{
		NumAttempts:  opts.MaxSpeculativeExecutions,
		TimeoutDelay: time.Duration(opts.SpeculativeDelayMs) * time.Millisecond,
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// describeCluster is a small diagnostic helper that formats a cluster
// config's hosts and port; it never touches the network.
func describeCluster(cluster *gocql.ClusterConfig) string {
	return fmt.Sprintf("hosts=%v port=%d dc-local-policy=true", cluster.Hosts, cluster.Port)
}
