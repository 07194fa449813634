package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// TuningConfig holds the resilient client's tunable thresholds and
// timing parameters, kept separate from Config so an operator can
// adjust failure-detection aggressiveness without touching connection
// settings.
type TuningConfig struct {
	Monitoring MonitoringTuning `mapstructure:"monitoring"`
	Timeouts   TimeoutTuning    `mapstructure:"timeouts"`
	Retry      RetryTuning      `mapstructure:"retry"`
	Speculative SpeculativeTuning `mapstructure:"speculative"`
	Breaker    BreakerTuning    `mapstructure:"circuit_breaker"`
	Pool       PoolTuning       `mapstructure:"pool"`
}

// MonitoringTuning controls HostMonitor and ConnectionRefresher cadence.
type MonitoringTuning struct {
	HostMonitoringIntervalSeconds    int `mapstructure:"host_monitoring_interval_seconds"`
	ConnectionRefreshIntervalSeconds int `mapstructure:"connection_refresh_interval_seconds"`
	HealthCheckIntervalSeconds       int `mapstructure:"health_check_interval_seconds"`
	SlowQueryThresholdMs             int `mapstructure:"slow_query_threshold_ms"`
	ConnectionHistoryCapacity        int `mapstructure:"connection_history_capacity"`
}

// TimeoutTuning controls the driver-level connect/read timeouts and
// reconnection delay.
type TimeoutTuning struct {
	ConnectTimeoutMs int `mapstructure:"connect_timeout_ms"`
	ReadTimeoutMs    int `mapstructure:"read_timeout_ms"`
	ReconnectDelayMs int `mapstructure:"reconnect_delay_ms"`
}

// RetryTuning controls QueryExecutor's retry wrapper.
type RetryTuning struct {
	MaxAttempts  int `mapstructure:"max_attempts"`
	BaseDelayMs  int `mapstructure:"base_delay_ms"`
	MaxDelayMs   int `mapstructure:"max_delay_ms"`
}

// SpeculativeTuning controls speculative execution of idempotent
// statements.
type SpeculativeTuning struct {
	Enabled      bool `mapstructure:"enabled"`
	DelayMs      int  `mapstructure:"delay_ms"`
	MaxAttempts  int  `mapstructure:"max_attempts"`
}

// BreakerTuning controls the per-host CircuitBreaker.
type BreakerTuning struct {
	FailureThreshold           int `mapstructure:"failure_threshold"`
	OpenDurationSeconds        int `mapstructure:"open_duration_seconds"`
	SuccessThresholdInHalfOpen int `mapstructure:"success_threshold_in_half_open"`
}

// PoolTuning controls the per-host connection pool size.
type PoolTuning struct {
	ConnectionsPerHost int `mapstructure:"connections_per_host"`
}

// defaultTuning returns a TuningConfig with the same defaults
// cassandra.DefaultOptions() uses, so a missing tuning.yaml behaves
// identically to an operator who never touched tuning at all.
func defaultTuning() *TuningConfig {
	return &TuningConfig{
		Monitoring: MonitoringTuning{
			HostMonitoringIntervalSeconds:    5,
			ConnectionRefreshIntervalSeconds: 60,
			HealthCheckIntervalSeconds:       30,
			SlowQueryThresholdMs:             1000,
			ConnectionHistoryCapacity:        50,
		},
		Timeouts: TimeoutTuning{
			ConnectTimeoutMs: 3000,
			ReadTimeoutMs:    5000,
			ReconnectDelayMs: 1000,
		},
		Retry: RetryTuning{
			MaxAttempts: 3,
			BaseDelayMs: 100,
			MaxDelayMs:  1000,
		},
		Speculative: SpeculativeTuning{
			Enabled:     true,
			DelayMs:     200,
			MaxAttempts: 2,
		},
		Breaker: BreakerTuning{
			FailureThreshold:           5,
			OpenDurationSeconds:        30,
			SuccessThresholdInHalfOpen: 2,
		},
		Pool: PoolTuning{
			ConnectionsPerHost: 2,
		},
	}
}

func setTuningDefaults(v *viper.Viper) {
	d := defaultTuning()
	v.SetDefault("monitoring.host_monitoring_interval_seconds", d.Monitoring.HostMonitoringIntervalSeconds)
	v.SetDefault("monitoring.connection_refresh_interval_seconds", d.Monitoring.ConnectionRefreshIntervalSeconds)
	v.SetDefault("monitoring.health_check_interval_seconds", d.Monitoring.HealthCheckIntervalSeconds)
	v.SetDefault("monitoring.slow_query_threshold_ms", d.Monitoring.SlowQueryThresholdMs)
	v.SetDefault("monitoring.connection_history_capacity", d.Monitoring.ConnectionHistoryCapacity)

	v.SetDefault("timeouts.connect_timeout_ms", d.Timeouts.ConnectTimeoutMs)
	v.SetDefault("timeouts.read_timeout_ms", d.Timeouts.ReadTimeoutMs)
	v.SetDefault("timeouts.reconnect_delay_ms", d.Timeouts.ReconnectDelayMs)

	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.base_delay_ms", d.Retry.BaseDelayMs)
	v.SetDefault("retry.max_delay_ms", d.Retry.MaxDelayMs)

	v.SetDefault("speculative.enabled", d.Speculative.Enabled)
	v.SetDefault("speculative.delay_ms", d.Speculative.DelayMs)
	v.SetDefault("speculative.max_attempts", d.Speculative.MaxAttempts)

	v.SetDefault("circuit_breaker.failure_threshold", d.Breaker.FailureThreshold)
	v.SetDefault("circuit_breaker.open_duration_seconds", d.Breaker.OpenDurationSeconds)
	v.SetDefault("circuit_breaker.success_threshold_in_half_open", d.Breaker.SuccessThresholdInHalfOpen)

	v.SetDefault("pool.connections_per_host", d.Pool.ConnectionsPerHost)
}

// LoadTuning loads tuning configuration from tuning.yaml on the
// standard search path, falling back to defaults if no file is found.
func LoadTuning() (*TuningConfig, error) {
	return LoadTuningWithFile("")
}

// LoadTuningWithFile loads tuning configuration from a specific file,
// or from the standard search path if tuningFile is empty. A missing
// file is not an error; a malformed one is.
func LoadTuningWithFile(tuningFile string) (*TuningConfig, error) {
	v := viper.New()
	setTuningDefaults(v)

	if tuningFile != "" {
		v.SetConfigFile(tuningFile)
	} else {
		v.SetConfigName("tuning")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/resilient-cassandra-client")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultTuning(), nil
		}
		if _, ok := err.(*os.PathError); ok {
			return defaultTuning(), nil
		}
		return nil, fmt.Errorf("failed to read tuning config: %w", err)
	}

	var tuning TuningConfig
	if err := v.Unmarshal(&tuning); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tuning config: %w", err)
	}
	if err := tuning.Validate(); err != nil {
		return nil, err
	}
	return &tuning, nil
}

// Validate checks tuning parameters for sane ranges.
func (t *TuningConfig) Validate() error {
	if t.Monitoring.HostMonitoringIntervalSeconds < 1 {
		return fmt.Errorf("monitoring.host_monitoring_interval_seconds must be >= 1, got %d", t.Monitoring.HostMonitoringIntervalSeconds)
	}
	if t.Monitoring.ConnectionRefreshIntervalSeconds < 1 {
		return fmt.Errorf("monitoring.connection_refresh_interval_seconds must be >= 1, got %d", t.Monitoring.ConnectionRefreshIntervalSeconds)
	}
	if t.Timeouts.ConnectTimeoutMs < 1 {
		return fmt.Errorf("timeouts.connect_timeout_ms must be >= 1, got %d", t.Timeouts.ConnectTimeoutMs)
	}
	if t.Timeouts.ReadTimeoutMs < 1 {
		return fmt.Errorf("timeouts.read_timeout_ms must be >= 1, got %d", t.Timeouts.ReadTimeoutMs)
	}
	if t.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1, got %d", t.Retry.MaxAttempts)
	}
	if t.Retry.MaxDelayMs < t.Retry.BaseDelayMs {
		return fmt.Errorf("retry.max_delay_ms (%d) must be >= retry.base_delay_ms (%d)", t.Retry.MaxDelayMs, t.Retry.BaseDelayMs)
	}
	if t.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("circuit_breaker.failure_threshold must be >= 1, got %d", t.Breaker.FailureThreshold)
	}
	if t.Breaker.SuccessThresholdInHalfOpen < 1 {
		return fmt.Errorf("circuit_breaker.success_threshold_in_half_open must be >= 1, got %d", t.Breaker.SuccessThresholdInHalfOpen)
	}
	if t.Pool.ConnectionsPerHost < 1 {
		return fmt.Errorf("pool.connections_per_host must be >= 1, got %d", t.Pool.ConnectionsPerHost)
	}
	return nil
}

// GetTuningFile returns the tuning config file that was used, if any.
func GetTuningFile(v *viper.Viper) string {
	if v != nil {
		return v.ConfigFileUsed()
	}
	return ""
}

// ApplyTo merges the given contact points and local datacenter with
// this TuningConfig into the primitive field set that the caller turns
// into cassandra.ResilientClientOptions. It lives here rather than in
// the cassandra package to keep that package free of a config import.
func (t *TuningConfig) ApplyTo(contactPoints []string, localDC string) ResilientClientOptionsShape {
	return ResilientClientOptionsShape{
		ContactPoints:              contactPoints,
		LocalDatacenter:            localDC,
		HostMonitoringIntervalSec:  t.Monitoring.HostMonitoringIntervalSeconds,
		ConnectionRefreshIntervalSec: t.Monitoring.ConnectionRefreshIntervalSeconds,
		HealthCheckIntervalSec:     t.Monitoring.HealthCheckIntervalSeconds,
		ConnectTimeoutMs:           t.Timeouts.ConnectTimeoutMs,
		ReadTimeoutMs:              t.Timeouts.ReadTimeoutMs,
		ReconnectDelayMs:           t.Timeouts.ReconnectDelayMs,
		MaxRetryAttempts:           t.Retry.MaxAttempts,
		RetryBaseDelayMs:           t.Retry.BaseDelayMs,
		RetryMaxDelayMs:            t.Retry.MaxDelayMs,
		EnableSpeculativeExecution: t.Speculative.Enabled,
		SpeculativeDelayMs:         t.Speculative.DelayMs,
		MaxSpeculativeExecutions:   t.Speculative.MaxAttempts,
		ConnectionsPerHost:         t.Pool.ConnectionsPerHost,
		SlowQueryThresholdMs:       t.Monitoring.SlowQueryThresholdMs,
		CircuitBreakerFailureThreshold: t.Breaker.FailureThreshold,
		CircuitBreakerOpenDurationSec:  t.Breaker.OpenDurationSeconds,
		CircuitBreakerSuccessThreshold: t.Breaker.SuccessThresholdInHalfOpen,
	}
}

// ResilientClientOptionsShape mirrors cassandra.ResilientClientOptions'
// tunable fields in primitive form, so this package can hand them to
// cmd/resilient-cassandra-client without importing internal/cassandra
// (config stays a leaf package the way the teacher's config package
// is).
type ResilientClientOptionsShape struct {
	ContactPoints                  []string
	LocalDatacenter                string
	HostMonitoringIntervalSec      int
	ConnectionRefreshIntervalSec   int
	HealthCheckIntervalSec         int
	ConnectTimeoutMs               int
	ReadTimeoutMs                  int
	ReconnectDelayMs               int
	MaxRetryAttempts               int
	RetryBaseDelayMs               int
	RetryMaxDelayMs                int
	EnableSpeculativeExecution     bool
	SpeculativeDelayMs             int
	MaxSpeculativeExecutions       int
	ConnectionsPerHost             int
	SlowQueryThresholdMs           int
	CircuitBreakerFailureThreshold int
	CircuitBreakerOpenDurationSec  int
	CircuitBreakerSuccessThreshold int
}
