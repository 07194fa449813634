package cassandra

import (
	"context"
	"log/slog"
	"time"

	"github.com/gocql/gocql"
)

// Statement is a single CQL statement submitted through QueryExecutor.
// Idempotent statements are eligible for the driver's speculative
// execution and for the executor's own retry wrapper; Write marks a
// statement that must be rejected outright while the client is in
// ReadOnly mode.
type Statement struct {
	CQL        string
	Args       []interface{}
	Idempotent bool
	Write      bool
}

// QueryExecutor is the single entry point every caller-issued query
// passes through: it enforces the current OperationMode, consults the
// aggregate circuit-breaker picture, retries retryable failures with
// exponential backoff, and logs statements that cross the configured
// slow-query threshold.
type QueryExecutor struct {
	hosts      *hostRegistry
	metrics    *MetricsRegistry
	getSession func(ctx context.Context) *gocql.Session
	opts       ResilientClientOptions
	specPolicy gocql.SpeculativeExecutionPolicy
}

func newQueryExecutor(hosts *hostRegistry, metrics *MetricsRegistry, getSession func(ctx context.Context) *gocql.Session, opts ResilientClientOptions) *QueryExecutor {
	return &QueryExecutor{
		hosts:      hosts,
		metrics:    metrics,
		getSession: getSession,
		opts:       opts,
		specPolicy: defaultSpeculativePolicy(opts),
	}
}

// Execute runs stmt and returns its result iterator. Callers that only
// need a write's outcome should call iter.Close() for the error and
// discard rows.
func (e *QueryExecutor) Execute(ctx context.Context, stmt Statement) (*gocql.Iter, error) {
	if err := e.gate(stmt); err != nil {
		return nil, err
	}

	var iter *gocql.Iter
	err := e.withRetry(ctx, stmt, func() error {
		session := e.getSession(ctx)
		if session == nil || session.Closed() {
			return NewClientError(gocql.ErrNoConnections, stmt.CQL)
		}
		q := session.Query(stmt.CQL, stmt.Args...).WithContext(ctx)
		if stmt.Idempotent {
			q = q.Idempotent(true)
			if e.specPolicy != nil {
				q = q.SetSpeculativeExecutionPolicy(e.specPolicy)
			}
		}
		iter = q.Iter()
		return iter.Close()
	})
	if err != nil {
		return nil, err
	}
	e.recordHalfOpenSuccesses()
	return iter, nil
}

// recordHalfOpenSuccesses implements spec.md §4.9 step 8: a successful
// query advances every HalfOpen breaker toward Closed, not just the
// ones probed directly by the monitor/refresher.
func (e *QueryExecutor) recordHalfOpenSuccesses() {
	for _, b := range e.hosts.breakerMap() {
		if b.CheckState() == BreakerHalfOpen {
			b.RecordSuccess()
		}
	}
}

// gate enforces spec.md §4.8's mode rules ahead of ever touching the
// driver: Emergency rejects everything, ReadOnly rejects writes only,
// Degraded lets traffic through but is noted at debug.
func (e *QueryExecutor) gate(stmt Statement) error {
	mode := e.metrics.currentMode()
	switch mode {
	case ModeEmergency:
		return ErrEmergencyMode
	case ModeReadOnly:
		if stmt.Write {
			return ErrReadOnlyMode
		}
	case ModeDegraded:
		slog.Debug("[RESILIENT CLIENT] executing in degraded mode", "statement", stmt.CQL)
	}
	if e.allBreakersOpen() {
		return NewClientError(gocql.ErrNoConnections, stmt.CQL)
	}
	return nil
}

func (e *QueryExecutor) allBreakersOpen() bool {
	breakers := e.hosts.breakerMap()
	if len(breakers) == 0 {
		return false
	}
	for _, b := range breakers {
		if b.CheckState() != BreakerOpen {
			return false
		}
	}
	return true
}

// withRetry runs fn, retrying retryable failures with exponential
// backoff up to MaxRetryAttempts, doubling from RetryBaseDelayMs and
// capped at RetryMaxDelayMs. Non-idempotent statements are never
// retried beyond the first attempt, since a retried non-idempotent
// write could duplicate its effect.
func (e *QueryExecutor) withRetry(ctx context.Context, stmt Statement, fn func() error) error {
	e.metrics.incTotalQueries()

	start := time.Now()
	delay := time.Duration(e.opts.RetryBaseDelayMs) * time.Millisecond
	maxDelay := time.Duration(e.opts.RetryMaxDelayMs) * time.Millisecond

	attempts := 1
	if stmt.Idempotent {
		attempts = e.opts.MaxRetryAttempts
		if attempts < 1 {
			attempts = 1
		}
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				break
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
		}

		err := fn()
		e.recordSlowQuery(stmt, time.Since(start))
		if err == nil {
			return nil
		}

		lastErr = NewClientError(err, stmt.CQL)
		if !IsRetryable(lastErr) {
			break
		}
	}

	e.metrics.incFailedQueries()
	return lastErr
}

func (e *QueryExecutor) recordSlowQuery(stmt Statement, elapsed time.Duration) {
	threshold := time.Duration(e.opts.SlowQueryThresholdMs) * time.Millisecond
	if threshold > 0 && elapsed > threshold {
		slog.Warn("[RESILIENT CLIENT] slow query", "statement", stmt.CQL, "elapsed", elapsed)
	}
}
