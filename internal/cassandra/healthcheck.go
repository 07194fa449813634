package cassandra

import (
	"context"
	"time"

	"github.com/gocql/gocql"
)

// healthCheckCQL is the canonical liveness probe statement used by
// every component that needs to know whether a session is alive
// (spec.md §4.5): idempotent, LOCAL_ONE, 2s timeout.
const healthCheckCQL = "SELECT now() FROM system.local"

// probeCanonicalQuery runs the canonical health-check query against
// session and reports success and elapsed time. gocql exposes no
// public per-query host-pinning API, so callers checking a specific
// host go through the configured host selection policy like any other
// statement rather than being guaranteed to land on that host.
func probeCanonicalQuery(ctx context.Context, session *gocql.Session) (bool, time.Duration) {
	if session == nil || session.Closed() {
		return false, 0
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	start := time.Now()
	q := session.Query(healthCheckCQL).WithContext(ctx).Idempotent(true).Consistency(gocql.LocalOne)
	defer q.Release()
	err := q.Exec()
	return err == nil, time.Since(start)
}

func probeSession(ctx context.Context, session *gocql.Session) bool {
	ok, _ := probeCanonicalQuery(ctx, session)
	return ok
}
