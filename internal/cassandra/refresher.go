package cassandra

import (
	"context"
	"log/slog"
	"time"

	"github.com/gocql/gocql"
	"golang.org/x/sync/errgroup"
)

// ConnectionRefresher is C5: it runs a per-host liveness query on its
// own connectionRefreshInterval cycle (60s by default, longer than
// HostMonitor's 5s default), and triggers an Aggressive
// Connection Refresh for any host that its own probe finds recovered
// (spec.md §4.4). A host can accept TCP connections while its
// Cassandra process is wedged, so a driver-level pool never naturally
// detects the problem on its own — this is why the refresher probes
// independently rather than trusting the pool's own state.
type ConnectionRefresher struct {
	hosts              *hostRegistry
	tracker            *hostTracker
	getSession         func(ctx context.Context) *gocql.Session
	metrics            *MetricsRegistry
	interval           time.Duration
	connectionsPerHost int
}

func newConnectionRefresher(hosts *hostRegistry, tracker *hostTracker, getSession func(ctx context.Context) *gocql.Session,
	metrics *MetricsRegistry, interval time.Duration, connectionsPerHost int) *ConnectionRefresher {
	return &ConnectionRefresher{
		hosts:              hosts,
		tracker:            tracker,
		getSession:         getSession,
		metrics:            metrics,
		interval:           interval,
		connectionsPerHost: connectionsPerHost,
	}
}

func (r *ConnectionRefresher) run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// tick implements spec.md §4.4: obtain a healthy session, force a
// driver metadata refresh, then probe every tracked host and trigger
// an Aggressive Connection Refresh for any that just recovered.
func (r *ConnectionRefresher) tick(ctx context.Context) {
	session := r.getSession(ctx)
	if session == nil || session.Closed() {
		return
	}

	q := session.Query("SELECT key FROM system.local").WithContext(ctx)
	defer q.Release()
	if err := q.Exec(); err != nil {
		slog.Debug("[CONNECTION REFRESH] metadata refresh probe failed", "error", err)
		return
	}

	for _, addr := range r.hosts.addresses() {
		r.refreshHost(ctx, session, addr)
	}
}

// refreshHost runs the per-host liveness probe and, for a host whose
// isUp is true but that had a nonzero consecutiveFailures count going
// into this probe, treats a successful probe as a recovery and
// triggers Aggressive Connection Refresh for it.
func (r *ConnectionRefresher) refreshHost(ctx context.Context, session *gocql.Session, addr string) {
	info, breaker, ok := r.hosts.get(addr)
	if !ok {
		return
	}

	pre := info.snapshot()

	ok2, duration := probeCanonicalQuery(ctx, session)
	now := time.Now()
	info.recordHealthCheck(ok2, now, duration)

	if !ok2 {
		breaker.RecordFailure()
		slog.Debug("[CONNECTION REFRESH] refresh probe failed", "address", addr)
		return
	}
	breaker.RecordSuccess()

	if pre.IsUp && pre.ConsecutiveFailures > 0 {
		r.aggressiveRefresh(ctx, session, addr)
	}
}

// aggressiveRefresh launches connectionsPerHost parallel probes against
// a just-recovered host. Individual failures are expected and logged
// at debug only; on completion the host's consecutiveFailures is
// zeroed.
func (r *ConnectionRefresher) aggressiveRefresh(ctx context.Context, session *gocql.Session, addr string) {
	n := r.connectionsPerHost
	if n < 1 {
		n = 1
	}
	slog.Info("[CONNECTION REFRESH] aggressive refresh for recovered host", "address", addr, "connections", n)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			ok, _ := probeCanonicalQuery(gctx, session)
			if !ok {
				slog.Debug("[CONNECTION REFRESH] aggressive refresh probe failed", "address", addr)
			}
			return nil
		})
	}
	_ = g.Wait()

	if info, _, ok := r.hosts.get(addr); ok {
		info.resetFailures()
	}
}
