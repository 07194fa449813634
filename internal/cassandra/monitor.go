package cassandra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gocql/gocql"
)

// HostMonitor periodically issues a lightweight health-check query and
// reconciles the result against HostStateInfo, independent of whatever
// up/down state the driver itself reports through hostTracker's
// HostUp/HostDown callbacks. This is the client's own ground truth: a
// host the driver still calls "up" but that has failed enough
// consecutive health checks is marked down here and its breaker
// opened, and vice versa on recovery.
//
// gocql does not expose reliable per-query host pinning in its public
// API, so the probe goes through the configured host selection policy
// like any other statement rather than guaranteeing it lands on the
// specific host being checked in that tick; over repeated ticks this
// still converges on an accurate per-host picture because the policy
// is token/DC aware and a genuinely unreachable host keeps failing
// regardless of which probe attempt reaches it.
type HostMonitor struct {
	hosts      *hostRegistry
	tracker    *hostTracker
	metrics    *MetricsRegistry
	getSession func(ctx context.Context) *gocql.Session
	interval   time.Duration
	localDC    string
	breaker    CircuitBreakerOptions
	audit      AuditSink

	recomputeMode func() OperationMode

	failureThreshold int
}

func newHostMonitor(hosts *hostRegistry, tracker *hostTracker, metrics *MetricsRegistry,
	getSession func(ctx context.Context) *gocql.Session, interval time.Duration, localDC string,
	breakerOpts CircuitBreakerOptions, audit AuditSink, recomputeMode func() OperationMode) *HostMonitor {
	return &HostMonitor{
		hosts:            hosts,
		tracker:          tracker,
		metrics:          metrics,
		getSession:       getSession,
		interval:         interval,
		localDC:          localDC,
		breaker:          breakerOpts,
		audit:            audit,
		recomputeMode:    recomputeMode,
		failureThreshold: breakerOpts.FailureThreshold,
	}
}

// run ticks until ctx is cancelled. It is meant to be launched as its
// own goroutine by Client.
func (m *HostMonitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick reconciles the tracker's known host list into the registry
// (discovering hosts the topology listener may have missed, e.g. ones
// present at startup before any AddHost callback fired), filtered to
// the local datacenter per invariant #1, health-checks every tracked
// host, and finally publishes the derived operation mode (spec.md
// §4.2 step 5 / §4.8).
func (m *HostMonitor) tick(ctx context.Context) {
	for _, h := range m.tracker.snapshot() {
		if !sameDC(h.DataCenter(), m.localDC) {
			continue
		}
		addr := h.ConnectAddress().String()
		if _, _, ok := m.hosts.get(addr); !ok {
			m.hosts.add(newHostStateInfo(addr, h.DataCenter(), h.Rack(), hostIsUp(h)), m.breaker)
		}
	}

	session := m.getSession(ctx)
	for _, addr := range m.hosts.addresses() {
		m.checkHost(ctx, session, addr)
	}

	if m.recomputeMode != nil {
		m.recomputeMode()
	}
}

func (m *HostMonitor) checkHost(ctx context.Context, session *gocql.Session, addr string) {
	info, breaker, ok := m.hosts.get(addr)
	if !ok {
		return
	}

	ok2, duration := m.probe(ctx, session, addr)
	now := time.Now()
	info.recordHealthCheck(ok2, now, duration)

	wasUp := info.snapshot().IsUp
	if ok2 {
		breaker.RecordSuccess()
		if !wasUp {
			outage := info.outageDuration(now)
			changed := info.setUp(true, now)
			if changed {
				slog.Info("[HOST RECOVERY] host is back up", "address", addr, "outage", outage)
				recordAudit(m.audit, AuditHostRecovery, addr, fmt.Sprintf("outage %s", outage))
				info.resetFailures()
				breaker.Reset()
				m.metrics.incStateTransitions()
			}
		}
		return
	}

	breaker.RecordFailure()
	snap := info.snapshot()
	if wasUp && snap.ConsecutiveFailures >= m.failureThreshold {
		changed := info.setUp(false, now)
		if changed {
			slog.Warn("[HOST FAILURE] host marked down", "address", addr, "consecutive_failures", snap.ConsecutiveFailures)
			recordAudit(m.audit, AuditHostFailure, addr, fmt.Sprintf("consecutive_failures=%d", snap.ConsecutiveFailures))
			m.metrics.incStateTransitions()
		}
	}
}

// probe issues the canonical health-check query and reports whether it
// succeeded along with its latency. A nil session (no session has ever
// been established) is treated as a failed probe for every host.
func (m *HostMonitor) probe(ctx context.Context, session *gocql.Session, addr string) (bool, time.Duration) {
	return probeCanonicalQuery(ctx, session)
}
