package cassandra

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gocql/gocql"
)

// Client is the resilient wrapper around a gocql cluster/session pair.
// It owns the host registry, the derived operation mode, and the
// background HostMonitor/ConnectionRefresher/SessionSupervisor
// goroutines, and serializes
// every session/cluster recreation behind recreateMu so concurrent
// callers never race to rebuild the same dead session twice (spec.md
// §4.6's double-checked-locking requirement).
type Client struct {
	opts ResilientClientOptions

	hosts   *hostRegistry
	metrics *MetricsRegistry
	conn    *ConnectionMonitor

	tracker *hostTracker
	cluster *gocql.ClusterConfig

	sessionMu  sync.RWMutex
	session    *gocql.Session
	recreateMu sync.Mutex

	topology   *TopologyListener
	monitor    *HostMonitor
	refresher  *ConnectionRefresher
	supervisor *SessionSupervisor
	executor   *QueryExecutor

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClient builds a cluster handle from opts, establishes an initial
// session, seeds the host registry from the cluster's local-DC hosts,
// and starts the background monitor/refresher/supervisor loops. The returned
// Client is ready for Execute calls immediately.
func NewClient(opts ResilientClientOptions) (*Client, error) {
	if opts.CircuitBreaker == (CircuitBreakerOptions{}) {
		opts.CircuitBreaker = DefaultCircuitBreakerOptions()
	}

	cluster, err := buildCluster(opts)
	if err != nil {
		return nil, err
	}

	basePolicy := cluster.PoolConfig.HostSelectionPolicy
	tracker := newHostTracker(basePolicy)
	cluster.PoolConfig.HostSelectionPolicy = tracker

	c := &Client{
		opts:    opts,
		hosts:   newHostRegistry(),
		metrics: newMetricsRegistry(),
		conn:    newConnectionMonitor(50),
		tracker: tracker,
		cluster: cluster,
	}

	c.topology = newTopologyListener(c.hosts, opts.LocalDatacenter, opts.CircuitBreaker, opts.Audit)
	c.topology.attach(tracker)

	if err := c.recreateSession(fmt.Errorf("initial connect")); err != nil {
		return nil, err
	}

	c.monitor = newHostMonitor(c.hosts, c.tracker, c.metrics, c.getHealthySession, opts.HostMonitoringInterval,
		opts.LocalDatacenter, opts.CircuitBreaker, opts.Audit, c.recomputeMode)
	c.refresher = newConnectionRefresher(c.hosts, c.tracker, c.getHealthySession, c.metrics,
		opts.ConnectionRefreshInterval, opts.ConnectionsPerHost)
	c.executor = newQueryExecutor(c.hosts, c.metrics, c.getHealthySession, opts)
	c.supervisor = newSessionSupervisor(c, opts.HealthCheckInterval)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.wg.Add(3)
	go func() { defer c.wg.Done(); c.monitor.run(ctx) }()
	go func() { defer c.wg.Done(); c.refresher.run(ctx) }()
	go func() { defer c.wg.Done(); c.supervisor.run(ctx) }()

	slog.Info("[RESILIENT CLIENT] started", "contact_points", opts.ContactPoints, "local_dc", opts.LocalDatacenter)
	return c, nil
}

func (c *Client) getSession() *gocql.Session {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	return c.session
}

// isHealthyAsync implements spec.md §4.6: false if no host is up, or
// the client is in Emergency mode, or the canonical health-check query
// fails against the current session.
func (c *Client) isHealthyAsync(ctx context.Context) bool {
	snap := c.metrics.snapshot(c.hosts.snapshotAll(), c.hosts.breakerMap())
	if snap.UpHosts == 0 || snap.CurrentOperationMode == ModeEmergency {
		return false
	}
	return probeSession(ctx, c.getSession())
}

// getHealthySession is the session-acquisition path used by
// HostMonitor, ConnectionRefresher, and QueryExecutor (spec.md §4.6):
// it returns the current session if it answers the canonical
// health-check query, and otherwise recreates it first.
func (c *Client) getHealthySession(ctx context.Context) *gocql.Session {
	if probeSession(ctx, c.getSession()) {
		return c.getSession()
	}
	_ = c.recreateSession(fmt.Errorf("session failed health check"))
	return c.getSession()
}

// Execute runs stmt through the QueryExecutor, recomputing the
// published operation mode afterward so mode transitions reflect the
// query's outcome without waiting for the next monitor tick.
func (c *Client) Execute(ctx context.Context, stmt Statement) (*gocql.Iter, error) {
	iter, err := c.executor.Execute(ctx, stmt)
	if err != nil && IsRetryable(err) {
		go c.ensureHealthySession(err)
	}
	c.recomputeMode()
	return iter, err
}

// Metrics returns a current snapshot of the client's health.
func (c *Client) Metrics() MetricsSnapshot {
	return c.metrics.snapshot(c.hosts.snapshotAll(), c.hosts.breakerMap())
}

// ConnectionStatus returns the recent connectivity history tracked by
// the ConnectionMonitor.
func (c *Client) ConnectionStatus() ConnectionPoolStatus {
	return c.conn.status()
}

// ensureHealthySession is invoked off the query path after a retryable
// failure to opportunistically trigger recovery rather than waiting
// for the next monitor tick; recreateSession's own locking makes this
// safe to call from many goroutines at once.
func (c *Client) ensureHealthySession(cause error) {
	session := c.getSession()
	if session != nil && !session.Closed() {
		return
	}
	_ = c.recreateSession(cause)
}

// recreateSession implements spec.md §4.6's double-checked locking: a
// caller takes recreateMu, re-checks whether another goroutine already
// repaired the session while it waited, and only rebuilds if the
// session is still unhealthy.
func (c *Client) recreateSession(cause error) error {
	c.recreateMu.Lock()
	defer c.recreateMu.Unlock()
	return c.recreateSessionLocked(cause)
}

// recreateSessionLocked assumes the caller already holds recreateMu.
// On failure to create a new session from the existing cluster handle,
// it escalates to recreateClusterLocked rather than returning the bare
// error, per spec.md §4.6 step 3.
func (c *Client) recreateSessionLocked(cause error) error {
	if probeSession(context.Background(), c.getSession()) {
		return nil
	}

	slog.Warn("[RESILIENT CLIENT] recreating session", "cause", cause)

	newSession, err := c.cluster.CreateSession()
	if err != nil {
		c.conn.record(false, err.Error())
		slog.Warn("[RESILIENT CLIENT] session recreation failed, escalating to cluster recreation", "cause", err)
		return c.recreateClusterLocked(fmt.Errorf("session recreation failed: %w", err))
	}

	c.sessionMu.Lock()
	old := c.session
	c.session = newSession
	c.sessionMu.Unlock()
	if old != nil {
		old.Close()
	}

	c.metrics.markSessionRecreated(time.Now())
	c.conn.record(true, "session recreated")
	recordAudit(c.opts.Audit, AuditSessionRecreation, "", fmt.Sprintf("cause: %v", cause))
	c.seedHostsFromCluster(newSession)
	return nil
}

// recreateCluster rebuilds the ClusterConfig and session from scratch,
// used when session recreation repeatedly fails to reach any host
// (spec.md §4.6's escalation from session-level to cluster-level
// recovery). The topology tracker is detached from the old handle and
// re-attached to the new one so in-flight callbacks don't race a
// disposed cluster.
func (c *Client) recreateCluster(cause error) error {
	c.recreateMu.Lock()
	defer c.recreateMu.Unlock()
	return c.recreateClusterLocked(cause)
}

// recreateClusterLocked assumes the caller already holds recreateMu
// (either recreateCluster itself, or recreateSessionLocked escalating).
func (c *Client) recreateClusterLocked(cause error) error {
	slog.Warn("[RESILIENT CLIENT] recreating cluster handle", "cause", cause)

	c.tracker.detach()

	cluster, err := buildCluster(c.opts)
	if err != nil {
		return err
	}
	basePolicy := cluster.PoolConfig.HostSelectionPolicy
	tracker := newHostTracker(basePolicy)
	cluster.PoolConfig.HostSelectionPolicy = tracker

	newSession, err := cluster.CreateSession()
	if err != nil {
		c.conn.record(false, err.Error())
		return NewClientError(err, "")
	}

	c.sessionMu.Lock()
	old := c.session
	c.session = newSession
	c.sessionMu.Unlock()
	if old != nil {
		old.Close()
	}

	c.cluster = cluster
	c.tracker = tracker
	c.topology.attach(tracker)

	c.metrics.incClusterRecreations()
	c.metrics.markSessionRecreated(time.Now())
	c.conn.record(true, "cluster handle recreated")
	recordAudit(c.opts.Audit, AuditClusterRecreation, "", fmt.Sprintf("cause: %v", cause))
	var infos []*HostStateInfo
	for _, h := range tracker.snapshot() {
		if sameDC(h.DataCenter(), c.opts.LocalDatacenter) {
			infos = append(infos, newHostStateInfo(h.ConnectAddress().String(), h.DataCenter(), h.Rack(), hostIsUp(h)))
		}
	}
	c.hosts.replaceAll(infos, c.opts.CircuitBreaker)
	c.recomputeMode()
	return nil
}

// seedHostsFromCluster populates the registry from whatever hosts the
// fresh tracker has already observed via the driver's own Init/AddHost
// callbacks during CreateSession, filtered to the local datacenter.
func (c *Client) seedHostsFromCluster(session *gocql.Session) {
	for _, h := range c.tracker.snapshot() {
		if !sameDC(h.DataCenter(), c.opts.LocalDatacenter) {
			continue
		}
		addr := h.ConnectAddress().String()
		if _, _, ok := c.hosts.get(addr); ok {
			continue
		}
		c.hosts.add(newHostStateInfo(addr, h.DataCenter(), h.Rack(), hostIsUp(h)), c.opts.CircuitBreaker)
	}
}

// Dispose stops the background loops and closes the underlying
// session. It is safe to call once; calling it twice is a no-op beyond
// the second Close on an already-closed session.
func (c *Client) Dispose() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	if s := c.getSession(); s != nil {
		s.Close()
	}
	slog.Info("[RESILIENT CLIENT] stopped")
}
