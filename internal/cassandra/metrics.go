package cassandra

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsRegistry owns the scalar counters and derived-snapshot logic
// for a Client. Scalars use atomic increments (spec.md §5); the
// operation-mode value is an atomic too, read unsynchronized by the
// executor on every call.
type MetricsRegistry struct {
	startedAt time.Time

	totalQueries        atomic.Int64
	failedQueries       atomic.Int64
	stateTransitions    atomic.Int64
	sessionRecreations  atomic.Int64
	clusterRecreations  atomic.Int64

	mu                     sync.Mutex
	lastSessionRecreation  time.Time

	mode atomic.Int32
}

func newMetricsRegistry() *MetricsRegistry {
	m := &MetricsRegistry{startedAt: time.Now()}
	m.mode.Store(int32(ModeNormal))
	return m
}

func (m *MetricsRegistry) incTotalQueries()       { m.totalQueries.Add(1) }
func (m *MetricsRegistry) incFailedQueries()      { m.failedQueries.Add(1) }
func (m *MetricsRegistry) incStateTransitions()   { m.stateTransitions.Add(1) }
func (m *MetricsRegistry) incSessionRecreations() { m.sessionRecreations.Add(1) }
func (m *MetricsRegistry) incClusterRecreations() { m.clusterRecreations.Add(1) }

func (m *MetricsRegistry) markSessionRecreated(now time.Time) {
	m.incSessionRecreations()
	m.mu.Lock()
	m.lastSessionRecreation = now
	m.mu.Unlock()
}

func (m *MetricsRegistry) setMode(mode OperationMode) {
	m.mode.Store(int32(mode))
}

func (m *MetricsRegistry) currentMode() OperationMode {
	return OperationMode(m.mode.Load())
}

// successRate returns (total-failed)/total, or 1.0 by convention when
// no queries have been executed yet (spec.md §8, invariant 7).
func (m *MetricsRegistry) successRate() float64 {
	total := m.totalQueries.Load()
	if total == 0 {
		return 1.0
	}
	failed := m.failedQueries.Load()
	return float64(total-failed) / float64(total)
}

// MetricsSnapshot is an immutable point-in-time view of the client's
// health, safe to serialize or compare across calls.
type MetricsSnapshot struct {
	TotalQueries          int64
	FailedQueries         int64
	SuccessRate           float64
	StateTransitions      int64
	UpHosts               int
	TotalHosts            int
	Uptime                time.Duration
	SessionRecreations    int64
	ClusterRecreations    int64
	LastSessionRecreation time.Time
	CurrentOperationMode  OperationMode

	PerDatacenter map[string]DCStats
	PerHost       map[string]HostStats
}

// DCStats summarizes the hosts of a single datacenter.
type DCStats struct {
	TotalHosts      int
	UpHosts         int
	AverageFailures float64
}

// HostStats is the per-host slice of a MetricsSnapshot.
type HostStats struct {
	IsUp                    bool
	ConsecutiveFailures     int
	LastStateChange         time.Time
	LastHealthCheck         time.Time
	LastHealthCheckDuration time.Duration
	CircuitBreakerState     BreakerState
}

// snapshot assembles a MetricsSnapshot from the registry's counters and
// the caller-supplied current host/breaker maps. The hosts parameter is
// expected to already be a stable, independently-locked snapshot (see
// Client.hosts.snapshotAll).
func (m *MetricsRegistry) snapshot(hosts []hostSnapshot, breakers map[string]*CircuitBreaker) MetricsSnapshot {
	m.mu.Lock()
	lastRecreation := m.lastSessionRecreation
	m.mu.Unlock()

	perDC := make(map[string]DCStats)
	perHost := make(map[string]HostStats)

	type dcAccum struct {
		total, up int
		failures  int
	}
	accum := make(map[string]*dcAccum)

	upHosts := 0
	for _, h := range hosts {
		a, ok := accum[h.Datacenter]
		if !ok {
			a = &dcAccum{}
			accum[h.Datacenter] = a
		}
		a.total++
		a.failures += h.ConsecutiveFailures
		if h.IsUp {
			a.up++
			upHosts++
		}

		state := BreakerClosed
		if b, ok := breakers[h.Address]; ok {
			state = b.State()
		}
		perHost[h.Address] = HostStats{
			IsUp:                    h.IsUp,
			ConsecutiveFailures:     h.ConsecutiveFailures,
			LastStateChange:         h.LastStateChange,
			LastHealthCheck:         h.LastHealthCheck,
			LastHealthCheckDuration: h.LastHealthCheckDuration,
			CircuitBreakerState:     state,
		}
	}
	for dc, a := range accum {
		avg := 0.0
		if a.total > 0 {
			avg = float64(a.failures) / float64(a.total)
		}
		perDC[dc] = DCStats{TotalHosts: a.total, UpHosts: a.up, AverageFailures: avg}
	}

	return MetricsSnapshot{
		TotalQueries:          m.totalQueries.Load(),
		FailedQueries:         m.failedQueries.Load(),
		SuccessRate:           m.successRate(),
		StateTransitions:      m.stateTransitions.Load(),
		UpHosts:               upHosts,
		TotalHosts:            len(hosts),
		Uptime:                time.Since(m.startedAt),
		SessionRecreations:    m.sessionRecreations.Load(),
		ClusterRecreations:    m.clusterRecreations.Load(),
		LastSessionRecreation: lastRecreation,
		CurrentOperationMode:  m.currentMode(),
		PerDatacenter:         perDC,
		PerHost:               perHost,
	}
}
