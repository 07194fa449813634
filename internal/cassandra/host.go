package cassandra

import (
	"strings"
	"sync"
	"time"
)

// HostStateInfo is the mutable per-host record the client owns: it is
// the client's own view of a host's liveness, independent of whatever
// the driver itself believes (see HostMonitor, which reconciles the two
// on its own clock rather than trusting driver-pushed events).
type HostStateInfo struct {
	mu sync.RWMutex

	address                  string
	datacenter                string
	rack                      string
	isUp                      bool
	lastSeen                  time.Time
	lastStateChange           time.Time
	consecutiveFailures       int
	lastHealthCheck           time.Time
	lastHealthCheckDuration   time.Duration
}

// newHostStateInfo builds the initial record for a host observed for
// the first time, seeded from the driver's own up/down report.
func newHostStateInfo(address, datacenter, rack string, up bool) *HostStateInfo {
	now := time.Now()
	return &HostStateInfo{
		address:         address,
		datacenter:      datacenter,
		rack:            rack,
		isUp:            up,
		lastSeen:        now,
		lastStateChange: now,
	}
}

// sameDC reports whether two datacenter names match,
// case-insensitively, per spec.md's monitoring invariant.
func sameDC(a, b string) bool {
	return strings.EqualFold(a, b)
}

func (h *HostStateInfo) snapshot() hostSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return hostSnapshot{
		Address:                 h.address,
		Datacenter:              h.datacenter,
		Rack:                    h.rack,
		IsUp:                    h.isUp,
		LastSeen:                h.lastSeen,
		LastStateChange:         h.lastStateChange,
		ConsecutiveFailures:     h.consecutiveFailures,
		LastHealthCheck:         h.lastHealthCheck,
		LastHealthCheckDuration: h.lastHealthCheckDuration,
	}
}

// setUp transitions the stored up/down bit and timestamps, returning
// whether a transition actually happened (the caller increments
// stateTransitions and emits the up/down log only on a real change).
func (h *HostStateInfo) setUp(up bool, now time.Time) (changed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastSeen = now
	if h.isUp == up {
		return false
	}
	h.isUp = up
	h.lastStateChange = now
	return true
}

func (h *HostStateInfo) recordHealthCheck(ok bool, now time.Time, duration time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastHealthCheck = now
	h.lastHealthCheckDuration = duration
	if ok {
		h.consecutiveFailures = 0
	} else {
		h.consecutiveFailures++
	}
}

func (h *HostStateInfo) resetFailures() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveFailures = 0
}

func (h *HostStateInfo) outageDuration(now time.Time) time.Duration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return now.Sub(h.lastStateChange)
}

// hostSnapshot is an immutable point-in-time copy of a HostStateInfo,
// safe to hand to callers outside the monitor's lock discipline.
type hostSnapshot struct {
	Address                 string
	Datacenter              string
	Rack                    string
	IsUp                    bool
	LastSeen                time.Time
	LastStateChange         time.Time
	ConsecutiveFailures     int
	LastHealthCheck         time.Time
	LastHealthCheckDuration time.Duration
}
