package cassandra

import (
	"fmt"
	"log/slog"

	"github.com/gocql/gocql"
)

// TopologyListener reacts to the driver's own AddHost/RemoveHost
// notifications (relayed through hostTracker) instead of waiting for
// the next HostMonitor tick, so a newly joined node gets a breaker and
// health-check cadence immediately and a decommissioned node stops
// being probed immediately. spec.md §4.? calls these "topology change"
// events, logged with the [TOPOLOGY CHANGE] tag.
type TopologyListener struct {
	hosts   *hostRegistry
	localDC string
	breaker CircuitBreakerOptions
	audit   AuditSink
}

func newTopologyListener(hosts *hostRegistry, localDC string, breakerOpts CircuitBreakerOptions, audit AuditSink) *TopologyListener {
	return &TopologyListener{hosts: hosts, localDC: localDC, breaker: breakerOpts, audit: audit}
}

// attach wires this listener's callbacks onto a hostTracker. It only
// sets onAdd/onRemove; HostMonitor's polling loop is the sole owner of
// onUp/onDown recovery/failure decisions so the two components don't
// race on the same transition.
func (t *TopologyListener) attach(tracker *hostTracker) {
	tracker.setHandlers(t.onAdd, t.onRemove, nil, nil)
}

func (t *TopologyListener) onAdd(h *gocql.HostInfo) {
	if !sameDC(h.DataCenter(), t.localDC) {
		return
	}
	addr := h.ConnectAddress().String()
	if _, _, ok := t.hosts.get(addr); ok {
		return
	}
	slog.Info("[TOPOLOGY CHANGE] host added", "address", addr, "datacenter", h.DataCenter(), "rack", h.Rack())
	recordAudit(t.audit, AuditTopologyChange, addr, fmt.Sprintf("host added in datacenter %s rack %s", h.DataCenter(), h.Rack()))
	t.hosts.add(newHostStateInfo(addr, h.DataCenter(), h.Rack(), hostIsUp(h)), t.breaker)
}

func (t *TopologyListener) onRemove(h *gocql.HostInfo) {
	addr := h.ConnectAddress().String()
	if _, _, ok := t.hosts.get(addr); !ok {
		return
	}
	slog.Info("[TOPOLOGY CHANGE] host removed", "address", addr, "datacenter", h.DataCenter())
	recordAudit(t.audit, AuditTopologyChange, addr, fmt.Sprintf("host removed from datacenter %s", h.DataCenter()))
	t.hosts.remove(addr)
}
