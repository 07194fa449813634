package cassandra

import (
	"fmt"
	"log/slog"
)

// OperationMode is the global policy the QueryExecutor enforces on
// every call. It is derived, never set directly by callers.
type OperationMode int32

const (
	ModeNormal OperationMode = iota
	ModeDegraded
	ModeReadOnly
	ModeEmergency
)

func (m OperationMode) String() string {
	switch m {
	case ModeDegraded:
		return "Degraded"
	case ModeReadOnly:
		return "ReadOnly"
	case ModeEmergency:
		return "Emergency"
	default:
		return "Normal"
	}
}

// deriveOperationMode is the pure function from spec.md §4.8: it takes
// a snapshot's up/total host counts and success rate and returns the
// mode that should be in effect. It never mutates anything; the caller
// is responsible for publishing the result and logging the transition.
func deriveOperationMode(snap MetricsSnapshot) OperationMode {
	switch {
	case snap.UpHosts == 0:
		return ModeEmergency
	case snap.UpHosts < snap.TotalHosts/2:
		return ModeReadOnly
	case snap.SuccessRate < 0.9 || snap.UpHosts < snap.TotalHosts:
		return ModeDegraded
	default:
		return ModeNormal
	}
}

// recomputeMode derives the mode from the client's current metrics and
// publishes it if it changed, logging the transition at warning per
// spec.md §4.8.
func (c *Client) recomputeMode() OperationMode {
	snap := c.metrics.snapshot(c.hosts.snapshotAll(), c.hosts.breakerMap())
	next := deriveOperationMode(snap)
	prev := c.metrics.currentMode()
	if next != prev {
		slog.Warn("[RESILIENT CLIENT] operation mode transition",
			"from", prev, "to", next,
			"up_hosts", snap.UpHosts, "total_hosts", snap.TotalHosts,
			"success_rate", snap.SuccessRate)
		recordAudit(c.opts.Audit, AuditModeTransition, "",
			fmt.Sprintf("%s -> %s (up_hosts=%d/%d success_rate=%.2f)", prev, next, snap.UpHosts, snap.TotalHosts, snap.SuccessRate))
	}
	c.metrics.setMode(next)
	return next
}
