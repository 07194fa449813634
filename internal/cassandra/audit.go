package cassandra

import "context"

// AuditEvent is the minimal, dependency-free shape the cassandra
// package hands to an AuditSink. It carries the Kind, Address and
// Detail fields of internal/schema.AuditEvent, without its EventID and
// Recorded fields, and is declared here so this package never imports
// internal/schema — the caller's AuditSink implementation owns that
// translation and stamps the ID and time (see
// cmd/resilient-cassandra-client's auditAdapter).
type AuditEvent struct {
	Kind    string
	Address string
	Detail  string
}

// Event kind strings, matching internal/schema's EventKind constants by
// value so an AuditSink can convert without a lookup table.
const (
	AuditHostFailure       = "host_failure"
	AuditHostRecovery      = "host_recovery"
	AuditModeTransition    = "mode_transition"
	AuditSessionRecreation = "session_recreation"
	AuditClusterRecreation = "cluster_recreation"
	AuditTopologyChange    = "topology_change"
)

// AuditSink receives a durable record of a lifecycle event. It is
// optional: a nil AuditSink (the default) means these events are only
// ever visible through logging and MetricsSnapshot, per spec.md's
// audit trail being an enrichment rather than a requirement.
type AuditSink interface {
	RecordEvent(ctx context.Context, event AuditEvent)
}

// recordAudit is a nil-safe helper so call sites don't need their own
// nil check before emitting an event.
func recordAudit(sink AuditSink, kind, address, detail string) {
	if sink == nil {
		return
	}
	sink.RecordEvent(context.Background(), AuditEvent{Kind: kind, Address: address, Detail: detail})
}
