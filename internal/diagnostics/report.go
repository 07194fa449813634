// Package diagnostics renders a resilient client's current health as a
// Markdown report, and optionally as HTML for dashboards that can't
// render Markdown directly. It has no dependency on the cassandra
// package's internals beyond the public MetricsSnapshot/
// ConnectionPoolStatus types, so it can be reused by any caller that
// holds a Client.
package diagnostics

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"

	"github.com/axonops/resilient-cassandra-client/internal/cassandra"
)

// Report is a point-in-time snapshot of a client's health, ready for
// rendering to Markdown or HTML.
type Report struct {
	GeneratedAt time.Time
	Metrics     cassandra.MetricsSnapshot
	Connection  cassandra.ConnectionPoolStatus
}

// NewReport captures the client's current metrics and connection
// status into a Report.
func NewReport(c *cassandra.Client) Report {
	return Report{
		GeneratedAt: time.Now(),
		Metrics:     c.Metrics(),
		Connection:  c.ConnectionStatus(),
	}
}

// RenderMarkdown formats the report as a Markdown document, in the
// header-plus-table style used elsewhere in this codebase for
// human-readable summaries.
func (r Report) RenderMarkdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Resilient Cassandra Client Health Report\n\n")
	fmt.Fprintf(&b, "*Generated at %s*\n\n", r.GeneratedAt.Format(time.RFC3339))

	fmt.Fprintf(&b, "## Summary\n\n")
	fmt.Fprintf(&b, "- **Operation mode:** %s\n", r.Metrics.CurrentOperationMode)
	fmt.Fprintf(&b, "- **Hosts up:** %d / %d\n", r.Metrics.UpHosts, r.Metrics.TotalHosts)
	fmt.Fprintf(&b, "- **Success rate:** %.2f%%\n", r.Metrics.SuccessRate*100)
	fmt.Fprintf(&b, "- **Total queries:** %d (failed: %d)\n", r.Metrics.TotalQueries, r.Metrics.FailedQueries)
	fmt.Fprintf(&b, "- **State transitions:** %d\n", r.Metrics.StateTransitions)
	fmt.Fprintf(&b, "- **Session recreations:** %d\n", r.Metrics.SessionRecreations)
	fmt.Fprintf(&b, "- **Cluster recreations:** %d\n", r.Metrics.ClusterRecreations)
	fmt.Fprintf(&b, "- **Uptime:** %s\n\n", r.Metrics.Uptime.Round(time.Second))

	fmt.Fprintf(&b, "## Connection\n\n")
	if r.Connection.Connected {
		fmt.Fprintf(&b, "Session is **connected** (last change: %s)\n\n", r.Connection.LastChangeAt.Format(time.RFC3339))
	} else {
		fmt.Fprintf(&b, "Session is **disconnected** (last change: %s)\n\n", r.Connection.LastChangeAt.Format(time.RFC3339))
	}
	if len(r.Connection.RecentEvents) > 0 {
		fmt.Fprintf(&b, "| Time | Connected | Reason |\n|---|---|---|\n")
		for _, ev := range r.Connection.RecentEvents {
			fmt.Fprintf(&b, "| %s | %t | %s |\n", ev.At.Format(time.RFC3339), ev.Connected, ev.Reason)
		}
		fmt.Fprintf(&b, "\n")
	}

	fmt.Fprintf(&b, "## Datacenters\n\n")
	fmt.Fprintf(&b, "| Datacenter | Up | Total | Avg. failures |\n|---|---|---|---|\n")
	for _, dc := range sortedDCNames(r.Metrics.PerDatacenter) {
		s := r.Metrics.PerDatacenter[dc]
		fmt.Fprintf(&b, "| %s | %d | %d | %.2f |\n", dc, s.UpHosts, s.TotalHosts, s.AverageFailures)
	}
	fmt.Fprintf(&b, "\n")

	fmt.Fprintf(&b, "## Hosts\n\n")
	fmt.Fprintf(&b, "| Address | Up | Consecutive failures | Breaker state | Last health check |\n|---|---|---|---|---|\n")
	for _, addr := range sortedHostAddresses(r.Metrics.PerHost) {
		h := r.Metrics.PerHost[addr]
		fmt.Fprintf(&b, "| %s | %t | %d | %s | %s |\n",
			addr, h.IsUp, h.ConsecutiveFailures, h.CircuitBreakerState, h.LastHealthCheck.Format(time.RFC3339))
	}

	return b.String()
}

// RenderHTML converts the Markdown report to HTML using gomarkdown's
// default parser and renderer, for callers that embed the report in a
// web dashboard rather than a terminal or chat message.
func (r Report) RenderHTML() string {
	md := []byte(r.RenderMarkdown())
	return string(markdown.ToHTML(md, nil, nil))
}

// WriteMarkdown writes the report to path, creating parent directories
// as needed. Mirrors the teacher's convention of writing diagnostic
// artifacts as plain files under a workspace directory rather than only
// returning them in-memory.
func WriteMarkdown(path string, r Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(r.RenderMarkdown()), 0644); err != nil {
		return fmt.Errorf("failed to write markdown report: %w", err)
	}
	return nil
}

// WriteHTML writes the HTML rendering of the report to path.
func WriteHTML(path string, r Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(r.RenderHTML()), 0644); err != nil {
		return fmt.Errorf("failed to write html report: %w", err)
	}
	return nil
}

func sortedDCNames(m map[string]cassandra.DCStats) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedHostAddresses(m map[string]cassandra.HostStats) []string {
	addrs := make([]string, 0, len(m))
	for addr := range m {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}
