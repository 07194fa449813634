package diagnostics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/axonops/resilient-cassandra-client/internal/cassandra"
)

func sampleReport() Report {
	now := time.Now()
	return Report{
		GeneratedAt: now,
		Metrics: cassandra.MetricsSnapshot{
			TotalQueries:         100,
			FailedQueries:        5,
			SuccessRate:          0.95,
			StateTransitions:     2,
			UpHosts:              2,
			TotalHosts:           3,
			Uptime:               time.Hour,
			SessionRecreations:   1,
			ClusterRecreations:   0,
			CurrentOperationMode: cassandra.ModeDegraded,
			PerDatacenter: map[string]cassandra.DCStats{
				"dc1": {TotalHosts: 3, UpHosts: 2, AverageFailures: 0.5},
			},
			PerHost: map[string]cassandra.HostStats{
				"10.0.0.1": {IsUp: true, ConsecutiveFailures: 0, CircuitBreakerState: cassandra.BreakerClosed},
				"10.0.0.2": {IsUp: false, ConsecutiveFailures: 4, CircuitBreakerState: cassandra.BreakerOpen},
			},
		},
		Connection: cassandra.ConnectionPoolStatus{
			Connected:    true,
			LastChangeAt: now,
			RecentEvents: []cassandra.ConnectionEvent{
				{At: now, Connected: true, Reason: "initial connect"},
			},
		},
	}
}

func TestRenderMarkdown_ContainsKeySections(t *testing.T) {
	md := sampleReport().RenderMarkdown()

	for _, want := range []string{
		"# Resilient Cassandra Client Health Report",
		"## Summary",
		"## Connection",
		"## Datacenters",
		"## Hosts",
		"Degraded",
		"10.0.0.1",
		"10.0.0.2",
		"dc1",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("RenderMarkdown() output missing %q", want)
		}
	}
}

func TestRenderHTML_WrapsMarkdownContent(t *testing.T) {
	html := sampleReport().RenderHTML()

	if !strings.Contains(html, "<h1>") {
		t.Error("RenderHTML() should contain an <h1> for the top-level heading")
	}
	if !strings.Contains(html, "10.0.0.1") {
		t.Error("RenderHTML() should preserve host addresses from the markdown source")
	}
}

func TestWriteMarkdown_CreatesParentDirAndFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "report.md")

	if err := WriteMarkdown(path, sampleReport()); err != nil {
		t.Fatalf("WriteMarkdown() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written report: %v", err)
	}
	if !strings.Contains(string(data), "Resilient Cassandra Client Health Report") {
		t.Error("written markdown file missing expected header")
	}
}

func TestWriteHTML_CreatesParentDirAndFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "report.html")

	if err := WriteHTML(path, sampleReport()); err != nil {
		t.Fatalf("WriteHTML() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written report: %v", err)
	}
	if !strings.Contains(string(data), "<h1>") {
		t.Error("written html file missing expected heading tag")
	}
}

func TestRenderMarkdown_EmptyHostsProducesNoRows(t *testing.T) {
	r := sampleReport()
	r.Metrics.PerHost = nil
	r.Metrics.PerDatacenter = nil

	md := r.RenderMarkdown()
	if !strings.Contains(md, "## Hosts") {
		t.Error("RenderMarkdown() should still include the Hosts header with no hosts")
	}
	if strings.Contains(md, "10.0.0.1") || strings.Contains(md, "10.0.0.2") {
		t.Error("RenderMarkdown() should render no host rows when PerHost is empty")
	}
}
