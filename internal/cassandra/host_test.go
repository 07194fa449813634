package cassandra

import "testing"

func TestHostStateInfoSetUpOnlyFlagsRealTransitions(t *testing.T) {
	h := newHostStateInfo("10.0.0.1:9042", "dc1", "rack1", true)

	if changed := h.setUp(true, h.snapshot().LastSeen); changed {
		t.Error("setUp to the same state should report no change")
	}
	if changed := h.setUp(false, h.snapshot().LastSeen); !changed {
		t.Error("setUp to a different state should report a change")
	}
	if h.snapshot().IsUp {
		t.Error("host should now be down")
	}
}

func TestHostStateInfoRecordHealthCheck(t *testing.T) {
	h := newHostStateInfo("10.0.0.1:9042", "dc1", "rack1", true)
	now := h.snapshot().LastSeen

	h.recordHealthCheck(false, now, 0)
	h.recordHealthCheck(false, now, 0)
	if got := h.snapshot().ConsecutiveFailures; got != 2 {
		t.Fatalf("ConsecutiveFailures = %d, want 2", got)
	}

	h.recordHealthCheck(true, now, 0)
	if got := h.snapshot().ConsecutiveFailures; got != 0 {
		t.Fatalf("ConsecutiveFailures = %d after success, want 0", got)
	}
}

func TestSameDCCaseInsensitive(t *testing.T) {
	if !sameDC("DC1", "dc1") {
		t.Error("sameDC should be case-insensitive")
	}
	if sameDC("dc1", "dc2") {
		t.Error("different datacenters should not match")
	}
}
