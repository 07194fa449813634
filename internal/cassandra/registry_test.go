package cassandra

import "testing"

func TestHostRegistryAddIsIdempotent(t *testing.T) {
	r := newHostRegistry()
	r.add(newHostStateInfo("10.0.0.1:9042", "dc1", "rack1", true), DefaultCircuitBreakerOptions())
	r.add(newHostStateInfo("10.0.0.1:9042", "dc1", "rack1", false), DefaultCircuitBreakerOptions())

	if r.count() != 1 {
		t.Fatalf("count = %d, want 1", r.count())
	}
	h, _, ok := r.get("10.0.0.1:9042")
	if !ok {
		t.Fatal("expected host to be present")
	}
	if !h.snapshot().IsUp {
		t.Error("second add() should not have overwritten the first host's state")
	}
}

func TestHostRegistryAddRemovePairing(t *testing.T) {
	r := newHostRegistry()
	r.add(newHostStateInfo("10.0.0.1:9042", "dc1", "rack1", true), DefaultCircuitBreakerOptions())

	if _, b, ok := r.get("10.0.0.1:9042"); !ok || b == nil {
		t.Fatal("expected host and breaker to both be present after add")
	}

	r.remove("10.0.0.1:9042")
	if _, _, ok := r.get("10.0.0.1:9042"); ok {
		t.Fatal("expected host to be gone after remove")
	}
	if r.count() != 0 {
		t.Fatalf("count = %d, want 0", r.count())
	}
}

func TestHostRegistryReplaceAll(t *testing.T) {
	r := newHostRegistry()
	r.add(newHostStateInfo("stale:9042", "dc1", "rack1", true), DefaultCircuitBreakerOptions())

	fresh := []*HostStateInfo{
		newHostStateInfo("fresh-1:9042", "dc1", "rack1", true),
		newHostStateInfo("fresh-2:9042", "dc1", "rack2", true),
	}
	r.replaceAll(fresh, DefaultCircuitBreakerOptions())

	if r.count() != 2 {
		t.Fatalf("count = %d, want 2", r.count())
	}
	if _, _, ok := r.get("stale:9042"); ok {
		t.Error("stale host should have been discarded by replaceAll")
	}
	if _, _, ok := r.get("fresh-1:9042"); !ok {
		t.Error("expected fresh-1 to be present")
	}
}

func TestHostRegistrySnapshotIsIndependentOfMutation(t *testing.T) {
	r := newHostRegistry()
	r.add(newHostStateInfo("10.0.0.1:9042", "dc1", "rack1", true), DefaultCircuitBreakerOptions())

	snap := r.snapshotAll()
	r.remove("10.0.0.1:9042")

	if len(snap) != 1 {
		t.Fatalf("snapshot len = %d, want 1 (must be unaffected by later removal)", len(snap))
	}
}
