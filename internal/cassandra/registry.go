package cassandra

import "sync"

// hostRegistry owns the paired host-state and circuit-breaker maps.
// spec.md §3's invariant — a host present in the monitor map has a
// matching CircuitBreaker entry and vice versa — is enforced entirely
// inside this type: every mutating method below either adds to or
// removes from both maps together, under the same lock.
type hostRegistry struct {
	mu       sync.RWMutex
	hosts    map[string]*HostStateInfo
	breakers map[string]*CircuitBreaker
}

func newHostRegistry() *hostRegistry {
	return &hostRegistry{
		hosts:    make(map[string]*HostStateInfo),
		breakers: make(map[string]*CircuitBreaker),
	}
}

// add inserts a host and a fresh breaker together. If the host is
// already present, add is a no-op (ticks and topology events must be
// idempotent per spec.md §9).
func (r *hostRegistry) add(info *HostStateInfo, breakerOpts CircuitBreakerOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.hosts[info.address]; ok {
		return
	}
	r.hosts[info.address] = info
	r.breakers[info.address] = NewCircuitBreaker(breakerOpts)
}

// remove drops a host and its breaker together.
func (r *hostRegistry) remove(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.hosts, address)
	delete(r.breakers, address)
}

// get returns the host and its breaker, or ok=false if untracked.
func (r *hostRegistry) get(address string) (*HostStateInfo, *CircuitBreaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.hosts[address]
	if !ok {
		return nil, nil, false
	}
	return h, r.breakers[address], true
}

// addresses returns a stable snapshot of tracked host addresses.
func (r *hostRegistry) addresses() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.hosts))
	for addr := range r.hosts {
		out = append(out, addr)
	}
	return out
}

// snapshotAll returns an immutable copy of every tracked host's state.
func (r *hostRegistry) snapshotAll() []hostSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]hostSnapshot, 0, len(r.hosts))
	for _, h := range r.hosts {
		out = append(out, h.snapshot())
	}
	return out
}

// breakerMap returns the live breaker map keyed by address. Callers
// must only use it for State()/CheckState() reads or for the paired
// recordSuccess/recordFailure calls — never to add/remove entries,
// which would violate the host<->breaker invariant.
func (r *hostRegistry) breakerMap() map[string]*CircuitBreaker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*CircuitBreaker, len(r.breakers))
	for k, v := range r.breakers {
		out[k] = v
	}
	return out
}

// replaceAll discards every tracked host/breaker and repopulates from
// a fresh list, used by recreateCluster to rebuild state from the new
// cluster handle's local-DC host list (spec.md §4.6).
func (r *hostRegistry) replaceAll(infos []*HostStateInfo, breakerOpts CircuitBreakerOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hosts = make(map[string]*HostStateInfo, len(infos))
	r.breakers = make(map[string]*CircuitBreaker, len(infos))
	for _, info := range infos {
		r.hosts[info.address] = info
		r.breakers[info.address] = NewCircuitBreaker(breakerOpts)
	}
}

// count returns the number of tracked hosts.
func (r *hostRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hosts)
}
