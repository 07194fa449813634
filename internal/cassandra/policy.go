package cassandra

import (
	"sync"

	"github.com/gocql/gocql"
)

// hostTracker wraps a gocql.HostSelectionPolicy purely to observe the
// driver's own AddHost/RemoveHost/HostUp/HostDown callbacks — this is
// the mechanism spec.md §6 calls "host-added/host-removed
// notifications" and "cluster.allHosts()": gocql has no standalone
// host-list accessor, but every HostSelectionPolicy installed on a
// ClusterConfig receives these calls as the driver's gossip-derived
// view of the ring changes, which is exactly the feed HostMonitor and
// TopologyListener need. Pick/Init/KeyspaceChanged/SetPartitioner are
// forwarded untouched to the wrapped policy so routing behavior is
// unaffected.
type hostTracker struct {
	inner gocql.HostSelectionPolicy

	mu    sync.RWMutex
	known map[string]*gocql.HostInfo

	// callbacks, set by the owning Client after construction and
	// re-pointed on every cluster recreation (spec.md §4.7: "Handlers
	// must be re-attached whenever the cluster handle is recreated").
	onAdd    func(*gocql.HostInfo)
	onRemove func(*gocql.HostInfo)
	onUp     func(*gocql.HostInfo)
	onDown   func(*gocql.HostInfo)
}

func newHostTracker(inner gocql.HostSelectionPolicy) *hostTracker {
	return &hostTracker{inner: inner, known: make(map[string]*gocql.HostInfo)}
}

// setHandlers attaches the topology callbacks. Passing nil for a
// handler leaves tracking active but makes that notification a no-op,
// used during detach just before cluster disposal.
func (t *hostTracker) setHandlers(onAdd, onRemove, onUp, onDown func(*gocql.HostInfo)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onAdd, t.onRemove, t.onUp, t.onDown = onAdd, onRemove, onUp, onDown
}

func (t *hostTracker) detach() {
	t.setHandlers(nil, nil, nil, nil)
}

func (t *hostTracker) snapshot() []*gocql.HostInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*gocql.HostInfo, 0, len(t.known))
	for _, h := range t.known {
		out = append(out, h)
	}
	return out
}

func (t *hostTracker) Init(s *gocql.Session) { t.inner.Init(s) }

func (t *hostTracker) KeyspaceChanged(u gocql.KeyspaceUpdateEvent) { t.inner.KeyspaceChanged(u) }

func (t *hostTracker) SetPartitioner(name string) { t.inner.SetPartitioner(name) }

func (t *hostTracker) IsLocal(h *gocql.HostInfo) bool { return t.inner.IsLocal(h) }

func (t *hostTracker) Pick(q gocql.ExecutableQuery) gocql.NextHost { return t.inner.Pick(q) }

func (t *hostTracker) AddHost(h *gocql.HostInfo) {
	t.mu.Lock()
	t.known[h.ConnectAddress().String()] = h
	cb := t.onAdd
	t.mu.Unlock()
	t.inner.AddHost(h)
	if cb != nil {
		cb(h)
	}
}

func (t *hostTracker) RemoveHost(h *gocql.HostInfo) {
	t.mu.Lock()
	delete(t.known, h.ConnectAddress().String())
	cb := t.onRemove
	t.mu.Unlock()
	t.inner.RemoveHost(h)
	if cb != nil {
		cb(h)
	}
}

func (t *hostTracker) HostUp(h *gocql.HostInfo) {
	t.mu.Lock()
	t.known[h.ConnectAddress().String()] = h
	cb := t.onUp
	t.mu.Unlock()
	t.inner.HostUp(h)
	if cb != nil {
		cb(h)
	}
}

func (t *hostTracker) HostDown(h *gocql.HostInfo) {
	t.mu.Lock()
	cb := t.onDown
	t.mu.Unlock()
	t.inner.HostDown(h)
	if cb != nil {
		cb(h)
	}
}

func hostIsUp(h *gocql.HostInfo) bool {
	return h.State() == gocql.NodeUp
}
