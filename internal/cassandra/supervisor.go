package cassandra

import (
	"context"
	"fmt"
	"time"
)

// SessionSupervisor is C6: it runs on its own fixed clock
// (healthCheckInterval) and is the component responsible for noticing
// a session has gone bad even when no query traffic is flowing to
// surface the problem (spec.md §4.6).
type SessionSupervisor struct {
	client   *Client
	interval time.Duration
}

func newSessionSupervisor(client *Client, interval time.Duration) *SessionSupervisor {
	return &SessionSupervisor{client: client, interval: interval}
}

func (s *SessionSupervisor) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick is the whole of §4.6 step 1: if the session fails its health
// check, recreateSession handles its own locking and, on repeated
// failure, escalates to recreateCluster.
func (s *SessionSupervisor) tick(ctx context.Context) {
	if !s.client.isHealthyAsync(ctx) {
		_ = s.client.recreateSession(fmt.Errorf("session supervisor: health check failed"))
	}
}
