package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LivenessSupervisor detects connections whose peer process has died or
// whose network path is silently broken. Each binding cycles
// Alive -> Suspect -> terminated across ticks: a binding still suspect
// at the next tick is force-closed, so a silent connection dies within
// two tick periods. Normal disconnect cleanup (registry removal,
// offline presence broadcast) runs in the connection's own handler.
type LivenessSupervisor struct {
	registry *ConnectionRegistry
	observer Observer
	logger   *zap.SugaredLogger
}

func NewLivenessSupervisor(registry *ConnectionRegistry, observer Observer, logger *zap.SugaredLogger) *LivenessSupervisor {
	return &LivenessSupervisor{
		registry: registry,
		observer: observer,
		logger:   logger,
	}
}

// Run probes every live connection on the given period until the
// context is cancelled.
func (s *LivenessSupervisor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick iterates all live bindings exactly once. Probe sends are
// fire-and-forget; no blocking I/O happens inside the tick.
func (s *LivenessSupervisor) Tick() {
	for _, binding := range s.registry.List() {
		if binding.Alive() {
			binding.markSuspect()
			if err := binding.Conn.Ping(); err != nil {
				s.logger.Debugw("liveness probe failed",
					"peer_id", binding.PeerID,
					"error", err,
				)
			}
			continue
		}

		// Still suspect from the previous tick: the peer has gone
		// silent. Terminate; it must re-register from a new connection.
		s.logger.Infow("terminating unresponsive connection",
			"peer_id", binding.PeerID,
			"connected_at", binding.ConnectedAt,
		)
		binding.Conn.Close()
		s.observer.ConnectionTerminated()
	}
}
