package services

import (
	"time"

	"peerlink/internal/core/domain"

	"go.uber.org/zap"
)

// PresenceBroadcaster notifies other connected peers of online/offline
// transitions. Delivery is fire-and-forget: presence is transient and a
// stale notification replayed hours later has no value, so presence
// envelopes are never queued offline.
type PresenceBroadcaster struct {
	registry *ConnectionRegistry
	logger   *zap.SugaredLogger
}

func NewPresenceBroadcaster(registry *ConnectionRegistry, logger *zap.SugaredLogger) *PresenceBroadcaster {
	return &PresenceBroadcaster{
		registry: registry,
		logger:   logger,
	}
}

// Announce sends a peer-status envelope to every live binding except
// peerID's own.
func (p *PresenceBroadcaster) Announce(peerID string, status domain.PresenceStatus, deviceType domain.DeviceType, deviceInfo map[string]interface{}) {
	env := domain.NewPeerStatusEnvelope(peerID, status, deviceType, deviceInfo, time.Now())

	notified := 0
	for _, binding := range p.registry.ListOthers(peerID) {
		if !binding.Conn.Open() {
			continue
		}
		if err := binding.Conn.WriteEnvelope(env); err != nil {
			p.logger.Debugw("presence notification failed",
				"about", peerID,
				"to", binding.PeerID,
				"error", err,
			)
			continue
		}
		notified++
	}

	p.logger.Infow("announced presence",
		"peer_id", peerID,
		"status", status,
		"notified", notified,
	)
}
