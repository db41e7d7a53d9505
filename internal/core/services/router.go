package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"
	"peerlink/pkg/utils"

	"go.uber.org/zap"
)

// SignalingRouter delivers or queues every non-registration envelope.
// WebRTC negotiation, pairing handshakes and generic messages all take
// the same path; the router never inspects a payload.
type SignalingRouter struct {
	registry *ConnectionRegistry
	store    ports.OfflineMessageStore
	observer Observer
	logger   *zap.SugaredLogger

	forwarded atomic.Uint64
	queued    atomic.Uint64
}

func NewSignalingRouter(registry *ConnectionRegistry, store ports.OfflineMessageStore, observer Observer, logger *zap.SugaredLogger) *SignalingRouter {
	return &SignalingRouter{
		registry: registry,
		store:    store,
		observer: observer,
		logger:   logger,
	}
}

// Route handles one inbound envelope from a registered sender. Every
// outcome is reported back on the sender's connection: the envelope is
// forwarded, queued (signaled via peer-offline), or answered with a
// structured error. The connection is never dropped for a bad message.
func (r *SignalingRouter) Route(ctx context.Context, sender *Binding, env *domain.Envelope) {
	switch env.Type {
	case domain.MessageGetPeers:
		r.sendPeersList(sender)
		return
	case domain.MessagePing:
		r.reply(sender, domain.NewPongEnvelope(time.Now()))
		return
	}

	if !env.Type.Routable() {
		r.reply(sender, domain.NewErrorEnvelope(
			fmt.Sprintf("unsupported message type: %s", env.Type), time.Now()))
		return
	}

	if env.To == "" {
		r.reply(sender, domain.NewErrorEnvelope(domain.ErrMissingTo.Error(), time.Now()))
		return
	}
	if env.From == "" {
		env.From = sender.PeerID
	}

	// Self-addressed envelopes are delivered normally; identity policy
	// belongs to collaborators, not the relay.
	target, ok := r.registry.Lookup(env.To)
	if ok && target.Conn.Open() {
		if err := target.Conn.WriteEnvelope(env); err == nil {
			r.forwarded.Add(1)
			r.observer.MessageForwarded(string(env.Type))
			r.logger.Debugw("forwarded envelope",
				"type", env.Type,
				"from", env.From,
				"to", env.To,
			)
			return
		}
		// The target went away mid-write; fall through to queuing.
	}

	r.enqueue(ctx, sender, env)
}

func (r *SignalingRouter) enqueue(ctx context.Context, sender *Binding, env *domain.Envelope) {
	if err := r.store.Enqueue(ctx, env.To, env); err != nil {
		r.logger.Errorw("failed to queue envelope for offline peer",
			"to", env.To,
			"type", env.Type,
			"error", err,
		)
		r.reply(sender, domain.NewErrorEnvelope("failed to store message", time.Now()))
		return
	}

	r.queued.Add(1)
	r.observer.MessageQueued(string(env.Type))

	messageID := env.ID
	if messageID == "" {
		messageID = utils.GenerateMessageID()
	}
	r.reply(sender, domain.NewPeerOfflineEnvelope(env.To, messageID, time.Now()))
}

func (r *SignalingRouter) sendPeersList(sender *Binding) {
	others := r.registry.ListOthers(sender.PeerID)
	peers := make([]domain.PeerSummary, 0, len(others))
	for _, binding := range others {
		peers = append(peers, binding.Summary())
	}
	r.reply(sender, domain.NewPeersListEnvelope(peers, time.Now()))
}

func (r *SignalingRouter) reply(sender *Binding, env *domain.Envelope) {
	if err := sender.Conn.WriteEnvelope(env); err != nil {
		r.logger.Debugw("failed to reply to sender",
			"peer_id", sender.PeerID,
			"type", env.Type,
			"error", err,
		)
	}
}

// Stats returns the forwarded and queued envelope counts.
func (r *SignalingRouter) Stats() (forwarded, queued uint64) {
	return r.forwarded.Load(), r.queued.Load()
}
