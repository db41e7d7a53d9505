package reliability

import (
	"context"
	"time"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"
	"peerlink/pkg/circuitbreaker"

	"go.uber.org/zap"
)

// GuardedStore wraps an offline message store with a circuit breaker.
// When the backend degrades (a Redis outage, for example) the breaker
// fails calls fast instead of stacking slow timeouts behind every
// websocket read loop.
type GuardedStore struct {
	store   ports.OfflineMessageStore
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.SugaredLogger
}

var _ ports.OfflineMessageStore = (*GuardedStore)(nil)

func NewGuardedStore(store ports.OfflineMessageStore, cfg circuitbreaker.Config, logger *zap.SugaredLogger) *GuardedStore {
	g := &GuardedStore{
		store:   store,
		breaker: circuitbreaker.New(cfg),
		logger:  logger,
	}

	g.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("offline store circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})

	return g
}

func (g *GuardedStore) Enqueue(ctx context.Context, targetPeerID string, env *domain.Envelope) error {
	return g.breaker.Execute(func() error {
		return g.store.Enqueue(ctx, targetPeerID, env)
	})
}

// Flush is not routed through the breaker: a flush error usually means
// the receiving connection dropped mid-delivery, which says nothing
// about the backend's health.
func (g *GuardedStore) Flush(ctx context.Context, targetPeerID string, conn ports.PeerConn) (int, error) {
	if g.breaker.State() == circuitbreaker.StateOpen {
		return 0, circuitbreaker.ErrOpen
	}
	return g.store.Flush(ctx, targetPeerID, conn)
}

func (g *GuardedStore) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	return circuitbreaker.Call(g.breaker, func() (int, error) {
		return g.store.SweepExpired(ctx, now)
	})
}

func (g *GuardedStore) QueueDepth(ctx context.Context) (int, error) {
	return circuitbreaker.Call(g.breaker, func() (int, error) {
		return g.store.QueueDepth(ctx)
	})
}

// BreakerState exposes the breaker state for readiness reporting.
func (g *GuardedStore) BreakerState() circuitbreaker.State {
	return g.breaker.State()
}
