package ports

import (
	"context"
	"time"

	"peerlink/internal/core/domain"
)

// PeerConn is a live transport connection to one peer. Implementations
// must serialize concurrent writes and make Close idempotent.
type PeerConn interface {
	// WriteEnvelope sends one envelope. Returns domain.ErrConnClosed
	// once the connection has been closed.
	WriteEnvelope(env *domain.Envelope) error

	// Ping sends a transport-level liveness probe. Fire-and-forget.
	Ping() error

	// Close tears the connection down. Safe to call more than once.
	Close() error

	// Open reports whether the connection is still usable.
	Open() bool
}

// OfflineMessageStore parks envelopes whose target is not currently
// reachable: per-target bounded FIFO with TTL expiry. Best-effort
// durability only.
type OfflineMessageStore interface {
	// Enqueue appends the envelope to the target's queue, evicting the
	// oldest entry first when the queue is at capacity.
	Enqueue(ctx context.Context, targetPeerID string, env *domain.Envelope) error

	// Flush delivers every queued entry for the target in FIFO order,
	// each wrapped as an offline-message envelope. A send error
	// truncates the flush and leaves the remainder queued. Returns the
	// number of entries delivered.
	Flush(ctx context.Context, targetPeerID string, conn PeerConn) (int, error)

	// SweepExpired removes entries older than the TTL from every
	// queue. Returns the number of entries evicted.
	SweepExpired(ctx context.Context, now time.Time) (int, error)

	// QueueDepth reports the total number of parked entries.
	QueueDepth(ctx context.Context) (int, error)
}
