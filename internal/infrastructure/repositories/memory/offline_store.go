package memory

import (
	"context"
	"sync"
	"time"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"
	"peerlink/pkg/utils"

	"go.uber.org/zap"
)

// OfflineMessageStore keeps per-peer bounded FIFO queues of undelivered
// envelopes in process memory. Queues are created lazily and removed
// when emptied.
type OfflineMessageStore struct {
	mu       sync.Mutex
	queues   map[string][]domain.QueuedEnvelope
	capacity int
	ttl      time.Duration
	logger   *zap.SugaredLogger
}

func NewOfflineMessageStore(capacity int, ttl time.Duration, logger *zap.SugaredLogger) *OfflineMessageStore {
	return &OfflineMessageStore{
		queues:   make(map[string][]domain.QueuedEnvelope),
		capacity: capacity,
		ttl:      ttl,
		logger:   logger,
	}
}

// Enqueue appends to the target's queue. Past capacity the oldest entry
// is evicted first; the newest message is never the one dropped. The
// original sender of a dropped entry is not notified (the drop is
// logged and counted by the caller's metrics instead).
func (s *OfflineMessageStore) Enqueue(ctx context.Context, targetPeerID string, env *domain.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.queues[targetPeerID]
	if len(queue) >= s.capacity {
		dropped := queue[0]
		queue = queue[1:]
		s.logger.Warnw("offline queue full, dropping oldest entry",
			"target", targetPeerID,
			"dropped_type", dropped.Envelope.Type,
			"dropped_from", dropped.Envelope.From,
		)
	}
	s.queues[targetPeerID] = append(queue, domain.QueuedEnvelope{
		Envelope: env,
		StoredAt: utils.Now(),
	})
	return nil
}

// Flush drains the target's queue to the given connection in FIFO
// order. A send error truncates the flush; undelivered entries go back
// to the head of the queue for the next attempt.
func (s *OfflineMessageStore) Flush(ctx context.Context, targetPeerID string, conn ports.PeerConn) (int, error) {
	s.mu.Lock()
	queue := s.queues[targetPeerID]
	delete(s.queues, targetPeerID)
	s.mu.Unlock()

	if len(queue) == 0 {
		return 0, nil
	}

	delivered := 0
	for i, entry := range queue {
		wrapped := domain.NewOfflineMessageEnvelope(entry.Envelope, entry.StoredAt, utils.Now())
		if err := conn.WriteEnvelope(wrapped); err != nil {
			s.requeue(targetPeerID, queue[i:])
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}

// requeue puts undelivered entries back ahead of anything enqueued
// while the flush was in flight, preserving original FIFO order.
func (s *OfflineMessageStore) requeue(targetPeerID string, remainder []domain.QueuedEnvelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	restored := make([]domain.QueuedEnvelope, 0, len(remainder)+len(s.queues[targetPeerID]))
	restored = append(restored, remainder...)
	restored = append(restored, s.queues[targetPeerID]...)
	s.queues[targetPeerID] = restored
}

// SweepExpired removes entries older than the TTL from every queue,
// deleting queues that become empty.
func (s *OfflineMessageStore) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for target, queue := range s.queues {
		kept := queue[:0]
		for _, entry := range queue {
			if now.Sub(entry.StoredAt) > s.ttl {
				evicted++
				continue
			}
			kept = append(kept, entry)
		}
		if len(kept) == 0 {
			delete(s.queues, target)
		} else {
			s.queues[target] = kept
		}
	}
	return evicted, nil
}

// QueueDepth reports the total number of parked entries across all
// targets.
func (s *OfflineMessageStore) QueueDepth(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, queue := range s.queues {
		total += len(queue)
	}
	return total, nil
}

// PendingFor reports how many entries are queued for one target.
func (s *OfflineMessageStore) PendingFor(targetPeerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[targetPeerID])
}
