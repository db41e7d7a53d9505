package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"
	"peerlink/pkg/distributed"
	"peerlink/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	offlineKeyPrefix = "peerlink:offline:"
	sweepLockKey     = "peerlink:offline-sweep-lock"
	sweepLockTTL     = 5 * time.Minute
)

// OfflineMessageStore keeps per-peer offline queues in Redis lists, one
// list per target, oldest entry at the head. Survives relay restarts,
// unlike the in-memory store.
type OfflineMessageStore struct {
	client   *redis.Client
	capacity int
	ttl      time.Duration
	logger   *zap.SugaredLogger
}

func NewOfflineMessageStore(client *redis.Client, capacity int, ttl time.Duration, logger *zap.SugaredLogger) *OfflineMessageStore {
	return &OfflineMessageStore{
		client:   client,
		capacity: capacity,
		ttl:      ttl,
		logger:   logger,
	}
}

func (s *OfflineMessageStore) queueKey(targetPeerID string) string {
	return offlineKeyPrefix + targetPeerID
}

// Enqueue appends to the target's list and trims it to the last
// `capacity` entries, evicting oldest-first on overflow.
func (s *OfflineMessageStore) Enqueue(ctx context.Context, targetPeerID string, env *domain.Envelope) error {
	data, err := json.Marshal(domain.QueuedEnvelope{
		Envelope: env,
		StoredAt: utils.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal queued envelope: %w", err)
	}

	key := s.queueKey(targetPeerID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, int64(-s.capacity), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue offline message: %w", err)
	}
	return nil
}

// Flush reads the target's list in FIFO order and delivers each entry.
// Delivered entries are trimmed from the head afterwards, so a send
// error leaves the remainder queued. Entries enqueued concurrently
// land at the tail and survive the trim.
func (s *OfflineMessageStore) Flush(ctx context.Context, targetPeerID string, conn ports.PeerConn) (int, error) {
	key := s.queueKey(targetPeerID)
	values, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read offline queue: %w", err)
	}
	if len(values) == 0 {
		return 0, nil
	}

	delivered := 0
	var sendErr error
	for _, value := range values {
		var entry domain.QueuedEnvelope
		if err := json.Unmarshal([]byte(value), &entry); err != nil {
			s.logger.Warnw("dropping undecodable offline entry",
				"target", targetPeerID,
				"error", err,
			)
			delivered++ // trim it with the delivered head
			continue
		}
		wrapped := domain.NewOfflineMessageEnvelope(entry.Envelope, entry.StoredAt, utils.Now())
		if err := conn.WriteEnvelope(wrapped); err != nil {
			sendErr = err
			break
		}
		delivered++
	}

	if delivered > 0 {
		if err := s.client.LTrim(ctx, key, int64(delivered), -1).Err(); err != nil {
			return delivered, fmt.Errorf("failed to trim delivered entries: %w", err)
		}
	}
	return delivered, sendErr
}

// SweepExpired walks every offline queue and pops expired entries from
// the head. Entries are stored in arrival order, so the head is always
// the oldest; popping stops at the first unexpired entry.
//
// The sweep runs under a Redis lease so that relay instances sharing
// the backend do not all walk the keyspace on the same tick.
func (s *OfflineMessageStore) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	lock := distributed.NewLock(s.client, sweepLockKey, sweepLockTTL)
	acquired, err := lock.TryAcquire(ctx)
	if err != nil {
		return 0, err
	}
	if !acquired {
		s.logger.Debugw("sweep lease held elsewhere, skipping")
		return 0, nil
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			s.logger.Warnw("failed to release sweep lease", "error", err)
		}
	}()

	evicted := 0
	iter := s.client.Scan(ctx, 0, offlineKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		for {
			value, err := s.client.LIndex(ctx, key, 0).Result()
			if err == redis.Nil {
				break
			}
			if err != nil {
				return evicted, fmt.Errorf("failed to inspect queue head: %w", err)
			}

			var entry domain.QueuedEnvelope
			if err := json.Unmarshal([]byte(value), &entry); err == nil && now.Sub(entry.StoredAt) <= s.ttl {
				break
			}
			// Expired (or undecodable): drop the head.
			if err := s.client.LPop(ctx, key).Err(); err != nil && err != redis.Nil {
				return evicted, fmt.Errorf("failed to evict expired entry: %w", err)
			}
			evicted++
		}
	}
	if err := iter.Err(); err != nil {
		return evicted, fmt.Errorf("failed to scan offline queues: %w", err)
	}
	return evicted, nil
}

// QueueDepth sums the length of every offline queue.
func (s *OfflineMessageStore) QueueDepth(ctx context.Context) (int, error) {
	total := 0
	iter := s.client.Scan(ctx, 0, offlineKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		length, err := s.client.LLen(ctx, iter.Val()).Result()
		if err != nil {
			return total, fmt.Errorf("failed to measure queue depth: %w", err)
		}
		total += int(length)
	}
	if err := iter.Err(); err != nil {
		return total, fmt.Errorf("failed to scan offline queues: %w", err)
	}
	return total, nil
}
