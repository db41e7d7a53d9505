package services

import (
	"context"
	"time"

	"peerlink/internal/core/ports"

	"go.uber.org/zap"
)

// RunSweeper evicts expired entries from the offline message store on
// the given period until the context is cancelled. Expiry is eventual:
// an entry may transiently outlive its TTL between sweeps.
func RunSweeper(ctx context.Context, store ports.OfflineMessageStore, interval time.Duration, observer Observer, logger *zap.SugaredLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted, err := store.SweepExpired(ctx, time.Now())
			if err != nil {
				logger.Errorw("offline store sweep failed", "error", err)
				continue
			}
			if evicted > 0 {
				observer.OfflineExpired(evicted)
				logger.Infow("swept expired offline messages", "evicted", evicted)
			}
		}
	}
}
