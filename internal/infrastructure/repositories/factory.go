package repositories

import (
	"context"

	"peerlink/internal/core/ports"
	"peerlink/internal/infrastructure/reliability"
	"peerlink/internal/infrastructure/repositories/memory"
	redisrepo "peerlink/internal/infrastructure/repositories/redis"
	"peerlink/pkg/circuitbreaker"
	"peerlink/pkg/config"
	"peerlink/pkg/retry"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StoreFactory builds the offline message store backend: Redis when
// enabled and reachable, process memory otherwise.
type StoreFactory struct {
	useRedis    bool
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

func NewStoreFactory(cfg *config.Config, logger *zap.SugaredLogger) *StoreFactory {
	factory := &StoreFactory{
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := retry.WithResult(context.Background(), retry.DefaultConfig(), func() (*redis.Client, error) {
			return redisrepo.NewRedisClient(
				cfg.Redis.Address,
				cfg.Redis.Password,
				cfg.Redis.DB,
				cfg.Redis.PoolSize,
				logger,
			)
		})
		if err != nil {
			logger.Warnw("Redis unreachable, falling back to in-memory offline store",
				"address", cfg.Redis.Address,
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
		}
	}

	if !factory.useRedis {
		logger.Info("using in-memory offline message store")
	}
	return factory
}

// CreateOfflineStore returns the configured store backend. The Redis
// backend is wrapped in a circuit breaker so a backend outage fails
// fast instead of blocking connection read loops; the in-memory store
// cannot fail and is used bare.
func (f *StoreFactory) CreateOfflineStore(cfg *config.Config) ports.OfflineMessageStore {
	capacity := cfg.Relay.OfflineQueueCapacity
	ttl := cfg.Relay.OfflineTTL
	if f.useRedis && f.redisClient != nil {
		store := redisrepo.NewOfflineMessageStore(f.redisClient, capacity, ttl, f.logger)
		return reliability.NewGuardedStore(store, circuitbreaker.DefaultConfig(), f.logger)
	}
	return memory.NewOfflineMessageStore(capacity, ttl, f.logger)
}

// HealthCheck verifies the backing store is reachable. The in-memory
// store is always healthy.
func (f *StoreFactory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}

// Close releases the Redis connection if one is held.
func (f *StoreFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}
