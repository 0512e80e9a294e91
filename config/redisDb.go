package config

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Redis bundles the client and the lock client built on it.
type Redis struct {
	Client *redis.Client
	Locker *redislock.Client
}

func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

// OpenRedis connects with retry until ctx is done. An empty address means
// Redis is not configured; (nil, nil) is returned and Redis-backed features
// degrade to their no-Redis behaviour.
func OpenRedis(ctx context.Context, cfg RedisConfig, logg *logrus.Logger) (*Redis, error) {
	if cfg.Address == "" {
		logg.WithField("field", "redis").Warn("REDIS_ADDRESS not set; running without redis")
		return nil, nil
	}

	var attempt int
	for {
		attempt++
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: 100,
		})
		err := rdb.Ping(ctx).Err()
		if err == nil {
			logg.WithFields(logrus.Fields{"field": "redis", "addr": cfg.Address, "attempt": attempt}).Info("connected to redis")
			return &Redis{Client: rdb, Locker: redislock.New(rdb)}, nil
		}
		_ = rdb.Close()

		sleep := retryBackoff(attempt)
		logg.WithFields(logrus.Fields{"field": "redis", "addr": cfg.Address, "attempt": attempt}).
			Warn(fmt.Sprintf("failed to connect redis: %v; retrying in %s", err, sleep))
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect redis: %w", ctx.Err())
		case <-time.After(sleep):
		}
	}
}
