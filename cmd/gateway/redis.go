package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// connectRedis abre o cliente e espera o Redis responder PING, com backoff exponencial.
func connectRedis(ctx context.Context, cfg config, log *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	b := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var err error
	for attempt := 1; attempt <= cfg.RedisConnectAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			return rdb, nil
		}

		wait := b.Duration()
		log.Warn("redis ping failed",
			zap.String("addr", cfg.RedisAddr),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			_ = rdb.Close()
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	_ = rdb.Close()
	return nil, fmt.Errorf("redis %s unreachable after %d attempts: %w", cfg.RedisAddr, cfg.RedisConnectAttempts, err)
}
