package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/config"
	"storefront/pkg/log"
)

var (
	Client *redis.Client
)

// Init initializes the Redis client and pings it
func Init(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}

	Client = client
	log.WithFields(log.Fields{"addr": cfg.GetAddr(), "db": cfg.DB}).Info("Redis connected")
	return client, nil
}

// Close closes the Redis client connection.
func Close() error {
	if Client != nil {
		return Client.Close()
	}
	return nil
}

// Health checks the health status of the Redis client.
func Health(ctx context.Context) error {
	if Client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return Client.Ping(ctx).Err()
}
