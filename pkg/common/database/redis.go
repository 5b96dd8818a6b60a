package database

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/synaptica-ai/rxlink/pkg/common/config"
	"github.com/synaptica-ai/rxlink/pkg/common/logger"
)

// OpenRedis returns a client even when the initial ping fails; callers decide
// whether Redis is required.
func OpenRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Log.WithError(err).Error("Failed to connect to Redis")
		return client, err
	}
	logger.Log.WithField("addr", cfg.RedisAddr()).Info("Connected to Redis")
	return client, nil
}

func CloseRedis(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
