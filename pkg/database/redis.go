package database

import (
	"context"
	"fmt"
	"time"

	"cinema-checkout/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// InitRedis connects the hold ledger's Redis client and pings it
func InitRedis(ctx context.Context, config utils.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", config.Addr, err)
	}

	return client, nil
}
