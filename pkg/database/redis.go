// Package database holds a Redis connection constructor that pings on
// connect and exits the process when the ping fails. cmd/server builds its
// bus and cache clients with redis.NewClient directly and does not use it.
package database

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"streamgate-go/pkg/log"
)

// NewRedisClient builds and pings a Redis client, failing fast at startup
// rather than letting the first request discover a bad address.
func NewRedisClient(addr, password string, db int) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to redis", err)
	}

	log.Infof("Redis client connected successfully: %s db=%d", addr, db)
	return rdb
}
