package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

func ConnectRedis(ctx context.Context, opts RedisOptions, log *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(pingCtx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("could not connect to redis at %s: %w", opts.Addr, err)
	}
	log.Info("connected to Redis", zap.String("addr", opts.Addr))
	return rdb, nil
}

func CloseRedis(rdb *redis.Client, log *zap.Logger) {
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Warn("redis close failed", zap.Error(err))
			return
		}
		log.Info("redis connection closed")
	}
}
