package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrEmpty is returned by Pop when nothing arrived before the timeout.
var ErrEmpty = errors.New("queue is empty")

// RedisQueue is a FIFO list: producers LPUSH, consumers BRPOP.
type RedisQueue struct {
	rdb  *redis.Client
	name string
}

func NewRedisQueue(rdb *redis.Client, name string) *RedisQueue {
	return &RedisQueue{rdb: rdb, name: name}
}

func (q *RedisQueue) Name() string {
	return q.name
}

func (q *RedisQueue) Push(ctx context.Context, payload []byte) error {
	if err := q.rdb.LPush(ctx, q.name, payload).Err(); err != nil {
		return fmt.Errorf("push to %s: %w", q.name, err)
	}
	return nil
}

// Requeue puts a payload back at the consuming end of the list.
func (q *RedisQueue) Requeue(ctx context.Context, payload []byte) error {
	if err := q.rdb.RPush(ctx, q.name, payload).Err(); err != nil {
		return fmt.Errorf("requeue to %s: %w", q.name, err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("pop from %s: %w", q.name, err)
	}
	// res is [queueName, value]
	if len(res) < 2 || res[1] == "" {
		return nil, ErrEmpty
	}
	return []byte(res[1]), nil
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}
