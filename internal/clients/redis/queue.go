package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/matchahq/matcha-backend/internal/logger"
)

// Queue is a Redis-list job queue: LPUSH to enqueue, BRPOP to consume.
type Queue interface {
	Enqueue(ctx context.Context, job any) error
	// Dequeue blocks up to timeout; returns (false, nil) when nothing
	// arrived in that window.
	Dequeue(ctx context.Context, timeout time.Duration, dest any) (bool, error)
}

type queue struct {
	log  *logger.Logger
	rdb  *goredis.Client
	name string
}

func NewQueue(log *logger.Logger, rdb *goredis.Client, name string) Queue {
	return &queue{
		log:  log.With("service", "RedisQueue", "queue", name),
		rdb:  rdb,
		name: "queue:" + name,
	}
}

func (q *queue) Enqueue(ctx context.Context, job any) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.name, raw).Err(); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

func (q *queue) Dequeue(ctx context.Context, timeout time.Duration, dest any) (bool, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.name).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// BRPOP returns [key, value].
	if len(res) != 2 {
		return false, fmt.Errorf("unexpected BRPOP reply length %d", len(res))
	}
	if err := json.Unmarshal([]byte(res[1]), dest); err != nil {
		return false, fmt.Errorf("unmarshal job: %w", err)
	}
	return true, nil
}
