package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/corvid-labs/corpora-backend/internal/faults"
	"github.com/corvid-labs/corpora-backend/internal/logger"
)

const defaultRedisKey = "corpora:ingest:jobs"

type redisQueue struct {
	log      *logger.Logger
	client   *redis.Client
	key      string
	capacity int64
}

// NewRedisQueue is the broker-backed queue selected when REDIS_URL is set,
// so pipeline work survives process restarts and can be shared across
// workers. Capacity is enforced with LLEN before LPUSH; the small race
// between them only softens the bound.
func NewRedisQueue(log *logger.Logger, redisURL, key string, capacity int) (Queue, error) {
	serviceLog := log.With("service", "RedisJobQueue")

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, faults.Transient("bootstrap", "redis unreachable", err)
	}

	if key == "" {
		key = defaultRedisKey
	}
	if capacity <= 0 {
		capacity = 64
	}
	serviceLog.Info("Redis job queue selected", "key", key, "capacity", capacity)
	return &redisQueue{log: serviceLog, client: client, key: key, capacity: int64(capacity)}, nil
}

func (q *redisQueue) Submit(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return faults.Internal("submit", "encode job failed", err)
	}
	for {
		depth, err := q.client.LLen(ctx, q.key).Result()
		if err != nil {
			return faults.Transient("submit", "redis llen failed", err)
		}
		if depth < q.capacity {
			if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
				return faults.Transient("submit", "redis lpush failed", err)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return faults.Transient("submit", "job queue full", ctx.Err())
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (q *redisQueue) Consume(ctx context.Context) (Job, error) {
	for {
		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				if ctx.Err() != nil {
					return Job{}, ctx.Err()
				}
				continue
			}
			if ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			q.log.Warn("BRPop failed, retrying", "error", err)
			select {
			case <-ctx.Done():
				return Job{}, ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		// BRPOP returns [key, value].
		if len(res) != 2 {
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			q.log.Warn("Dropping undecodable job payload", "error", err)
			continue
		}
		return job, nil
	}
}

func (q *redisQueue) Depth(ctx context.Context) (int, error) {
	depth, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, faults.Transient("depth", "redis llen failed", err)
	}
	return int(depth), nil
}
