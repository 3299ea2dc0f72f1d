// Package queue implements the Redis side of the delayed job scheduler:
// a sorted set holds jobs that are not due yet, a list holds ready jobs.
// Postgres remains authoritative for job state; Redis only carries IDs.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func delayKey(queue string) string { return "delay:" + queue }
func readyKey(queue string) string { return "queue:" + queue }

// RedisQ moves job IDs between the delay set and the ready list.
type RedisQ struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *RedisQ {
	return &RedisQ{rdb: rdb}
}

// Enqueue places a job ID on the delay set when runAt is in the future,
// otherwise directly on the ready list.
func (q *RedisQ) Enqueue(ctx context.Context, queue string, jobID string, runAt time.Time) error {
	if time.Until(runAt) > 0 {
		return q.rdb.ZAdd(ctx, delayKey(queue), redis.Z{
			Score:  float64(runAt.Unix()),
			Member: jobID,
		}).Err()
	}
	return q.rdb.LPush(ctx, readyKey(queue), jobID).Err()
}

// Dequeue blocks up to the given duration for a ready job ID. Returns an
// empty string when the wait times out.
func (q *RedisQ) Dequeue(ctx context.Context, queue string, block time.Duration) (string, error) {
	res, err := q.rdb.BRPop(ctx, block, readyKey(queue)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	if len(res) == 2 {
		return res[1], nil
	}
	return "", nil
}

// Remove deletes a job ID from both structures. Used when a job is
// cancelled before it runs.
func (q *RedisQ) Remove(ctx context.Context, queue string, jobID string) error {
	pipe := q.rdb.TxPipeline()
	pipe.ZRem(ctx, delayKey(queue), jobID)
	pipe.LRem(ctx, readyKey(queue), 0, jobID)
	_, err := pipe.Exec(ctx)
	return err
}

// MoveDue shifts up to batch jobs whose score has passed from the delay
// set onto the ready list.
func (q *RedisQ) MoveDue(ctx context.Context, queue string, now int64, batch int64) (int, error) {
	ids, err := q.rdb.ZRangeByScore(ctx, delayKey(queue), &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmt.Sprintf("%d", now),
		Offset: 0,
		Count:  batch,
	}).Result()
	if err != nil || len(ids) == 0 {
		return 0, err
	}

	pipe := q.rdb.TxPipeline()
	for _, id := range ids {
		pipe.LPush(ctx, readyKey(queue), id)
		pipe.ZRem(ctx, delayKey(queue), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Push puts job IDs straight on the ready list, bypassing the delay set.
// The mover uses it to reconcile jobs the database says are due.
func (q *RedisQ) Push(ctx context.Context, queue string, jobIDs ...string) error {
	if len(jobIDs) == 0 {
		return nil
	}
	pipe := q.rdb.TxPipeline()
	for _, id := range jobIDs {
		pipe.LPush(ctx, readyKey(queue), id)
		pipe.ZRem(ctx, delayKey(queue), id)
	}
	_, err := pipe.Exec(ctx)
	return err
}
