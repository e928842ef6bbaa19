// Package jobxredis backs jobx with Redis: a list per ready queue, a sorted
// set per queue for delayed and retrying jobs, and one key per job record.
package jobxredis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vantak/gatehouse/pkg/jobx"
)

// RedisQueue implements jobx.Queue over a Redis client.
type RedisQueue struct {
	rdb *redis.Client
}

// NewRedisQueue creates a Redis-backed queue.
func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

func readyKey(queue string) string     { return fmt.Sprintf("jobx:queue:%s", queue) }
func scheduledKey(queue string) string { return fmt.Sprintf("jobx:scheduled:%s", queue) }
func jobKey(id string) string          { return fmt.Sprintf("jobx:job:%s", id) }

func newJobInfo(job jobx.Job) jobx.JobInfo {
	now := time.Now().UTC()
	return jobx.JobInfo{
		ID:         uuid.New().String(),
		Type:       job.Type,
		Queue:      job.Queue,
		Payload:    job.Payload,
		Status:     jobx.StatusPending,
		MaxRetries: job.MaxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job jobx.Job) (string, error) {
	info := newJobInfo(job)
	data, err := json.Marshal(info)
	if err != nil {
		return "", jobx.ErrRegistry.NewWithCause(jobx.CodeBadJobData, err)
	}

	pipe := q.rdb.Pipeline()
	pipe.Set(ctx, jobKey(info.ID), data, 0)
	pipe.LPush(ctx, readyKey(job.Queue), info.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", jobx.ErrRegistry.NewWithCause(jobx.CodeEnqueueFailed, err).
			WithDetail("queue", job.Queue)
	}
	return info.ID, nil
}

func (q *RedisQueue) EnqueueDelayed(ctx context.Context, job jobx.Job, delay time.Duration) (string, error) {
	info := newJobInfo(job)
	data, err := json.Marshal(info)
	if err != nil {
		return "", jobx.ErrRegistry.NewWithCause(jobx.CodeBadJobData, err)
	}

	score := float64(time.Now().UTC().Add(delay).Unix())

	pipe := q.rdb.Pipeline()
	pipe.Set(ctx, jobKey(info.ID), data, 0)
	pipe.ZAdd(ctx, scheduledKey(job.Queue), redis.Z{Score: score, Member: info.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", jobx.ErrRegistry.NewWithCause(jobx.CodeEnqueueFailed, err).
			WithDetail("queue", job.Queue).
			WithDetail("delay", delay.String())
	}
	return info.ID, nil
}

func (q *RedisQueue) GetJob(ctx context.Context, jobID string) (*jobx.JobInfo, error) {
	data, err := q.rdb.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, jobx.ErrRegistry.New(jobx.CodeJobNotFound).WithDetail("job_id", jobID)
		}
		return nil, jobx.ErrRegistry.NewWithCause(jobx.CodeDequeueFailed, err).WithDetail("job_id", jobID)
	}

	var info jobx.JobInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, jobx.ErrRegistry.NewWithCause(jobx.CodeBadJobData, err).WithDetail("job_id", jobID)
	}
	return &info, nil
}

// Dequeue blocks on the ready queues until a job arrives or the timeout
// expires. A nil job with a nil error means the wait timed out.
func (q *RedisQueue) Dequeue(ctx context.Context, queues []string, timeout time.Duration) (*jobx.JobInfo, error) {
	keys := make([]string, len(queues))
	for i, name := range queues {
		keys[i] = readyKey(name)
	}

	result, err := q.rdb.BRPop(ctx, timeout, keys...).Result()
	if err != nil {
		if err == redis.Nil || ctx.Err() != nil {
			return nil, nil
		}
		return nil, jobx.ErrRegistry.NewWithCause(jobx.CodeDequeueFailed, err)
	}

	info, err := q.GetJob(ctx, result[1])
	if err != nil {
		return nil, err
	}

	info.Status = jobx.StatusActive
	info.Attempts++
	return info, q.save(ctx, info)
}

func (q *RedisQueue) Complete(ctx context.Context, jobID string) error {
	info, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	info.Status = jobx.StatusCompleted
	return q.save(ctx, info)
}

// Fail records the failure and reports whether retry budget remains.
func (q *RedisQueue) Fail(ctx context.Context, jobID string, errMsg string) (bool, error) {
	info, err := q.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}

	retry := info.ShouldRetry()
	if retry {
		info.Status = jobx.StatusRetrying
	} else {
		info.Status = jobx.StatusFailed
	}
	info.Error = errMsg
	return retry, q.save(ctx, info)
}

// Retry schedules a failed job to run again after delay.
func (q *RedisQueue) Retry(ctx context.Context, jobID string, delay time.Duration) error {
	info, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	score := float64(time.Now().UTC().Add(delay).Unix())
	if err := q.rdb.ZAdd(ctx, scheduledKey(info.Queue), redis.Z{Score: score, Member: jobID}).Err(); err != nil {
		return jobx.ErrRegistry.NewWithCause(jobx.CodeUpdateFailed, err).WithDetail("job_id", jobID)
	}
	return nil
}

// PromoteScheduled moves due jobs from the scheduled sets onto the ready
// queues.
func (q *RedisQueue) PromoteScheduled(ctx context.Context, queues []string) error {
	now := fmt.Sprintf("%d", time.Now().UTC().Unix())

	for _, queue := range queues {
		ids, err := q.rdb.ZRangeByScore(ctx, scheduledKey(queue), &redis.ZRangeBy{
			Min: "-inf",
			Max: now,
		}).Result()
		if err != nil {
			return jobx.ErrRegistry.NewWithCause(jobx.CodeUpdateFailed, err).WithDetail("queue", queue)
		}

		for _, id := range ids {
			pipe := q.rdb.Pipeline()
			pipe.ZRem(ctx, scheduledKey(queue), id)
			pipe.LPush(ctx, readyKey(queue), id)
			if _, err := pipe.Exec(ctx); err != nil {
				return jobx.ErrRegistry.NewWithCause(jobx.CodeUpdateFailed, err).
					WithDetail("queue", queue).
					WithDetail("job_id", id)
			}
		}
	}
	return nil
}

func (q *RedisQueue) save(ctx context.Context, info *jobx.JobInfo) error {
	info.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(info)
	if err != nil {
		return jobx.ErrRegistry.NewWithCause(jobx.CodeBadJobData, err).WithDetail("job_id", info.ID)
	}
	if err := q.rdb.Set(ctx, jobKey(info.ID), data, 0).Err(); err != nil {
		return jobx.ErrRegistry.NewWithCause(jobx.CodeUpdateFailed, err).WithDetail("job_id", info.ID)
	}
	return nil
}
