// Package queue stores export jobs in Redis: job bodies in a hash, pending
// job ids in a sorted set scored by their scheduled time.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	jobsKey  = "export_jobs"
	queueKey = "export_queue"
)

var ErrJobNotFound = errors.New("export job not found")

type Queue struct {
	client *redis.Client
}

func NewQueue(ctx context.Context, redisAddr string) (*Queue, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Queue{client: client}, nil
}

// Client exposes the connection so the snapshot cache can share it.
func (q *Queue) Client() *redis.Client {
	return q.client
}

func (q *Queue) Enqueue(ctx context.Context, job *Job) error {
	jobJSON, err := job.ToJSON()
	if err != nil {
		return err
	}

	if err := q.client.HSet(ctx, jobsKey, job.ID, jobJSON).Err(); err != nil {
		return err
	}

	return q.client.ZAdd(ctx, queueKey, redis.Z{
		Score:  float64(job.ScheduledAt.UnixMilli()),
		Member: job.ID,
	}).Err()
}

// Dequeue claims the oldest due job. It returns (nil, nil) when nothing is
// due. Concurrent workers never receive the same job: only the caller whose
// ZREM removes the id owns it.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	maxScore := strconv.FormatInt(time.Now().UnixMilli(), 10)

	for {
		ids, err := q.client.ZRangeByScore(ctx, queueKey, &redis.ZRangeBy{
			Min:   "-inf",
			Max:   maxScore,
			Count: 1,
		}).Result()
		if err != nil || len(ids) == 0 {
			return nil, err
		}

		removed, err := q.client.ZRem(ctx, queueKey, ids[0]).Result()
		if err != nil {
			return nil, err
		}
		if removed == 0 {
			continue
		}

		job, err := q.GetJob(ctx, ids[0])
		if errors.Is(err, ErrJobNotFound) {
			continue
		}
		return job, err
	}
}

func (q *Queue) UpdateJob(ctx context.Context, job *Job) error {
	jobJSON, err := job.ToJSON()
	if err != nil {
		return err
	}
	return q.client.HSet(ctx, jobsKey, job.ID, jobJSON).Err()
}

func (q *Queue) GetJob(ctx context.Context, jobID string) (*Job, error) {
	jobJSON, err := q.client.HGet(ctx, jobsKey, jobID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return JobFromJSON(jobJSON)
}

// GetAllJobs returns every stored job, newest first.
func (q *Queue) GetAllJobs(ctx context.Context) ([]*Job, error) {
	jobMap, err := q.client.HGetAll(ctx, jobsKey).Result()
	if err != nil {
		return nil, err
	}

	jobs := make([]*Job, 0, len(jobMap))
	for _, jobJSON := range jobMap {
		job, err := JobFromJSON(jobJSON)
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})

	return jobs, nil
}

// Len is the number of jobs waiting to be claimed.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, queueKey).Result()
}

func (q *Queue) Close() error {
	return q.client.Close()
}
