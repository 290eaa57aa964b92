package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nadmax/fieldops/internal/period"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	q, err := NewQueue(context.Background(), mr.Addr())
	require.NoError(t, err)

	return q, mr
}

func TestNewQueue(t *testing.T) {
	q, mr := setupTestQueue(t)
	defer mr.Close()
	defer func() { _ = q.Close() }()

	assert.NotNil(t, q)
	assert.NotNil(t, q.Client())
}

func TestNewQueue_InvalidAddress(t *testing.T) {
	_, err := NewQueue(context.Background(), "invalid:99999")
	assert.Error(t, err)
}

func TestEnqueueAndDequeue(t *testing.T) {
	q, mr := setupTestQueue(t)
	defer mr.Close()
	defer func() { _ = q.Close() }()
	ctx := context.Background()

	worker := int64(5)
	original := NewJob(period.Week, &worker, "boss@example.com")
	require.NoError(t, q.Enqueue(ctx, original))

	depth, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)

	dequeued, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, dequeued)

	assert.Equal(t, original.ID, dequeued.ID)
	assert.Equal(t, period.Week, dequeued.Period)
	assert.Equal(t, worker, *dequeued.WorkerID)
	assert.Equal(t, "boss@example.com", dequeued.Email)
	assert.Equal(t, StatusPending, dequeued.Status)

	depth, err = q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestDequeue_EmptyQueue(t *testing.T) {
	q, mr := setupTestQueue(t)
	defer mr.Close()
	defer func() { _ = q.Close() }()

	job, err := q.Dequeue(context.Background())

	assert.NoError(t, err)
	assert.Nil(t, job)
}

func TestDequeue_OldestFirst(t *testing.T) {
	q, mr := setupTestQueue(t)
	defer mr.Close()
	defer func() { _ = q.Close() }()
	ctx := context.Background()

	now := time.Now()
	newer := NewJob(period.Today, nil, "")
	newer.ScheduledAt = now.Add(-time.Second)
	older := NewJob(period.Month, nil, "")
	older.ScheduledAt = now.Add(-time.Minute)

	require.NoError(t, q.Enqueue(ctx, newer))
	require.NoError(t, q.Enqueue(ctx, older))

	first, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, older.ID, first.ID)

	second, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, second.ID)
}

func TestDequeue_SkipsFutureJobs(t *testing.T) {
	q, mr := setupTestQueue(t)
	defer mr.Close()
	defer func() { _ = q.Close() }()
	ctx := context.Background()

	future := NewJob(period.Year, nil, "")
	future.ScheduledAt = time.Now().Add(10 * time.Second)
	require.NoError(t, q.Enqueue(ctx, future))

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, job)

	depth, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)
}

func TestDequeue_ConcurrentWorkersClaimOnce(t *testing.T) {
	q, mr := setupTestQueue(t)
	defer mr.Close()
	defer func() { _ = q.Close() }()
	ctx := context.Background()

	const jobs = 20
	for i := 0; i < jobs; i++ {
		require.NoError(t, q.Enqueue(ctx, NewJob(period.Today, nil, "")))
	}

	var (
		mu      sync.Mutex
		claimed = make(map[string]int)
		wg      sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := q.Dequeue(ctx)
				if err != nil || job == nil {
					return
				}
				mu.Lock()
				claimed[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, jobs)
	for id, n := range claimed {
		assert.Equal(t, 1, n, "job %s claimed more than once", id)
	}
}

func TestUpdateJob(t *testing.T) {
	q, mr := setupTestQueue(t)
	defer mr.Close()
	defer func() { _ = q.Close() }()
	ctx := context.Background()

	job := NewJob(period.Month, nil, "")
	require.NoError(t, q.Enqueue(ctx, job))

	job.Status = StatusCompleted
	job.OutputPath = "/tmp/report_month_20260513.csv"
	require.NoError(t, q.UpdateJob(ctx, job))

	retrieved, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, retrieved.Status)
	assert.Equal(t, job.OutputPath, retrieved.OutputPath)
}

func TestGetJob_NotFound(t *testing.T) {
	q, mr := setupTestQueue(t)
	defer mr.Close()
	defer func() { _ = q.Close() }()

	_, err := q.GetJob(context.Background(), "non-existent-id")

	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestGetAllJobs(t *testing.T) {
	q, mr := setupTestQueue(t)
	defer mr.Close()
	defer func() { _ = q.Close() }()
	ctx := context.Background()

	base := time.Date(2026, 5, 13, 12, 0, 0, 0, time.UTC)
	for i, p := range []period.Period{period.Today, period.Week, period.Month} {
		job := NewJob(p, nil, "")
		job.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, q.Enqueue(ctx, job))
	}
	mr.HSet(jobsKey, "broken", "{not json")

	jobs, err := q.GetAllJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, period.Month, jobs[0].Period)
	assert.Equal(t, period.Today, jobs[2].Period)
}

func TestGetAllJobs_Empty(t *testing.T) {
	q, mr := setupTestQueue(t)
	defer mr.Close()
	defer func() { _ = q.Close() }()

	jobs, err := q.GetAllJobs(context.Background())

	require.NoError(t, err)
	assert.Len(t, jobs, 0)
}

func TestClose(t *testing.T) {
	q, mr := setupTestQueue(t)
	defer mr.Close()

	err := q.Close()
	assert.NoError(t, err)
}
