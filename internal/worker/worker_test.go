package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nadmax/fieldops/internal/period"
	"github.com/nadmax/fieldops/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestWorker(t *testing.T, handler JobHandler) (*Worker, *queue.Queue, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	q, err := queue.NewQueue(context.Background(), mr.Addr())
	require.NoError(t, err)

	w := NewWorker("test-worker", q, handler)

	return w, q, mr
}

func TestNewWorker(t *testing.T) {
	w, q, mr := setupTestWorker(t, nil)
	defer mr.Close()
	defer func() { _ = q.Close() }()

	assert.NotNil(t, w)
	assert.Equal(t, "test-worker", w.id)
	assert.Equal(t, DefaultPollInterval, w.pollInterval)
	assert.Equal(t, DefaultRetryDelay, w.retryDelay)
}

func TestProcessJob_Success(t *testing.T) {
	w, q, mr := setupTestWorker(t, func(_ context.Context, job *queue.Job) error {
		job.OutputPath = "/exports/report_month_20260513.csv"
		return nil
	})
	defer mr.Close()
	defer func() { _ = q.Close() }()
	ctx := context.Background()

	job := queue.NewJob(period.Month, nil, "")
	require.NoError(t, q.Enqueue(ctx, job))

	w.processJob(ctx, job)

	updated, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusCompleted, updated.Status)
	assert.Equal(t, "/exports/report_month_20260513.csv", updated.OutputPath)
	assert.NotNil(t, updated.StartedAt)
	assert.NotNil(t, updated.CompletedAt)
	assert.Empty(t, updated.Error)
}

func TestProcessJob_FailureIsRetriedWithBackoff(t *testing.T) {
	w, q, mr := setupTestWorker(t, func(context.Context, *queue.Job) error {
		return errors.New("database unavailable")
	})
	defer mr.Close()
	defer func() { _ = q.Close() }()
	ctx := context.Background()

	job := queue.NewJob(period.Week, nil, "")
	require.NoError(t, q.Enqueue(ctx, job))
	claimed, err := q.Dequeue(ctx)
	require.NoError(t, err)

	before := time.Now()
	w.processJob(ctx, claimed)

	updated, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, updated.Status)
	assert.Equal(t, 1, updated.RetryCount)
	assert.Contains(t, updated.Error, "database unavailable")
	assert.True(t, updated.ScheduledAt.After(before.Add(DefaultRetryDelay-time.Second)))

	depth, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)

	next, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, next, "retry must wait for its backoff")
}

func TestProcessJob_MaxRetriesExceeded(t *testing.T) {
	w, q, mr := setupTestWorker(t, func(context.Context, *queue.Job) error {
		return errors.New("disk full")
	})
	defer mr.Close()
	defer func() { _ = q.Close() }()
	ctx := context.Background()

	job := queue.NewJob(period.Month, nil, "")
	job.MaxRetries = 2
	job.RetryCount = 1
	require.NoError(t, q.Enqueue(ctx, job))
	_, err := q.Dequeue(ctx)
	require.NoError(t, err)

	w.processJob(ctx, job)

	updated, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusFailed, updated.Status)
	assert.Equal(t, 2, updated.RetryCount)
	assert.Contains(t, updated.Error, "disk full")
	assert.NotNil(t, updated.CompletedAt)

	depth, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestProcessJob_NoHandler(t *testing.T) {
	w, q, mr := setupTestWorker(t, nil)
	defer mr.Close()
	defer func() { _ = q.Close() }()
	ctx := context.Background()

	job := queue.NewJob(period.Today, nil, "")
	job.MaxRetries = 1
	require.NoError(t, q.Enqueue(ctx, job))

	w.processJob(ctx, job)

	updated, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusFailed, updated.Status)
	assert.Contains(t, updated.Error, "no export handler")
}

func TestProcessJob_HandlerPanic(t *testing.T) {
	w, q, mr := setupTestWorker(t, func(context.Context, *queue.Job) error {
		panic("boom")
	})
	defer mr.Close()
	defer func() { _ = q.Close() }()
	ctx := context.Background()

	job := queue.NewJob(period.Today, nil, "")
	job.MaxRetries = 1
	require.NoError(t, q.Enqueue(ctx, job))

	assert.NotPanics(t, func() { w.processJob(ctx, job) })

	updated, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusFailed, updated.Status)
	assert.Contains(t, updated.Error, "panicked")
}

func TestWorkerStartStop(t *testing.T) {
	processed := make(chan string, 1)
	w, q, mr := setupTestWorker(t, func(_ context.Context, job *queue.Job) error {
		processed <- job.ID
		return nil
	})
	defer mr.Close()
	defer func() { _ = q.Close() }()

	w.SetPollInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	job := queue.NewJob(period.Month, nil, "")
	require.NoError(t, q.Enqueue(context.Background(), job))

	select {
	case id := <-processed:
		assert.Equal(t, job.ID, id)
	case <-time.After(5 * time.Second):
		t.Fatal("Job was not processed")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Worker did not stop")
	}
}

func TestWorkerProcessMultipleJobs(t *testing.T) {
	var count atomic.Int32
	w, q, mr := setupTestWorker(t, func(context.Context, *queue.Job) error {
		count.Add(1)
		return nil
	})
	defer mr.Close()
	defer func() { _ = q.Close() }()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(ctx, queue.NewJob(period.Week, nil, "")))
	}

	for i := 0; i < 5; i++ {
		job, _ := q.Dequeue(ctx)
		if job != nil {
			w.processJob(ctx, job)
		}
	}

	assert.Equal(t, int32(5), count.Load())
}

func TestWorkerShutdownRequeuesRunningJob(t *testing.T) {
	started := make(chan struct{})
	w, q, mr := setupTestWorker(t, func(ctx context.Context, _ *queue.Job) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	defer mr.Close()
	defer func() { _ = q.Close() }()

	w.SetPollInterval(10 * time.Millisecond)

	job := queue.NewJob(period.Week, nil, "")
	require.NoError(t, q.Enqueue(context.Background(), job))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("Job was not started")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Worker did not stop")
	}

	stored, err := q.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, stored.Status)
	assert.Equal(t, 0, stored.RetryCount)
	assert.Empty(t, stored.Error)

	n, err := q.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
