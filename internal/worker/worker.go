// Package worker provides the background processor that claims export jobs
// from the queue and runs them.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/nadmax/fieldops/internal/metrics"
	"github.com/nadmax/fieldops/internal/queue"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPollInterval = time.Second
	DefaultRetryDelay   = 10 * time.Second
)

// JobHandler runs one job. It may set job.OutputPath.
type JobHandler func(ctx context.Context, job *queue.Job) error

type Worker struct {
	id           string
	queue        *queue.Queue
	handler      JobHandler
	pollInterval time.Duration
	retryDelay   time.Duration
}

func NewWorker(id string, q *queue.Queue, handler JobHandler) *Worker {
	return &Worker{
		id:           id,
		queue:        q,
		handler:      handler,
		pollInterval: DefaultPollInterval,
		retryDelay:   DefaultRetryDelay,
	}
}

func (w *Worker) SetPollInterval(d time.Duration) {
	w.pollInterval = d
}

// SetRetryDelay sets the backoff step; attempt n waits n times this delay.
func (w *Worker) SetRetryDelay(d time.Duration) {
	w.retryDelay = d
}

// Start polls until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	log.Info().Str("worker_id", w.id).Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("worker_id", w.id).Msg("Worker stopped")
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Str("worker_id", w.id).Msg("Failed to dequeue export job")
		}
		if err != nil || job == nil {
			select {
			case <-ctx.Done():
			case <-time.After(w.pollInterval):
			}
			continue
		}

		w.processJob(ctx, job)
	}
}

func (w *Worker) processJob(ctx context.Context, job *queue.Job) {
	logger := log.With().
		Str("worker_id", w.id).
		Str("job_id", job.ID).
		Str("period", job.Period.String()).
		Logger()
	logger.Info().Int("attempt", job.RetryCount+1).Msg("Processing export job")

	startedAt := time.Now()
	job.Status = queue.StatusRunning
	job.StartedAt = &startedAt
	job.Error = ""
	if err := w.queue.UpdateJob(ctx, job); err != nil {
		logger.Warn().Err(err).Msg("Failed to mark job running")
	}
	metrics.RecordExportJob(string(queue.StatusRunning))

	err := w.run(ctx, job)
	duration := time.Since(startedAt)

	// Bookkeeping must land even when the worker is shutting down.
	ctx = context.WithoutCancel(ctx)

	if err == nil {
		completedAt := time.Now()
		job.Status = queue.StatusCompleted
		job.CompletedAt = &completedAt
		if err := w.queue.UpdateJob(ctx, job); err != nil {
			logger.Warn().Err(err).Msg("Failed to update completed job")
		}
		metrics.RecordExportJobFinished(string(queue.StatusCompleted), duration)
		logger.Info().Dur("duration", duration).Str("output", job.OutputPath).Msg("Export job completed")
		return
	}

	if errors.Is(err, context.Canceled) {
		w.requeueInterrupted(ctx, job, logger)
		return
	}

	job.RetryCount++
	job.Error = err.Error()
	if job.RetryCount < job.MaxRetries {
		job.Status = queue.StatusPending
		job.ScheduledAt = time.Now().Add(time.Duration(job.RetryCount) * w.retryDelay)
		if qerr := w.queue.Enqueue(ctx, job); qerr != nil {
			logger.Error().Err(qerr).Msg("Failed to re-enqueue job")
			return
		}
		metrics.RecordExportJob(string(queue.StatusPending))
		logger.Warn().Err(err).Int("retry", job.RetryCount).Int("max_retries", job.MaxRetries).Msg("Export job failed, will retry")
		return
	}

	completedAt := time.Now()
	job.Status = queue.StatusFailed
	job.CompletedAt = &completedAt
	if err := w.queue.UpdateJob(ctx, job); err != nil {
		logger.Warn().Err(err).Msg("Failed to update failed job")
	}
	metrics.RecordExportJobFinished(string(queue.StatusFailed), duration)
	logger.Error().Err(err).Msg("Export job failed permanently")
}

// requeueInterrupted puts a job cut short by shutdown back on the queue
// without counting the attempt.
func (w *Worker) requeueInterrupted(ctx context.Context, job *queue.Job, logger zerolog.Logger) {
	job.Status = queue.StatusPending
	job.StartedAt = nil
	job.Error = ""
	job.ScheduledAt = time.Now()
	if err := w.queue.Enqueue(ctx, job); err != nil {
		logger.Error().Err(err).Msg("Failed to re-enqueue interrupted job")
		return
	}
	metrics.RecordExportJob(string(queue.StatusPending))
	logger.Info().Msg("Export job interrupted by shutdown, re-queued")
}

// run isolates handler panics so one bad job does not stop the worker.
func (w *Worker) run(ctx context.Context, job *queue.Job) (err error) {
	if w.handler == nil {
		return errors.New("no export handler registered")
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("job_id", job.ID).Msg("Export handler panicked")
			err = errors.New("export handler panicked")
		}
	}()

	return w.handler(ctx, job)
}
