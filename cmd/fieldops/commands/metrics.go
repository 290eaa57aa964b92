package commands

import (
	"context"
	"time"

	"github.com/nadmax/fieldops/internal/dashboard"
	"github.com/nadmax/fieldops/internal/metrics"
	"github.com/nadmax/fieldops/internal/queue"
	"github.com/nadmax/fieldops/internal/repository"
	"github.com/rs/zerolog/log"
)

func startMetricsCollector(ctx context.Context, q *queue.Queue, repo repository.TaskRepository, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		updateMetrics(ctx, q, repo)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func updateMetrics(ctx context.Context, q *queue.Queue, repo repository.TaskRepository) {
	workers, err := repo.ListWorkers(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list workers for metrics")
	} else {
		metrics.UpdateActiveWorkers(len(workers))
	}

	if q == nil {
		return
	}

	jobs, err := q.GetAllJobs(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to get export jobs for metrics")
		return
	}
	metrics.UpdateExportJobGauges(dashboard.ComputeStats(jobs, time.Now()).ByStatus())

	depth, err := q.Len(ctx)
	if err == nil {
		metrics.UpdateExportQueueDepth(int(depth))
	}
}
