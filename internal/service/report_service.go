// Package service wires the reporting core to its repository and cache.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/nadmax/fieldops/internal/export"
	"github.com/nadmax/fieldops/internal/metrics"
	"github.com/nadmax/fieldops/internal/period"
	"github.com/nadmax/fieldops/internal/repository"
	"github.com/nadmax/fieldops/internal/stats"
	"github.com/nadmax/fieldops/internal/task"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// SnapshotCache is satisfied by *cache.SnapshotCache.
type SnapshotCache interface {
	Get(ctx context.Context, p period.Period, iv period.Interval, workerID *int64) (*stats.Snapshot, error)
	Set(ctx context.Context, iv period.Interval, snap *stats.Snapshot) error
	Invalidate(ctx context.Context) (int, error)
}

type ReportService struct {
	repo       repository.TaskRepository
	cache      SnapshotCache
	aggregator *stats.Aggregator
}

var _ export.SnapshotSource = (*ReportService)(nil)

// NewReportService accepts a nil cache, in which case every call hits the repository.
func NewReportService(repo repository.TaskRepository, cache SnapshotCache, aggregator *stats.Aggregator) *ReportService {
	return &ReportService{
		repo:       repo,
		cache:      cache,
		aggregator: aggregator,
	}
}

func (s *ReportService) Snapshot(ctx context.Context, p period.Period, workerID *int64) (*stats.Snapshot, error) {
	iv, err := s.aggregator.Resolve(p)
	if err != nil {
		return nil, err
	}

	if snap := s.cached(ctx, p, iv, workerID); snap != nil {
		return snap, nil
	}

	start := time.Now()
	filter := repository.TaskFilter{To: iv.End, AssigneeID: workerID}
	if iv.Bounded() {
		from := iv.Start
		filter.From = &from
	}

	var (
		records []task.Record
		names   map[int64]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = s.repo.ListTasks(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		names, err = s.repo.ListWorkers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Str("period", p.String()).Msg("Failed to fetch report data")
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	snap, err := s.aggregator.Aggregate(records, p, workerID, names)
	if err != nil {
		return nil, err
	}
	metrics.RecordReportGenerated(p.String(), len(records), time.Since(start))

	if s.cache != nil {
		if err := s.cache.Set(ctx, iv, snap); err != nil {
			log.Warn().Err(err).Str("period", p.String()).Msg("Failed to cache report snapshot")
		}
	}

	return snap, nil
}

func (s *ReportService) cached(ctx context.Context, p period.Period, iv period.Interval, workerID *int64) *stats.Snapshot {
	if s.cache == nil {
		return nil
	}

	snap, err := s.cache.Get(ctx, p, iv, workerID)
	switch {
	case err != nil:
		metrics.RecordCacheLookup(metrics.CacheError)
		log.Warn().Err(err).Str("period", p.String()).Msg("Snapshot cache unavailable")
		return nil
	case snap == nil:
		metrics.RecordCacheLookup(metrics.CacheMiss)
		return nil
	default:
		metrics.RecordCacheLookup(metrics.CacheHit)
		return snap
	}
}

// UserStats computes the profile statistics over every task assigned to userID.
func (s *ReportService) UserStats(ctx context.Context, userID int64) (*stats.UserStats, error) {
	iv, err := s.aggregator.Resolve(period.All)
	if err != nil {
		return nil, err
	}

	records, err := s.repo.ListTasks(ctx, repository.TaskFilter{To: iv.End, AssigneeID: &userID})
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to fetch user tasks")
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	return s.aggregator.ComputeUserStats(records), nil
}

// InvalidateCache drops cached snapshots. Failures are logged only.
func (s *ReportService) InvalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}

	removed, err := s.cache.Invalidate(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate report cache")
		return
	}
	log.Debug().Int("removed", removed).Msg("Report cache invalidated")
}
