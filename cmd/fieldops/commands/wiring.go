package commands

import (
	"context"

	"github.com/nadmax/fieldops/internal/cache"
	"github.com/nadmax/fieldops/internal/config"
	"github.com/nadmax/fieldops/internal/export"
	"github.com/nadmax/fieldops/internal/queue"
	"github.com/nadmax/fieldops/internal/repository/postgres"
	"github.com/nadmax/fieldops/internal/service"
	"github.com/nadmax/fieldops/internal/stats"
	"github.com/rs/zerolog/log"
)

// app holds the components shared by every command.
type app struct {
	repo     *postgres.Repository
	queue    *queue.Queue
	reports  *service.ReportService
	accounts *service.AccountService
	exporter *export.Exporter
}

// newApp connects to Postgres and, when configured, Redis. Without Redis
// reports are not cached and export jobs are unavailable.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.RequirePostgres(); err != nil {
		return nil, err
	}

	repo, err := postgres.NewRepository(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	a := &app{repo: repo}

	var snapshotCache service.SnapshotCache
	if cfg.RedisAddr != "" {
		q, err := queue.NewQueue(ctx, cfg.RedisAddr)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, running without cache and export jobs")
		} else {
			a.queue = q
			snapshotCache = cache.New(q.Client(), cfg.CacheTTL)
			log.Info().Str("addr", cfg.RedisAddr).Msg("Connected to Redis")
		}
	}

	aggregator := stats.NewAggregator(cfg.Timezone, cfg.Precision)
	a.reports = service.NewReportService(repo, snapshotCache, aggregator)
	a.accounts = service.NewAccountService(repo, a.reports)
	a.exporter = export.NewExporter(a.reports, export.NewEncoder(cfg.CSVDelimiter, cfg.CSVBOM))

	return a, nil
}

func (a *app) Close() {
	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis connection")
		}
	}
	if err := a.repo.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close Postgres repository")
	}
}
