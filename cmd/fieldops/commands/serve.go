package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nadmax/fieldops/internal/api"
	"github.com/nadmax/fieldops/internal/middleware"
	"github.com/nadmax/fieldops/internal/report"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		opts := api.Options{
			Reports:   a.reports,
			Accounts:  a.accounts,
			Exporter:  a.exporter,
			Formatter: report.NewFormatter(cfg.DayChartWindow),
		}
		if a.queue != nil {
			opts.Jobs = a.queue
		}

		server := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           middleware.MetricsMiddleware(api.NewAPI(opts)),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Info().Str("addr", server.Addr).Msg("Server starting")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			log.Info().Msg("Shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
		g.Go(func() error {
			startMetricsCollector(gctx, a.queue, a.repo, cfg.MetricsInterval)
			return nil
		})

		return g.Wait()
	},
}
