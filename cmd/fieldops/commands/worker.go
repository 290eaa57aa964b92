package commands

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/nadmax/fieldops/internal/worker"
	"github.com/nadmax/fieldops/internal/worker/handlers"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process asynchronous export jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.queue == nil {
			return errors.New("the worker needs Redis: set REDIS_ADDR")
		}

		var mailer handlers.Mailer
		if cfg.MailEnabled() {
			mailer = handlers.NewSendGridMailer(cfg.SendGridAPIKey, cfg.FromName, cfg.FromAddress)
		}
		handler := handlers.NewExportHandler(a.exporter, cfg.ExportDir, mailer)

		workerID := cfg.WorkerID
		if workerID == "" {
			workerID = fmt.Sprintf("worker-%d", time.Now().Unix())
		}

		w := worker.NewWorker(workerID, a.queue, handler.Handle)
		w.SetPollInterval(cfg.PollInterval)

		log.Info().
			Str("worker_id", workerID).
			Str("export_dir", cfg.ExportDir).
			Bool("mail", mailer != nil).
			Msg("Export worker ready")

		w.Start(ctx)
		log.Info().Msg("Shutting down worker...")
		return nil
	},
}
