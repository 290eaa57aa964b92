package commands

import (
	"fmt"

	"github.com/nadmax/fieldops/internal/export"
	"github.com/nadmax/fieldops/internal/metrics"
	"github.com/nadmax/fieldops/internal/period"
	"github.com/nadmax/fieldops/internal/worker/handlers"
	"github.com/spf13/cobra"
)

var (
	exportPeriod string
	exportWorker int64
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a CSV report to disk",
	Example: `  fieldops export --period week
  fieldops export --period month --worker 12 --output /tmp/reports`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := period.Parse(exportPeriod)
		if err != nil {
			return err
		}

		workerID, err := workerFilter(cmd.Flags().Changed("worker"), exportWorker)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		artifact, err := a.exporter.Export(cmd.Context(), export.Request{Period: p, WorkerID: workerID}, nil)
		if err != nil {
			metrics.RecordExport(p.String(), metrics.ResultFailed)
			return err
		}
		metrics.RecordExport(p.String(), metrics.ResultSuccess)

		dir := exportOutput
		if dir == "" {
			dir = cfg.ExportDir
		}
		path, err := handlers.SaveArtifact(dir, artifact)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

// workerFilter returns nil when --worker was not given. An explicit id must
// be positive.
func workerFilter(set bool, id int64) (*int64, error) {
	if !set {
		return nil, nil
	}
	if id <= 0 {
		return nil, fmt.Errorf("--worker must be a positive worker id, got %d", id)
	}
	return &id, nil
}

func init() {
	exportCmd.Flags().StringVarP(&exportPeriod, "period", "p", string(period.Month), "report period: today, yesterday, week, month, quarter, year, all")
	exportCmd.Flags().Int64VarP(&exportWorker, "worker", "w", 0, "restrict the report to one worker id")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output directory (default EXPORT_DIR)")
}
