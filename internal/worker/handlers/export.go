// Package handlers provides the job handlers run by the worker.
package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nadmax/fieldops/internal/export"
	"github.com/nadmax/fieldops/internal/metrics"
	"github.com/nadmax/fieldops/internal/queue"
	"github.com/rs/zerolog/log"
)

type ExportHandler struct {
	exporter  *export.Exporter
	outputDir string
	mailer    Mailer
}

// NewExportHandler writes artifacts under outputDir. mailer may be nil,
// in which case jobs with an e-mail address are still written but not sent.
func NewExportHandler(exporter *export.Exporter, outputDir string, mailer Mailer) *ExportHandler {
	return &ExportHandler{
		exporter:  exporter,
		outputDir: outputDir,
		mailer:    mailer,
	}
}

// Handle matches worker.JobHandler.
func (h *ExportHandler) Handle(ctx context.Context, job *queue.Job) error {
	artifact, err := h.exporter.Export(ctx, export.Request{Period: job.Period, WorkerID: job.WorkerID}, nil)
	if err != nil {
		metrics.RecordExport(job.Period.String(), metrics.ResultFailed)
		return err
	}
	metrics.RecordExport(job.Period.String(), metrics.ResultSuccess)

	path, err := SaveArtifact(filepath.Join(h.outputDir, job.ID), artifact)
	if err != nil {
		return fmt.Errorf("failed to save export: %w", err)
	}
	job.OutputPath = path

	log.Info().
		Str("job_id", job.ID).
		Str("path", path).
		Int("bytes", len(artifact.Data)).
		Msg("Export written")

	if job.Email == "" {
		return nil
	}
	if h.mailer == nil {
		log.Warn().Str("job_id", job.ID).Msg("Mail delivery not configured, skipping e-mail")
		return nil
	}

	if err := h.mailer.SendReport(ctx, job.Email, artifact); err != nil {
		return fmt.Errorf("failed to e-mail export: %w", err)
	}
	return nil
}

// SaveArtifact writes the artifact into dir through a temporary file and a
// rename, so readers never observe a partial file.
func SaveArtifact(dir string, artifact *export.Artifact) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(dir, ".export-*.tmp")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	defer func() {
		if _, statErr := os.Stat(tmpName); statErr == nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(artifact.Data); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	fullPath := filepath.Join(dir, artifact.Filename)
	if err := os.Rename(tmpName, fullPath); err != nil {
		return "", err
	}
	return fullPath, nil
}
