// Package dashboard serves the monitoring view of export jobs.
package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/nadmax/fieldops/internal/httputil"
	"github.com/nadmax/fieldops/internal/queue"
)

const historyWindow = 24 * time.Hour

// JobLister is satisfied by *queue.Queue.
type JobLister interface {
	GetAllJobs(ctx context.Context) ([]*queue.Job, error)
}

type Dashboard struct {
	jobs JobLister
}

type Stats struct {
	TotalJobs       int            `json:"total_jobs"`
	PendingJobs     int            `json:"pending_jobs"`
	RunningJobs     int            `json:"running_jobs"`
	CompletedJobs   int            `json:"completed_jobs"`
	FailedJobs      int            `json:"failed_jobs"`
	JobsByPeriod    map[string]int `json:"jobs_by_period"`
	AverageWaitTime string         `json:"average_wait_time"`
	LastUpdated     time.Time      `json:"last_updated"`
}

type JobHistory struct {
	JobID       string          `json:"job_id"`
	Period      string          `json:"period"`
	WorkerID    *int64          `json:"worker_id,omitempty"`
	Status      queue.JobStatus `json:"status"`
	RetryCount  int             `json:"retry_count"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at"`
	Duration    string          `json:"duration"`
	OutputPath  string          `json:"output_path,omitempty"`
	Error       string          `json:"error,omitempty"`
}

func NewDashboard(jobs JobLister) *Dashboard {
	return &Dashboard{jobs: jobs}
}

// ComputeStats summarizes jobs. The metrics collector reuses it for gauges.
func ComputeStats(jobs []*queue.Job, now time.Time) Stats {
	stats := Stats{
		TotalJobs:    len(jobs),
		JobsByPeriod: make(map[string]int),
		LastUpdated:  now,
	}

	var totalWaitTime time.Duration
	waitCount := 0

	for _, job := range jobs {
		switch job.Status {
		case queue.StatusPending:
			stats.PendingJobs++
		case queue.StatusRunning:
			stats.RunningJobs++
		case queue.StatusCompleted:
			stats.CompletedJobs++
		case queue.StatusFailed:
			stats.FailedJobs++
		}

		stats.JobsByPeriod[job.Period.String()]++

		if job.StartedAt != nil {
			totalWaitTime += job.StartedAt.Sub(job.CreatedAt)
			waitCount++
		}
	}

	if waitCount > 0 {
		avgWait := totalWaitTime / time.Duration(waitCount)
		stats.AverageWaitTime = avgWait.Round(time.Millisecond).String()
	} else {
		stats.AverageWaitTime = "N/A"
	}

	return stats
}

// ByStatus returns the job count for every status, zeros included.
func (s Stats) ByStatus() map[string]int {
	return map[string]int{
		string(queue.StatusPending):   s.PendingJobs,
		string(queue.StatusRunning):   s.RunningJobs,
		string(queue.StatusCompleted): s.CompletedJobs,
		string(queue.StatusFailed):    s.FailedJobs,
	}
}

func (d *Dashboard) GetStats(w http.ResponseWriter, r *http.Request) {
	jobs, err := d.jobs.GetAllJobs(r.Context())
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, ComputeStats(jobs, time.Now()), http.StatusOK)
}

// GetRecentJobs lists jobs that finished within the last 24 hours.
func (d *Dashboard) GetRecentJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := d.jobs.GetAllJobs(r.Context())
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cutoff := time.Now().Add(-historyWindow)
	history := []JobHistory{}

	for _, job := range jobs {
		if job.CompletedAt == nil || job.CompletedAt.Before(cutoff) {
			continue
		}

		var duration string
		if job.StartedAt != nil {
			duration = job.CompletedAt.Sub(*job.StartedAt).Round(time.Millisecond).String()
		}

		history = append(history, JobHistory{
			JobID:       job.ID,
			Period:      job.Period.String(),
			WorkerID:    job.WorkerID,
			Status:      job.Status,
			RetryCount:  job.RetryCount,
			CreatedAt:   job.CreatedAt,
			CompletedAt: job.CompletedAt,
			Duration:    duration,
			OutputPath:  job.OutputPath,
			Error:       job.Error,
		})
	}

	httputil.WriteJSON(w, history, http.StatusOK)
}
