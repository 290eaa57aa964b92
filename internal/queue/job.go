package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nadmax/fieldops/internal/period"
)

type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// JobStatuses lists every status in lifecycle order.
var JobStatuses = []JobStatus{StatusPending, StatusRunning, StatusCompleted, StatusFailed}

const DefaultMaxRetries = 3

// Job is an asynchronous CSV export request.
type Job struct {
	ID          string        `json:"id"`
	Period      period.Period `json:"period"`
	WorkerID    *int64        `json:"worker_id,omitempty"`
	Email       string        `json:"email,omitempty"`
	RequestedBy int64         `json:"requested_by,omitempty"`
	Status      JobStatus     `json:"status"`
	RetryCount  int           `json:"retry_count"`
	MaxRetries  int           `json:"max_retries"`
	CreatedAt   time.Time     `json:"created_at"`
	ScheduledAt time.Time     `json:"scheduled_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	OutputPath  string        `json:"output_path,omitempty"`
	Error       string        `json:"error,omitempty"`
}

func NewJob(p period.Period, workerID *int64, email string) *Job {
	now := time.Now()
	return &Job{
		ID:          uuid.New().String(),
		Period:      p,
		WorkerID:    workerID,
		Email:       email,
		Status:      StatusPending,
		MaxRetries:  DefaultMaxRetries,
		CreatedAt:   now,
		ScheduledAt: now,
	}
}

// Finished reports whether the job reached a terminal status.
func (j *Job) Finished() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

func (j *Job) ToJSON() (string, error) {
	data, err := json.Marshal(j)
	return string(data), err
}

func JobFromJSON(data string) (*Job, error) {
	var job Job
	err := json.Unmarshal([]byte(data), &job)
	return &job, err
}
