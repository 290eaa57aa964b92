package stats

import (
	"time"

	"github.com/nadmax/fieldops/internal/period"
	"github.com/nadmax/fieldops/internal/task"
)

// Snapshot is the result of one aggregation call. JSON names are the wire
// contract of the reports endpoint.
type Snapshot struct {
	Period         period.Period    `json:"period"`
	WorkerID       *int64           `json:"worker_id,omitempty"`
	GeneratedAt    time.Time        `json:"generated_at"`
	Summary        Summary          `json:"summary"`
	ByStatus       []StatusBucket   `json:"by_status"`
	ByPriority     []PriorityBucket `json:"by_priority"`
	ByDay          []DayBucket      `json:"by_day"`
	ByWorker       []WorkerStat     `json:"by_worker"`
	CompletionTime *CompletionTime  `json:"completion_time"`
}

type Summary struct {
	TotalTasks     int     `json:"total_tasks"`
	CompletedTasks int     `json:"completed_tasks"`
	CompletionRate float64 `json:"completion_rate"`
	AvgTasksPerDay float64 `json:"avg_tasks_per_day"`
	PeriodDays     int     `json:"period_days"`
}

type StatusBucket struct {
	Key   task.Status `json:"status"`
	Label string      `json:"label"`
	Count int         `json:"count"`
}

type PriorityBucket struct {
	Key   task.Priority `json:"priority"`
	Label string        `json:"label"`
	Count int           `json:"count"`
}

type DayBucket struct {
	Date      string `json:"date"`
	Created   int    `json:"created"`
	Completed int    `json:"completed"`
}

type WorkerStat struct {
	WorkerID   int64  `json:"user_id"`
	WorkerName string `json:"user_name"`
	Total      int    `json:"total"`
	NewTasks   int    `json:"new_tasks"`
	InProgress int    `json:"in_progress"`
	Completed  int    `json:"completed"`
}

type CompletionTime struct {
	AvgHours       float64 `json:"avg_hours"`
	MinHours       float64 `json:"min_hours"`
	MaxHours       float64 `json:"max_hours"`
	TotalCompleted int     `json:"total_completed"`
}

// UserStats is the profile-page variant computed for a single assignee.
type UserStats struct {
	TotalTasks         int      `json:"total_tasks"`
	CompletedTasks     int      `json:"completed_tasks"`
	InProgressTasks    int      `json:"in_progress_tasks"`
	CompletionRate     float64  `json:"completion_rate"`
	AvgCompletionHours *float64 `json:"avg_completion_hours"`
	TasksThisWeek      int      `json:"tasks_this_week"`
	TasksThisMonth     int      `json:"tasks_this_month"`
	StreakDays         int      `json:"streak_days"`
}
