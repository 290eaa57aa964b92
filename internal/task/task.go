// Package task defines the task record model read by the reporting core.
// It contains status and priority definitions, their fixed display order and labels.
package task

import (
	"strconv"
	"strings"
	"time"
)

type (
	Status   string
	Priority string
	Record   struct {
		ID          int64      `json:"id"`
		Status      Status     `json:"status"`
		Priority    Priority   `json:"priority"`
		AssigneeID  *int64     `json:"assigned_user_id,omitempty"`
		CreatedAt   time.Time  `json:"created_at"`
		CompletedAt *time.Time `json:"completed_at,omitempty"`
	}
)

const (
	StatusNew        Status = "NEW"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
	StatusCancelled  Status = "CANCELLED"
)

const (
	PriorityEmergency Priority = "EMERGENCY"
	PriorityUrgent    Priority = "URGENT"
	PriorityCurrent   Priority = "CURRENT"
	PriorityPlanned   Priority = "PLANNED"
)

// Statuses and Priorities are in report order.
var (
	Statuses   = []Status{StatusNew, StatusInProgress, StatusDone, StatusCancelled}
	Priorities = []Priority{PriorityEmergency, PriorityUrgent, PriorityCurrent, PriorityPlanned}
)

var statusLabels = map[Status]string{
	StatusNew:        "Новые",
	StatusInProgress: "В работе",
	StatusDone:       "Выполненные",
	StatusCancelled:  "Отменённые",
}

var priorityLabels = map[Priority]string{
	PriorityEmergency: "Аварийные",
	PriorityUrgent:    "Срочные",
	PriorityCurrent:   "Текущие",
	PriorityPlanned:   "Плановые",
}

func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

func (p Priority) Valid() bool {
	_, ok := priorityLabels[p]
	return ok
}

func (p Priority) Label() string {
	if label, ok := priorityLabels[p]; ok {
		return label
	}
	return string(p)
}

// PriorityFromLevel maps the stored integer level (1 planned .. 4 emergency).
// Unknown levels fall back to CURRENT.
func PriorityFromLevel(level int) Priority {
	switch level {
	case 4:
		return PriorityEmergency
	case 3:
		return PriorityUrgent
	case 1:
		return PriorityPlanned
	default:
		return PriorityCurrent
	}
}

// ParsePriority reads a stored priority. The column holds the integer level
// as text, older rows may hold the enum name.
func ParsePriority(raw string) Priority {
	raw = strings.TrimSpace(raw)
	if level, err := strconv.Atoi(raw); err == nil {
		return PriorityFromLevel(level)
	}
	if p := Priority(strings.ToUpper(raw)); p.Valid() {
		return p
	}
	return PriorityCurrent
}

func (r *Record) IsDone() bool {
	return r.Status == StatusDone
}

// CompletionHours is the created-to-completed duration in fractional hours.
// ok is false for records that are not done or have no completion time.
func (r *Record) CompletionHours() (hours float64, ok bool) {
	if !r.IsDone() || r.CompletedAt == nil {
		return 0, false
	}
	return r.CompletedAt.Sub(r.CreatedAt).Hours(), true
}
