package stats

import (
	"time"

	"github.com/nadmax/fieldops/internal/period"
	"github.com/nadmax/fieldops/internal/task"
)

const maxStreakDays = 365

// ComputeUserStats summarizes one assignee's tasks for the profile page.
func (a *Aggregator) ComputeUserStats(records []task.Record) *UserStats {
	now := a.now()
	loc := a.location()

	weekAgo := now.Add(-7 * 24 * time.Hour)
	monthAgo := now.Add(-30 * 24 * time.Hour)

	us := &UserStats{}
	var hours []float64
	completedDays := make(map[string]struct{})

	for _, r := range records {
		if !r.Status.Valid() {
			continue
		}

		us.TotalTasks++
		switch r.Status {
		case task.StatusDone:
			us.CompletedTasks++
			if r.CompletedAt != nil {
				completedDays[period.DateKey(r.CompletedAt.In(loc))] = struct{}{}
			}
			if h, ok := r.CompletionHours(); ok {
				hours = append(hours, h)
			}
		case task.StatusInProgress:
			us.InProgressTasks++
		}

		if !r.CreatedAt.Before(weekAgo) {
			us.TasksThisWeek++
		}
		if !r.CreatedAt.Before(monthAgo) {
			us.TasksThisMonth++
		}
	}

	us.CompletionRate = Round(Rate(us.CompletedTasks, us.TotalTasks), a.Precision)
	if _, _, mean, ok := MinMaxMean(hours); ok {
		avg := Round(mean, a.Precision)
		us.AvgCompletionHours = &avg
	}
	us.StreakDays = streak(completedDays, period.StartOfDay(now.In(loc)))

	return us
}

// streak counts consecutive days with a completion, walking back from today.
// An empty today does not break the streak.
func streak(completedDays map[string]struct{}, today time.Time) int {
	days := 0
	for i := 0; i < maxStreakDays; i++ {
		_, ok := completedDays[period.DateKey(today.AddDate(0, 0, -i))]
		if ok {
			days++
			continue
		}
		if i > 0 {
			break
		}
	}
	return days
}
