// Package report derives display values from aggregated snapshots.
package report

import (
	"math"
	"strconv"

	"github.com/nadmax/fieldops/internal/period"
	"github.com/nadmax/fieldops/internal/stats"
)

const (
	DefaultWindow = 14

	// HighCompletionThreshold is inclusive.
	HighCompletionThreshold = 90.0

	// UnknownDuration is shown when no completion time is known.
	UnknownDuration = "—"
)

type Formatter struct {
	Window int
}

type DisplayModel struct {
	Period         period.Period      `json:"period"`
	WorkerID       *int64             `json:"worker_id,omitempty"`
	Summary        SummaryView        `json:"summary"`
	ByStatus       []ShareRow         `json:"by_status"`
	ByPriority     []ShareRow         `json:"by_priority"`
	DayChart       DayChart           `json:"day_chart"`
	Workers        []WorkerRow        `json:"workers"`
	CompletionTime CompletionTimeView `json:"completion_time"`
}

type SummaryView struct {
	TotalTasks         int     `json:"total_tasks"`
	CompletedTasks     int     `json:"completed_tasks"`
	CompletionRate     float64 `json:"completion_rate"`
	CompletionRateText string  `json:"completion_rate_text"`
	HighCompletion     bool    `json:"high_completion"`
	AvgTasksPerDay     float64 `json:"avg_tasks_per_day"`
	PeriodDays         int     `json:"period_days"`
}

type ShareRow struct {
	Key        string  `json:"key"`
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type DayChart struct {
	Window   int      `json:"window"`
	MaxValue int      `json:"max_value"`
	Bars     []DayBar `json:"bars"`
}

// DayBar widths are fractions in [0, 1] of the window maximum.
type DayBar struct {
	Date           string  `json:"date"`
	Created        int     `json:"created"`
	Completed      int     `json:"completed"`
	CreatedWidth   float64 `json:"created_width"`
	CompletedWidth float64 `json:"completed_width"`
}

type WorkerRow struct {
	WorkerID       int64   `json:"user_id"`
	WorkerName     string  `json:"user_name"`
	Total          int     `json:"total"`
	NewTasks       int     `json:"new_tasks"`
	InProgress     int     `json:"in_progress"`
	Completed      int     `json:"completed"`
	CompletionRate float64 `json:"completion_rate"`
}

type CompletionTimeView struct {
	Available      bool   `json:"available"`
	Avg            string `json:"avg"`
	Min            string `json:"min"`
	Max            string `json:"max"`
	TotalCompleted int    `json:"total_completed"`
}

type ProfileView struct {
	TotalTasks         int     `json:"total_tasks"`
	CompletedTasks     int     `json:"completed_tasks"`
	InProgressTasks    int     `json:"in_progress_tasks"`
	CompletionRate     float64 `json:"completion_rate"`
	CompletionRateText string  `json:"completion_rate_text"`
	HighCompletion     bool    `json:"high_completion"`
	AvgCompletion      string  `json:"avg_completion"`
	TasksThisWeek      int     `json:"tasks_this_week"`
	TasksThisMonth     int     `json:"tasks_this_month"`
	StreakDays         int     `json:"streak_days"`
}

func NewFormatter(window int) *Formatter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Formatter{Window: window}
}

// Format builds a display model from snap. snap is only read.
func (f *Formatter) Format(snap *stats.Snapshot) *DisplayModel {
	if snap == nil {
		return nil
	}

	total := snap.Summary.TotalTasks
	dm := &DisplayModel{
		Period:     snap.Period,
		WorkerID:   snap.WorkerID,
		Summary:    summaryView(snap.Summary),
		ByStatus:   make([]ShareRow, 0, len(snap.ByStatus)),
		ByPriority: make([]ShareRow, 0, len(snap.ByPriority)),
		DayChart:   f.dayChart(snap.ByDay),
		Workers:    make([]WorkerRow, 0, len(snap.ByWorker)),
	}

	for _, b := range snap.ByStatus {
		dm.ByStatus = append(dm.ByStatus, ShareRow{
			Key:        string(b.Key),
			Label:      b.Label,
			Count:      b.Count,
			Percentage: Percentage(b.Count, total),
		})
	}
	for _, b := range snap.ByPriority {
		dm.ByPriority = append(dm.ByPriority, ShareRow{
			Key:        string(b.Key),
			Label:      b.Label,
			Count:      b.Count,
			Percentage: Percentage(b.Count, total),
		})
	}
	for _, ws := range snap.ByWorker {
		dm.Workers = append(dm.Workers, WorkerRow{
			WorkerID:       ws.WorkerID,
			WorkerName:     ws.WorkerName,
			Total:          ws.Total,
			NewTasks:       ws.NewTasks,
			InProgress:     ws.InProgress,
			Completed:      ws.Completed,
			CompletionRate: Percentage(ws.Completed, ws.Total),
		})
	}

	dm.CompletionTime = completionTimeView(snap.CompletionTime)
	return dm
}

// FormatProfile applies the same display rules to the profile variant.
func (f *Formatter) FormatProfile(us *stats.UserStats) *ProfileView {
	if us == nil {
		return nil
	}

	return &ProfileView{
		TotalTasks:         us.TotalTasks,
		CompletedTasks:     us.CompletedTasks,
		InProgressTasks:    us.InProgressTasks,
		CompletionRate:     us.CompletionRate,
		CompletionRateText: FormatPercent(us.CompletionRate),
		HighCompletion:     IsHighCompletion(us.CompletionRate),
		AvgCompletion:      FormatHours(us.AvgCompletionHours),
		TasksThisWeek:      us.TasksThisWeek,
		TasksThisMonth:     us.TasksThisMonth,
		StreakDays:         us.StreakDays,
	}
}

func (f *Formatter) window() int {
	if f.Window <= 0 {
		return DefaultWindow
	}
	return f.Window
}

func (f *Formatter) dayChart(days []stats.DayBucket) DayChart {
	window := f.window()
	if len(days) > window {
		days = days[len(days)-window:]
	}

	maxValue := 0
	for _, d := range days {
		maxValue = max(maxValue, d.Created, d.Completed)
	}

	bars := make([]DayBar, 0, len(days))
	for _, d := range days {
		bars = append(bars, DayBar{
			Date:           d.Date,
			Created:        d.Created,
			Completed:      d.Completed,
			CreatedWidth:   barWidth(d.Created, maxValue),
			CompletedWidth: barWidth(d.Completed, maxValue),
		})
	}

	return DayChart{Window: window, MaxValue: maxValue, Bars: bars}
}

func barWidth(value, maxValue int) float64 {
	if maxValue <= 0 {
		return 0
	}
	return float64(value) / float64(maxValue)
}

func summaryView(s stats.Summary) SummaryView {
	return SummaryView{
		TotalTasks:         s.TotalTasks,
		CompletedTasks:     s.CompletedTasks,
		CompletionRate:     s.CompletionRate,
		CompletionRateText: FormatPercent(s.CompletionRate),
		HighCompletion:     IsHighCompletion(s.CompletionRate),
		AvgTasksPerDay:     s.AvgTasksPerDay,
		PeriodDays:         s.PeriodDays,
	}
}

func completionTimeView(ct *stats.CompletionTime) CompletionTimeView {
	if ct == nil {
		return CompletionTimeView{
			Avg: UnknownDuration,
			Min: UnknownDuration,
			Max: UnknownDuration,
		}
	}

	return CompletionTimeView{
		Available:      true,
		Avg:            FormatHours(&ct.AvgHours),
		Min:            FormatHours(&ct.MinHours),
		Max:            FormatHours(&ct.MaxHours),
		TotalCompleted: ct.TotalCompleted,
	}
}

// Percentage is count/total*100 to one decimal place, 0 when total is not positive.
func Percentage(count, total int) float64 {
	return stats.Round(stats.Rate(count, total), 1)
}

func IsHighCompletion(rate float64) bool {
	return rate >= HighCompletionThreshold
}

// FormatPercent renders a rate with one decimal, e.g. "90.0%".
func FormatPercent(rate float64) string {
	return strconv.FormatFloat(stats.Round(rate, 1), 'f', 1, 64) + "%"
}

// FormatHours renders a duration given in hours. Under an hour it is shown
// in minutes, under a day in hours with one decimal, otherwise in days.
// The unit is chosen after rounding, so 59.9 minutes reads "1.0 ч".
// nil means unknown and is never rendered as zero.
func FormatHours(hours *float64) string {
	if hours == nil || math.IsNaN(*hours) {
		return UnknownDuration
	}

	h := math.Max(*hours, 0)
	if minutes := math.Round(h * 60); minutes < 60 {
		return strconv.Itoa(int(minutes)) + " мин"
	}
	if rounded := stats.Round(h, 1); rounded < 24 {
		return strconv.FormatFloat(rounded, 'f', 1, 64) + " ч"
	}
	return strconv.Itoa(int(math.Round(h/24))) + " д"
}
