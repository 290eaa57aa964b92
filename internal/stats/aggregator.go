// Package stats computes reporting aggregates over task records.
//
// Everything here is a pure function of its inputs: records, a period, an
// optional worker filter and the aggregator's clock. Nothing is persisted.
package stats

import (
	"fmt"
	"slices"
	"time"

	"github.com/nadmax/fieldops/internal/period"
	"github.com/nadmax/fieldops/internal/task"
)

const DefaultPrecision = 1

type Aggregator struct {
	Location  *time.Location
	Precision int
	Now       func() time.Time
}

func NewAggregator(loc *time.Location, precision int) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	if precision < 0 {
		precision = DefaultPrecision
	}

	return &Aggregator{
		Location:  loc,
		Precision: precision,
		Now:       time.Now,
	}
}

// Resolve returns the interval p covers at the aggregator's current instant.
func (a *Aggregator) Resolve(p period.Period) (period.Interval, error) {
	return period.Resolve(p, a.now(), a.location())
}

// Aggregate builds a snapshot for p. When workerFilter is set, only that
// worker's records are in scope, so by_worker holds at most one row.
// names maps worker ids to display names and may be nil.
func (a *Aggregator) Aggregate(records []task.Record, p period.Period, workerFilter *int64, names map[int64]string) (*Snapshot, error) {
	now := a.now()
	iv, err := period.Resolve(p, now, a.location())
	if err != nil {
		return nil, err
	}

	scoped := filterRecords(records, iv, workerFilter)
	if !iv.Bounded() {
		iv.Start = a.earliestDay(scoped, iv.End)
	}

	days := iv.Days()
	snap := &Snapshot{
		Period:      p,
		WorkerID:    workerFilter,
		GeneratedAt: now,
		Summary:     a.summarize(scoped, len(days)),
		ByStatus:    statusBuckets(scoped),
		ByPriority:  priorityBuckets(scoped),
		ByDay:       a.dayBuckets(scoped, days),
		ByWorker:    workerStats(scoped, names),
	}
	snap.CompletionTime = a.completionTime(scoped)

	return snap, nil
}

func (a *Aggregator) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

func (a *Aggregator) location() *time.Location {
	if a.Location == nil {
		return time.UTC
	}
	return a.Location
}

func filterRecords(records []task.Record, iv period.Interval, workerFilter *int64) []task.Record {
	scoped := make([]task.Record, 0, len(records))
	for _, r := range records {
		if !r.Status.Valid() || !iv.Contains(r.CreatedAt) {
			continue
		}
		if workerFilter != nil && (r.AssigneeID == nil || *r.AssigneeID != *workerFilter) {
			continue
		}
		scoped = append(scoped, r)
	}
	return scoped
}

func (a *Aggregator) earliestDay(records []task.Record, end time.Time) time.Time {
	earliest := end.AddDate(0, 0, -1)
	for _, r := range records {
		if r.CreatedAt.Before(earliest) {
			earliest = r.CreatedAt
		}
	}
	return period.StartOfDay(earliest.In(a.location()))
}

func (a *Aggregator) summarize(records []task.Record, periodDays int) Summary {
	completed := 0
	for _, r := range records {
		if r.IsDone() {
			completed++
		}
	}

	if periodDays < 1 {
		periodDays = 1
	}

	return Summary{
		TotalTasks:     len(records),
		CompletedTasks: completed,
		CompletionRate: Round(Rate(completed, len(records)), a.Precision),
		AvgTasksPerDay: Round(float64(len(records))/float64(periodDays), a.Precision),
		PeriodDays:     periodDays,
	}
}

func statusBuckets(records []task.Record) []StatusBucket {
	counts := make(map[task.Status]int, len(task.Statuses))
	for _, r := range records {
		counts[r.Status]++
	}

	buckets := make([]StatusBucket, 0, len(task.Statuses))
	for _, s := range task.Statuses {
		buckets = append(buckets, StatusBucket{Key: s, Label: s.Label(), Count: counts[s]})
	}
	return buckets
}

func priorityBuckets(records []task.Record) []PriorityBucket {
	counts := make(map[task.Priority]int, len(task.Priorities))
	for _, r := range records {
		p := r.Priority
		if !p.Valid() {
			p = task.PriorityCurrent
		}
		counts[p]++
	}

	buckets := make([]PriorityBucket, 0, len(task.Priorities))
	for _, p := range task.Priorities {
		buckets = append(buckets, PriorityBucket{Key: p, Label: p.Label(), Count: counts[p]})
	}
	return buckets
}

func (a *Aggregator) dayBuckets(records []task.Record, days []time.Time) []DayBucket {
	buckets := make([]DayBucket, len(days))
	index := make(map[string]int, len(days))
	for i, day := range days {
		key := period.DateKey(day)
		buckets[i] = DayBucket{Date: key}
		index[key] = i
	}

	loc := a.location()
	for _, r := range records {
		if i, ok := index[period.DateKey(r.CreatedAt.In(loc))]; ok {
			buckets[i].Created++
		}
		if r.IsDone() && r.CompletedAt != nil {
			if i, ok := index[period.DateKey(r.CompletedAt.In(loc))]; ok {
				buckets[i].Completed++
			}
		}
	}
	return buckets
}

func workerStats(records []task.Record, names map[int64]string) []WorkerStat {
	byID := make(map[int64]*WorkerStat)
	for _, r := range records {
		if r.AssigneeID == nil {
			continue
		}

		id := *r.AssigneeID
		ws, ok := byID[id]
		if !ok {
			ws = &WorkerStat{WorkerID: id, WorkerName: workerName(id, names)}
			byID[id] = ws
		}

		ws.Total++
		switch r.Status {
		case task.StatusNew:
			ws.NewTasks++
		case task.StatusInProgress:
			ws.InProgress++
		case task.StatusDone:
			ws.Completed++
		}
	}

	out := make([]WorkerStat, 0, len(byID))
	for _, ws := range byID {
		out = append(out, *ws)
	}
	slices.SortFunc(out, func(x, y WorkerStat) int {
		if x.Total != y.Total {
			return y.Total - x.Total
		}
		if x.WorkerID < y.WorkerID {
			return -1
		}
		if x.WorkerID > y.WorkerID {
			return 1
		}
		return 0
	})
	return out
}

func workerName(id int64, names map[int64]string) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("Worker #%d", id)
}

func (a *Aggregator) completionTime(records []task.Record) *CompletionTime {
	var hours []float64
	for _, r := range records {
		h, ok := r.CompletionHours()
		if !ok || h < 0 {
			continue
		}
		hours = append(hours, h)
	}

	minH, maxH, mean, ok := MinMaxMean(hours)
	if !ok {
		return nil
	}

	return &CompletionTime{
		AvgHours:       Round(mean, a.Precision),
		MinHours:       Round(minH, a.Precision),
		MaxHours:       Round(maxH, a.Precision),
		TotalCompleted: len(hours),
	}
}
