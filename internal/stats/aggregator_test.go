package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/nadmax/fieldops/internal/period"
	"github.com/nadmax/fieldops/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday afternoon.
var fixedNow = time.Date(2026, 5, 13, 15, 0, 0, 0, time.UTC)

func newTestAggregator() *Aggregator {
	a := NewAggregator(time.UTC, 1)
	a.Now = func() time.Time { return fixedNow }
	return a
}

func ptr[T any](v T) *T {
	return &v
}

func record(id int64, status task.Status, priority task.Priority, assignee *int64, created time.Time, completed *time.Time) task.Record {
	return task.Record{
		ID:          id,
		Status:      status,
		Priority:    priority,
		AssigneeID:  assignee,
		CreatedAt:   created,
		CompletedAt: completed,
	}
}

func sumStatus(buckets []StatusBucket) int {
	total := 0
	for _, b := range buckets {
		total += b.Count
	}
	return total
}

func sumPriority(buckets []PriorityBucket) int {
	total := 0
	for _, b := range buckets {
		total += b.Count
	}
	return total
}

func TestAggregate_TodayEmpty(t *testing.T) {
	a := newTestAggregator()

	snap, err := a.Aggregate(nil, period.Today, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, snap.Summary.TotalTasks)
	assert.Equal(t, 0, snap.Summary.CompletedTasks)
	assert.Equal(t, 0.0, snap.Summary.CompletionRate)
	assert.Equal(t, 1, snap.Summary.PeriodDays)

	require.Len(t, snap.ByStatus, 4)
	for _, b := range snap.ByStatus {
		assert.Equal(t, 0, b.Count)
	}
	require.Len(t, snap.ByPriority, 4)

	require.Len(t, snap.ByDay, 1)
	assert.Equal(t, DayBucket{Date: "2026-05-13"}, snap.ByDay[0])

	assert.Empty(t, snap.ByWorker)
	assert.Nil(t, snap.CompletionTime)
}

func TestAggregate_CompletionRateBoundary(t *testing.T) {
	a := newTestAggregator()
	created := fixedNow.Add(-2 * time.Hour)
	done := fixedNow.Add(-time.Hour)

	var records []task.Record
	for i := 0; i < 9; i++ {
		records = append(records, record(int64(i+1), task.StatusDone, task.PriorityCurrent, nil, created, &done))
	}
	records = append(records, record(10, task.StatusCancelled, task.PriorityCurrent, nil, created, nil))

	snap, err := a.Aggregate(records, period.Today, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 10, snap.Summary.TotalTasks)
	assert.Equal(t, 9, snap.Summary.CompletedTasks)
	assert.Equal(t, 90.0, snap.Summary.CompletionRate)
}

func TestAggregate_BucketsCoverEveryRecord(t *testing.T) {
	a := newTestAggregator()
	day := func(d int) time.Time { return time.Date(2026, 5, d, 10, 0, 0, 0, time.UTC) }

	records := []task.Record{
		record(1, task.StatusNew, task.PriorityEmergency, ptr(int64(1)), day(2), nil),
		record(2, task.StatusInProgress, task.PriorityUrgent, ptr(int64(1)), day(5), nil),
		record(3, task.StatusDone, task.PriorityPlanned, ptr(int64(2)), day(5), ptr(day(6))),
		record(4, task.StatusCancelled, task.Priority("UNKNOWN"), nil, day(8), nil),
		record(5, task.StatusDone, task.PriorityCurrent, ptr(int64(2)), day(13), ptr(day(13).Add(time.Hour))),
	}

	for _, p := range period.Periods {
		t.Run(string(p), func(t *testing.T) {
			snap, err := a.Aggregate(records, p, nil, nil)
			require.NoError(t, err)

			assert.Equal(t, snap.Summary.TotalTasks, sumStatus(snap.ByStatus))
			assert.Equal(t, snap.Summary.TotalTasks, sumPriority(snap.ByPriority))
			assert.GreaterOrEqual(t, snap.Summary.CompletionRate, 0.0)
			assert.LessOrEqual(t, snap.Summary.CompletionRate, 100.0)
			assert.GreaterOrEqual(t, snap.Summary.PeriodDays, 1)
		})
	}
}

func TestAggregate_FixedBucketOrder(t *testing.T) {
	a := newTestAggregator()
	records := []task.Record{
		record(1, task.StatusCancelled, task.PriorityPlanned, nil, fixedNow.Add(-time.Hour), nil),
	}

	snap, err := a.Aggregate(records, period.Today, nil, nil)
	require.NoError(t, err)

	var statuses []task.Status
	for _, b := range snap.ByStatus {
		statuses = append(statuses, b.Key)
		assert.Equal(t, b.Key.Label(), b.Label)
	}
	assert.Equal(t, task.Statuses, statuses)

	var priorities []task.Priority
	for _, b := range snap.ByPriority {
		priorities = append(priorities, b.Key)
	}
	assert.Equal(t, task.Priorities, priorities)
	assert.Equal(t, 1, snap.ByPriority[3].Count)
}

func TestAggregate_UnknownPriorityCountsAsCurrent(t *testing.T) {
	a := newTestAggregator()
	records := []task.Record{
		record(1, task.StatusNew, task.Priority(""), nil, fixedNow.Add(-time.Hour), nil),
	}

	snap, err := a.Aggregate(records, period.Today, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.ByPriority[2].Count)
}

func TestAggregate_SkipsInvalidStatus(t *testing.T) {
	a := newTestAggregator()
	records := []task.Record{
		record(1, task.Status("ARCHIVED"), task.PriorityCurrent, nil, fixedNow.Add(-time.Hour), nil),
		record(2, task.StatusNew, task.PriorityCurrent, nil, fixedNow.Add(-time.Hour), nil),
	}

	snap, err := a.Aggregate(records, period.Today, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Summary.TotalTasks)
	assert.Equal(t, 1, sumStatus(snap.ByStatus))
}

func TestAggregate_DaysAreGapFree(t *testing.T) {
	a := newTestAggregator()
	records := []task.Record{
		record(1, task.StatusNew, task.PriorityCurrent, nil, time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC), nil),
		record(2, task.StatusNew, task.PriorityCurrent, nil, time.Date(2026, 5, 9, 9, 0, 0, 0, time.UTC), nil),
	}

	snap, err := a.Aggregate(records, period.Month, nil, nil)
	require.NoError(t, err)

	require.Len(t, snap.ByDay, 13)
	assert.Equal(t, "2026-05-01", snap.ByDay[0].Date)
	assert.Equal(t, "2026-05-13", snap.ByDay[12].Date)

	for i := 1; i < len(snap.ByDay); i++ {
		prev, err := time.Parse("2006-01-02", snap.ByDay[i-1].Date)
		require.NoError(t, err)
		cur, err := time.Parse("2006-01-02", snap.ByDay[i].Date)
		require.NoError(t, err)
		assert.Equal(t, prev.AddDate(0, 0, 1), cur)
	}

	assert.Equal(t, 1, snap.ByDay[1].Created)
	assert.Equal(t, 1, snap.ByDay[8].Created)
	assert.Equal(t, 13, snap.Summary.PeriodDays)
	assert.Equal(t, 0.2, snap.Summary.AvgTasksPerDay)
}

func TestAggregate_CompletedCountedOnCompletionDay(t *testing.T) {
	a := newTestAggregator()
	created := time.Date(2026, 5, 11, 9, 0, 0, 0, time.UTC)
	completed := time.Date(2026, 5, 12, 17, 0, 0, 0, time.UTC)

	snap, err := a.Aggregate([]task.Record{
		record(1, task.StatusDone, task.PriorityCurrent, nil, created, &completed),
	}, period.Week, nil, nil)
	require.NoError(t, err)

	require.Len(t, snap.ByDay, 3)
	assert.Equal(t, DayBucket{Date: "2026-05-11", Created: 1}, snap.ByDay[0])
	assert.Equal(t, DayBucket{Date: "2026-05-12", Completed: 1}, snap.ByDay[1])
}

func TestAggregate_ExcludesRecordsOutsidePeriod(t *testing.T) {
	a := newTestAggregator()
	records := []task.Record{
		record(1, task.StatusNew, task.PriorityCurrent, nil, time.Date(2026, 5, 12, 23, 59, 59, 0, time.UTC), nil),
		record(2, task.StatusNew, task.PriorityCurrent, nil, time.Date(2026, 5, 13, 0, 0, 0, 0, time.UTC), nil),
		record(3, task.StatusNew, task.PriorityCurrent, nil, time.Date(2026, 5, 14, 0, 0, 0, 0, time.UTC), nil),
	}

	today, err := a.Aggregate(records, period.Today, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, today.Summary.TotalTasks)

	yesterday, err := a.Aggregate(records, period.Yesterday, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, yesterday.Summary.TotalTasks)
	require.Len(t, yesterday.ByDay, 1)
	assert.Equal(t, "2026-05-12", yesterday.ByDay[0].Date)
}

func TestAggregate_AllSpansFromEarliestRecord(t *testing.T) {
	a := newTestAggregator()
	records := []task.Record{
		record(1, task.StatusNew, task.PriorityCurrent, nil, time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC), nil),
		record(2, task.StatusNew, task.PriorityCurrent, nil, time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC), nil),
	}

	snap, err := a.Aggregate(records, period.All, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 10, snap.Summary.PeriodDays)
	require.Len(t, snap.ByDay, 10)
	assert.Equal(t, "2026-05-04", snap.ByDay[0].Date)
	assert.Equal(t, "2026-05-13", snap.ByDay[9].Date)
}

func TestAggregate_WorkerStats(t *testing.T) {
	a := newTestAggregator()
	created := fixedNow.Add(-3 * time.Hour)
	done := fixedNow.Add(-time.Hour)
	alice, bob := int64(1), int64(2)

	records := []task.Record{
		record(1, task.StatusNew, task.PriorityCurrent, &alice, created, nil),
		record(2, task.StatusInProgress, task.PriorityCurrent, &alice, created, nil),
		record(3, task.StatusDone, task.PriorityCurrent, &alice, created, &done),
		record(4, task.StatusCancelled, task.PriorityCurrent, &alice, created, nil),
		record(5, task.StatusDone, task.PriorityCurrent, &bob, created, &done),
		record(6, task.StatusNew, task.PriorityCurrent, nil, created, nil),
	}
	names := map[int64]string{alice: "Alice"}

	snap, err := a.Aggregate(records, period.Today, nil, names)
	require.NoError(t, err)

	require.Len(t, snap.ByWorker, 2)
	assert.Equal(t, WorkerStat{WorkerID: 1, WorkerName: "Alice", Total: 4, NewTasks: 1, InProgress: 1, Completed: 1}, snap.ByWorker[0])
	assert.Equal(t, WorkerStat{WorkerID: 2, WorkerName: "Worker #2", Total: 1, Completed: 1}, snap.ByWorker[1])

	for _, ws := range snap.ByWorker {
		assert.LessOrEqual(t, ws.NewTasks+ws.InProgress+ws.Completed, ws.Total)
	}
}

func TestAggregate_WorkerFilterNarrowsEverything(t *testing.T) {
	a := newTestAggregator()
	created := fixedNow.Add(-3 * time.Hour)
	alice, bob := int64(1), int64(2)

	records := []task.Record{
		record(1, task.StatusNew, task.PriorityUrgent, &alice, created, nil),
		record(2, task.StatusNew, task.PriorityCurrent, &bob, created, nil),
		record(3, task.StatusNew, task.PriorityCurrent, &bob, created, nil),
		record(4, task.StatusNew, task.PriorityCurrent, nil, created, nil),
	}

	snap, err := a.Aggregate(records, period.Today, &bob, nil)
	require.NoError(t, err)

	assert.Equal(t, &bob, snap.WorkerID)
	assert.Equal(t, 2, snap.Summary.TotalTasks)
	assert.Equal(t, 0, snap.ByPriority[1].Count)
	require.Len(t, snap.ByWorker, 1)
	assert.Equal(t, bob, snap.ByWorker[0].WorkerID)

	nobody := int64(99)
	empty, err := a.Aggregate(records, period.Today, &nobody, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Summary.TotalTasks)
	assert.Empty(t, empty.ByWorker)
}

func TestAggregate_CompletionTime(t *testing.T) {
	a := newTestAggregator()
	created := fixedNow.Add(-10 * time.Hour)
	oneHour := created.Add(time.Hour)
	fiveHours := created.Add(5 * time.Hour)
	negative := created.Add(-time.Hour)

	records := []task.Record{
		record(1, task.StatusDone, task.PriorityCurrent, nil, created, &oneHour),
		record(2, task.StatusDone, task.PriorityCurrent, nil, created, &fiveHours),
		record(3, task.StatusDone, task.PriorityCurrent, nil, created, &negative),
		record(4, task.StatusInProgress, task.PriorityCurrent, nil, created, nil),
	}

	snap, err := a.Aggregate(records, period.Today, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, snap.CompletionTime)

	ct := snap.CompletionTime
	assert.Equal(t, 3.0, ct.AvgHours)
	assert.Equal(t, 1.0, ct.MinHours)
	assert.Equal(t, 5.0, ct.MaxHours)
	assert.Equal(t, 2, ct.TotalCompleted)
	assert.LessOrEqual(t, ct.MinHours, ct.AvgHours)
	assert.LessOrEqual(t, ct.AvgHours, ct.MaxHours)
}

func TestAggregate_CompletionTimeAbsentWithoutDoneTasks(t *testing.T) {
	a := newTestAggregator()
	records := []task.Record{
		record(1, task.StatusInProgress, task.PriorityCurrent, nil, fixedNow.Add(-time.Hour), nil),
	}

	snap, err := a.Aggregate(records, period.Today, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, snap.CompletionTime)
}

func TestAggregate_InvalidPeriod(t *testing.T) {
	a := newTestAggregator()

	_, err := a.Aggregate(nil, period.Period("custom"), nil, nil)
	assert.ErrorIs(t, err, period.ErrInvalidPeriod)
}

func TestAggregate_DoesNotMutateInput(t *testing.T) {
	a := newTestAggregator()
	records := []task.Record{
		record(2, task.StatusNew, task.PriorityCurrent, nil, fixedNow.Add(-time.Hour), nil),
		record(1, task.StatusDone, task.PriorityUrgent, nil, fixedNow.Add(-2*time.Hour), ptr(fixedNow)),
	}
	original := make([]task.Record, len(records))
	copy(original, records)

	_, err := a.Aggregate(records, period.Today, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, original, records)
}

func TestAggregate_Concurrent(t *testing.T) {
	a := newTestAggregator()
	records := []task.Record{
		record(1, task.StatusDone, task.PriorityCurrent, ptr(int64(1)), fixedNow.Add(-2*time.Hour), ptr(fixedNow.Add(-time.Hour))),
		record(2, task.StatusNew, task.PriorityUrgent, ptr(int64(2)), fixedNow.Add(-time.Hour), nil),
	}

	expected, err := a.Aggregate(records, period.Week, nil, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := a.Aggregate(records, period.Week, nil, nil)
			assert.NoError(t, err)
			assert.Equal(t, expected.Summary, snap.Summary)
			assert.Equal(t, expected.ByDay, snap.ByDay)
		}()
	}
	wg.Wait()
}
