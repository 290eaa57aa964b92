// Package export encodes report snapshots into downloadable CSV artifacts
// and parses them back.
//
// An encoded report is a sequence of sections. Each section starts with a
// "section,<name>" marker row, followed by a header row naming every field of
// that family and then its data rows:
//
//	section,report
//	period,worker_id,generated_at
//	month,,2026-05-13T15:00:00Z
//	section,summary
//	total_tasks,completed_tasks,completion_rate,avg_tasks_per_day,period_days
//	10,9,90,0.8,13
//	section,by_status
//	NEW,IN_PROGRESS,DONE,CANCELLED
//	0,0,9,1
//	...
//
// Status and priority columns follow the fixed enum order, day rows are
// chronological. Numbers are written with the shortest exact representation.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/nadmax/fieldops/internal/stats"
	"github.com/nadmax/fieldops/internal/task"
)

const (
	sectionMarker = "section"

	SectionReport         = "report"
	SectionSummary        = "summary"
	SectionByStatus       = "by_status"
	SectionByPriority     = "by_priority"
	SectionByDay          = "by_day"
	SectionByWorker       = "by_worker"
	SectionCompletionTime = "completion_time"
)

// utf8BOM makes spreadsheet tools detect the encoding of Cyrillic names.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var (
	reportHeader         = []string{"period", "worker_id", "generated_at"}
	summaryHeader        = []string{"total_tasks", "completed_tasks", "completion_rate", "avg_tasks_per_day", "period_days"}
	dayHeader            = []string{"date", "created", "completed"}
	workerHeader         = []string{"user_id", "user_name", "total", "new_tasks", "in_progress", "completed"}
	completionTimeHeader = []string{"avg_hours", "min_hours", "max_hours", "total_completed"}
)

type Encoder struct {
	Comma rune
	BOM   bool
}

func NewEncoder(comma rune, bom bool) *Encoder {
	if comma == 0 {
		comma = ','
	}
	return &Encoder{Comma: comma, BOM: bom}
}

// Encode renders snap fully into memory. snap is only read.
func (e *Encoder) Encode(snap *stats.Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: empty snapshot", ErrExportFailed)
	}

	var buf bytes.Buffer
	if e.BOM {
		buf.Write(utf8BOM)
	}

	writer := csv.NewWriter(&buf)
	writer.Comma = e.comma()
	if err := writer.WriteAll(rows(snap)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExportFailed, err)
	}

	return buf.Bytes(), nil
}

func (e *Encoder) comma() rune {
	if e.Comma == 0 {
		return ','
	}
	return e.Comma
}

func rows(snap *stats.Snapshot) [][]string {
	var data [][]string
	section := func(name string, header []string, body ...[]string) {
		data = append(data, []string{sectionMarker, name}, header)
		data = append(data, body...)
	}

	workerID := ""
	if snap.WorkerID != nil {
		workerID = formatInt(*snap.WorkerID)
	}
	section(SectionReport, reportHeader, []string{
		string(snap.Period),
		workerID,
		snap.GeneratedAt.UTC().Format(time.RFC3339),
	})

	s := snap.Summary
	section(SectionSummary, summaryHeader, []string{
		strconv.Itoa(s.TotalTasks),
		strconv.Itoa(s.CompletedTasks),
		formatFloat(s.CompletionRate),
		formatFloat(s.AvgTasksPerDay),
		strconv.Itoa(s.PeriodDays),
	})

	statusCounts := make(map[task.Status]int, len(snap.ByStatus))
	for _, b := range snap.ByStatus {
		statusCounts[b.Key] = b.Count
	}
	statusHeader := make([]string, 0, len(task.Statuses))
	statusRow := make([]string, 0, len(task.Statuses))
	for _, st := range task.Statuses {
		statusHeader = append(statusHeader, string(st))
		statusRow = append(statusRow, strconv.Itoa(statusCounts[st]))
	}
	section(SectionByStatus, statusHeader, statusRow)

	priorityCounts := make(map[task.Priority]int, len(snap.ByPriority))
	for _, b := range snap.ByPriority {
		priorityCounts[b.Key] = b.Count
	}
	priorityHeader := make([]string, 0, len(task.Priorities))
	priorityRow := make([]string, 0, len(task.Priorities))
	for _, p := range task.Priorities {
		priorityHeader = append(priorityHeader, string(p))
		priorityRow = append(priorityRow, strconv.Itoa(priorityCounts[p]))
	}
	section(SectionByPriority, priorityHeader, priorityRow)

	dayRows := make([][]string, 0, len(snap.ByDay))
	for _, d := range snap.ByDay {
		dayRows = append(dayRows, []string{d.Date, strconv.Itoa(d.Created), strconv.Itoa(d.Completed)})
	}
	section(SectionByDay, dayHeader, dayRows...)

	workerRows := make([][]string, 0, len(snap.ByWorker))
	for _, ws := range snap.ByWorker {
		workerRows = append(workerRows, []string{
			formatInt(ws.WorkerID),
			ws.WorkerName,
			strconv.Itoa(ws.Total),
			strconv.Itoa(ws.NewTasks),
			strconv.Itoa(ws.InProgress),
			strconv.Itoa(ws.Completed),
		})
	}
	section(SectionByWorker, workerHeader, workerRows...)

	var ctRows [][]string
	if ct := snap.CompletionTime; ct != nil {
		ctRows = append(ctRows, []string{
			formatFloat(ct.AvgHours),
			formatFloat(ct.MinHours),
			formatFloat(ct.MaxHours),
			strconv.Itoa(ct.TotalCompleted),
		})
	}
	section(SectionCompletionTime, completionTimeHeader, ctRows...)

	return data
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
