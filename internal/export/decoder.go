package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nadmax/fieldops/internal/period"
	"github.com/nadmax/fieldops/internal/stats"
	"github.com/nadmax/fieldops/internal/task"
)

var ErrMalformed = errors.New("malformed report export")

type section struct {
	header []string
	rows   [][]string
}

func (s *section) value(row []string, column string) (string, bool) {
	for i, name := range s.header {
		if name == column && i < len(row) {
			return row[i], true
		}
	}
	return "", false
}

// Decode parses an export produced by Encode with the same comma. Labels
// are restored from the status and priority keys.
func Decode(data []byte, comma rune) (*stats.Snapshot, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	if comma != 0 {
		reader.Comma = comma
	}
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	sections, err := splitSections(records)
	if err != nil {
		return nil, err
	}

	snap := &stats.Snapshot{}
	decoders := []struct {
		name     string
		required bool
		decode   func(*section, *stats.Snapshot) error
	}{
		{SectionReport, true, decodeReport},
		{SectionSummary, true, decodeSummary},
		{SectionByStatus, true, decodeByStatus},
		{SectionByPriority, true, decodeByPriority},
		{SectionByDay, true, decodeByDay},
		{SectionByWorker, true, decodeByWorker},
		{SectionCompletionTime, false, decodeCompletionTime},
	}

	for _, d := range decoders {
		sec, ok := sections[d.name]
		if !ok {
			if d.required {
				return nil, fmt.Errorf("%w: missing section %q", ErrMalformed, d.name)
			}
			continue
		}
		if err := d.decode(sec, snap); err != nil {
			return nil, fmt.Errorf("%w: section %q: %w", ErrMalformed, d.name, err)
		}
	}

	return snap, nil
}

func splitSections(records [][]string) (map[string]*section, error) {
	sections := make(map[string]*section)
	var current *section

	for i, rec := range records {
		if len(rec) == 2 && rec[0] == sectionMarker {
			if _, dup := sections[rec[1]]; dup {
				return nil, fmt.Errorf("%w: duplicate section %q", ErrMalformed, rec[1])
			}
			current = &section{}
			sections[rec[1]] = current
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("%w: row %d outside any section", ErrMalformed, i+1)
		}
		if current.header == nil {
			current.header = rec
			continue
		}
		current.rows = append(current.rows, rec)
	}

	return sections, nil
}

func singleRow(sec *section) ([]string, error) {
	if len(sec.rows) != 1 {
		return nil, fmt.Errorf("expected 1 data row, got %d", len(sec.rows))
	}
	return sec.rows[0], nil
}

// fieldReader collects the first parse error so decoders read straight through.
type fieldReader struct {
	sec *section
	row []string
	err error
}

func (f *fieldReader) str(column string) string {
	v, ok := f.sec.value(f.row, column)
	if !ok && f.err == nil {
		f.err = fmt.Errorf("missing column %q", column)
	}
	return v
}

func (f *fieldReader) count(column string) int {
	raw := f.str(column)
	if f.err != nil {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		f.err = fmt.Errorf("column %q: %w", column, err)
	}
	return v
}

func (f *fieldReader) id(column string) int64 {
	raw := f.str(column)
	if f.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		f.err = fmt.Errorf("column %q: %w", column, err)
	}
	return v
}

func (f *fieldReader) number(column string) float64 {
	raw := f.str(column)
	if f.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		f.err = fmt.Errorf("column %q: %w", column, err)
	}
	return v
}

func decodeReport(sec *section, snap *stats.Snapshot) error {
	row, err := singleRow(sec)
	if err != nil {
		return err
	}

	f := &fieldReader{sec: sec, row: row}
	p, err := period.Parse(f.str("period"))
	if f.err != nil {
		return f.err
	}
	if err != nil {
		return err
	}
	snap.Period = p

	if raw := f.str("worker_id"); raw != "" {
		id := f.id("worker_id")
		snap.WorkerID = &id
	}

	generated := f.str("generated_at")
	if f.err != nil {
		return f.err
	}
	if generated != "" {
		snap.GeneratedAt, err = time.Parse(time.RFC3339, generated)
		if err != nil {
			return err
		}
	}
	return f.err
}

func decodeSummary(sec *section, snap *stats.Snapshot) error {
	row, err := singleRow(sec)
	if err != nil {
		return err
	}

	f := &fieldReader{sec: sec, row: row}
	snap.Summary = stats.Summary{
		TotalTasks:     f.count("total_tasks"),
		CompletedTasks: f.count("completed_tasks"),
		CompletionRate: f.number("completion_rate"),
		AvgTasksPerDay: f.number("avg_tasks_per_day"),
		PeriodDays:     f.count("period_days"),
	}
	return f.err
}

func decodeByStatus(sec *section, snap *stats.Snapshot) error {
	row, err := singleRow(sec)
	if err != nil {
		return err
	}

	f := &fieldReader{sec: sec, row: row}
	snap.ByStatus = make([]stats.StatusBucket, 0, len(task.Statuses))
	for _, st := range task.Statuses {
		snap.ByStatus = append(snap.ByStatus, stats.StatusBucket{
			Key:   st,
			Label: st.Label(),
			Count: f.count(string(st)),
		})
	}
	return f.err
}

func decodeByPriority(sec *section, snap *stats.Snapshot) error {
	row, err := singleRow(sec)
	if err != nil {
		return err
	}

	f := &fieldReader{sec: sec, row: row}
	snap.ByPriority = make([]stats.PriorityBucket, 0, len(task.Priorities))
	for _, p := range task.Priorities {
		snap.ByPriority = append(snap.ByPriority, stats.PriorityBucket{
			Key:   p,
			Label: p.Label(),
			Count: f.count(string(p)),
		})
	}
	return f.err
}

func decodeByDay(sec *section, snap *stats.Snapshot) error {
	snap.ByDay = make([]stats.DayBucket, 0, len(sec.rows))
	for _, row := range sec.rows {
		f := &fieldReader{sec: sec, row: row}
		d := stats.DayBucket{
			Date:      f.str("date"),
			Created:   f.count("created"),
			Completed: f.count("completed"),
		}
		if f.err != nil {
			return f.err
		}
		snap.ByDay = append(snap.ByDay, d)
	}
	return nil
}

func decodeByWorker(sec *section, snap *stats.Snapshot) error {
	snap.ByWorker = make([]stats.WorkerStat, 0, len(sec.rows))
	for _, row := range sec.rows {
		f := &fieldReader{sec: sec, row: row}
		ws := stats.WorkerStat{
			WorkerID:   f.id("user_id"),
			WorkerName: f.str("user_name"),
			Total:      f.count("total"),
			NewTasks:   f.count("new_tasks"),
			InProgress: f.count("in_progress"),
			Completed:  f.count("completed"),
		}
		if f.err != nil {
			return f.err
		}
		snap.ByWorker = append(snap.ByWorker, ws)
	}
	return nil
}

func decodeCompletionTime(sec *section, snap *stats.Snapshot) error {
	switch len(sec.rows) {
	case 0:
		return nil
	case 1:
	default:
		return fmt.Errorf("expected at most 1 data row, got %d", len(sec.rows))
	}

	f := &fieldReader{sec: sec, row: sec.rows[0]}
	ct := &stats.CompletionTime{
		AvgHours:       f.number("avg_hours"),
		MinHours:       f.number("min_hours"),
		MaxHours:       f.number("max_hours"),
		TotalCompleted: f.count("total_completed"),
	}
	if f.err != nil {
		return f.err
	}
	snap.CompletionTime = ct
	return nil
}
