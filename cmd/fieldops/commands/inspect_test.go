package commands

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/nadmax/fieldops/internal/export"
	"github.com/nadmax/fieldops/internal/period"
	"github.com/nadmax/fieldops/internal/stats"
	"github.com/nadmax/fieldops/internal/task"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectReport(t *testing.T) {
	a := stats.NewAggregator(time.UTC, 1)
	a.Now = func() time.Time { return time.Date(2026, 5, 13, 15, 0, 0, 0, time.UTC) }

	completed := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	snap, err := a.Aggregate([]task.Record{
		{ID: 1, Status: task.StatusDone, Priority: task.PriorityUrgent, CreatedAt: time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC), CompletedAt: &completed},
		{ID: 2, Status: task.StatusNew, Priority: task.PriorityCurrent, CreatedAt: time.Date(2026, 5, 11, 9, 0, 0, 0, time.UTC)},
	}, period.Month, nil, nil)
	require.NoError(t, err)

	data, err := export.NewEncoder(';', true).Encode(snap)
	require.NoError(t, err)

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	require.NoError(t, inspectReport(cmd, data, ';'))

	var decoded stats.Snapshot
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, period.Month, decoded.Period)
	assert.Equal(t, 2, decoded.Summary.TotalTasks)
	assert.Equal(t, 1, decoded.Summary.CompletedTasks)
}

func TestInspectReport_Malformed(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	err := inspectReport(cmd, []byte("not,a,report\n"), ',')
	assert.ErrorIs(t, err, export.ErrMalformed)
}
