package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nadmax/fieldops/internal/period"
	"github.com/nadmax/fieldops/internal/stats"
)

const ContentType = "text/csv; charset=utf-8"

// ErrExportFailed is reported separately from fetch failures so callers can
// tell an export problem apart from bad report data.
var ErrExportFailed = errors.New("report export failed")

// SnapshotSource fetches a fresh snapshot when the caller has none.
type SnapshotSource interface {
	Snapshot(ctx context.Context, p period.Period, workerID *int64) (*stats.Snapshot, error)
}

type Request struct {
	Period   period.Period `json:"period"`
	WorkerID *int64        `json:"worker_id,omitempty"`
}

type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Exporter struct {
	source  SnapshotSource
	encoder *Encoder
	now     func() time.Time
}

func NewExporter(source SnapshotSource, encoder *Encoder) *Exporter {
	if encoder == nil {
		encoder = NewEncoder(',', false)
	}
	return &Exporter{
		source:  source,
		encoder: encoder,
		now:     time.Now,
	}
}

// Export encodes snap, or a freshly fetched snapshot when snap is nil. The
// artifact is built completely in memory; on failure no data is returned.
func (e *Exporter) Export(ctx context.Context, req Request, snap *stats.Snapshot) (*Artifact, error) {
	if !req.Period.Valid() {
		return nil, fmt.Errorf("%w: %q", period.ErrInvalidPeriod, req.Period)
	}

	if snap == nil {
		if e.source == nil {
			return nil, fmt.Errorf("%w: no snapshot source", ErrExportFailed)
		}

		fetched, err := e.source.Snapshot(ctx, req.Period, req.WorkerID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExportFailed, err)
		}
		if fetched == nil {
			return nil, fmt.Errorf("%w: no data for period %s", ErrExportFailed, req.Period)
		}
		snap = fetched
	}

	data, err := e.encoder.Encode(snap)
	if err != nil {
		return nil, err
	}

	return &Artifact{
		Filename:    Filename(req.Period, e.now()),
		ContentType: ContentType,
		Data:        data,
	}, nil
}

// Filename follows the report_<period>_<YYYYMMDD>.csv convention browsers
// already handle.
func Filename(p period.Period, now time.Time) string {
	return fmt.Sprintf("report_%s_%s.csv", p, now.Format("20060102"))
}
