package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/flipscout/flipscout/internal/domain"
)

// CycleReport summarises one scan cycle for cold-storage archival and the
// end-of-cycle notification.
type CycleReport struct {
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Queries       []string  `json:"queries"`
	Scanned       int       `json:"scanned"`
	Discarded     int       `json:"discarded"`
	Deduped       int       `json:"deduped"`
	Evaluated     int       `json:"evaluated"`
	NoPriceData   int       `json:"no_price_data"`
	SafetyRejects int       `json:"safety_rejects"`
	QualityCut    int       `json:"quality_cut"`
	Conflicts     int       `json:"conflicts"`
	SubmittedDeal string    `json:"submitted_deal,omitempty"`
	TopScore      float64   `json:"top_score"`
}

// ReportArchiver uploads cycle reports to blob storage as JSON, one object
// per cycle under reports/YYYY/MM/DD/.
type ReportArchiver struct {
	blob   domain.BlobWriter
	logger *slog.Logger
}

// NewReportArchiver creates a ReportArchiver. The writer may be nil, in which
// case Archive is a no-op.
func NewReportArchiver(blob domain.BlobWriter, logger *slog.Logger) *ReportArchiver {
	return &ReportArchiver{
		blob:   blob,
		logger: logger.With(slog.String("component", "report_archiver")),
	}
}

// Archive uploads one cycle report. Failures are logged and swallowed: report
// archival must never fail a scan cycle.
func (ra *ReportArchiver) Archive(ctx context.Context, report CycleReport) {
	if ra.blob == nil {
		return
	}

	data, err := json.Marshal(report)
	if err != nil {
		ra.logger.ErrorContext(ctx, "marshal cycle report", slog.String("error", err.Error()))
		return
	}

	path := fmt.Sprintf("reports/%s/cycle-%d.json",
		report.StartedAt.UTC().Format("2006/01/02"),
		report.StartedAt.UTC().UnixNano(),
	)
	if err := ra.blob.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		ra.logger.WarnContext(ctx, "cycle report upload failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return
	}
	ra.logger.DebugContext(ctx, "cycle report archived", slog.String("path", path))
}
