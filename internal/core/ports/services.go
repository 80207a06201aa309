package ports

import (
	"context"
	"io"
	"time"

	"github.com/lorrc/field-metrics/internal/core/domain"
)

// ReportRequest is the caller-facing input shared by every view.
type ReportRequest struct {
	View    domain.ReportView
	Window  *domain.TimeWindow // nil selects the default trailing window
	Filters domain.ReportFilters
	Page    int
	Limit   int
	Scope   domain.Scope
}

// ReportService defines the port for assembling analytical views.
type ReportService interface {
	Generate(ctx context.Context, req ReportRequest) (*domain.Report, error)
	Views() []domain.ReportView
}

// ExportService defines the port for rendering a report as a document.
type ExportService interface {
	Export(ctx context.Context, req ReportRequest, format domain.ExportFormat, w io.Writer) error
}

// MetricsRecorder receives operational measurements. Implementations must be
// safe for concurrent use.
type MetricsRecorder interface {
	ObserveReport(view, outcome string, rows int, d time.Duration)
	ObserveFetch(op, outcome string, d time.Duration)
	ObserveBatchItem(outcome string)
	BatchStarted()
	BatchFinished()
	ObserveExport(format, outcome string, bytes int64)
}
