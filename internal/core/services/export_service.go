package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/lorrc/field-metrics/internal/core/domain"
	"github.com/lorrc/field-metrics/internal/core/ports"
	"github.com/lorrc/field-metrics/internal/export"
)

// Renderer writes an export document in one format.
type Renderer interface {
	Render(w io.Writer, doc domain.ExportDocument, format domain.ExportFormat) error
}

// ExportService renders generated reports as documents.
type ExportService struct {
	reports  *ReportService
	renderer Renderer
	logger   *slog.Logger
	metrics  ports.MetricsRecorder
}

var _ ports.ExportService = (*ExportService)(nil)

// NewExportService creates an exporter on top of the report assembler.
// A nil renderer uses export.Serializer with its default page size.
func NewExportService(reports *ReportService, renderer Renderer, logger *slog.Logger) *ExportService {
	if renderer == nil {
		renderer = export.NewSerializer(export.DefaultPageSize)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportService{
		reports:  reports,
		renderer: renderer,
		logger:   logger.With("component", "export"),
		metrics:  reports.metrics,
	}
}

// Export generates the report without pagination and renders every row.
// Nothing is written to w unless rendering succeeds.
func (s *ExportService) Export(ctx context.Context, req ports.ReportRequest, format domain.ExportFormat, w io.Writer) error {
	rep, def, err := s.reports.generate(ctx, req, true)
	if err != nil {
		s.metrics.ObserveExport(string(format), "error", 0)
		return err
	}

	doc := s.document(rep, def, req.Filters)

	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, doc, format); err != nil {
		s.metrics.ObserveExport(string(format), "error", 0)
		s.logger.ErrorContext(ctx, "export render failed", "error", err, "format", format, "view", def.view)
		return fmt.Errorf("failed to render %s export: %w", format, err)
	}

	n, err := buf.WriteTo(w)
	if err != nil {
		s.metrics.ObserveExport(string(format), "error", n)
		return fmt.Errorf("failed to write export: %w", err)
	}

	s.metrics.ObserveExport(string(format), "ok", n)
	s.logger.InfoContext(ctx, "report exported", "format", format, "view", def.view, "rows", len(doc.Rows), "bytes", n)
	return nil
}

func (s *ExportService) document(rep *domain.Report, def viewDef, filters domain.ReportFilters) domain.ExportDocument {
	loc := s.reports.calc.Calendar().Location()
	pairs := []domain.KeyValue{{
		Key: "Window",
		Value: fmt.Sprintf("%s to %s",
			rep.Window.Start.In(loc).Format("2006-01-02"),
			rep.Window.End.In(loc).Format("2006-01-02")),
	}}
	pairs = append(pairs, filters.Pairs()...)

	return domain.ExportDocument{
		Title:   def.title,
		Filters: pairs,
		Summary: rep.Summary,
		Columns: def.columns,
		Rows:    rep.Rows,
	}
}
