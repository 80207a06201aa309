package http

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	mw "github.com/lorrc/field-metrics/internal/adapters/primary/http/middleware"
	"github.com/lorrc/field-metrics/internal/adapters/primary/validation"
	"github.com/lorrc/field-metrics/internal/core/domain"
	"github.com/lorrc/field-metrics/internal/core/ports"
	"github.com/lorrc/field-metrics/internal/infrastructure/logging"
)

// ReportHandlerConfig holds the request-level settings of the report endpoints.
type ReportHandlerConfig struct {
	// Location interprets date-only from/to parameters.
	Location *time.Location
	// Timeout bounds one report or export; zero disables it.
	Timeout time.Duration
	// ExportMiddleware wraps only the export route, e.g. a per-user rate limit.
	ExportMiddleware []func(http.Handler) http.Handler
}

// ReportHandler serves report views and their document exports.
type ReportHandler struct {
	reports      ports.ReportService
	exporter     ports.ExportService
	cfg          ReportHandlerConfig
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(
	reports ports.ReportService,
	exporter ports.ExportService,
	cfg ReportHandlerConfig,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *ReportHandler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &ReportHandler{
		reports:      reports,
		exporter:     exporter,
		cfg:          cfg,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "report"),
	}
}

// RegisterRoutes sets up the routing for the report endpoints.
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleListViews)
	r.Get("/{view}", h.HandleGetReport)
	r.With(h.cfg.ExportMiddleware...).Get("/{view}/export", h.HandleExport)
}

// HandleListViews handles GET /reports
func (h *ReportHandler) HandleListViews(w http.ResponseWriter, r *http.Request) {
	WriteList(w, h.reports.Views())
}

// HandleGetReport handles GET /reports/{view}
func (h *ReportHandler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(r.Context(), req.View)
	defer cancel()

	rep, err := h.reports.Generate(ctx, req)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteData(w, r, rep)
}

// HandleExport handles GET /reports/{view}/export?format=
func (h *ReportHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	format, err := domain.ParseExportFormat(r.URL.Query().Get("format"))
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(r.Context(), req.View)
	defer cancel()

	aw := &attachmentWriter{
		w:        w,
		format:   format,
		filename: exportFilename(req.View, format, time.Now().In(h.cfg.Location)),
	}
	if err := h.exporter.Export(ctx, req, format, aw); err != nil {
		if aw.started {
			// Headers are gone; all we can do is log and cut the stream.
			h.logger.ErrorContext(ctx, "export failed mid-stream", "error", err, "format", format)
			return
		}
		h.errorHandler.Handle(w, r, err)
	}
}

// parseRequest resolves the view, query parameters and caller scope.
func (h *ReportHandler) parseRequest(w http.ResponseWriter, r *http.Request) (ports.ReportRequest, bool) {
	view, err := domain.ParseReportView(chi.URLParam(r, "view"))
	if HandleError(w, r, err, h.errorHandler) {
		return ports.ReportRequest{}, false
	}

	req, err := validation.ParseReportQuery(r, h.cfg.Location)
	if HandleError(w, r, err, h.errorHandler) {
		return ports.ReportRequest{}, false
	}

	req.View = view
	req.Scope = mw.ScopeFromContext(r.Context())
	return req, true
}

func (h *ReportHandler) requestContext(ctx context.Context, view domain.ReportView) (context.Context, context.CancelFunc) {
	ctx = logging.WithReportView(ctx, string(view))
	if h.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, h.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

func exportFilename(view domain.ReportView, format domain.ExportFormat, now time.Time) string {
	return string(view) + "-" + now.Format("20060102") + "." + format.Extension()
}

// attachmentWriter sends the download headers on the first write, so a
// failed export can still answer with a JSON error.
type attachmentWriter struct {
	w        http.ResponseWriter
	format   domain.ExportFormat
	filename string
	started  bool
}

func (a *attachmentWriter) Write(p []byte) (int, error) {
	if !a.started {
		a.started = true
		h := a.w.Header()
		h.Set("Content-Type", a.format.ContentType())
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.filename}))
		h.Set("Cache-Control", "no-store")
		a.w.WriteHeader(http.StatusOK)
	}
	return a.w.Write(p)
}
