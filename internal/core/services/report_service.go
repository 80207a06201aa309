package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lorrc/field-metrics/internal/core/batch"
	"github.com/lorrc/field-metrics/internal/core/domain"
	apperrors "github.com/lorrc/field-metrics/internal/core/errors"
	"github.com/lorrc/field-metrics/internal/core/ports"
	"github.com/lorrc/field-metrics/internal/core/stats"
	"github.com/lorrc/field-metrics/internal/infrastructure/logging"
)

// ReportConfig holds the request defaults of the assembler.
type ReportConfig struct {
	DefaultWindowDays int
	TrendMaxDays      int
	DefaultLimit      int
	MaxLimit          int
}

func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		DefaultWindowDays: 30,
		TrendMaxDays:      90,
		DefaultLimit:      500,
		MaxLimit:          1000,
	}
}

// ReportService assembles report views from the record store.
type ReportService struct {
	fetcher   ports.RecordFetcher
	calc      *MetricsCalculator
	scheduler *batch.Scheduler
	cfg       ReportConfig
	logger    *slog.Logger
	metrics   ports.MetricsRecorder
	now       func() time.Time
	views     map[domain.ReportView]viewDef
}

var _ ports.ReportService = (*ReportService)(nil)

// ReportOption customises a ReportService.
type ReportOption func(*ReportService)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) ReportOption {
	return func(s *ReportService) {
		s.now = now
	}
}

// WithMetrics attaches an operational metrics recorder.
func WithMetrics(m ports.MetricsRecorder) ReportOption {
	return func(s *ReportService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewReportService creates the report assembler.
func NewReportService(
	fetcher ports.RecordFetcher,
	calc *MetricsCalculator,
	scheduler *batch.Scheduler,
	cfg ReportConfig,
	logger *slog.Logger,
	opts ...ReportOption,
) *ReportService {
	def := DefaultReportConfig()
	if cfg.DefaultWindowDays <= 0 {
		cfg.DefaultWindowDays = def.DefaultWindowDays
	}
	if cfg.TrendMaxDays <= 0 {
		cfg.TrendMaxDays = def.TrendMaxDays
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = def.MaxLimit
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	if cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = cfg.MaxLimit
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &ReportService{
		fetcher:   fetcher,
		calc:      calc,
		scheduler: scheduler,
		cfg:       cfg,
		logger:    logger.With("component", "reports"),
		metrics:   nopRecorder{},
		now:       time.Now,
		views:     registerViews(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Views lists the supported views in a stable order.
func (s *ReportService) Views() []domain.ReportView {
	out := make([]domain.ReportView, 0, len(domain.ReportViews))
	for _, v := range domain.ReportViews {
		if _, ok := s.views[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Generate runs the full pipeline for one view and returns a paginated report.
func (s *ReportService) Generate(ctx context.Context, req ports.ReportRequest) (*domain.Report, error) {
	rep, _, err := s.generate(ctx, req, false)
	return rep, err
}

func (s *ReportService) generate(ctx context.Context, req ports.ReportRequest, all bool) (*domain.Report, viewDef, error) {
	started := time.Now()
	ctx = logging.WithReportView(ctx, string(req.View))

	rep, def, err := s.assemble(ctx, req, all)

	outcome := "ok"
	rows := 0
	if err != nil {
		outcome = "error"
		s.logger.WarnContext(ctx, "report failed", "error", err, "duration_ms", time.Since(started).Milliseconds())
	} else {
		rows = len(rep.Rows)
		s.logger.InfoContext(ctx, "report generated",
			"rows", rows,
			"window_start", rep.Window.Start,
			"window_end", rep.Window.End,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	}
	s.metrics.ObserveReport(string(req.View), outcome, rows, time.Since(started))
	return rep, def, err
}

func (s *ReportService) assemble(ctx context.Context, req ports.ReportRequest, all bool) (*domain.Report, viewDef, error) {
	// 1. Validate
	def, ok := s.views[req.View]
	if !ok {
		return nil, viewDef{}, apperrors.NewInvalidViewError(string(req.View))
	}
	if err := req.Filters.Validate(); err != nil {
		return nil, def, err
	}
	page, limit, err := s.resolvePage(req.Page, req.Limit)
	if err != nil {
		return nil, def, err
	}

	// 2. Resolve window
	now := s.now()
	window, err := s.resolveWindow(req.Window, now)
	if err != nil {
		return nil, def, err
	}

	// 3. Assemble the view against one shared scope
	rs := newReportScope(s, req, window, now)
	rep, err := def.assemble(ctx, rs)
	if err != nil {
		return nil, def, s.classify(err)
	}

	// 4. Optional trend
	if def.trend == trendAlways || (def.trend == trendOnRequest && req.Filters.IncludeTrend) {
		trend, err := rs.trend(ctx)
		if err != nil {
			return nil, def, s.classify(err)
		}
		rep.Trend = trend
	}

	// 5. Shape and paginate
	rep.View = def.view
	rep.Window = window
	if rep.Summary == nil {
		rep.Summary = []domain.Metric{}
	}
	if rep.Distributions == nil {
		rep.Distributions = []domain.Distribution{}
	}
	if rep.Rows == nil {
		rep.Rows = []domain.Row{}
	}
	if !all {
		rep.Rows, rep.Pagination = paginate(rep.Rows, page, limit)
	}
	return rep, def, nil
}

func (s *ReportService) resolvePage(page, limit int) (int, int, error) {
	if page < 0 || limit < 0 {
		return 0, 0, apperrors.NewInvalidFilterError(apperrors.ErrInvalidPagination, "page and limit must be positive", map[string]interface{}{
			"page":  page,
			"limit": limit,
		})
	}
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}
	return page, limit, nil
}

func (s *ReportService) resolveWindow(w *domain.TimeWindow, now time.Time) (domain.TimeWindow, error) {
	if w == nil {
		return domain.DefaultWindow(now, s.cfg.DefaultWindowDays, s.calc.Calendar().Location()), nil
	}
	if err := w.Validate(); err != nil {
		return domain.TimeWindow{}, err
	}
	return w.UTC(), nil
}

// classify turns record store failures into the UPSTREAM_FETCH_FAILED client error.
func (s *ReportService) classify(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, apperrors.ErrUpstreamFetch) {
		return apperrors.NewUpstreamFetchError(err)
	}
	return err
}

// paginate slices rows for one page. Pages past the end are empty but keep the totals.
func paginate(rows []domain.Row, page, limit int) ([]domain.Row, *domain.Pagination) {
	total := len(rows)
	p := &domain.Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: stats.CeilDiv(total, limit),
	}
	start := (page - 1) * limit
	if start >= total {
		return []domain.Row{}, p
	}
	end := min(start+limit, total)
	return rows[start:end], p
}

// reportScope carries one request through a view. It owns the single base
// filter every sub-query is built from, so scope and user filters can never
// be applied to one sub-query and forgotten on another.
type reportScope struct {
	svc    *ReportService
	req    ports.ReportRequest
	window domain.TimeWindow
	now    time.Time

	tickets  []DerivedRecord
	loaded   bool
	entities map[domain.EntityKind][]domain.DomainEntity
}

func newReportScope(s *ReportService, req ports.ReportRequest, window domain.TimeWindow, now time.Time) *reportScope {
	return &reportScope{
		svc:      s,
		req:      req,
		window:   window,
		now:      now,
		entities: make(map[domain.EntityKind][]domain.DomainEntity),
	}
}

// baseFilter is the scope plus the user filters that apply to kind.
func (rs *reportScope) baseFilter(kind domain.RecordKind) domain.Filter {
	f := rs.req.Filters
	var parts []domain.Filter

	if rs.req.Scope.Restricted {
		parts = append(parts, domain.In(domain.FieldZone, rs.req.Scope.ZoneIDs...))
	}
	if len(f.ZoneIDs) > 0 {
		parts = append(parts, domain.In(domain.FieldZone, f.ZoneIDs...))
	}

	switch kind {
	case domain.KindTicket:
		parts = appendIn(parts, domain.FieldCustomer, f.CustomerIDs)
		parts = appendIn(parts, domain.FieldAssignee, f.AssigneeIDs)
		parts = appendIn(parts, domain.FieldAsset, f.AssetIDs)
		parts = appendIn(parts, domain.FieldProductType, f.ProductTypes)
		parts = appendIn(parts, domain.FieldStatus, f.Statuses)
		parts = appendIn(parts, domain.FieldPriority, f.Priorities)
	case domain.KindOffer:
		parts = appendIn(parts, domain.FieldCustomer, f.CustomerIDs)
		parts = appendIn(parts, domain.FieldAssignee, f.AssigneeIDs)
		parts = appendIn(parts, domain.FieldProductType, f.ProductTypes)
		parts = appendIn(parts, domain.FieldStatus, f.Stages)
	case domain.KindAttendance, domain.KindActivity:
		parts = appendIn(parts, domain.FieldAssignee, f.AssigneeIDs)
	case domain.KindTarget:
		parts = appendIn(parts, domain.FieldProductType, f.ProductTypes)
	}
	return domain.All(parts...)
}

func appendIn(parts []domain.Filter, field domain.Field, values []string) []domain.Filter {
	if len(values) == 0 {
		return parts
	}
	return append(parts, domain.In(field, values...))
}

// query builds a windowed query of kind with extra constraints.
func (rs *reportScope) query(kind domain.RecordKind, windowField domain.Field, extra ...domain.Filter) ports.RecordQuery {
	return rs.queryIn(kind, rs.window, windowField, extra...)
}

func (rs *reportScope) queryIn(kind domain.RecordKind, window domain.TimeWindow, windowField domain.Field, extra ...domain.Filter) ports.RecordQuery {
	filters := append([]domain.Filter{rs.baseFilter(kind)}, extra...)
	return ports.RecordQuery{
		Kind:        kind,
		Window:      window,
		WindowField: windowField,
		Filter:      domain.All(filters...),
	}
}

func (rs *reportScope) find(ctx context.Context, q ports.RecordQuery) ([]domain.ServiceRecord, error) {
	recs, err := rs.svc.fetcher.FindRecords(ctx, q)
	if err != nil {
		return nil, upstream("find "+string(q.Kind), err)
	}
	return recs, nil
}

func (rs *reportScope) groupCount(ctx context.Context, q ports.RecordQuery, by domain.Field) (map[string]int64, error) {
	groups, err := rs.svc.fetcher.GroupCount(ctx, q, by)
	if err != nil {
		return nil, upstream("group count "+string(q.Kind), err)
	}
	out := make(map[string]int64, len(groups))
	for _, g := range groups {
		out[g.Key] += g.Count
	}
	return out, nil
}

func (rs *reportScope) groupAggregate(ctx context.Context, q ports.RecordQuery, by domain.Field, sums ...domain.Field) (map[string]ports.GroupAggregate, error) {
	groups, err := rs.svc.fetcher.GroupAggregate(ctx, q, by, sums...)
	if err != nil {
		return nil, upstream("group aggregate "+string(q.Kind), err)
	}
	out := make(map[string]ports.GroupAggregate, len(groups))
	for _, g := range groups {
		out[g.Key] = g
	}
	return out, nil
}

func upstream(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperrors.NewUpstreamError(op, err)
}

// derivedTickets loads tickets created in the window, with status history,
// and derives their metrics once per request.
func (rs *reportScope) derivedTickets(ctx context.Context) ([]DerivedRecord, error) {
	if rs.loaded {
		return rs.tickets, nil
	}
	q := rs.query(domain.KindTicket, domain.FieldCreatedAt)
	q.Include = []domain.Include{domain.IncludeTransitions}
	recs, err := rs.find(ctx, q)
	if err != nil {
		return nil, err
	}
	rs.tickets = rs.svc.calc.DeriveAll(recs, rs.now)
	rs.loaded = true
	return rs.tickets, nil
}

// domainEntities lists a reference domain restricted to what the caller may
// see and to the user's filters, sorted by ID.
func (rs *reportScope) domainEntities(ctx context.Context, kind domain.EntityKind) ([]domain.DomainEntity, error) {
	if cached, ok := rs.entities[kind]; ok {
		return cached, nil
	}
	all, err := rs.svc.fetcher.ListDomainEntities(ctx, kind)
	if err != nil {
		return nil, upstream(fmt.Sprintf("list %s entities", kind), err)
	}

	f := rs.req.Filters
	var own []string
	switch kind {
	case domain.EntityZone:
		own = f.ZoneIDs
	case domain.EntityCustomer:
		own = f.CustomerIDs
	case domain.EntityTechnician:
		own = f.AssigneeIDs
	case domain.EntityAsset:
		own = f.AssetIDs
	case domain.EntityProductType:
		own = f.ProductTypes
	}

	zoned := kind != domain.EntityProductType
	out := make([]domain.DomainEntity, 0, len(all))
	for _, e := range all {
		zoneID := e.ZoneID
		if kind == domain.EntityZone {
			zoneID = e.ID
		}
		if zoned && !rs.req.Scope.Allows(zoneID) {
			continue
		}
		if zoned && len(f.ZoneIDs) > 0 && !contains(f.ZoneIDs, zoneID) {
			continue
		}
		if len(own) > 0 && !contains(own, e.ID) {
			continue
		}
		out = append(out, e)
	}
	sortEntities(out)
	rs.entities[kind] = out
	return out, nil
}

// index loads a domain and returns its name lookup.
func (rs *reportScope) index(ctx context.Context, kind domain.EntityKind) ([]domain.DomainEntity, domain.EntityIndex, error) {
	ents, err := rs.domainEntities(ctx, kind)
	if err != nil {
		return nil, nil, err
	}
	return ents, domain.IndexEntities(ents), nil
}

// trend builds the daily created/resolved/escalated/assigned series over the
// trailing TrendMaxDays of the window. Failed days degrade to zero. Resolved
// counts terminal tickets by closedAt; escalated counts tickets currently
// ESCALATED by updatedAt, since per-day counts cannot see transitions.
func (rs *reportScope) trend(ctx context.Context) ([]domain.TrendPoint, error) {
	loc := rs.svc.calc.Calendar().Location()
	w := rs.window
	earliest := domain.StartOfDay(w.End.In(loc)).AddDate(0, 0, -(rs.svc.cfg.TrendMaxDays - 1))
	if w.Start.Before(earliest) {
		w.Start = earliest.UTC()
	}

	days, results, err := batch.RunDays(ctx, rs.svc.scheduler, w, loc, func(ctx context.Context, day domain.TimeWindow) (domain.TrendPoint, error) {
		return rs.trendDay(ctx, day)
	})
	if err != nil {
		return nil, err
	}

	points := make([]domain.TrendPoint, len(days))
	for i, r := range results {
		p := r.Value
		p.Day = domain.StartOfDay(days[i].Start.In(loc))
		p.Degraded = r.Degraded
		points[i] = p
	}
	return points, nil
}

func (rs *reportScope) trendDay(ctx context.Context, day domain.TimeWindow) (domain.TrendPoint, error) {
	var p domain.TrendPoint
	fetch := rs.svc.fetcher

	created, err := fetch.CountRecords(ctx, rs.queryIn(domain.KindTicket, day, domain.FieldCreatedAt))
	if err != nil {
		return p, err
	}
	resolved, err := fetch.CountRecords(ctx, rs.queryIn(domain.KindTicket, day, domain.FieldClosedAt,
		domain.In(domain.FieldStatus, string(domain.StatusResolved), string(domain.StatusClosed))))
	if err != nil {
		return p, err
	}
	escalated, err := fetch.CountRecords(ctx, rs.queryIn(domain.KindTicket, day, domain.FieldUpdatedAt,
		domain.Eq(domain.FieldStatus, string(domain.StatusEscalated))))
	if err != nil {
		return p, err
	}
	assigned, err := fetch.CountRecords(ctx, rs.queryIn(domain.KindTicket, day, domain.FieldCreatedAt,
		domain.Present(domain.FieldAssignee)))
	if err != nil {
		return p, err
	}

	p.Created, p.Resolved, p.Escalated, p.Assigned = created, resolved, escalated, assigned
	return p, nil
}

type nopRecorder struct{}

func (nopRecorder) ObserveReport(string, string, int, time.Duration) {}
func (nopRecorder) ObserveFetch(string, string, time.Duration)       {}
func (nopRecorder) ObserveBatchItem(string)                          {}
func (nopRecorder) BatchStarted()                                    {}
func (nopRecorder) BatchFinished()                                   {}
func (nopRecorder) ObserveExport(string, string, int64)              {}
