package domain

import (
	"strings"
	"time"

	apperrors "github.com/lorrc/field-metrics/internal/core/errors"
)

// ReportView selects one analytical view over the record store.
type ReportView string

const (
	ViewTicketSummary       ReportView = "ticket-summary"
	ViewSlaPerformance      ReportView = "sla-performance"
	ViewZonePerformance     ReportView = "zone-performance"
	ViewAgentProductivity   ReportView = "agent-productivity"
	ViewIndustrialDowntime  ReportView = "industrial-downtime"
	ViewExecutiveSummary    ReportView = "executive-summary"
	ViewBusinessHoursSla    ReportView = "business-hours-sla"
	ViewOfferSummary        ReportView = "offer-summary"
	ViewProductTypeAnalysis ReportView = "product-type-analysis"
	ViewCustomerPerformance ReportView = "customer-performance"
	ViewTargetReport        ReportView = "target-report"
)

// ReportViews lists every view in a stable order.
var ReportViews = []ReportView{
	ViewTicketSummary, ViewSlaPerformance, ViewZonePerformance, ViewAgentProductivity,
	ViewIndustrialDowntime, ViewExecutiveSummary, ViewBusinessHoursSla, ViewOfferSummary,
	ViewProductTypeAnalysis, ViewCustomerPerformance, ViewTargetReport,
}

var viewAliases = map[string]ReportView{
	"her-analysis": ViewBusinessHoursSla,
}

// ParseReportView resolves a view name, case-insensitively.
func ParseReportView(name string) (ReportView, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, v := range ReportViews {
		if string(v) == n {
			return v, nil
		}
	}
	if v, ok := viewAliases[n]; ok {
		return v, nil
	}
	return "", apperrors.NewInvalidViewError(name)
}

func (v ReportView) String() string {
	return string(v)
}

// DataType drives formatting of metrics and export columns.
type DataType string

const (
	TypeText       DataType = "text"
	TypeNumber     DataType = "number"
	TypeDate       DataType = "date"
	TypeCurrency   DataType = "currency"
	TypePercentage DataType = "percentage"
	TypeDuration   DataType = "duration"
)

// Metric is one named scalar of a report summary.
type Metric struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Value    float64  `json:"value"`
	DataType DataType `json:"dataType"`
}

// DistributionEntry is one category of a distribution.
type DistributionEntry struct {
	Key   string  `json:"key"`
	Label string  `json:"label"`
	Count int64   `json:"count"`
	Sum   float64 `json:"sum,omitempty"`
}

// Distribution is a per-category breakdown, complete over its domain.
type Distribution struct {
	Name    string              `json:"name"`
	Entries []DistributionEntry `json:"entries"`
}

// TrendPoint is one day of the created/resolved/escalated/assigned series.
// Degraded marks a day whose sub-fetch failed and was reported as zero.
type TrendPoint struct {
	Day       time.Time `json:"day"`
	Created   int64     `json:"created"`
	Resolved  int64     `json:"resolved"`
	Escalated int64     `json:"escalated"`
	Assigned  int64     `json:"assigned"`
	Degraded  bool      `json:"degraded,omitempty"`
}

// Pagination describes the slice of rows returned by listing views.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Row is one listing entry. Nested maps let dotted paths like "zone.name" resolve.
type Row map[string]any

// Report is the assembled output of one view.
type Report struct {
	View          ReportView     `json:"view"`
	Window        TimeWindow     `json:"window"`
	Summary       []Metric       `json:"summary"`
	Distributions []Distribution `json:"distributions"`
	Rows          []Row          `json:"rows"`
	Trend         []TrendPoint   `json:"trend,omitempty"`
	Pagination    *Pagination    `json:"pagination,omitempty"`
}

// Metric returns the summary metric with the given key.
func (r *Report) Metric(key string) (Metric, bool) {
	for _, m := range r.Summary {
		if m.Key == key {
			return m, true
		}
	}
	return Metric{}, false
}

// Distribution returns the named distribution.
func (r *Report) Distribution(name string) (Distribution, bool) {
	for _, d := range r.Distributions {
		if d.Name == name {
			return d, true
		}
	}
	return Distribution{}, false
}

// Scope restricts a caller to a subset of zones.
type Scope struct {
	Restricted bool
	ZoneIDs    []string
}

// UnrestrictedScope sees every zone.
func UnrestrictedScope() Scope {
	return Scope{}
}

// ZoneScope limits visibility to the given zones. No zones means no records.
func ZoneScope(zoneIDs ...string) Scope {
	ids := make([]string, len(zoneIDs))
	copy(ids, zoneIDs)
	return Scope{Restricted: true, ZoneIDs: ids}
}

// Allows reports whether a zone is visible under the scope.
func (s Scope) Allows(zoneID string) bool {
	if !s.Restricted {
		return true
	}
	for _, id := range s.ZoneIDs {
		if id == zoneID {
			return true
		}
	}
	return false
}

// ReportFilters are the optional constraints layered onto the time window.
type ReportFilters struct {
	ZoneIDs      []string `json:"zoneIds,omitempty"`
	CustomerIDs  []string `json:"customerIds,omitempty"`
	AssigneeIDs  []string `json:"assigneeIds,omitempty"`
	AssetIDs     []string `json:"assetIds,omitempty"`
	ProductTypes []string `json:"productTypes,omitempty"`
	Statuses     []string `json:"statuses,omitempty"`
	Priorities   []string `json:"priorities,omitempty"`
	Stages       []string `json:"stages,omitempty"`
	IncludeTrend bool     `json:"includeTrend,omitempty"`
}

// Validate checks categorical filters against their known domains.
func (f ReportFilters) Validate() error {
	verrs := apperrors.NewValidationErrors()
	for _, s := range f.Statuses {
		if !TicketStatus(s).IsValid() {
			verrs.Add("status", "unknown status "+s)
		}
	}
	for _, p := range f.Priorities {
		if !TicketPriority(p).IsValid() {
			verrs.Add("priority", "unknown priority "+p)
		}
	}
	for _, s := range f.Stages {
		if !OfferStage(s).IsValid() {
			verrs.Add("stage", "unknown stage "+s)
		}
	}
	if verrs.HasErrors() {
		return verrs
	}
	return nil
}

// Pairs renders the active filters as ordered key/value pairs for export headers.
func (f ReportFilters) Pairs() []KeyValue {
	var out []KeyValue
	add := func(key string, values []string) {
		if len(values) > 0 {
			out = append(out, KeyValue{Key: key, Value: strings.Join(values, ", ")})
		}
	}
	add("Zones", f.ZoneIDs)
	add("Customers", f.CustomerIDs)
	add("Assignees", f.AssigneeIDs)
	add("Assets", f.AssetIDs)
	add("Product types", f.ProductTypes)
	add("Statuses", f.Statuses)
	add("Priorities", f.Priorities)
	add("Stages", f.Stages)
	return out
}
