package services

import (
	"context"
	"sort"

	"github.com/lorrc/field-metrics/internal/core/domain"
)

type trendMode int

const (
	trendNever trendMode = iota
	trendOnRequest
	trendAlways
)

// viewDef is one report view: its export layout and its assembly pipeline.
// assemble runs fetch, derive, distribute, summarize and rows stages against
// the shared reportScope and never paginates.
type viewDef struct {
	view     domain.ReportView
	title    string
	columns  []domain.ColumnSpec
	trend    trendMode
	assemble func(ctx context.Context, rs *reportScope) (*domain.Report, error)
}

func registerViews() map[domain.ReportView]viewDef {
	defs := []viewDef{
		ticketSummaryView(),
		slaPerformanceView(),
		zonePerformanceView(),
		agentProductivityView(),
		industrialDowntimeView(),
		executiveSummaryView(),
		businessHoursSlaView(),
		offerSummaryView(),
		productTypeAnalysisView(),
		customerPerformanceView(),
		targetReportView(),
	}
	views := make(map[domain.ReportView]viewDef, len(defs))
	for _, d := range defs {
		views[d.view] = d
	}
	return views
}

func col(key, header string, dt domain.DataType, width float64) domain.ColumnSpec {
	return domain.ColumnSpec{Key: key, Header: header, DataType: dt, Width: width}
}

func yesNoCol(key, header string) domain.ColumnSpec {
	c := col(key, header, domain.TypeText, 10)
	c.Formatter = func(v any) string {
		if b, ok := v.(bool); ok && b {
			return "Yes"
		}
		return "No"
	}
	return c
}

// byTier groups tickets by their SLA tier; unknown priorities fall into the fallback tier.
func byTier(sla domain.SlaTable, tickets []DerivedRecord) map[domain.TicketPriority][]DerivedRecord {
	out := make(map[domain.TicketPriority][]DerivedRecord)
	for _, t := range tickets {
		tier := sla.Tier(t.Priority)
		out[tier] = append(out[tier], t)
	}
	return out
}

// byKey groups records by a text field.
func byKey(recs []DerivedRecord, field domain.Field) map[string][]DerivedRecord {
	out := make(map[string][]DerivedRecord)
	for _, r := range recs {
		k := r.Text(field)
		out[k] = append(out[k], r)
	}
	return out
}

// sortRowsBy orders rows by a numeric key descending, then by the "id" key
// of the given reference column ascending.
func sortRowsBy(rows []domain.Row, numeric string, refKey string) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := toFloat(rows[i][numeric]), toFloat(rows[j][numeric])
		if a != b {
			return a > b
		}
		return refID(rows[i][refKey]) < refID(rows[j][refKey])
	})
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func refID(v any) string {
	switch r := v.(type) {
	case map[string]any:
		id, _ := r["id"].(string)
		return id
	case string:
		return r
	}
	return ""
}
