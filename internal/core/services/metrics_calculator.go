package services

import (
	"sort"
	"time"

	"github.com/lorrc/field-metrics/internal/core/calendar"
	"github.com/lorrc/field-metrics/internal/core/domain"
	"github.com/lorrc/field-metrics/internal/core/stats"
)

// MetricsOptions holds the sanity bounds applied while deriving metrics.
type MetricsOptions struct {
	// SanityThreshold is the minimum UpdatedAt-CreatedAt gap before UpdatedAt
	// is accepted as a resolution time.
	SanityThreshold time.Duration
	// PlausibleMinMinutes and PlausibleMaxWorkingDays bound resolution times
	// that may enter averages.
	PlausibleMinMinutes     float64
	PlausibleMaxWorkingDays float64
	MaxTravelLeg            time.Duration
	MaxOnsite               time.Duration
}

func DefaultMetricsOptions() MetricsOptions {
	return MetricsOptions{
		SanityThreshold:         5 * time.Minute,
		PlausibleMinMinutes:     1,
		PlausibleMaxWorkingDays: 30,
		MaxTravelLeg:            2 * time.Hour,
		MaxOnsite:               8 * time.Hour,
	}
}

// RecordMetrics are the derived fields of one record.
type RecordMetrics struct {
	ResolvedAt           *time.Time
	ResolutionMinutes    *float64 // working minutes, raw even when Outlier
	Outlier              bool
	FirstResponseMinutes *float64
	TravelMinutes        float64
	OnsiteMinutes        float64
	Deadline             time.Time
	AllowedHours         float64
	Breached             bool
	Open                 bool
	Escalated            bool
}

// Resolved reports whether a resolution time could be established.
func (m RecordMetrics) Resolved() bool {
	return m.ResolvedAt != nil
}

// DerivedRecord pairs a record with its derived metrics.
type DerivedRecord struct {
	domain.ServiceRecord
	Metrics RecordMetrics
}

// GroupMetrics summarises a set of derived records.
type GroupMetrics struct {
	Count                   int
	Open                    int
	Resolved                int
	Met                     int
	Breached                int
	Pending                 int
	Escalated               int
	OutlierCount            int
	AvgResolutionMinutes    float64
	MedianResolutionMinutes float64
	AvgFirstResponseMinutes float64
	AvgTravelMinutes        float64
	AvgOnsiteMinutes        float64
	TotalTravelMinutes      float64
	TotalOnsiteMinutes      float64
	ResolutionRate          float64
	SlaCompliance           float64
}

// ScoreComponent is one weighted input of a composite score.
type ScoreComponent struct {
	Value  float64
	Weight float64
}

// MetricsCalculator derives per-record and per-group metrics. It has no side
// effects and holds only immutable configuration.
type MetricsCalculator struct {
	cal  *calendar.Calendar
	sla  domain.SlaTable
	opts MetricsOptions
}

func NewMetricsCalculator(cal *calendar.Calendar, sla domain.SlaTable, opts MetricsOptions) *MetricsCalculator {
	return &MetricsCalculator{cal: cal, sla: sla, opts: opts}
}

// Calendar exposes the working calendar used for every derivation.
func (m *MetricsCalculator) Calendar() *calendar.Calendar {
	return m.cal
}

// SLA exposes the priority table.
func (m *MetricsCalculator) SLA() domain.SlaTable {
	return m.sla
}

// PlausibleMaxMinutes is the upper bound of the plausibility band in working minutes.
func (m *MetricsCalculator) PlausibleMaxMinutes() float64 {
	return m.opts.PlausibleMaxWorkingDays * m.cal.DailyMinutes()
}

// ResolvedAt picks the resolution instant. A non-terminal current status
// means unresolved; so does a non-terminal latest transition when the
// status is unknown. Otherwise the latest transition wins if it is terminal,
// then ClosedAt, then UpdatedAt for terminal records whose UpdatedAt is far
// enough from CreatedAt. Terminal transitions followed by a reopen are
// ignored.
func (m *MetricsCalculator) ResolvedAt(rec domain.ServiceRecord) *time.Time {
	status := domain.TicketStatus(rec.Category)
	if rec.Category != "" && !status.IsTerminal() {
		return nil
	}

	if history := sortedTransitions(rec.Transitions); len(history) > 0 {
		latest := history[len(history)-1]
		switch {
		case domain.TicketStatus(latest.Status).IsTerminal():
			at := latest.ChangedAt
			return &at
		case rec.Category == "":
			return nil
		}
	}

	if rec.ClosedAt != nil {
		at := *rec.ClosedAt
		return &at
	}
	if status.IsTerminal() && rec.UpdatedAt.Sub(rec.CreatedAt) > m.opts.SanityThreshold {
		at := rec.UpdatedAt
		return &at
	}
	return nil
}

// Derive computes every per-record metric as of now.
func (m *MetricsCalculator) Derive(rec domain.ServiceRecord, now time.Time) RecordMetrics {
	out := RecordMetrics{
		AllowedHours: m.sla.AllowedHours(rec.Priority),
		Escalated:    isEscalated(rec),
	}
	out.ResolvedAt = m.ResolvedAt(rec)

	if deadline, err := m.cal.ProjectDeadline(rec.CreatedAt, out.AllowedHours); err == nil {
		out.Deadline = deadline
	}

	if out.ResolvedAt != nil {
		minutes, err := m.cal.ElapsedMinutes(rec.CreatedAt, *out.ResolvedAt)
		if err != nil {
			// beyond the day-walk ceiling: keep the record, drop the value
			out.Outlier = true
		} else {
			out.ResolutionMinutes = &minutes
			out.Outlier = !m.Plausible(minutes)
			out.Breached = minutes/60 > out.AllowedHours
		}
	} else if domain.TicketStatus(rec.Category) != domain.StatusCancelled {
		out.Open = true
		out.Breached = !out.Deadline.IsZero() && now.After(out.Deadline)
	}

	out.FirstResponseMinutes = m.firstResponse(rec)
	out.TravelMinutes, out.OnsiteMinutes = m.segments(rec.Transitions)
	return out
}

// DeriveAll derives metrics for every record, preserving order.
func (m *MetricsCalculator) DeriveAll(recs []domain.ServiceRecord, now time.Time) []DerivedRecord {
	out := make([]DerivedRecord, len(recs))
	for i, rec := range recs {
		out[i] = DerivedRecord{ServiceRecord: rec, Metrics: m.Derive(rec, now)}
	}
	return out
}

// Plausible reports whether a resolution time may enter averages.
func (m *MetricsCalculator) Plausible(minutes float64) bool {
	return minutes >= m.opts.PlausibleMinMinutes && minutes <= m.PlausibleMaxMinutes()
}

// WorkingMinutes is the calendar's elapsed working time, 0 when the walk is refused.
func (m *MetricsCalculator) WorkingMinutes(start, end time.Time) float64 {
	v, err := m.cal.ElapsedMinutes(start, end)
	if err != nil {
		return 0
	}
	return v
}

// firstResponse uses the first transition away from OPEN. This conflates
// human triage with automated churn; kept until transitions carry an actor.
func (m *MetricsCalculator) firstResponse(rec domain.ServiceRecord) *float64 {
	for _, tr := range sortedTransitions(rec.Transitions) {
		if tr.Status == string(domain.StatusOpen) || tr.ChangedAt.Before(rec.CreatedAt) {
			continue
		}
		v := m.WorkingMinutes(rec.CreatedAt, tr.ChangedAt)
		return &v
	}
	return nil
}

// segments sums the travel and on-site legs of the visit workflow in wall-clock minutes.
func (m *MetricsCalculator) segments(transitions []domain.StatusTransition) (travel, onsite float64) {
	var visitStarted, arrived, onsiteResolved *time.Time

	for _, tr := range sortedTransitions(transitions) {
		at := tr.ChangedAt
		switch domain.TicketStatus(tr.Status) {
		case domain.StatusVisitStarted:
			visitStarted = &at
		case domain.StatusArrived:
			travel += boundedLeg(visitStarted, &at, m.opts.MaxTravelLeg)
			visitStarted = nil
			arrived = &at
		case domain.StatusOnsiteResolved:
			onsite += boundedLeg(arrived, &at, m.opts.MaxOnsite)
			arrived = nil
			onsiteResolved = &at
		case domain.StatusVisitCompleted:
			travel += boundedLeg(onsiteResolved, &at, m.opts.MaxTravelLeg)
			onsiteResolved = nil
		}
	}
	return travel, onsite
}

func boundedLeg(from, to *time.Time, limit time.Duration) float64 {
	if from == nil || to == nil {
		return 0
	}
	d := to.Sub(*from)
	if d <= 0 || d > limit {
		return 0
	}
	return d.Minutes()
}

func sortedTransitions(in []domain.StatusTransition) []domain.StatusTransition {
	out := make([]domain.StatusTransition, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ChangedAt.Before(out[j].ChangedAt) })
	return out
}

func isEscalated(rec domain.ServiceRecord) bool {
	if rec.Category == string(domain.StatusEscalated) {
		return true
	}
	for _, tr := range rec.Transitions {
		if tr.Status == string(domain.StatusEscalated) {
			return true
		}
	}
	return false
}

// Aggregate summarises derived records. Outliers are counted but kept out of averages.
func (m *MetricsCalculator) Aggregate(recs []DerivedRecord) GroupMetrics {
	g := GroupMetrics{Count: len(recs)}
	var resolution, firstResponse, travel, onsite []float64

	for _, r := range recs {
		rm := r.Metrics
		switch {
		case rm.Resolved():
			g.Resolved++
			if rm.Breached {
				g.Breached++
			} else {
				g.Met++
			}
		case rm.Open:
			g.Open++
			if rm.Breached {
				g.Breached++
			} else {
				g.Pending++
			}
		}
		if rm.Escalated {
			g.Escalated++
		}
		if rm.Outlier {
			g.OutlierCount++
		} else if rm.ResolutionMinutes != nil {
			resolution = append(resolution, *rm.ResolutionMinutes)
		}
		if rm.FirstResponseMinutes != nil {
			firstResponse = append(firstResponse, *rm.FirstResponseMinutes)
		}
		if rm.TravelMinutes > 0 {
			travel = append(travel, rm.TravelMinutes)
		}
		if rm.OnsiteMinutes > 0 {
			onsite = append(onsite, rm.OnsiteMinutes)
		}
	}

	g.AvgResolutionMinutes = stats.Round(stats.Mean(resolution), 2)
	g.MedianResolutionMinutes = stats.Round(stats.Median(resolution), 2)
	g.AvgFirstResponseMinutes = stats.Round(stats.Mean(firstResponse), 2)
	g.AvgTravelMinutes = stats.Round(stats.Mean(travel), 2)
	g.AvgOnsiteMinutes = stats.Round(stats.Mean(onsite), 2)
	g.TotalTravelMinutes = stats.Round(stats.Sum(travel), 2)
	g.TotalOnsiteMinutes = stats.Round(stats.Sum(onsite), 2)
	g.ResolutionRate = stats.Percent(float64(g.Resolved), float64(g.Count))
	g.SlaCompliance = stats.Percent(float64(g.Met), float64(g.Met+g.Breached))
	return g
}

// SpeedScore maps an average against a target onto [0,100]: 0 minutes
// scores 100, the target scores 50, twice the target or more scores 0.
// Groups with nothing resolved score 0.
func (m *MetricsCalculator) SpeedScore(g GroupMetrics, targetMinutes float64) float64 {
	if g.Resolved == 0 || targetMinutes <= 0 {
		return 0
	}
	return stats.Clamp(100*(1-g.AvgResolutionMinutes/(2*targetMinutes)), 0, 100)
}

// Score is a weighted linear combination of components, each clamped to
// [0,100] first. The result is normalised by the total weight.
func Score(components ...ScoreComponent) float64 {
	var total, weights float64
	for _, c := range components {
		if c.Weight <= 0 {
			continue
		}
		total += stats.Clamp(c.Value, 0, 100) * c.Weight
		weights += c.Weight
	}
	if weights == 0 {
		return 0
	}
	return stats.Round(stats.Clamp(total/weights, 0, 100), 1)
}
