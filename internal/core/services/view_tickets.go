package services

import (
	"context"
	"sort"

	"github.com/lorrc/field-metrics/internal/core/domain"
	"github.com/lorrc/field-metrics/internal/core/stats"
)

func ticketSummaryView() viewDef {
	return viewDef{
		view:  domain.ViewTicketSummary,
		title: "Ticket Summary",
		trend: trendOnRequest,
		columns: []domain.ColumnSpec{
			col("id", "Ticket", domain.TypeText, 12),
			col("title", "Title", domain.TypeText, 32),
			col("status", "Status", domain.TypeText, 16),
			col("priority", "Priority", domain.TypeText, 10),
			col("zone.name", "Zone", domain.TypeText, 16),
			col("assignee.name", "Assignee", domain.TypeText, 18),
			col("customer.name", "Customer", domain.TypeText, 20),
			col("createdAt", "Created", domain.TypeDate, 18),
			col("resolutionMinutes", "Resolution", domain.TypeDuration, 12),
			yesNoCol("breached", "SLA Breached"),
		},
		assemble: assembleTicketSummary,
	}
}

func assembleTicketSummary(ctx context.Context, rs *reportScope) (*domain.Report, error) {
	// Fetch
	tickets, err := rs.derivedTickets(ctx)
	if err != nil {
		return nil, err
	}
	zones, zoneIdx, err := rs.index(ctx, domain.EntityZone)
	if err != nil {
		return nil, err
	}
	techs, techIdx, err := rs.index(ctx, domain.EntityTechnician)
	if err != nil {
		return nil, err
	}
	_, custIdx, err := rs.index(ctx, domain.EntityCustomer)
	if err != nil {
		return nil, err
	}

	// Distribute
	byStatus, byPriority, byZone, byAssignee := newTally(), newTally(), newTally(), newTally()
	for _, t := range tickets {
		byStatus.add(t.Category, 0)
		byPriority.add(t.Priority, 0)
		byZone.add(t.ZoneID, 0)
		byAssignee.add(t.AssigneeID, 0)
	}

	// Summarize
	g := rs.svc.calc.Aggregate(tickets)

	return &domain.Report{
		Summary: []domain.Metric{
			count("totalTickets", "Total tickets", g.Count),
			count("openTickets", "Open tickets", g.Open),
			count("resolvedTickets", "Resolved tickets", g.Resolved),
			count("escalatedTickets", "Escalated tickets", g.Escalated),
			count("breachedTickets", "SLA breaches", g.Breached),
			metric("resolutionRate", "Resolution rate", g.ResolutionRate, domain.TypePercentage),
			metric("averageResolutionMinutes", "Average resolution", g.AvgResolutionMinutes, domain.TypeDuration),
			metric("medianResolutionMinutes", "Median resolution", g.MedianResolutionMinutes, domain.TypeDuration),
			metric("averageFirstResponseMinutes", "Average first response", g.AvgFirstResponseMinutes, domain.TypeDuration),
			count("outlierCount", "Resolution outliers", g.OutlierCount),
		},
		Distributions: []domain.Distribution{
			distribute("status", statusMembers(), byStatus),
			distribute("priority", priorityMembers(), byPriority),
			distribute("zone", entityMembers(zones), byZone),
			distribute("assignee", entityMembers(techs), byAssignee),
		},
		Rows: ticketRows(tickets, zoneIdx, techIdx, custIdx),
	}, nil
}

// ticketRows lists tickets newest first, ties broken by ID.
func ticketRows(tickets []DerivedRecord, zoneIdx, techIdx, custIdx domain.EntityIndex) []domain.Row {
	sorted := make([]DerivedRecord, len(tickets))
	copy(sorted, tickets)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	rows := make([]domain.Row, 0, len(sorted))
	for _, t := range sorted {
		m := t.Metrics
		rows = append(rows, domain.Row{
			"id":                   t.ID,
			"title":                t.Title,
			"status":               t.Category,
			"priority":             t.Priority,
			"createdAt":            t.CreatedAt,
			"resolvedAt":           timeOrNil(m.ResolvedAt),
			"deadline":             timeOrNil(&m.Deadline),
			"zone":                 ref(t.ZoneID, zoneIdx),
			"assignee":             ref(t.AssigneeID, techIdx),
			"customer":             ref(t.CustomerID, custIdx),
			"resolutionMinutes":    minutesOrNil(m.ResolutionMinutes),
			"firstResponseMinutes": minutesOrNil(m.FirstResponseMinutes),
			"travelMinutes":        stats.Round(m.TravelMinutes, 2),
			"onsiteMinutes":        stats.Round(m.OnsiteMinutes, 2),
			"outlier":              m.Outlier,
			"breached":             m.Breached,
			"open":                 m.Open,
		})
	}
	return rows
}

func slaPerformanceView() viewDef {
	return viewDef{
		view:  domain.ViewSlaPerformance,
		title: "SLA Performance",
		columns: []domain.ColumnSpec{
			col("priority", "Priority", domain.TypeText, 12),
			col("allowedHours", "Allowed Hours", domain.TypeNumber, 14),
			col("tickets", "Tickets", domain.TypeNumber, 10),
			col("met", "Met", domain.TypeNumber, 10),
			col("breached", "Breached", domain.TypeNumber, 10),
			col("pending", "Pending", domain.TypeNumber, 10),
			col("slaCompliance", "Compliance", domain.TypePercentage, 12),
			col("averageResolutionMinutes", "Avg Resolution", domain.TypeDuration, 14),
		},
		assemble: assembleSlaPerformance,
	}
}

func assembleSlaPerformance(ctx context.Context, rs *reportScope) (*domain.Report, error) {
	tickets, err := rs.derivedTickets(ctx)
	if err != nil {
		return nil, err
	}
	zones, _, err := rs.index(ctx, domain.EntityZone)
	if err != nil {
		return nil, err
	}

	calc := rs.svc.calc
	sla := calc.SLA()

	slaStatus, breachByPriority, breachByZone := newTally(), newTally(), newTally()
	openBreaches := 0
	for _, t := range tickets {
		m := t.Metrics
		switch {
		case m.Breached:
			slaStatus.add("BREACHED", 0)
			breachByPriority.add(string(sla.Tier(t.Priority)), 0)
			breachByZone.add(t.ZoneID, 0)
			if m.Open {
				openBreaches++
			}
		case m.Resolved():
			slaStatus.add("MET", 0)
		case m.Open:
			slaStatus.add("PENDING", 0)
		}
	}
	g := calc.Aggregate(tickets)

	tiers := byTier(sla, tickets)
	rows := make([]domain.Row, 0, len(domain.TicketPriorities))
	for _, p := range domain.TicketPriorities {
		pg := calc.Aggregate(tiers[p])
		rows = append(rows, domain.Row{
			"priority":                 string(p),
			"allowedHours":             sla.AllowedHours(string(p)),
			"tickets":                  pg.Count,
			"met":                      pg.Met,
			"breached":                 pg.Breached,
			"pending":                  pg.Pending,
			"slaCompliance":            pg.SlaCompliance,
			"averageResolutionMinutes": pg.AvgResolutionMinutes,
		})
	}

	return &domain.Report{
		Summary: []domain.Metric{
			count("totalTickets", "Total tickets", g.Count),
			count("slaMet", "Met", g.Met),
			count("slaBreached", "Breached", g.Breached),
			count("slaPending", "Pending", g.Pending),
			count("openBreaches", "Open and overdue", openBreaches),
			metric("slaCompliance", "SLA compliance", g.SlaCompliance, domain.TypePercentage),
			metric("averageResolutionMinutes", "Average resolution", g.AvgResolutionMinutes, domain.TypeDuration),
		},
		Distributions: []domain.Distribution{
			distributeOrdered("slaStatus", []member{
				{Key: "MET", Label: "Met"},
				{Key: "BREACHED", Label: "Breached"},
				{Key: "PENDING", Label: "Pending"},
			}, slaStatus),
			distribute("breachesByPriority", priorityMembers(), breachByPriority),
			distribute("breachesByZone", entityMembers(zones), breachByZone),
		},
		Rows: rows,
	}, nil
}

// resolutionBuckets are the working-hour bands of the business-hours view.
var resolutionBuckets = []struct {
	member
	upTo float64
}{
	{member{"0-4h", "Up to 4 hours"}, 4},
	{member{"4-8h", "4 to 8 hours"}, 8},
	{member{"8-16h", "8 to 16 hours"}, 16},
	{member{"16-24h", "16 to 24 hours"}, 24},
	{member{"24-48h", "24 to 48 hours"}, 48},
	{member{"48h+", "Over 48 hours"}, -1},
}

func bucketFor(hours float64) string {
	for _, b := range resolutionBuckets {
		if b.upTo < 0 || hours < b.upTo {
			return b.Key
		}
	}
	return resolutionBuckets[len(resolutionBuckets)-1].Key
}

func businessHoursSlaView() viewDef {
	return viewDef{
		view:  domain.ViewBusinessHoursSla,
		title: "Business Hours SLA Analysis",
		columns: []domain.ColumnSpec{
			col("priority", "Priority", domain.TypeText, 12),
			col("allowedHours", "Allowed Hours", domain.TypeNumber, 14),
			col("resolved", "Resolved", domain.TypeNumber, 10),
			col("averageWorkingHours", "Avg Working Hours", domain.TypeNumber, 18),
			col("medianWorkingHours", "Median Working Hours", domain.TypeNumber, 20),
			col("averageWallClockHours", "Avg Wall-Clock Hours", domain.TypeNumber, 20),
			col("withinSla", "Within SLA", domain.TypeNumber, 12),
			col("complianceRate", "Compliance", domain.TypePercentage, 12),
			col("averageOverrunHours", "Avg Overrun Hours", domain.TypeNumber, 16),
		},
		assemble: assembleBusinessHoursSla,
	}
}

// hoursSample collects the per-ticket hour figures of resolved tickets.
type hoursSample struct {
	working, wallClock, overrun []float64
	resolved, within, outliers  int
}

func (h *hoursSample) add(t DerivedRecord) {
	m := t.Metrics
	if m.ResolutionMinutes == nil {
		return
	}
	h.resolved++
	hours := *m.ResolutionMinutes / 60
	if !m.Breached {
		h.within++
	}
	if m.Outlier {
		h.outliers++
		return
	}
	h.working = append(h.working, hours)
	h.wallClock = append(h.wallClock, m.ResolvedAt.Sub(t.CreatedAt).Hours())
	if m.Breached {
		h.overrun = append(h.overrun, hours-m.AllowedHours)
	}
}

func assembleBusinessHoursSla(ctx context.Context, rs *reportScope) (*domain.Report, error) {
	tickets, err := rs.derivedTickets(ctx)
	if err != nil {
		return nil, err
	}
	sla := rs.svc.calc.SLA()

	buckets, withinByPriority := newTally(), newTally()
	var all hoursSample
	perTier := make(map[domain.TicketPriority]*hoursSample)
	for _, p := range domain.TicketPriorities {
		perTier[p] = &hoursSample{}
	}

	for _, t := range tickets {
		m := t.Metrics
		if m.ResolutionMinutes == nil {
			continue
		}
		buckets.add(bucketFor(*m.ResolutionMinutes/60), 0)
		tier := sla.Tier(t.Priority)
		if !m.Breached {
			withinByPriority.add(string(tier), 0)
		}
		all.add(t)
		if s, ok := perTier[tier]; ok {
			s.add(t)
		}
	}

	rows := make([]domain.Row, 0, len(domain.TicketPriorities))
	for _, p := range domain.TicketPriorities {
		s := perTier[p]
		rows = append(rows, domain.Row{
			"priority":              string(p),
			"allowedHours":          sla.AllowedHours(string(p)),
			"resolved":              s.resolved,
			"averageWorkingHours":   stats.Round(stats.Mean(s.working), 2),
			"medianWorkingHours":    stats.Round(stats.Median(s.working), 2),
			"averageWallClockHours": stats.Round(stats.Mean(s.wallClock), 2),
			"withinSla":             s.within,
			"complianceRate":        stats.Percent(float64(s.within), float64(s.resolved)),
			"averageOverrunHours":   stats.Round(stats.Mean(s.overrun), 2),
		})
	}

	bucketMembers := make([]member, len(resolutionBuckets))
	for i, b := range resolutionBuckets {
		bucketMembers[i] = b.member
	}

	return &domain.Report{
		Summary: []domain.Metric{
			count("resolvedTickets", "Resolved tickets", all.resolved),
			metric("averageWorkingHours", "Average working hours", stats.Round(stats.Mean(all.working), 2), domain.TypeNumber),
			metric("medianWorkingHours", "Median working hours", stats.Round(stats.Median(all.working), 2), domain.TypeNumber),
			metric("averageWallClockHours", "Average wall-clock hours", stats.Round(stats.Mean(all.wallClock), 2), domain.TypeNumber),
			count("withinSla", "Resolved within SLA", all.within),
			metric("complianceRate", "Business-hours compliance", stats.Percent(float64(all.within), float64(all.resolved)), domain.TypePercentage),
			count("outlierCount", "Resolution outliers", all.outliers),
		},
		Distributions: []domain.Distribution{
			distributeOrdered("resolutionHours", bucketMembers, buckets),
			distribute("withinSlaByPriority", priorityMembers(), withinByPriority),
		},
		Rows: rows,
	}, nil
}
