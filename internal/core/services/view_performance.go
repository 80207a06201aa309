package services

import (
	"context"

	"github.com/lorrc/field-metrics/internal/core/domain"
	"github.com/lorrc/field-metrics/internal/core/stats"
)

const maxShiftHours = 16

func zonePerformanceView() viewDef {
	return viewDef{
		view:  domain.ViewZonePerformance,
		title: "Zone Performance",
		columns: []domain.ColumnSpec{
			col("zone.name", "Zone", domain.TypeText, 20),
			col("tickets", "Tickets", domain.TypeNumber, 10),
			col("resolved", "Resolved", domain.TypeNumber, 10),
			col("open", "Open", domain.TypeNumber, 8),
			col("averageResolutionMinutes", "Avg Resolution", domain.TypeDuration, 14),
			col("breachRate", "Breach Rate", domain.TypePercentage, 12),
			col("averageTravelMinutes", "Avg Travel", domain.TypeDuration, 12),
			col("performanceScore", "Score", domain.TypeNumber, 8),
		},
		assemble: assembleZonePerformance,
	}
}

func assembleZonePerformance(ctx context.Context, rs *reportScope) (*domain.Report, error) {
	tickets, err := rs.derivedTickets(ctx)
	if err != nil {
		return nil, err
	}
	zones, zoneIdx, err := rs.index(ctx, domain.EntityZone)
	if err != nil {
		return nil, err
	}
	calc := rs.svc.calc

	perZone := byKey(tickets, domain.FieldZone)
	dist := newTally()
	for _, t := range tickets {
		dist.add(t.ZoneID, 0)
	}

	rows := make([]domain.Row, 0, len(zones))
	var scores, travel []float64
	active := 0
	for _, z := range zones {
		g := calc.Aggregate(perZone[z.ID])
		score := Score(
			ScoreComponent{Value: g.ResolutionRate, Weight: 0.4},
			ScoreComponent{Value: g.SlaCompliance, Weight: 0.4},
			ScoreComponent{Value: calc.SpeedScore(g, calc.Calendar().DailyMinutes()), Weight: 0.2},
		)
		if g.Count > 0 {
			active++
		}
		if g.AvgTravelMinutes > 0 {
			travel = append(travel, g.AvgTravelMinutes)
		}
		scores = append(scores, score)
		rows = append(rows, domain.Row{
			"zone":                     ref(z.ID, zoneIdx),
			"tickets":                  g.Count,
			"resolved":                 g.Resolved,
			"open":                     g.Open,
			"breached":                 g.Breached,
			"averageResolutionMinutes": g.AvgResolutionMinutes,
			"breachRate":               stats.Percent(float64(g.Breached), float64(g.Count)),
			"averageTravelMinutes":     g.AvgTravelMinutes,
			"resolutionRate":           g.ResolutionRate,
			"slaCompliance":            g.SlaCompliance,
			"performanceScore":         score,
		})
	}
	sortRowsBy(rows, "performanceScore", "zone")

	return &domain.Report{
		Summary: []domain.Metric{
			count("zoneCount", "Zones", len(zones)),
			count("activeZones", "Zones with tickets", active),
			count("totalTickets", "Total tickets", len(tickets)),
			metric("averagePerformanceScore", "Average score", stats.Round(stats.Mean(scores), 1), domain.TypeNumber),
			metric("averageTravelMinutes", "Average travel", stats.Round(stats.Mean(travel), 2), domain.TypeDuration),
		},
		Distributions: []domain.Distribution{
			distribute("ticketsByZone", entityMembers(zones), dist),
		},
		Rows: rows,
	}, nil
}

func agentProductivityView() viewDef {
	return viewDef{
		view:  domain.ViewAgentProductivity,
		title: "Agent Productivity",
		columns: []domain.ColumnSpec{
			col("technician.name", "Technician", domain.TypeText, 20),
			col("zone.name", "Zone", domain.TypeText, 16),
			col("assigned", "Assigned", domain.TypeNumber, 10),
			col("resolved", "Resolved", domain.TypeNumber, 10),
			col("averageResolutionMinutes", "Avg Resolution", domain.TypeDuration, 14),
			col("totalTravelMinutes", "Travel", domain.TypeDuration, 12),
			col("totalOnsiteMinutes", "On-site", domain.TypeDuration, 12),
			col("attendanceHours", "Attendance Hours", domain.TypeNumber, 16),
			col("activityCount", "Activities", domain.TypeNumber, 10),
			col("productivityScore", "Score", domain.TypeNumber, 8),
		},
		assemble: assembleAgentProductivity,
	}
}

func assembleAgentProductivity(ctx context.Context, rs *reportScope) (*domain.Report, error) {
	// Fetch
	tickets, err := rs.derivedTickets(ctx)
	if err != nil {
		return nil, err
	}
	attendance, err := rs.find(ctx, rs.query(domain.KindAttendance, domain.FieldCreatedAt))
	if err != nil {
		return nil, err
	}
	activities, err := rs.groupCount(ctx, rs.query(domain.KindActivity, domain.FieldCreatedAt), domain.FieldAssignee)
	if err != nil {
		return nil, err
	}
	activityTypes, err := rs.groupCount(ctx, rs.query(domain.KindActivity, domain.FieldCreatedAt), domain.FieldStatus)
	if err != nil {
		return nil, err
	}
	techs, techIdx, err := rs.index(ctx, domain.EntityTechnician)
	if err != nil {
		return nil, err
	}
	_, zoneIdx, err := rs.index(ctx, domain.EntityZone)
	if err != nil {
		return nil, err
	}
	calc := rs.svc.calc

	// Derive attendance hours from closed check-in sessions
	hours := make(map[string]float64)
	for _, a := range attendance {
		if a.ClosedAt == nil {
			continue
		}
		h := a.ClosedAt.Sub(a.CreatedAt).Hours()
		if h <= 0 || h > maxShiftHours {
			continue
		}
		hours[a.AssigneeID] += h
	}

	// Distribute
	perTech := byKey(tickets, domain.FieldAssignee)
	resolvedDist, activityDist := newTally(), newTally()
	for _, t := range tickets {
		if t.Metrics.Resolved() {
			resolvedDist.add(t.AssigneeID, 0)
		}
	}
	for key, n := range activityTypes {
		activityDist.addN(key, n, 0)
	}

	// Rows
	rows := make([]domain.Row, 0, len(techs))
	var scores []float64
	var totalHours float64
	var totalActivities int64
	active := 0
	for _, tech := range techs {
		g := calc.Aggregate(perTech[tech.ID])
		att := stats.Round(hours[tech.ID], 2)
		worked := g.TotalTravelMinutes + g.TotalOnsiteMinutes
		utilization := stats.Percent(worked, att*60)
		score := Score(
			ScoreComponent{Value: g.ResolutionRate, Weight: 0.5},
			ScoreComponent{Value: g.SlaCompliance, Weight: 0.3},
			ScoreComponent{Value: utilization, Weight: 0.2},
		)
		if g.Count > 0 {
			active++
		}
		scores = append(scores, score)
		totalHours += att
		totalActivities += activities[tech.ID]

		rows = append(rows, domain.Row{
			"technician":               ref(tech.ID, techIdx),
			"zone":                     ref(tech.ZoneID, zoneIdx),
			"assigned":                 g.Count,
			"resolved":                 g.Resolved,
			"open":                     g.Open,
			"averageResolutionMinutes": g.AvgResolutionMinutes,
			"averageTravelMinutes":     g.AvgTravelMinutes,
			"averageOnsiteMinutes":     g.AvgOnsiteMinutes,
			"totalTravelMinutes":       g.TotalTravelMinutes,
			"totalOnsiteMinutes":       g.TotalOnsiteMinutes,
			"attendanceHours":          att,
			"utilization":              utilization,
			"activityCount":            activities[tech.ID],
			"productivityScore":        score,
		})
	}
	sortRowsBy(rows, "productivityScore", "technician")

	g := calc.Aggregate(tickets)
	return &domain.Report{
		Summary: []domain.Metric{
			count("technicianCount", "Technicians", len(techs)),
			count("activeTechnicians", "Technicians with tickets", active),
			count("totalAssigned", "Assigned tickets", g.Count),
			count("totalResolved", "Resolved tickets", g.Resolved),
			metric("totalAttendanceHours", "Attendance hours", stats.Round(totalHours, 2), domain.TypeNumber),
			metric("totalActivities", "Activities", float64(totalActivities), domain.TypeNumber),
			metric("averageProductivityScore", "Average score", stats.Round(stats.Mean(scores), 1), domain.TypeNumber),
		},
		Distributions: []domain.Distribution{
			distribute("resolvedByTechnician", entityMembers(techs), resolvedDist),
			distribute("activityByType", nil, activityDist),
		},
		Rows: rows,
	}, nil
}

func customerPerformanceView() viewDef {
	return viewDef{
		view:  domain.ViewCustomerPerformance,
		title: "Customer Performance",
		columns: []domain.ColumnSpec{
			col("customer.name", "Customer", domain.TypeText, 24),
			col("zone.name", "Zone", domain.TypeText, 16),
			col("tickets", "Tickets", domain.TypeNumber, 10),
			col("resolved", "Resolved", domain.TypeNumber, 10),
			col("breached", "Breached", domain.TypeNumber, 10),
			col("averageResolutionMinutes", "Avg Resolution", domain.TypeDuration, 14),
			col("offers", "Offers", domain.TypeNumber, 8),
			col("wonValue", "Won Value", domain.TypeCurrency, 14),
			col("healthScore", "Health", domain.TypeNumber, 8),
		},
		assemble: assembleCustomerPerformance,
	}
}

func assembleCustomerPerformance(ctx context.Context, rs *reportScope) (*domain.Report, error) {
	tickets, err := rs.derivedTickets(ctx)
	if err != nil {
		return nil, err
	}
	offers, err := rs.find(ctx, rs.query(domain.KindOffer, domain.FieldCreatedAt))
	if err != nil {
		return nil, err
	}
	customers, custIdx, err := rs.index(ctx, domain.EntityCustomer)
	if err != nil {
		return nil, err
	}
	_, zoneIdx, err := rs.index(ctx, domain.EntityZone)
	if err != nil {
		return nil, err
	}
	calc := rs.svc.calc

	perCustomer := byKey(tickets, domain.FieldCustomer)
	ticketDist, offerDist := newTally(), newTally()
	for _, t := range tickets {
		ticketDist.add(t.CustomerID, 0)
	}
	type offerStats struct {
		count, won, lost int
		wonValue         float64
	}
	offersBy := make(map[string]*offerStats)
	for _, o := range offers {
		s, ok := offersBy[o.CustomerID]
		if !ok {
			s = &offerStats{}
			offersBy[o.CustomerID] = s
		}
		s.count++
		won := 0.0
		switch domain.OfferStage(o.Category) {
		case domain.StageWon:
			s.won++
			s.wonValue += o.Value
			won = o.Value
		case domain.StageLost:
			s.lost++
		}
		offerDist.add(o.CustomerID, won)
	}

	rows := make([]domain.Row, 0, len(customers))
	var scores []float64
	var totalWon float64
	active := 0
	for _, c := range customers {
		g := calc.Aggregate(perCustomer[c.ID])
		off := offersBy[c.ID]
		if off == nil {
			off = &offerStats{}
		}
		winRate := stats.Percent(float64(off.won), float64(off.won+off.lost))
		score := Score(
			ScoreComponent{Value: g.SlaCompliance, Weight: 0.5},
			ScoreComponent{Value: g.ResolutionRate, Weight: 0.3},
			ScoreComponent{Value: winRate, Weight: 0.2},
		)
		if g.Count > 0 || off.count > 0 {
			active++
		}
		scores = append(scores, score)
		totalWon += off.wonValue

		rows = append(rows, domain.Row{
			"customer":                 ref(c.ID, custIdx),
			"zone":                     ref(c.ZoneID, zoneIdx),
			"tickets":                  g.Count,
			"resolved":                 g.Resolved,
			"breached":                 g.Breached,
			"averageResolutionMinutes": g.AvgResolutionMinutes,
			"slaCompliance":            g.SlaCompliance,
			"offers":                   off.count,
			"wonOffers":                off.won,
			"wonValue":                 stats.Round(off.wonValue, 2),
			"winRate":                  winRate,
			"healthScore":              score,
		})
	}
	sortRowsBy(rows, "healthScore", "customer")

	return &domain.Report{
		Summary: []domain.Metric{
			count("customerCount", "Customers", len(customers)),
			count("activeCustomers", "Customers with activity", active),
			count("totalTickets", "Total tickets", len(tickets)),
			count("totalOffers", "Total offers", len(offers)),
			metric("totalWonValue", "Won value", stats.Round(totalWon, 2), domain.TypeCurrency),
			metric("averageHealthScore", "Average health", stats.Round(stats.Mean(scores), 1), domain.TypeNumber),
		},
		Distributions: []domain.Distribution{
			distribute("ticketsByCustomer", entityMembers(customers), ticketDist),
			distribute("offersByCustomer", entityMembers(customers), offerDist),
		},
		Rows: rows,
	}, nil
}
