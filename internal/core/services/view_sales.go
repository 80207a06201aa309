package services

import (
	"context"
	"sort"

	"github.com/lorrc/field-metrics/internal/core/domain"
	"github.com/lorrc/field-metrics/internal/core/stats"
)

func offerSummaryView() viewDef {
	return viewDef{
		view:  domain.ViewOfferSummary,
		title: "Offer Summary",
		columns: []domain.ColumnSpec{
			col("id", "Offer", domain.TypeText, 12),
			col("title", "Title", domain.TypeText, 30),
			col("stage", "Stage", domain.TypeText, 12),
			col("value", "Value", domain.TypeCurrency, 14),
			col("customer.name", "Customer", domain.TypeText, 20),
			col("owner.name", "Owner", domain.TypeText, 18),
			col("productType.name", "Product Type", domain.TypeText, 14),
			col("createdAt", "Created", domain.TypeDate, 18),
			col("closedAt", "Closed", domain.TypeDate, 18),
		},
		assemble: assembleOfferSummary,
	}
}

func assembleOfferSummary(ctx context.Context, rs *reportScope) (*domain.Report, error) {
	offers, err := rs.find(ctx, rs.query(domain.KindOffer, domain.FieldCreatedAt))
	if err != nil {
		return nil, err
	}
	products, productIdx, err := rs.index(ctx, domain.EntityProductType)
	if err != nil {
		return nil, err
	}
	_, custIdx, err := rs.index(ctx, domain.EntityCustomer)
	if err != nil {
		return nil, err
	}
	_, techIdx, err := rs.index(ctx, domain.EntityTechnician)
	if err != nil {
		return nil, err
	}
	_, zoneIdx, err := rs.index(ctx, domain.EntityZone)
	if err != nil {
		return nil, err
	}

	ot := totalOffers(offers)
	byStage, byProduct := newTally(), newTally()
	for _, o := range offers {
		byStage.add(o.Category, o.Value)
		byProduct.add(o.ProductType, o.Value)
	}

	sorted := make([]domain.ServiceRecord, len(offers))
	copy(sorted, offers)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})
	rows := make([]domain.Row, 0, len(sorted))
	for _, o := range sorted {
		rows = append(rows, domain.Row{
			"id":          o.ID,
			"title":       o.Title,
			"stage":       o.Category,
			"value":       o.Value,
			"customer":    ref(o.CustomerID, custIdx),
			"zone":        ref(o.ZoneID, zoneIdx),
			"owner":       ref(o.AssigneeID, techIdx),
			"productType": ref(o.ProductType, productIdx),
			"createdAt":   o.CreatedAt,
			"closedAt":    timeOrNil(o.ClosedAt),
		})
	}

	return &domain.Report{
		Summary: []domain.Metric{
			count("totalOffers", "Total offers", ot.count),
			count("openOffers", "Open offers", ot.open),
			count("wonOffers", "Won offers", ot.won),
			count("lostOffers", "Lost offers", ot.lost),
			metric("pipelineValue", "Pipeline value", stats.Round(ot.pipeline, 2), domain.TypeCurrency),
			metric("wonValue", "Won value", stats.Round(ot.wonValue, 2), domain.TypeCurrency),
			metric("winRate", "Win rate", ot.winRate(), domain.TypePercentage),
			metric("averageDealSize", "Average deal size", stats.Round(stats.SafeRatio(ot.wonValue, float64(ot.won)), 2), domain.TypeCurrency),
			metric("averageSalesCycleDays", "Average sales cycle (days)", stats.Round(stats.Mean(ot.cycleDays), 1), domain.TypeNumber),
		},
		Distributions: []domain.Distribution{
			distribute("stage", stageMembers(), byStage),
			distribute("productType", entityMembers(products), byProduct),
		},
		Rows: rows,
	}, nil
}

func productTypeAnalysisView() viewDef {
	return viewDef{
		view:  domain.ViewProductTypeAnalysis,
		title: "Product Type Analysis",
		columns: []domain.ColumnSpec{
			col("productType.name", "Product Type", domain.TypeText, 20),
			col("offers", "Offers", domain.TypeNumber, 8),
			col("offerValue", "Offer Value", domain.TypeCurrency, 14),
			col("won", "Won", domain.TypeNumber, 8),
			col("wonValue", "Won Value", domain.TypeCurrency, 14),
			col("winRate", "Win Rate", domain.TypePercentage, 10),
			col("averageDealSize", "Avg Deal", domain.TypeCurrency, 12),
			col("tickets", "Tickets", domain.TypeNumber, 8),
		},
		assemble: assembleProductTypeAnalysis,
	}
}

func assembleProductTypeAnalysis(ctx context.Context, rs *reportScope) (*domain.Report, error) {
	offerQ := rs.query(domain.KindOffer, domain.FieldCreatedAt)
	all, err := rs.groupAggregate(ctx, offerQ, domain.FieldProductType, domain.FieldValue)
	if err != nil {
		return nil, err
	}
	won, err := rs.groupAggregate(ctx,
		rs.query(domain.KindOffer, domain.FieldCreatedAt, domain.Eq(domain.FieldStatus, string(domain.StageWon))),
		domain.FieldProductType, domain.FieldValue)
	if err != nil {
		return nil, err
	}
	lost, err := rs.groupCount(ctx,
		rs.query(domain.KindOffer, domain.FieldCreatedAt, domain.Eq(domain.FieldStatus, string(domain.StageLost))),
		domain.FieldProductType)
	if err != nil {
		return nil, err
	}
	tickets, err := rs.groupCount(ctx, rs.query(domain.KindTicket, domain.FieldCreatedAt), domain.FieldProductType)
	if err != nil {
		return nil, err
	}
	products, productIdx, err := rs.index(ctx, domain.EntityProductType)
	if err != nil {
		return nil, err
	}

	offerDist, ticketDist := newTally(), newTally()
	var totalOffers, totalWon, totalLost, totalTickets int64
	var totalValue, totalWonValue float64
	for key, g := range all {
		offerDist.addN(key, g.Count, g.Sums[domain.FieldValue])
		totalOffers += g.Count
		totalValue += g.Sums[domain.FieldValue]
	}
	for _, g := range won {
		totalWon += g.Count
		totalWonValue += g.Sums[domain.FieldValue]
	}
	for _, n := range lost {
		totalLost += n
	}
	for key, n := range tickets {
		ticketDist.addN(key, n, 0)
		totalTickets += n
	}

	rows := make([]domain.Row, 0, len(products))
	for _, p := range products {
		a, w := all[p.ID], won[p.ID]
		wonValue := w.Sums[domain.FieldValue]
		rows = append(rows, domain.Row{
			"productType":     ref(p.ID, productIdx),
			"offers":          a.Count,
			"offerValue":      stats.Round(a.Sums[domain.FieldValue], 2),
			"won":             w.Count,
			"wonValue":        stats.Round(wonValue, 2),
			"lost":            lost[p.ID],
			"winRate":         stats.Percent(float64(w.Count), float64(w.Count+lost[p.ID])),
			"averageDealSize": stats.Round(stats.SafeRatio(wonValue, float64(w.Count)), 2),
			"tickets":         tickets[p.ID],
		})
	}
	sortRowsBy(rows, "offerValue", "productType")

	return &domain.Report{
		Summary: []domain.Metric{
			count("productTypes", "Product types", len(products)),
			metric("totalOffers", "Total offers", float64(totalOffers), domain.TypeNumber),
			metric("totalOfferValue", "Offer value", stats.Round(totalValue, 2), domain.TypeCurrency),
			metric("totalWonValue", "Won value", stats.Round(totalWonValue, 2), domain.TypeCurrency),
			metric("winRate", "Win rate", stats.Percent(float64(totalWon), float64(totalWon+totalLost)), domain.TypePercentage),
			metric("totalTickets", "Tickets", float64(totalTickets), domain.TypeNumber),
		},
		Distributions: []domain.Distribution{
			distribute("offersByProductType", entityMembers(products), offerDist),
			distribute("ticketsByProductType", entityMembers(products), ticketDist),
		},
		Rows: rows,
	}, nil
}

func targetReportView() viewDef {
	return viewDef{
		view:  domain.ViewTargetReport,
		title: "Target Report",
		columns: []domain.ColumnSpec{
			col("zone.name", "Zone", domain.TypeText, 18),
			col("productType.name", "Product Type", domain.TypeText, 16),
			col("periodStart", "From", domain.TypeDate, 18),
			col("periodEnd", "To", domain.TypeDate, 18),
			col("target", "Target", domain.TypeCurrency, 14),
			col("achieved", "Achieved", domain.TypeCurrency, 14),
			col("achievement", "Achievement", domain.TypePercentage, 12),
			col("gap", "Gap", domain.TypeCurrency, 14),
		},
		assemble: assembleTargetReport,
	}
}

func assembleTargetReport(ctx context.Context, rs *reportScope) (*domain.Report, error) {
	targets, err := rs.find(ctx, rs.query(domain.KindTarget, domain.FieldCreatedAt))
	if err != nil {
		return nil, err
	}
	wonOffers, err := rs.find(ctx, rs.query(domain.KindOffer, domain.FieldClosedAt, domain.Eq(domain.FieldStatus, string(domain.StageWon))))
	if err != nil {
		return nil, err
	}
	zones, zoneIdx, err := rs.index(ctx, domain.EntityZone)
	if err != nil {
		return nil, err
	}
	products, productIdx, err := rs.index(ctx, domain.EntityProductType)
	if err != nil {
		return nil, err
	}

	byZone, byProduct := newTally(), newTally()
	for _, o := range wonOffers {
		byZone.add(o.ZoneID, o.Value)
		byProduct.add(o.ProductType, o.Value)
	}

	rows := make([]domain.Row, 0, len(targets))
	var totalTarget, totalAchieved float64
	met := 0
	for _, t := range targets {
		period := domain.TimeWindow{Start: t.CreatedAt, End: rs.window.End}
		if t.ClosedAt != nil {
			period.End = *t.ClosedAt
		}
		var achieved float64
		for _, o := range wonOffers {
			if t.ZoneID != "" && o.ZoneID != t.ZoneID {
				continue
			}
			if t.ProductType != "" && o.ProductType != t.ProductType {
				continue
			}
			if o.ClosedAt == nil || !period.Contains(*o.ClosedAt) {
				continue
			}
			achieved += o.Value
		}
		if t.Value > 0 && achieved >= t.Value {
			met++
		}
		totalTarget += t.Value
		totalAchieved += achieved

		rows = append(rows, domain.Row{
			"id":          t.ID,
			"zone":        ref(t.ZoneID, zoneIdx),
			"productType": ref(t.ProductType, productIdx),
			"periodStart": period.Start,
			"periodEnd":   period.End,
			"target":      stats.Round(t.Value, 2),
			"achieved":    stats.Round(achieved, 2),
			"achievement": stats.Percent(achieved, t.Value),
			"gap":         stats.Round(max(t.Value-achieved, 0), 2),
			"met":         t.Value > 0 && achieved >= t.Value,
		})
	}
	sortRowsBy(rows, "achievement", "id")

	return &domain.Report{
		Summary: []domain.Metric{
			count("targetCount", "Targets", len(targets)),
			count("targetsMet", "Targets met", met),
			metric("totalTarget", "Total target", stats.Round(totalTarget, 2), domain.TypeCurrency),
			metric("totalAchieved", "Total achieved", stats.Round(totalAchieved, 2), domain.TypeCurrency),
			metric("overallAchievement", "Overall achievement", stats.Percent(totalAchieved, totalTarget), domain.TypePercentage),
		},
		Distributions: []domain.Distribution{
			distribute("wonByZone", entityMembers(zones), byZone),
			distribute("wonByProductType", entityMembers(products), byProduct),
		},
		Rows: rows,
	}, nil
}
