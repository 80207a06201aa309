package services

import (
	"context"
	"sort"

	"github.com/lorrc/field-metrics/internal/core/domain"
	"github.com/lorrc/field-metrics/internal/core/stats"
)

func industrialDowntimeView() viewDef {
	return viewDef{
		view:  domain.ViewIndustrialDowntime,
		title: "Industrial Downtime",
		columns: []domain.ColumnSpec{
			col("asset.name", "Asset", domain.TypeText, 22),
			col("customer.name", "Customer", domain.TypeText, 20),
			col("zone.name", "Zone", domain.TypeText, 16),
			col("productType", "Product Type", domain.TypeText, 14),
			col("incidents", "Incidents", domain.TypeNumber, 10),
			col("openIncidents", "Open", domain.TypeNumber, 8),
			col("downtimeMinutes", "Downtime", domain.TypeDuration, 12),
			col("longestDowntimeMinutes", "Longest", domain.TypeDuration, 12),
			col("averageRepairMinutes", "Avg Repair", domain.TypeDuration, 12),
		},
		assemble: assembleIndustrialDowntime,
	}
}

type assetDowntime struct {
	assetID, zoneID, customerID, productType string
	incidents, open                         int
	downtime, longest                       float64
	repairs                                 []float64
}

func assembleIndustrialDowntime(ctx context.Context, rs *reportScope) (*domain.Report, error) {
	// Fetch
	tickets, err := rs.derivedTickets(ctx)
	if err != nil {
		return nil, err
	}
	zones, zoneIdx, err := rs.index(ctx, domain.EntityZone)
	if err != nil {
		return nil, err
	}
	customers, custIdx, err := rs.index(ctx, domain.EntityCustomer)
	if err != nil {
		return nil, err
	}
	products, productIdx, err := rs.index(ctx, domain.EntityProductType)
	if err != nil {
		return nil, err
	}
	_, assetIdx, err := rs.index(ctx, domain.EntityAsset)
	if err != nil {
		return nil, err
	}
	calc := rs.svc.calc

	// Derive downtime per incident, oldest first so the latest ticket wins the asset's references
	incidents := make([]DerivedRecord, 0)
	for _, t := range tickets {
		if t.AssetID != "" && (t.Metrics.Open || t.Metrics.Resolved()) {
			incidents = append(incidents, t)
		}
	}
	sort.SliceStable(incidents, func(i, j int) bool {
		if !incidents[i].CreatedAt.Equal(incidents[j].CreatedAt) {
			return incidents[i].CreatedAt.Before(incidents[j].CreatedAt)
		}
		return incidents[i].ID < incidents[j].ID
	})

	byZone, byCustomer, byProduct := newTally(), newTally(), newTally()
	assets := make(map[string]*assetDowntime)
	var totalDowntime float64
	var repairs []float64
	open := 0

	for _, t := range incidents {
		end := rs.now
		if t.Metrics.ResolvedAt != nil {
			end = *t.Metrics.ResolvedAt
		}
		down := calc.WorkingMinutes(t.CreatedAt, end)

		a, ok := assets[t.AssetID]
		if !ok {
			a = &assetDowntime{assetID: t.AssetID}
			assets[t.AssetID] = a
		}
		a.zoneID, a.customerID, a.productType = t.ZoneID, t.CustomerID, t.ProductType
		a.incidents++
		a.downtime += down
		a.longest = max(a.longest, down)
		if t.Metrics.Open {
			a.open++
			open++
		} else if t.Metrics.ResolutionMinutes != nil && !t.Metrics.Outlier {
			a.repairs = append(a.repairs, *t.Metrics.ResolutionMinutes)
			repairs = append(repairs, *t.Metrics.ResolutionMinutes)
		}

		totalDowntime += down
		byZone.add(t.ZoneID, down)
		byCustomer.add(t.CustomerID, down)
		byProduct.add(t.ProductType, down)
	}

	// Rows
	rows := make([]domain.Row, 0, len(assets))
	for _, a := range assets {
		rows = append(rows, domain.Row{
			"asset":                  ref(a.assetID, assetIdx),
			"zone":                   ref(a.zoneID, zoneIdx),
			"customer":               ref(a.customerID, custIdx),
			"productType":            productIdx.Name(a.productType),
			"incidents":              a.incidents,
			"openIncidents":          a.open,
			"downtimeMinutes":        stats.Round(a.downtime, 2),
			"averageDowntimeMinutes": stats.Round(stats.SafeRatio(a.downtime, float64(a.incidents)), 2),
			"longestDowntimeMinutes": stats.Round(a.longest, 2),
			"averageRepairMinutes":   stats.Round(stats.Mean(a.repairs), 2),
		})
	}
	sortRowsBy(rows, "downtimeMinutes", "asset")

	return &domain.Report{
		Summary: []domain.Metric{
			count("affectedAssets", "Affected assets", len(assets)),
			count("totalIncidents", "Incidents", len(incidents)),
			count("openIncidents", "Open incidents", open),
			metric("totalDowntimeMinutes", "Total downtime", stats.Round(totalDowntime, 2), domain.TypeDuration),
			metric("averageDowntimeMinutes", "Average downtime", stats.Round(stats.SafeRatio(totalDowntime, float64(len(incidents))), 2), domain.TypeDuration),
			metric("averageRepairMinutes", "Average repair time", stats.Round(stats.Mean(repairs), 2), domain.TypeDuration),
		},
		Distributions: []domain.Distribution{
			distribute("downtimeByZone", entityMembers(zones), byZone),
			distribute("downtimeByCustomer", entityMembers(customers), byCustomer),
			distribute("downtimeByProductType", entityMembers(products), byProduct),
		},
		Rows: rows,
	}, nil
}

func executiveSummaryView() viewDef {
	return viewDef{
		view:  domain.ViewExecutiveSummary,
		title: "Executive Summary",
		trend: trendAlways,
		columns: []domain.ColumnSpec{
			col("zone.name", "Zone", domain.TypeText, 20),
			col("tickets", "Tickets", domain.TypeNumber, 10),
			col("resolved", "Resolved", domain.TypeNumber, 10),
			col("slaCompliance", "SLA Compliance", domain.TypePercentage, 14),
			col("openOffers", "Open Offers", domain.TypeNumber, 12),
			col("pipelineValue", "Pipeline", domain.TypeCurrency, 14),
			col("wonValue", "Won", domain.TypeCurrency, 14),
		},
		assemble: assembleExecutiveSummary,
	}
}

// offerTotals summarises a set of offers.
type offerTotals struct {
	count, open, won, lost int
	pipeline, wonValue     float64
	cycleDays              []float64
}

func totalOffers(offers []domain.ServiceRecord) offerTotals {
	var t offerTotals
	for _, o := range offers {
		t.add(o)
	}
	return t
}

func (t *offerTotals) add(o domain.ServiceRecord) {
	t.count++
	stage := domain.OfferStage(o.Category)
	switch stage {
	case domain.StageWon:
		t.won++
		t.wonValue += o.Value
	case domain.StageLost:
		t.lost++
	default:
		t.open++
		t.pipeline += o.Value
	}
	if !stage.IsOpen() && o.ClosedAt != nil && o.ClosedAt.After(o.CreatedAt) {
		t.cycleDays = append(t.cycleDays, o.ClosedAt.Sub(o.CreatedAt).Hours()/24)
	}
}

func (t offerTotals) winRate() float64 {
	return stats.Percent(float64(t.won), float64(t.won+t.lost))
}

func assembleExecutiveSummary(ctx context.Context, rs *reportScope) (*domain.Report, error) {
	tickets, err := rs.derivedTickets(ctx)
	if err != nil {
		return nil, err
	}
	offers, err := rs.find(ctx, rs.query(domain.KindOffer, domain.FieldCreatedAt))
	if err != nil {
		return nil, err
	}
	zones, zoneIdx, err := rs.index(ctx, domain.EntityZone)
	if err != nil {
		return nil, err
	}
	calc := rs.svc.calc

	g := calc.Aggregate(tickets)
	ot := totalOffers(offers)
	health := Score(
		ScoreComponent{Value: g.SlaCompliance, Weight: 0.4},
		ScoreComponent{Value: g.ResolutionRate, Weight: 0.3},
		ScoreComponent{Value: ot.winRate(), Weight: 0.3},
	)

	byStatus, byStage, byZone := newTally(), newTally(), newTally()
	for _, t := range tickets {
		byStatus.add(t.Category, 0)
		byZone.add(t.ZoneID, 0)
	}
	offersByZone := make(map[string][]domain.ServiceRecord)
	for _, o := range offers {
		byStage.add(o.Category, o.Value)
		offersByZone[o.ZoneID] = append(offersByZone[o.ZoneID], o)
	}

	perZone := byKey(tickets, domain.FieldZone)
	rows := make([]domain.Row, 0, len(zones))
	for _, z := range zones {
		zg := calc.Aggregate(perZone[z.ID])
		zo := totalOffers(offersByZone[z.ID])
		rows = append(rows, domain.Row{
			"zone":          ref(z.ID, zoneIdx),
			"tickets":       zg.Count,
			"resolved":      zg.Resolved,
			"slaCompliance": zg.SlaCompliance,
			"openOffers":    zo.open,
			"pipelineValue": stats.Round(zo.pipeline, 2),
			"wonValue":      stats.Round(zo.wonValue, 2),
		})
	}
	sortRowsBy(rows, "tickets", "zone")

	return &domain.Report{
		Summary: []domain.Metric{
			count("totalTickets", "Total tickets", g.Count),
			count("resolvedTickets", "Resolved tickets", g.Resolved),
			metric("slaCompliance", "SLA compliance", g.SlaCompliance, domain.TypePercentage),
			metric("averageResolutionMinutes", "Average resolution", g.AvgResolutionMinutes, domain.TypeDuration),
			count("openOffers", "Open offers", ot.open),
			metric("pipelineValue", "Pipeline value", stats.Round(ot.pipeline, 2), domain.TypeCurrency),
			metric("wonValue", "Won value", stats.Round(ot.wonValue, 2), domain.TypeCurrency),
			metric("winRate", "Win rate", ot.winRate(), domain.TypePercentage),
			metric("healthScore", "Health score", health, domain.TypeNumber),
		},
		Distributions: []domain.Distribution{
			distribute("ticketStatus", statusMembers(), byStatus),
			distribute("offerStage", stageMembers(), byStage),
			distribute("ticketsByZone", entityMembers(zones), byZone),
		},
		Rows: rows,
	}, nil
}
