package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lorrc/field-metrics/internal/adapters/secondary/memory"
	"github.com/lorrc/field-metrics/internal/core/batch"
	"github.com/lorrc/field-metrics/internal/core/calendar"
	"github.com/lorrc/field-metrics/internal/core/domain"
	"github.com/lorrc/field-metrics/internal/core/ports"
	"github.com/lorrc/field-metrics/internal/infrastructure/logging"
)

// fixedNow is Friday 29 March 2024, midday.
var fixedNow = time.Date(2024, 3, 29, 12, 0, 0, 0, time.UTC)

var marchWindow = domain.TimeWindow{
	Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 3, 31, 23, 59, 59, 999000000, time.UTC),
}

func march(day, hour, minute int) time.Time {
	return time.Date(2024, 3, day, hour, minute, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time {
	return &t
}

func newTestCalculator(t *testing.T) *MetricsCalculator {
	t.Helper()
	cal, err := calendar.New(domain.DefaultWorkCalendar())
	require.NoError(t, err)
	return NewMetricsCalculator(cal, domain.DefaultSlaTable(), DefaultMetricsOptions())
}

func newTestService(t *testing.T, fetcher ports.RecordFetcher, opts ...ReportOption) *ReportService {
	t.Helper()
	opts = append([]ReportOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewReportService(
		fetcher,
		newTestCalculator(t),
		batch.New(batch.DefaultConfig(), logging.Nop(), nil),
		DefaultReportConfig(),
		logging.Nop(),
		opts...,
	)
}

func marchRequest(view domain.ReportView) ports.ReportRequest {
	w := marchWindow
	return ports.ReportRequest{View: view, Window: &w, Scope: domain.UnrestrictedScope()}
}

// seedDomains registers three zones, two technicians, two customers, two
// product types and two assets.
func seedDomains(s *memory.RecordStore) {
	s.SetEntities(domain.EntityZone,
		domain.DomainEntity{ID: "z1", Name: "North"},
		domain.DomainEntity{ID: "z2", Name: "South"},
		domain.DomainEntity{ID: "z3", Name: "East"},
	)
	s.SetEntities(domain.EntityTechnician,
		domain.DomainEntity{ID: "u1", Name: "Alice", ZoneID: "z1"},
		domain.DomainEntity{ID: "u2", Name: "Bob", ZoneID: "z2"},
	)
	s.SetEntities(domain.EntityCustomer,
		domain.DomainEntity{ID: "c1", Name: "Acme", ZoneID: "z1"},
		domain.DomainEntity{ID: "c2", Name: "Globex", ZoneID: "z2"},
	)
	s.SetEntities(domain.EntityProductType,
		domain.DomainEntity{ID: "pump", Name: "Pump"},
		domain.DomainEntity{ID: "valve", Name: "Valve"},
	)
	s.SetEntities(domain.EntityAsset,
		domain.DomainEntity{ID: "a1", Name: "Pump #1", ZoneID: "z1"},
		domain.DomainEntity{ID: "a2", Name: "Valve #7", ZoneID: "z2"},
	)
}

// seededStore builds a small but complete March 2024 data set:
//
//	t1 HIGH z1 resolved in 120 working minutes with a full visit
//	t2 CRITICAL z1 resolved after 510 working minutes (breached)
//	t3 MEDIUM z2 open and overdue, on asset a2
//	t4 LOW z2 cancelled
//	t5 HIGH z1 escalated, open and overdue
//	t6 LOW z1 opened today, still within SLA
func seededStore() *memory.RecordStore {
	s := memory.NewRecordStore()
	seedDomains(s)

	s.Add(
		domain.ServiceRecord{
			ID: "t1", Kind: domain.KindTicket, Title: "Pump leaking",
			CreatedAt: march(4, 9, 0), UpdatedAt: march(4, 11, 0), ClosedAt: ptr(march(4, 11, 0)),
			Category: "RESOLVED", Priority: "HIGH", ZoneID: "z1", CustomerID: "c1", AssigneeID: "u1",
			AssetID: "a1", ProductType: "pump", CallType: "BREAKDOWN",
			Transitions: []domain.StatusTransition{
				{Status: "OPEN", ChangedAt: march(4, 9, 0)},
				{Status: "ASSIGNED", ChangedAt: march(4, 9, 15)},
				{Status: "VISIT_STARTED", ChangedAt: march(4, 9, 20)},
				{Status: "ARRIVED", ChangedAt: march(4, 9, 50)},
				{Status: "ONSITE_RESOLVED", ChangedAt: march(4, 10, 50)},
				{Status: "VISIT_COMPLETED", ChangedAt: march(4, 11, 0)},
				{Status: "RESOLVED", ChangedAt: march(4, 11, 0)},
			},
		},
		domain.ServiceRecord{
			ID: "t2", Kind: domain.KindTicket, Title: "Line stopped",
			CreatedAt: march(4, 9, 0), UpdatedAt: march(5, 9, 0), ClosedAt: ptr(march(5, 9, 0)),
			Category: "RESOLVED", Priority: "CRITICAL", ZoneID: "z1", CustomerID: "c1", AssigneeID: "u1",
		},
		domain.ServiceRecord{
			ID: "t3", Kind: domain.KindTicket, Title: "Valve stuck",
			CreatedAt: march(6, 9, 0), UpdatedAt: march(6, 9, 0),
			Category: "OPEN", Priority: "MEDIUM", ZoneID: "z2", CustomerID: "c2", AssigneeID: "u2",
			AssetID: "a2", ProductType: "valve",
		},
		domain.ServiceRecord{
			ID: "t4", Kind: domain.KindTicket, Title: "Duplicate",
			CreatedAt: march(7, 10, 0), UpdatedAt: march(7, 10, 30),
			Category: "CANCELLED", Priority: "LOW", ZoneID: "z2", CustomerID: "c2",
		},
		domain.ServiceRecord{
			ID: "t5", Kind: domain.KindTicket, Title: "Control panel fault",
			CreatedAt: march(8, 9, 0), UpdatedAt: march(8, 10, 0),
			Category: "ESCALATED", Priority: "HIGH", ZoneID: "z1", CustomerID: "c1", AssigneeID: "u1",
		},
		domain.ServiceRecord{
			ID: "t6", Kind: domain.KindTicket, Title: "Noise check",
			CreatedAt: march(29, 10, 0), UpdatedAt: march(29, 10, 0),
			Category: "OPEN", Priority: "LOW", ZoneID: "z1", AssigneeID: "u1",
		},
	)

	s.Add(
		domain.ServiceRecord{ID: "o1", Kind: domain.KindOffer, Title: "Pump service contract", CreatedAt: march(2, 9, 0), ClosedAt: ptr(march(10, 9, 0)),
			Category: "WON", ZoneID: "z1", CustomerID: "c1", AssigneeID: "u1", ProductType: "pump", Value: 1000},
		domain.ServiceRecord{ID: "o2", Kind: domain.KindOffer, Title: "Spare pumps", CreatedAt: march(3, 9, 0), ClosedAt: ptr(march(12, 9, 0)),
			Category: "LOST", ZoneID: "z1", CustomerID: "c1", AssigneeID: "u1", ProductType: "pump", Value: 500},
		domain.ServiceRecord{ID: "o3", Kind: domain.KindOffer, Title: "Valve retrofit", CreatedAt: march(5, 9, 0),
			Category: "PROPOSAL", ZoneID: "z2", CustomerID: "c2", AssigneeID: "u2", ProductType: "valve", Value: 2000},
		domain.ServiceRecord{ID: "o4", Kind: domain.KindOffer, Title: "Valve bank", CreatedAt: march(6, 9, 0), ClosedAt: ptr(march(20, 9, 0)),
			Category: "WON", ZoneID: "z2", CustomerID: "c2", AssigneeID: "u2", ProductType: "valve", Value: 3000},
	)

	s.Add(
		domain.ServiceRecord{ID: "tg1", Kind: domain.KindTarget, CreatedAt: march(1, 0, 0), ClosedAt: ptr(march(31, 23, 0)),
			ZoneID: "z1", ProductType: "pump", Value: 1500},
		domain.ServiceRecord{ID: "tg2", Kind: domain.KindTarget, CreatedAt: march(1, 0, 0), ClosedAt: ptr(march(31, 23, 0)),
			ZoneID: "z2", Value: 2000},
	)

	s.Add(
		domain.ServiceRecord{ID: "at1", Kind: domain.KindAttendance, CreatedAt: march(4, 8, 0), ClosedAt: ptr(march(4, 16, 0)), AssigneeID: "u1", ZoneID: "z1"},
		domain.ServiceRecord{ID: "at2", Kind: domain.KindAttendance, CreatedAt: march(5, 8, 0), ClosedAt: ptr(march(6, 10, 0)), AssigneeID: "u1", ZoneID: "z1"},
		domain.ServiceRecord{ID: "at3", Kind: domain.KindAttendance, CreatedAt: march(6, 8, 0), ClosedAt: ptr(march(6, 12, 0)), AssigneeID: "u2", ZoneID: "z2"},
		domain.ServiceRecord{ID: "at4", Kind: domain.KindAttendance, CreatedAt: march(7, 8, 0), AssigneeID: "u2", ZoneID: "z2"},
	)

	s.Add(
		domain.ServiceRecord{ID: "ac1", Kind: domain.KindActivity, CreatedAt: march(4, 12, 0), Category: "CALL", AssigneeID: "u1", ZoneID: "z1"},
		domain.ServiceRecord{ID: "ac2", Kind: domain.KindActivity, CreatedAt: march(5, 12, 0), Category: "CALL", AssigneeID: "u1", ZoneID: "z1"},
		domain.ServiceRecord{ID: "ac3", Kind: domain.KindActivity, CreatedAt: march(6, 12, 0), Category: "VISIT", AssigneeID: "u2", ZoneID: "z2"},
	)
	return s
}

// bulkTickets adds n resolved tickets spread over March working days.
func bulkTickets(s *memory.RecordStore, n int, zoneID string) {
	for i := 0; i < n; i++ {
		created := time.Date(2024, 3, 1+i%28, 9, i%60, 0, 0, time.UTC)
		closed := created.Add(2 * time.Hour)
		s.Add(domain.ServiceRecord{
			ID:        fmt.Sprintf("%s-%03d", zoneID, i),
			Kind:      domain.KindTicket,
			CreatedAt: created,
			UpdatedAt: closed,
			ClosedAt:  &closed,
			Category:  "RESOLVED",
			Priority:  "MEDIUM",
			ZoneID:    zoneID,
		})
	}
}

func metricValue(t *testing.T, rep *domain.Report, key string) float64 {
	t.Helper()
	m, ok := rep.Metric(key)
	require.True(t, ok, "missing metric %s", key)
	return m.Value
}

func distribution(t *testing.T, rep *domain.Report, name string) domain.Distribution {
	t.Helper()
	d, ok := rep.Distribution(name)
	require.True(t, ok, "missing distribution %s", name)
	return d
}

func entryKeys(d domain.Distribution) []string {
	keys := make([]string, len(d.Entries))
	for i, e := range d.Entries {
		keys[i] = e.Key
	}
	return keys
}

func entryCount(d domain.Distribution, key string) int64 {
	for _, e := range d.Entries {
		if e.Key == key {
			return e.Count
		}
	}
	return -1
}
