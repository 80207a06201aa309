package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/field-metrics/internal/core/domain"
)

func TestResolvedAt_Precedence(t *testing.T) {
	calc := newTestCalculator(t)
	created := march(4, 9, 0)

	t.Run("last terminal transition wins", func(t *testing.T) {
		rec := domain.ServiceRecord{
			CreatedAt: created,
			ClosedAt:  ptr(march(6, 9, 0)),
			Transitions: []domain.StatusTransition{
				{Status: "RESOLVED", ChangedAt: march(4, 10, 0)},
				{Status: "IN_PROGRESS", ChangedAt: march(4, 11, 0)},
				{Status: "CLOSED", ChangedAt: march(5, 10, 0)},
			},
		}
		got := calc.ResolvedAt(rec)
		require.NotNil(t, got)
		assert.Equal(t, march(5, 10, 0), *got)
	})

	t.Run("closedAt without history", func(t *testing.T) {
		rec := domain.ServiceRecord{CreatedAt: created, ClosedAt: ptr(march(6, 9, 0))}
		got := calc.ResolvedAt(rec)
		require.NotNil(t, got)
		assert.Equal(t, march(6, 9, 0), *got)
	})

	t.Run("updatedAt for terminal records past the sanity threshold", func(t *testing.T) {
		rec := domain.ServiceRecord{CreatedAt: created, UpdatedAt: march(4, 12, 0), Category: "CLOSED"}
		got := calc.ResolvedAt(rec)
		require.NotNil(t, got)
		assert.Equal(t, march(4, 12, 0), *got)
	})

	t.Run("updatedAt too close to creation is ignored", func(t *testing.T) {
		rec := domain.ServiceRecord{CreatedAt: created, UpdatedAt: created.Add(3 * time.Minute), Category: "RESOLVED"}
		assert.Nil(t, calc.ResolvedAt(rec))
	})

	t.Run("reopened after a resolution", func(t *testing.T) {
		rec := domain.ServiceRecord{
			CreatedAt: created,
			Category:  "IN_PROGRESS",
			ClosedAt:  ptr(march(4, 10, 0)),
			Transitions: []domain.StatusTransition{
				{Status: "RESOLVED", ChangedAt: march(4, 10, 0)},
				{Status: "IN_PROGRESS", ChangedAt: march(4, 11, 0)},
			},
		}
		assert.Nil(t, calc.ResolvedAt(rec))
	})

	t.Run("reopened history without a current status", func(t *testing.T) {
		rec := domain.ServiceRecord{
			CreatedAt: created,
			ClosedAt:  ptr(march(4, 10, 0)),
			Transitions: []domain.StatusTransition{
				{Status: "RESOLVED", ChangedAt: march(4, 10, 0)},
				{Status: "ASSIGNED", ChangedAt: march(4, 11, 0)},
			},
		}
		assert.Nil(t, calc.ResolvedAt(rec))
	})

	t.Run("terminal status with stale history uses closedAt", func(t *testing.T) {
		rec := domain.ServiceRecord{
			CreatedAt: created,
			Category:  "CLOSED",
			ClosedAt:  ptr(march(7, 9, 0)),
			Transitions: []domain.StatusTransition{
				{Status: "RESOLVED", ChangedAt: march(4, 10, 0)},
				{Status: "IN_PROGRESS", ChangedAt: march(4, 11, 0)},
			},
		}
		got := calc.ResolvedAt(rec)
		require.NotNil(t, got)
		assert.Equal(t, march(7, 9, 0), *got)
	})

	t.Run("open records are unresolved", func(t *testing.T) {
		rec := domain.ServiceRecord{CreatedAt: created, UpdatedAt: march(5, 9, 0), Category: "IN_PROGRESS"}
		assert.Nil(t, calc.ResolvedAt(rec))
	})
}

func TestDerive_SLA(t *testing.T) {
	calc := newTestCalculator(t)

	tests := []struct {
		name       string
		rec        domain.ServiceRecord
		resolution float64
		resolved   bool
		open       bool
		breached   bool
		deadline   time.Time
	}{
		{
			name:       "resolved within the HIGH tier",
			rec:        domain.ServiceRecord{CreatedAt: march(4, 9, 0), ClosedAt: ptr(march(4, 11, 0)), Category: "RESOLVED", Priority: "HIGH"},
			resolution: 120,
			resolved:   true,
			deadline:   march(4, 17, 0),
		},
		{
			name:       "resolved after the CRITICAL tier",
			rec:        domain.ServiceRecord{CreatedAt: march(4, 9, 0), ClosedAt: ptr(march(5, 9, 0)), Category: "RESOLVED", Priority: "critical"},
			resolution: 510,
			resolved:   true,
			breached:   true,
			deadline:   march(4, 13, 0),
		},
		{
			name:     "open past its deadline",
			rec:      domain.ServiceRecord{CreatedAt: march(4, 9, 0), Category: "OPEN", Priority: "CRITICAL"},
			open:     true,
			breached: true,
			deadline: march(4, 13, 0),
		},
		{
			name: "reopened after a resolution is open and overdue",
			rec: domain.ServiceRecord{
				CreatedAt: march(4, 9, 0), Category: "IN_PROGRESS", Priority: "CRITICAL",
				Transitions: []domain.StatusTransition{
					{Status: "RESOLVED", ChangedAt: march(4, 10, 0)},
					{Status: "IN_PROGRESS", ChangedAt: march(4, 11, 0)},
				},
			},
			open:     true,
			breached: true,
			deadline: march(4, 13, 0),
		},
		{
			name:     "open within its deadline",
			rec:      domain.ServiceRecord{CreatedAt: march(29, 10, 0), Category: "OPEN", Priority: "LOW"},
			open:     true,
			deadline: time.Date(2024, 4, 4, 15, 30, 0, 0, time.UTC),
		},
		{
			name:     "unknown priority falls back to LOW",
			rec:      domain.ServiceRecord{CreatedAt: march(29, 10, 0), Category: "OPEN", Priority: "URGENT"},
			open:     true,
			deadline: time.Date(2024, 4, 4, 15, 30, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := calc.Derive(tt.rec, fixedNow)
			assert.Equal(t, tt.resolved, m.Resolved())
			assert.Equal(t, tt.open, m.Open)
			assert.Equal(t, tt.breached, m.Breached)
			assert.True(t, tt.deadline.Equal(m.Deadline), "deadline %s, want %s", m.Deadline, tt.deadline)
			if tt.resolved {
				require.NotNil(t, m.ResolutionMinutes)
				assert.InDelta(t, tt.resolution, *m.ResolutionMinutes, 0.001)
			} else {
				assert.Nil(t, m.ResolutionMinutes)
			}
		})
	}
}

func TestDerive_CancelledIsNeitherOpenNorResolved(t *testing.T) {
	calc := newTestCalculator(t)
	m := calc.Derive(domain.ServiceRecord{CreatedAt: march(4, 9, 0), Category: "CANCELLED", Priority: "CRITICAL"}, fixedNow)
	assert.False(t, m.Open)
	assert.False(t, m.Resolved())
	assert.False(t, m.Breached)
}

func TestDerive_VisitSegments(t *testing.T) {
	calc := newTestCalculator(t)
	rec := domain.ServiceRecord{
		CreatedAt: march(4, 9, 0),
		Category:  "RESOLVED",
		Transitions: []domain.StatusTransition{
			// deliberately out of order
			{Status: "ARRIVED", ChangedAt: march(4, 9, 50)},
			{Status: "OPEN", ChangedAt: march(4, 9, 0)},
			{Status: "VISIT_STARTED", ChangedAt: march(4, 9, 20)},
			{Status: "ONSITE_RESOLVED", ChangedAt: march(4, 10, 50)},
			{Status: "VISIT_COMPLETED", ChangedAt: march(4, 11, 0)},
			{Status: "RESOLVED", ChangedAt: march(4, 11, 5)},
		},
	}

	m := calc.Derive(rec, fixedNow)
	assert.InDelta(t, 40, m.TravelMinutes, 0.001)
	assert.InDelta(t, 60, m.OnsiteMinutes, 0.001)
	require.NotNil(t, m.FirstResponseMinutes)
	assert.InDelta(t, 20, *m.FirstResponseMinutes, 0.001)
	require.NotNil(t, m.ResolutionMinutes)
	assert.InDelta(t, 125, *m.ResolutionMinutes, 0.001)
}

func TestDerive_ImplausibleLegsAreDropped(t *testing.T) {
	calc := newTestCalculator(t)
	rec := domain.ServiceRecord{
		CreatedAt: march(4, 9, 0),
		Transitions: []domain.StatusTransition{
			{Status: "VISIT_STARTED", ChangedAt: march(4, 9, 0)},
			{Status: "ARRIVED", ChangedAt: march(4, 12, 0)},
			{Status: "ONSITE_RESOLVED", ChangedAt: march(5, 12, 0)},
		},
	}
	m := calc.Derive(rec, fixedNow)
	assert.Zero(t, m.TravelMinutes)
	assert.Zero(t, m.OnsiteMinutes)
}

func TestDerive_Escalated(t *testing.T) {
	calc := newTestCalculator(t)

	m := calc.Derive(domain.ServiceRecord{CreatedAt: march(4, 9, 0), Category: "ESCALATED"}, fixedNow)
	assert.True(t, m.Escalated)

	m = calc.Derive(domain.ServiceRecord{
		CreatedAt:   march(4, 9, 0),
		Category:    "IN_PROGRESS",
		Transitions: []domain.StatusTransition{{Status: "ESCALATED", ChangedAt: march(4, 10, 0)}},
	}, fixedNow)
	assert.True(t, m.Escalated)
}

func TestAggregate_OutliersStayOutOfAverages(t *testing.T) {
	calc := newTestCalculator(t)
	recs := []domain.ServiceRecord{
		{ID: "fast", CreatedAt: march(4, 9, 0), ClosedAt: ptr(march(4, 11, 0)), Category: "RESOLVED", Priority: "HIGH"},
		// roughly fifty working days
		{ID: "slow", CreatedAt: time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), ClosedAt: ptr(march(1, 9, 0)), Category: "RESOLVED", Priority: "HIGH"},
	}
	derived := calc.DeriveAll(recs, fixedNow)
	require.Len(t, derived, 2)
	assert.False(t, derived[0].Metrics.Outlier)
	assert.True(t, derived[1].Metrics.Outlier)
	require.NotNil(t, derived[1].Metrics.ResolutionMinutes)
	assert.Greater(t, *derived[1].Metrics.ResolutionMinutes, calc.PlausibleMaxMinutes())

	g := calc.Aggregate(derived)
	assert.Equal(t, 2, g.Count)
	assert.Equal(t, 2, g.Resolved)
	assert.Equal(t, 1, g.OutlierCount)
	assert.Equal(t, 120.0, g.AvgResolutionMinutes)
	assert.Equal(t, 120.0, g.MedianResolutionMinutes)
}

func TestAggregate_Rates(t *testing.T) {
	calc := newTestCalculator(t)
	recs := calc.DeriveAll([]domain.ServiceRecord{
		{CreatedAt: march(4, 9, 0), ClosedAt: ptr(march(4, 11, 0)), Category: "RESOLVED", Priority: "HIGH"},
		{CreatedAt: march(4, 9, 0), ClosedAt: ptr(march(5, 9, 0)), Category: "RESOLVED", Priority: "CRITICAL"},
		{CreatedAt: march(29, 10, 0), Category: "OPEN", Priority: "LOW"},
		{CreatedAt: march(7, 10, 0), Category: "CANCELLED", Priority: "LOW"},
	}, fixedNow)

	g := calc.Aggregate(recs)
	assert.Equal(t, 4, g.Count)
	assert.Equal(t, 2, g.Resolved)
	assert.Equal(t, 1, g.Open)
	assert.Equal(t, 1, g.Met)
	assert.Equal(t, 1, g.Breached)
	assert.Equal(t, 1, g.Pending)
	assert.Equal(t, 50.0, g.ResolutionRate)
	assert.Equal(t, 50.0, g.SlaCompliance)
	assert.Equal(t, 315.0, g.AvgResolutionMinutes)
}

func TestAggregate_Empty(t *testing.T) {
	g := newTestCalculator(t).Aggregate(nil)
	assert.Equal(t, GroupMetrics{}, g)
}

func TestSpeedScore(t *testing.T) {
	calc := newTestCalculator(t)

	assert.Zero(t, calc.SpeedScore(GroupMetrics{}, 510))
	assert.Equal(t, 100.0, calc.SpeedScore(GroupMetrics{Resolved: 1}, 510))
	assert.Equal(t, 50.0, calc.SpeedScore(GroupMetrics{Resolved: 1, AvgResolutionMinutes: 510}, 510))
	assert.Zero(t, calc.SpeedScore(GroupMetrics{Resolved: 1, AvgResolutionMinutes: 5000}, 510))
	assert.Zero(t, calc.SpeedScore(GroupMetrics{Resolved: 1}, 0))
}

func TestScore(t *testing.T) {
	tests := []struct {
		name       string
		components []ScoreComponent
		want       float64
	}{
		{"weighted", []ScoreComponent{{100, 0.4}, {50, 0.4}, {0, 0.2}}, 60},
		{"clamped inputs", []ScoreComponent{{250, 0.5}, {-40, 0.5}}, 50},
		{"normalised by weight", []ScoreComponent{{80, 2}}, 80},
		{"zero weights ignored", []ScoreComponent{{80, 0}, {20, 1}}, 20},
		{"nothing to score", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.components...))
		})
	}
}
