package domain_test

import (
	"testing"
	"time"

	"github.com/lorrc/field-metrics/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestTicketStatus_IsValid(t *testing.T) {
	tests := []struct {
		name   string
		status domain.TicketStatus
		want   bool
	}{
		{"OPEN is valid", domain.StatusOpen, true},
		{"ONSITE_RESOLVED is valid", domain.StatusOnsiteResolved, true},
		{"CANCELLED is valid", domain.StatusCancelled, true},
		{"empty is invalid", domain.TicketStatus(""), false},
		{"lowercase is invalid", domain.TicketStatus("open"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsValid())
		})
	}
}

func TestTicketStatus_IsTerminal(t *testing.T) {
	assert.True(t, domain.StatusResolved.IsTerminal())
	assert.True(t, domain.StatusClosed.IsTerminal())
	assert.False(t, domain.StatusVisitCompleted.IsTerminal())
	assert.False(t, domain.StatusCancelled.IsTerminal())
}

func TestOfferStage_IsOpen(t *testing.T) {
	assert.True(t, domain.StageNegotiation.IsOpen())
	assert.False(t, domain.StageWon.IsOpen())
	assert.False(t, domain.StageLost.IsOpen())
}

func TestSlaTable_AllowedHours(t *testing.T) {
	sla := domain.DefaultSlaTable()

	tests := []struct {
		priority string
		want     float64
	}{
		{"CRITICAL", 4},
		{"HIGH", 8},
		{"medium", 24},
		{"LOW", 48},
		{"", 48},
		{"URGENT", 48},
	}
	for _, tt := range tests {
		t.Run(tt.priority, func(t *testing.T) {
			assert.Equal(t, tt.want, sla.AllowedHours(tt.priority))
		})
	}
}

func TestFilter_Matches(t *testing.T) {
	closed := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	rec := domain.ServiceRecord{
		ID:        "t-1",
		Kind:      domain.KindTicket,
		CreatedAt: time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC),
		ClosedAt:  &closed,
		Category:  "RESOLVED",
		Priority:  "HIGH",
		ZoneID:    "z-1",
	}
	march := domain.TimeWindow{
		Start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC),
	}

	tests := []struct {
		name   string
		filter domain.Filter
		want   bool
	}{
		{"date range hit", domain.InRange(domain.FieldCreatedAt, march), true},
		{"date range on unset field", domain.InRange(domain.FieldUpdatedAt, march), false},
		{"equals", domain.Eq(domain.FieldZone, "z-1"), true},
		{"equals miss", domain.Eq(domain.FieldZone, "z-2"), false},
		{"in set", domain.In(domain.FieldPriority, "LOW", "HIGH"), true},
		{"empty set matches nothing", domain.In(domain.FieldPriority), false},
		{"present time", domain.Present(domain.FieldClosedAt), true},
		{"present text missing", domain.Present(domain.FieldAsset), false},
		{"empty and matches all", domain.All(), true},
		{"and combines", domain.All(domain.Eq(domain.FieldZone, "z-1"), domain.Eq(domain.FieldStatus, "OPEN")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(rec))
		})
	}
}

func TestAll_Flattens(t *testing.T) {
	inner := domain.All(domain.Eq(domain.FieldZone, "a"), nil)
	f := domain.All(inner, domain.Present(domain.FieldAsset))

	and, ok := f.(domain.And)
	assert.True(t, ok)
	assert.Len(t, and.Filters, 2)
}

func TestValidateFilter(t *testing.T) {
	w := domain.TimeWindow{Start: time.Now(), End: time.Now().Add(time.Hour)}

	assert.NoError(t, domain.ValidateFilter(domain.All(domain.InRange(domain.FieldClosedAt, w), domain.Eq(domain.FieldZone, "z"))))
	assert.Error(t, domain.ValidateFilter(domain.InRange(domain.FieldZone, w)))
	assert.Error(t, domain.ValidateFilter(domain.Eq(domain.FieldCreatedAt, "x")))
	assert.Error(t, domain.ValidateFilter(domain.In(domain.FieldValue, "1")))
}
