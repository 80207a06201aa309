package ports

import (
	"context"

	"github.com/lorrc/field-metrics/internal/core/domain"
)

// RecordQuery selects records of one kind whose WindowField falls inside Window
// and which match Filter.
type RecordQuery struct {
	Kind        domain.RecordKind
	Window      domain.TimeWindow
	WindowField domain.Field // defaults to createdAt
	Filter      domain.Filter
	Include     []domain.Include
}

// TimeField returns the field the window applies to.
func (q RecordQuery) TimeField() domain.Field {
	if q.WindowField == "" {
		return domain.FieldCreatedAt
	}
	return q.WindowField
}

// Predicate combines the window and the filter into one Filter value.
func (q RecordQuery) Predicate() domain.Filter {
	return domain.All(domain.InRange(q.TimeField(), q.Window), q.Filter)
}

// GroupCount is one bucket of a grouped count.
type GroupCount struct {
	Key   string
	Count int64
}

// GroupAggregate is one bucket of a grouped count with per-field sums.
type GroupAggregate struct {
	Key   string
	Count int64
	Sums  map[domain.Field]float64
}

// RecordFetcher is the narrow read interface over the record store.
type RecordFetcher interface {
	FindRecords(ctx context.Context, q RecordQuery) ([]domain.ServiceRecord, error)
	CountRecords(ctx context.Context, q RecordQuery) (int64, error)
	GroupCount(ctx context.Context, q RecordQuery, groupBy domain.Field) ([]GroupCount, error)
	GroupAggregate(ctx context.Context, q RecordQuery, groupBy domain.Field, sums ...domain.Field) ([]GroupAggregate, error)
	ListDomainEntities(ctx context.Context, kind domain.EntityKind) ([]domain.DomainEntity, error)
}
