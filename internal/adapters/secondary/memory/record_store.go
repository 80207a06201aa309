// Package memory provides an in-process RecordFetcher. It interprets the same
// Filter values as the Postgres adapter and backs local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lorrc/field-metrics/internal/core/domain"
	"github.com/lorrc/field-metrics/internal/core/ports"
)

// RecordStore holds records and reference domains in memory.
type RecordStore struct {
	mu       sync.RWMutex
	records  []domain.ServiceRecord
	entities map[domain.EntityKind][]domain.DomainEntity
}

var _ ports.RecordFetcher = (*RecordStore)(nil)

func NewRecordStore() *RecordStore {
	return &RecordStore{entities: make(map[domain.EntityKind][]domain.DomainEntity)}
}

// Add appends records to the store.
func (s *RecordStore) Add(records ...domain.ServiceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
}

// SetEntities replaces the reference domain of kind.
func (s *RecordStore) SetEntities(kind domain.EntityKind, entities ...domain.DomainEntity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]domain.DomainEntity, len(entities))
	copy(cp, entities)
	s.entities[kind] = cp
}

// Len returns the number of stored records.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Ping satisfies the readiness check used for the Postgres pool.
func (s *RecordStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *RecordStore) FindRecords(ctx context.Context, q ports.RecordQuery) ([]domain.ServiceRecord, error) {
	matched, err := s.match(ctx, q)
	if err != nil {
		return nil, err
	}
	withTransitions := domain.HasInclude(q.Include, domain.IncludeTransitions)
	for i := range matched {
		if withTransitions {
			matched[i].Transitions = append([]domain.StatusTransition(nil), matched[i].Transitions...)
		} else {
			matched[i].Transitions = nil
		}
	}
	return matched, nil
}

func (s *RecordStore) CountRecords(ctx context.Context, q ports.RecordQuery) (int64, error) {
	matched, err := s.match(ctx, q)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

func (s *RecordStore) GroupCount(ctx context.Context, q ports.RecordQuery, groupBy domain.Field) ([]ports.GroupCount, error) {
	aggs, err := s.GroupAggregate(ctx, q, groupBy)
	if err != nil {
		return nil, err
	}
	out := make([]ports.GroupCount, len(aggs))
	for i, a := range aggs {
		out[i] = ports.GroupCount{Key: a.Key, Count: a.Count}
	}
	return out, nil
}

func (s *RecordStore) GroupAggregate(ctx context.Context, q ports.RecordQuery, groupBy domain.Field, sums ...domain.Field) ([]ports.GroupAggregate, error) {
	if !groupBy.IsText() {
		return nil, fmt.Errorf("cannot group by %q", groupBy)
	}
	for _, f := range sums {
		if !f.IsNumeric() {
			return nil, fmt.Errorf("cannot sum %q", f)
		}
	}
	matched, err := s.match(ctx, q)
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*ports.GroupAggregate)
	for _, r := range matched {
		key := r.Text(groupBy)
		g, ok := groups[key]
		if !ok {
			g = &ports.GroupAggregate{Key: key, Sums: make(map[domain.Field]float64, len(sums))}
			groups[key] = g
		}
		g.Count++
		for _, f := range sums {
			g.Sums[f] += r.Number(f)
		}
	}

	out := make([]ports.GroupAggregate, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *RecordStore) ListDomainEntities(ctx context.Context, kind domain.EntityKind) ([]domain.DomainEntity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.DomainEntity, len(s.entities[kind]))
	copy(out, s.entities[kind])
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// match returns copies of the records of q.Kind satisfying q's predicate,
// ordered by creation time then ID.
func (s *RecordStore) match(ctx context.Context, q ports.RecordQuery) ([]domain.ServiceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !q.Kind.IsValid() {
		return nil, fmt.Errorf("unknown record kind %q", q.Kind)
	}
	pred := q.Predicate()
	if err := domain.ValidateFilter(pred); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]domain.ServiceRecord, 0)
	for _, r := range s.records {
		if r.Kind == q.Kind && pred.Matches(r) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
