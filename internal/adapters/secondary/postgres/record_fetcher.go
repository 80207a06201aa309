package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/field-metrics/internal/core/domain"
	"github.com/lorrc/field-metrics/internal/core/ports"
	"github.com/lorrc/field-metrics/internal/core/utils"
	"github.com/lorrc/field-metrics/internal/infrastructure/metrics"
)

// RecordFetcher is the Postgres implementation of ports.RecordFetcher.
type RecordFetcher struct {
	pool    *pgxpool.Pool
	tx      *TransactionManager
	metrics *metrics.Metrics
}

var _ ports.RecordFetcher = (*RecordFetcher)(nil)

// NewRecordFetcher creates a record fetcher. m may be nil.
func NewRecordFetcher(pool *pgxpool.Pool, m *metrics.Metrics) *RecordFetcher {
	return &RecordFetcher{
		pool:    pool,
		tx:      NewTransactionManager(pool),
		metrics: m,
	}
}

func (r *RecordFetcher) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.metrics.ObserveFetch(op, outcome, time.Since(start))
}

// FindRecords returns matching records ordered by creation time then ID.
// Ticket status history is loaded in the same read-only transaction when
// transitions are requested.
func (r *RecordFetcher) FindRecords(ctx context.Context, q ports.RecordQuery) (recs []domain.ServiceRecord, err error) {
	defer func(start time.Time) { r.observe("find_records", start, err) }(time.Now())

	source, where, args, err := compileQuery(q.Kind, q.Predicate())
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s\nFROM (%s\n) r\nWHERE %s\nORDER BY created_at, id COLLATE \"C\"", recordColumns, source, where)

	if q.Kind != domain.KindTicket || !domain.HasInclude(q.Include, domain.IncludeTransitions) {
		return scanRecords(ctx, GetDBTX(ctx, r.pool), q.Kind, query, args)
	}

	err = r.tx.WithReadOnlyTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		recs, err = scanRecords(ctx, tx, q.Kind, query, args)
		if err != nil {
			return err
		}
		return loadTransitions(ctx, tx, recs)
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// CountRecords counts matching records.
func (r *RecordFetcher) CountRecords(ctx context.Context, q ports.RecordQuery) (n int64, err error) {
	defer func(start time.Time) { r.observe("count_records", start, err) }(time.Now())

	source, where, args, err := compileQuery(q.Kind, q.Predicate())
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT COUNT(*)\nFROM (%s\n) r\nWHERE %s", source, where)

	if err := GetDBTX(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s records: %w", q.Kind, err)
	}
	return n, nil
}

// GroupCount counts matching records per value of groupBy. Unset values
// group under the empty key.
func (r *RecordFetcher) GroupCount(ctx context.Context, q ports.RecordQuery, groupBy domain.Field) ([]ports.GroupCount, error) {
	aggs, err := r.group(ctx, "group_count", q, groupBy)
	if err != nil {
		return nil, err
	}
	out := make([]ports.GroupCount, len(aggs))
	for i, a := range aggs {
		out[i] = ports.GroupCount{Key: a.Key, Count: a.Count}
	}
	return out, nil
}

// GroupAggregate counts matching records and sums numeric fields per value of groupBy.
func (r *RecordFetcher) GroupAggregate(ctx context.Context, q ports.RecordQuery, groupBy domain.Field, sums ...domain.Field) ([]ports.GroupAggregate, error) {
	return r.group(ctx, "group_aggregate", q, groupBy, sums...)
}

func (r *RecordFetcher) group(ctx context.Context, op string, q ports.RecordQuery, groupBy domain.Field, sums ...domain.Field) (out []ports.GroupAggregate, err error) {
	defer func(start time.Time) { r.observe(op, start, err) }(time.Now())

	if !groupBy.IsText() {
		return nil, fmt.Errorf("cannot group by %q", groupBy)
	}
	groupCol, err := columnFor(groupBy)
	if err != nil {
		return nil, err
	}
	selects := []string{fmt.Sprintf("COALESCE(%s, '') AS key", groupCol), "COUNT(*)"}
	for _, f := range sums {
		if !f.IsNumeric() {
			return nil, fmt.Errorf("cannot sum %q", f)
		}
		col, err := columnFor(f)
		if err != nil {
			return nil, err
		}
		selects = append(selects, fmt.Sprintf("COALESCE(SUM(%s), 0)::float8", col))
	}

	source, where, args, err := compileQuery(q.Kind, q.Predicate())
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s\nFROM (%s\n) r\nWHERE %s\nGROUP BY 1\nORDER BY 1 COLLATE \"C\"",
		strings.Join(selects, ", "), source, where)

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to group %s records by %s: %w", q.Kind, groupBy, err)
	}
	defer rows.Close()

	out = make([]ports.GroupAggregate, 0)
	for rows.Next() {
		g := ports.GroupAggregate{Sums: make(map[domain.Field]float64, len(sums))}
		totals := make([]float64, len(sums))
		dest := []any{&g.Key, &g.Count}
		for i := range totals {
			dest = append(dest, &totals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		for i, f := range sums {
			g.Sums[f] = totals[i]
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var entityQueries = map[domain.EntityKind]string{
	domain.EntityZone:        `SELECT id, name, NULL::text FROM zones ORDER BY id COLLATE "C"`,
	domain.EntityCustomer:    `SELECT id, name, zone_id FROM customers ORDER BY id COLLATE "C"`,
	domain.EntityTechnician:  `SELECT id, name, zone_id FROM technicians ORDER BY id COLLATE "C"`,
	domain.EntityProductType: `SELECT id, name, NULL::text FROM product_types ORDER BY id COLLATE "C"`,
	domain.EntityAsset:       `SELECT id, name, zone_id FROM assets ORDER BY id COLLATE "C"`,
}

// ListDomainEntities returns every member of a reference domain, sorted by ID.
func (r *RecordFetcher) ListDomainEntities(ctx context.Context, kind domain.EntityKind) (out []domain.DomainEntity, err error) {
	defer func(start time.Time) { r.observe("list_entities", start, err) }(time.Now())

	query, ok := entityQueries[kind]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s entities: %w", kind, err)
	}
	defer rows.Close()

	out = make([]domain.DomainEntity, 0)
	for rows.Next() {
		var (
			e      domain.DomainEntity
			zoneID pgtype.Text
		)
		if err := rows.Scan(&e.ID, &e.Name, &zoneID); err != nil {
			return nil, err
		}
		e.ZoneID = utils.FromString(zoneID)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanRecords(ctx context.Context, db DBTX, kind domain.RecordKind, query string, args []any) ([]domain.ServiceRecord, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s records: %w", kind, err)
	}
	defer rows.Close()

	recs := make([]domain.ServiceRecord, 0)
	for rows.Next() {
		var (
			rec       = domain.ServiceRecord{Kind: kind}
			title     pgtype.Text
			updatedAt pgtype.Timestamptz
			closedAt  pgtype.Timestamptz
			category  pgtype.Text
			priority  pgtype.Text
			zone      pgtype.Text
			customer  pgtype.Text
			assignee  pgtype.Text
			asset     pgtype.Text
			product   pgtype.Text
			callType  pgtype.Text
		)
		if err := rows.Scan(
			&rec.ID, &title, &rec.CreatedAt, &updatedAt, &closedAt, &category, &priority,
			&zone, &customer, &assignee, &asset, &product, &callType, &rec.Value,
		); err != nil {
			return nil, err
		}

		rec.CreatedAt = rec.CreatedAt.UTC()
		if t := utils.FromTimestamptz(updatedAt); t != nil {
			rec.UpdatedAt = *t
		}
		rec.ClosedAt = utils.FromTimestamptz(closedAt)
		rec.Title = utils.FromString(title)
		rec.Category = utils.FromString(category)
		rec.Priority = utils.FromString(priority)
		rec.ZoneID = utils.FromString(zone)
		rec.CustomerID = utils.FromString(customer)
		rec.AssigneeID = utils.FromString(assignee)
		rec.AssetID = utils.FromString(asset)
		rec.ProductType = utils.FromString(product)
		rec.CallType = utils.FromString(callType)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// loadTransitions attaches status history to tickets, oldest first.
func loadTransitions(ctx context.Context, db DBTX, recs []domain.ServiceRecord) error {
	if len(recs) == 0 {
		return nil
	}
	ids := make([]string, len(recs))
	pos := make(map[string]int, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
		pos[rec.ID] = i
	}

	const query = `
SELECT ticket_id, status, changed_at
FROM ticket_status_history
WHERE ticket_id = ANY($1)
ORDER BY ticket_id, changed_at, id
`
	rows, err := db.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to load status history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ticketID string
			tr       domain.StatusTransition
		)
		if err := rows.Scan(&ticketID, &tr.Status, &tr.ChangedAt); err != nil {
			return err
		}
		tr.ChangedAt = tr.ChangedAt.UTC()
		i := pos[ticketID]
		recs[i].Transitions = append(recs[i].Transitions, tr)
	}
	return rows.Err()
}
