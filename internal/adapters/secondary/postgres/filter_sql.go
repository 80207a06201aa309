package postgres

import (
	"fmt"
	"strings"

	"github.com/lorrc/field-metrics/internal/core/domain"
)

// recordColumns is the canonical column list every record source exposes.
const recordColumns = `id, title, created_at, updated_at, closed_at, category, priority,
       zone_id, customer_id, assignee_id, asset_id, product_type, call_type, value`

// recordSources maps each record kind onto its table, renamed to the
// canonical columns so one filter compiler serves every kind.
var recordSources = map[domain.RecordKind]string{
	domain.KindTicket: `
SELECT id, title, created_at, updated_at, closed_at, status AS category, priority,
       zone_id, customer_id, assignee_id, asset_id, product_type, call_type, 0::float8 AS value
FROM tickets`,
	domain.KindOffer: `
SELECT id, title, created_at, updated_at, closed_at, stage AS category, NULL::text AS priority,
       zone_id, customer_id, owner_id AS assignee_id, NULL::text AS asset_id, product_type,
       NULL::text AS call_type, value::float8 AS value
FROM offers`,
	domain.KindAttendance: `
SELECT id, NULL::text AS title, check_in AS created_at, NULL::timestamptz AS updated_at,
       check_out AS closed_at, NULL::text AS category, NULL::text AS priority,
       zone_id, NULL::text AS customer_id, technician_id AS assignee_id, NULL::text AS asset_id,
       NULL::text AS product_type, NULL::text AS call_type, 0::float8 AS value
FROM attendance`,
	domain.KindActivity: `
SELECT id, description AS title, created_at, created_at AS updated_at, NULL::timestamptz AS closed_at,
       activity_type AS category, NULL::text AS priority, zone_id, customer_id,
       technician_id AS assignee_id, NULL::text AS asset_id, NULL::text AS product_type,
       NULL::text AS call_type, 0::float8 AS value
FROM activity_logs`,
	domain.KindTarget: `
SELECT id, NULL::text AS title, period_start AS created_at, NULL::timestamptz AS updated_at,
       period_end AS closed_at, NULL::text AS category, NULL::text AS priority, zone_id,
       NULL::text AS customer_id, NULL::text AS assignee_id, NULL::text AS asset_id, product_type,
       NULL::text AS call_type, target_value::float8 AS value
FROM targets`,
}

var fieldColumns = map[domain.Field]string{
	domain.FieldStatus:      "category",
	domain.FieldPriority:    "priority",
	domain.FieldZone:        "zone_id",
	domain.FieldCustomer:    "customer_id",
	domain.FieldAssignee:    "assignee_id",
	domain.FieldAsset:       "asset_id",
	domain.FieldProductType: "product_type",
	domain.FieldCallType:    "call_type",
	domain.FieldCreatedAt:   "created_at",
	domain.FieldUpdatedAt:   "updated_at",
	domain.FieldClosedAt:    "closed_at",
	domain.FieldValue:       "value",
}

func columnFor(f domain.Field) (string, error) {
	col, ok := fieldColumns[f]
	if !ok {
		return "", fmt.Errorf("no column for field %q", f)
	}
	return col, nil
}

// whereBuilder compiles Filter values into a parameterised WHERE clause.
// Text columns are compared through COALESCE so that NULL behaves like the
// empty string, matching the in-memory store.
type whereBuilder struct {
	args []any
}

func (b *whereBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *whereBuilder) compile(f domain.Filter) (string, error) {
	switch v := f.(type) {
	case nil:
		return "TRUE", nil

	case domain.DateRange:
		col, err := columnFor(v.Field)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s >= %s AND %s <= %s)",
			col, b.arg(v.Window.Start.UTC()), col, b.arg(v.Window.End.UTC())), nil

	case domain.Equals:
		col, err := columnFor(v.Field)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("COALESCE(%s, '') = %s", col, b.arg(v.Value)), nil

	case domain.InSet:
		if len(v.Values) == 0 {
			return "FALSE", nil
		}
		col, err := columnFor(v.Field)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("COALESCE(%s, '') = ANY(%s)", col, b.arg(v.Values)), nil

	case domain.NotNull:
		col, err := columnFor(v.Field)
		if err != nil {
			return "", err
		}
		if v.Field.IsTime() {
			return col + " IS NOT NULL", nil
		}
		return fmt.Sprintf("COALESCE(%s, '') <> ''", col), nil

	case domain.And:
		if len(v.Filters) == 0 {
			return "TRUE", nil
		}
		parts := make([]string, 0, len(v.Filters))
		for _, child := range v.Filters {
			clause, err := b.compile(child)
			if err != nil {
				return "", err
			}
			parts = append(parts, clause)
		}
		return "(" + strings.Join(parts, " AND ") + ")", nil
	}
	return "", fmt.Errorf("unsupported filter %T", f)
}

// compileQuery validates the predicate and returns the record source, the
// WHERE clause and its arguments.
func compileQuery(kind domain.RecordKind, pred domain.Filter) (source, where string, args []any, err error) {
	source, ok := recordSources[kind]
	if !ok {
		return "", "", nil, fmt.Errorf("unknown record kind %q", kind)
	}
	if err := domain.ValidateFilter(pred); err != nil {
		return "", "", nil, err
	}
	b := &whereBuilder{}
	where, err = b.compile(pred)
	if err != nil {
		return "", "", nil, err
	}
	return source, where, b.args, nil
}
