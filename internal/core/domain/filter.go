package domain

import (
	"fmt"
	"time"
)

// Field names a record attribute that filters and groupings may reference.
type Field string

const (
	FieldStatus      Field = "status"
	FieldPriority    Field = "priority"
	FieldZone        Field = "zoneId"
	FieldCustomer    Field = "customerId"
	FieldAssignee    Field = "assigneeId"
	FieldAsset       Field = "assetId"
	FieldProductType Field = "productType"
	FieldCallType    Field = "callType"
	FieldCreatedAt   Field = "createdAt"
	FieldUpdatedAt   Field = "updatedAt"
	FieldClosedAt    Field = "closedAt"
	FieldValue       Field = "value"
)

// IsText reports whether the field holds a string discriminator or reference.
func (f Field) IsText() bool {
	switch f {
	case FieldStatus, FieldPriority, FieldZone, FieldCustomer, FieldAssignee,
		FieldAsset, FieldProductType, FieldCallType:
		return true
	}
	return false
}

// IsTime reports whether the field holds a timestamp.
func (f Field) IsTime() bool {
	return f == FieldCreatedAt || f == FieldUpdatedAt || f == FieldClosedAt
}

// IsNumeric reports whether the field can be summed.
func (f Field) IsNumeric() bool {
	return f == FieldValue
}

// Text returns the record's value for a text field.
func (r ServiceRecord) Text(f Field) string {
	switch f {
	case FieldStatus:
		return r.Category
	case FieldPriority:
		return r.Priority
	case FieldZone:
		return r.ZoneID
	case FieldCustomer:
		return r.CustomerID
	case FieldAssignee:
		return r.AssigneeID
	case FieldAsset:
		return r.AssetID
	case FieldProductType:
		return r.ProductType
	case FieldCallType:
		return r.CallType
	}
	return ""
}

// Time returns the record's value for a timestamp field, nil when unset.
func (r ServiceRecord) Time(f Field) *time.Time {
	switch f {
	case FieldCreatedAt:
		t := r.CreatedAt
		return &t
	case FieldUpdatedAt:
		if r.UpdatedAt.IsZero() {
			return nil
		}
		t := r.UpdatedAt
		return &t
	case FieldClosedAt:
		return r.ClosedAt
	}
	return nil
}

// Number returns the record's value for a numeric field.
func (r ServiceRecord) Number(f Field) float64 {
	if f == FieldValue {
		return r.Value
	}
	return 0
}

// Filter is a closed set of record predicates. Every RecordFetcher
// implementation interprets the same variants.
type Filter interface {
	Matches(r ServiceRecord) bool
	isFilter()
}

// DateRange matches records whose timestamp field falls inside Window.
type DateRange struct {
	Field  Field
	Window TimeWindow
}

// Equals matches records whose text field equals Value.
type Equals struct {
	Field Field
	Value string
}

// InSet matches records whose text field is one of Values. An empty set matches nothing.
type InSet struct {
	Field  Field
	Values []string
}

// NotNull matches records where the field is set.
type NotNull struct {
	Field Field
}

// And matches records satisfying every child filter. An empty And matches everything.
type And struct {
	Filters []Filter
}

func (DateRange) isFilter() {}
func (Equals) isFilter()    {}
func (InSet) isFilter()     {}
func (NotNull) isFilter()   {}
func (And) isFilter()       {}

func (f DateRange) Matches(r ServiceRecord) bool {
	t := r.Time(f.Field)
	return t != nil && f.Window.Contains(*t)
}

func (f Equals) Matches(r ServiceRecord) bool {
	return r.Text(f.Field) == f.Value
}

func (f InSet) Matches(r ServiceRecord) bool {
	v := r.Text(f.Field)
	for _, candidate := range f.Values {
		if v == candidate {
			return true
		}
	}
	return false
}

func (f NotNull) Matches(r ServiceRecord) bool {
	if f.Field.IsTime() {
		return r.Time(f.Field) != nil
	}
	return r.Text(f.Field) != ""
}

func (f And) Matches(r ServiceRecord) bool {
	for _, child := range f.Filters {
		if child != nil && !child.Matches(r) {
			return false
		}
	}
	return true
}

// InRange builds a DateRange filter.
func InRange(field Field, w TimeWindow) Filter {
	return DateRange{Field: field, Window: w}
}

// Eq builds an Equals filter.
func Eq(field Field, value string) Filter {
	return Equals{Field: field, Value: value}
}

// In builds an InSet filter over a copy of values.
func In(field Field, values ...string) Filter {
	cp := make([]string, len(values))
	copy(cp, values)
	return InSet{Field: field, Values: cp}
}

// Present builds a NotNull filter.
func Present(field Field) Filter {
	return NotNull{Field: field}
}

// All combines filters into a flat And, dropping nils.
func All(filters ...Filter) Filter {
	flat := make([]Filter, 0, len(filters))
	for _, f := range filters {
		switch v := f.(type) {
		case nil:
			continue
		case And:
			flat = append(flat, v.Filters...)
		default:
			flat = append(flat, f)
		}
	}
	return And{Filters: flat}
}

// ValidateFilter checks that every variant references a field of the right type.
func ValidateFilter(f Filter) error {
	switch v := f.(type) {
	case nil:
		return nil
	case DateRange:
		if !v.Field.IsTime() {
			return fmt.Errorf("date range on non-time field %q", v.Field)
		}
		return v.Window.Validate()
	case Equals:
		if !v.Field.IsText() {
			return fmt.Errorf("equality on non-text field %q", v.Field)
		}
	case InSet:
		if !v.Field.IsText() {
			return fmt.Errorf("set membership on non-text field %q", v.Field)
		}
	case NotNull:
		if !v.Field.IsText() && !v.Field.IsTime() {
			return fmt.Errorf("presence check on unknown field %q", v.Field)
		}
	case And:
		for _, child := range v.Filters {
			if err := ValidateFilter(child); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported filter %T", f)
	}
	return nil
}
