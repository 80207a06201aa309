package export

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/lorrc/field-metrics/internal/core/domain"
)

// Placeholder is rendered for missing or null cells.
const Placeholder = "—"

const dateLayout = "02 Jan 2006 15:04"

var printer = message.NewPrinter(language.English)

// ResolvePath walks a dotted key such as "zone.name" through nested maps.
// The second return value is false when any segment is missing or nil.
func ResolvePath(row domain.Row, path string) (any, bool) {
	if row == nil || path == "" {
		return nil, false
	}
	var cur any = map[string]any(row)
	for _, seg := range strings.Split(path, ".") {
		var next any
		var ok bool
		switch m := cur.(type) {
		case map[string]any:
			next, ok = m[seg]
		case domain.Row:
			next, ok = m[seg]
		default:
			return nil, false
		}
		if !ok || next == nil {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// FormatCell renders a resolved value for a column. An explicit Formatter
// wins over the data type default.
func FormatCell(v any, col domain.ColumnSpec) string {
	if isNil(v) {
		return Placeholder
	}
	if col.Formatter != nil {
		return col.Formatter(v)
	}

	switch col.DataType {
	case domain.TypeCurrency:
		if n, ok := number(v); ok {
			return FormatCurrency(n)
		}
	case domain.TypePercentage:
		if n, ok := number(v); ok {
			return fmt.Sprintf("%.1f%%", n)
		}
	case domain.TypeDuration:
		if n, ok := number(v); ok {
			return FormatDuration(n)
		}
	case domain.TypeDate:
		if t, ok := timeValue(v); ok {
			return t.Format(dateLayout)
		}
	case domain.TypeNumber:
		if n, ok := number(v); ok {
			return FormatNumber(n)
		}
	}
	return textValue(v)
}

// Cell resolves and formats one column of a row.
func Cell(row domain.Row, col domain.ColumnSpec) string {
	v, ok := ResolvePath(row, col.Key)
	if !ok {
		return Placeholder
	}
	return FormatCell(v, col)
}

// FormatNumber groups thousands; integers print without decimals.
func FormatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return printer.Sprintf("%d", int64(n))
	}
	return printer.Sprintf("%.2f", n)
}

var currencyTiers = []struct {
	div    float64
	suffix string
	prec   int
}{
	{1, "", 2},
	{1e3, "K", 1},
	{1e6, "M", 2},
	{1e9, "B", 2},
}

// FormatCurrency groups thousands and abbreviates large amounts. The suffix
// is chosen after rounding, so 999,999.99 prints as 1.00M.
func FormatCurrency(n float64) string {
	abs := math.Abs(n)
	i := 0
	for i+1 < len(currencyTiers) && abs >= currencyTiers[i+1].div {
		i++
	}
	for i+1 < len(currencyTiers) && roundTo(abs/currencyTiers[i].div, currencyTiers[i].prec) >= 1000 {
		i++
	}
	tier := currencyTiers[i]
	return printer.Sprintf(fmt.Sprintf("%%.%df", tier.prec), n/tier.div) + tier.suffix
}

func roundTo(x float64, prec int) float64 {
	p := math.Pow10(prec)
	return math.Round(x*p) / p
}

// FormatDuration renders minutes as "XhYm".
func FormatDuration(minutes float64) string {
	if minutes < 0 {
		return "-" + FormatDuration(-minutes)
	}
	total := int64(math.Round(minutes))
	h, m := total/60, total%60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh%dm", h, m)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case *float64:
		if n != nil {
			return *n, true
		}
	}
	return 0, false
}

func timeValue(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t != nil && !t.IsZero() {
			return *t, true
		}
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// textValue renders anything else. Reference maps print their name.
func textValue(v any) string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return Placeholder
		}
		return t
	case map[string]any:
		if name, ok := t["name"]; ok && !isNil(name) {
			return fmt.Sprint(name)
		}
		if id, ok := t["id"]; ok && !isNil(id) {
			return fmt.Sprint(id)
		}
		return Placeholder
	case bool:
		if t {
			return "Yes"
		}
		return "No"
	case float64:
		return FormatNumber(t)
	case int, int64:
		n, _ := number(t)
		return FormatNumber(n)
	}
	return fmt.Sprint(v)
}

func isNil(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case *time.Time:
		return t == nil
	case *float64:
		return t == nil
	}
	return false
}
