package validation

import (
	"net/http"
	"strings"
	"time"

	"github.com/lorrc/field-metrics/internal/core/domain"
	"github.com/lorrc/field-metrics/internal/core/ports"
)

const dateOnly = "2006-01-02"

// ParseReportQuery builds a report request from query parameters. The view
// and scope are left to the caller. from/to accept RFC3339 or YYYY-MM-DD
// and are snapped to whole days in loc; omitting both selects the default
// window.
func ParseReportQuery(r *http.Request, loc *time.Location) (ports.ReportRequest, error) {
	if loc == nil {
		loc = time.UTC
	}
	q := r.URL.Query()
	v := NewValidator(q)

	var req ports.ReportRequest

	fromStr, toStr := strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to"))
	switch {
	case fromStr == "" && toStr == "":
	case fromStr == "" || toStr == "":
		v.Check("window", false, "from and to must be supplied together")
	default:
		from, fromOK := parseBound(fromStr, loc)
		to, toOK := parseBound(toStr, loc)
		v.Check("from", fromOK, "Must be an RFC3339 timestamp or a YYYY-MM-DD date")
		v.Check("to", toOK, "Must be an RFC3339 timestamp or a YYYY-MM-DD date")
		if fromOK && toOK {
			w := domain.NormalizeWindow(domain.TimeWindow{Start: from, End: to}, loc)
			v.Check("window", !w.Start.After(w.End), "from must not be after to")
			req.Window = &w
		}
	}

	req.Page = v.Int("page", 0)
	req.Limit = v.Int("limit", 0)
	v.NonNegative("page", req.Page)
	v.NonNegative("limit", req.Limit)

	req.Filters = domain.ReportFilters{
		ZoneIDs:      v.List("zoneId"),
		CustomerIDs:  v.List("customerId"),
		AssigneeIDs:  v.List("assigneeId"),
		AssetIDs:     v.List("assetId"),
		ProductTypes: v.List("productType"),
		Statuses:     v.UpperList("status"),
		Priorities:   v.UpperList("priority"),
		Stages:       v.UpperList("stage"),
		IncludeTrend: v.Bool("trend", false),
	}

	if err := v.Err(); err != nil {
		return ports.ReportRequest{}, err
	}
	return req, nil
}

func parseBound(s string, loc *time.Location) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation(dateOnly, s, loc); err == nil {
		return t, true
	}
	return time.Time{}, false
}
