// Package query filters, orders and paginates the joined outage view.
package query

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/02loveslollipop/nuclear-outages/services/api/cache"
	"github.com/02loveslollipop/nuclear-outages/services/connector/models"
)

// ValidationError reports a malformed filter value supplied by a client.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %q (expected YYYY-MM-DD)", e.Field, e.Value)
}

// Filter narrows the outage view. Empty fields are ignored.
type Filter struct {
	FacilityID string
	Generator  string
	PlantKey   *int64
	PlantName  string
	StartDate  string
	EndDate    string
}

func parseBound(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return nil, &ValidationError{Field: field, Value: value}
	}
	return &t, nil
}

// Apply returns the rows matching f, in input order. Date bounds are
// inclusive and compare against the outage start date.
func Apply(rows []cache.OutageRow, f Filter) ([]cache.OutageRow, error) {
	start, err := parseBound("start_date", f.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseBound("end_date", f.EndDate)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(f.PlantName)

	out := make([]cache.OutageRow, 0, len(rows))
	for _, row := range rows {
		if f.FacilityID != "" && (row.EIAFacilityID == nil || *row.EIAFacilityID != f.FacilityID) {
			continue
		}
		if f.Generator != "" && (row.Generator == nil || *row.Generator != f.Generator) {
			continue
		}
		if f.PlantKey != nil && row.PlantKey != *f.PlantKey {
			continue
		}
		if needle != "" && (row.PlantName == nil || !strings.Contains(strings.ToLower(*row.PlantName), needle)) {
			continue
		}
		day := models.Midnight(row.OutageStartTimestamp)
		if start != nil && day.Before(*start) {
			continue
		}
		if end != nil && day.After(*end) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

// Sort orders rows by start timestamp descending, then plant key ascending.
func Sort(rows []cache.OutageRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.OutageStartTimestamp.Equal(b.OutageStartTimestamp) {
			return a.OutageStartTimestamp.After(b.OutageStartTimestamp)
		}
		return a.PlantKey < b.PlantKey
	})
}

// Paginate returns the 1-based page of size limit and the total row count.
func Paginate(rows []cache.OutageRow, page, limit int) ([]cache.OutageRow, int) {
	total := len(rows)
	if page < 1 || limit < 1 {
		return []cache.OutageRow{}, total
	}
	start := (page - 1) * limit
	if start >= total {
		return []cache.OutageRow{}, total
	}
	return rows[start:min(start+limit, total)], total
}

// Run filters, sorts and paginates rows. The input slice is left untouched.
func Run(rows []cache.OutageRow, f Filter, page, limit int) ([]cache.OutageRow, int, error) {
	matched, err := Apply(rows, f)
	if err != nil {
		return nil, 0, err
	}
	Sort(matched)
	out, total := Paginate(matched, page, limit)
	return out, total, nil
}
