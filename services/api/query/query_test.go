package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/nuclear-outages/services/api/cache"
)

func strp(s string) *string { return &s }

func row(key, plantKey int64, facility, name, generator, start string) cache.OutageRow {
	ts, _ := time.Parse("2006-01-02", start)
	return cache.OutageRow{
		OutageKey:            key,
		PlantKey:             plantKey,
		EIAFacilityID:        strp(facility),
		PlantName:            strp(name),
		Generator:            strp(generator),
		OutageStartTimestamp: ts,
		OutageEndTimestamp:   ts.AddDate(0, 0, 1),
	}
}

func fixture() []cache.OutageRow {
	return []cache.OutageRow{
		row(1, 1, "100", "Alpha Station", "1", "2025-01-01"),
		row(2, 1, "100", "Alpha Station", "1", "2025-01-05"),
		row(3, 2, "100", "Alpha Station", "2", "2025-01-05"),
		row(4, 3, "200", "Beta Point", "1", "2025-01-03"),
		{OutageKey: 5, PlantKey: 9, OutageStartTimestamp: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
}

func keys(rows []cache.OutageRow) []int64 {
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.OutageKey)
	}
	return out
}

func TestApply(t *testing.T) {
	t.Run("should match only the requested start date", func(t *testing.T) {
		got, err := Apply(fixture(), Filter{StartDate: "2025-01-05", EndDate: "2025-01-05"})
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 3}, keys(got))
	})

	t.Run("should treat bounds as inclusive", func(t *testing.T) {
		got, err := Apply(fixture(), Filter{StartDate: "2025-01-02", EndDate: "2025-01-03"})
		require.NoError(t, err)
		assert.Equal(t, []int64{4, 5}, keys(got))
	})

	t.Run("should filter on identifiers", func(t *testing.T) {
		got, err := Apply(fixture(), Filter{FacilityID: "100", Generator: "2"})
		require.NoError(t, err)
		assert.Equal(t, []int64{3}, keys(got))

		pk := int64(3)
		got, err = Apply(fixture(), Filter{PlantKey: &pk})
		require.NoError(t, err)
		assert.Equal(t, []int64{4}, keys(got))
	})

	t.Run("should match plant names case-insensitively", func(t *testing.T) {
		got, err := Apply(fixture(), Filter{PlantName: "bETA"})
		require.NoError(t, err)
		assert.Equal(t, []int64{4}, keys(got))
	})

	t.Run("should reject malformed dates", func(t *testing.T) {
		_, err := Apply(fixture(), Filter{EndDate: "next week"})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "end_date", verr.Field)
	})

	t.Run("should accept only calendar dates", func(t *testing.T) {
		for _, in := range []string{"2025-01", "2025-01-05T00:00:00Z", "2025-01-05 00:00:00", "2025-1-5"} {
			_, err := Apply(fixture(), Filter{StartDate: in})
			var verr *ValidationError
			require.ErrorAs(t, err, &verr, in)
			assert.Equal(t, "start_date", verr.Field)
		}
	})
}

func TestRun(t *testing.T) {
	t.Run("should sort newest first then by plant key", func(t *testing.T) {
		got, total, err := Run(fixture(), Filter{}, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		assert.Equal(t, []int64{2, 3, 4, 5, 1}, keys(got))
	})

	t.Run("should paginate after counting", func(t *testing.T) {
		got, total, err := Run(fixture(), Filter{}, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		assert.Equal(t, []int64{4, 5}, keys(got))

		got, total, err = Run(fixture(), Filter{}, 4, 2)
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		assert.Empty(t, got)
	})

	t.Run("should leave the input untouched", func(t *testing.T) {
		in := fixture()
		_, _, err := Run(in, Filter{}, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3, 4, 5}, keys(in))
	})
}
