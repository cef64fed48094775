package incremental

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/nuclear-outages/services/connector/dataset"
	"github.com/02loveslollipop/nuclear-outages/services/connector/models"
)

func obs(period, facility, name, generator string) models.RawObservation {
	p, _ := time.Parse(models.DateLayout, period)
	return models.RawObservation{Period: p, Facility: facility, FacilityName: name, Generator: generator}
}

func TestLoad(t *testing.T) {
	t.Run("should fall back when no prior file exists", func(t *testing.T) {
		st, ok := Load(filepath.Join(t.TempDir(), "missing.parquet"))
		assert.False(t, ok)
		assert.Empty(t, st.Keys)
		assert.Nil(t, st.MaxPeriod)
	})

	t.Run("should fall back on an unreadable file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "garbage.parquet")
		require.NoError(t, os.WriteFile(path, []byte("not parquet"), 0o644))
		_, ok := Load(path)
		assert.False(t, ok)
	})

	t.Run("should compute keys and the high-water mark", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "raw.parquet")
		require.NoError(t, dataset.Write(path, []models.RawObservation{
			obs("2025-01-03", "100", "A", "1"),
			obs("2025-01-01", "100", "A", "1"),
		}))

		st, ok := Load(path)
		require.True(t, ok)
		assert.Len(t, st.Existing, 2)
		assert.True(t, st.Known(models.Key{Period: "2025-01-01", Facility: "100", Generator: "1"}))
		require.NotNil(t, st.MaxPeriod)
		assert.Equal(t, "2025-01-03", st.MaxPeriod.Format(models.DateLayout))
	})
}

func TestPartition(t *testing.T) {
	t.Run("should split known rows and remember new ones", func(t *testing.T) {
		st := FromRows([]models.RawObservation{obs("2025-01-01", "100", "A", "1")})

		fresh, known := st.Partition([]models.RawObservation{
			obs("2025-01-01", "100", "A", "1"),
			obs("2025-01-02", "100", "A", "1"),
			obs("2025-01-02", "100", "A", "1"),
		})
		assert.Equal(t, []models.RawObservation{obs("2025-01-02", "100", "A", "1")}, fresh)
		assert.Len(t, known, 2)

		fresh, _ = st.Partition([]models.RawObservation{obs("2025-01-02", "100", "A", "1")})
		assert.Empty(t, fresh)
	})
}

func TestMerge(t *testing.T) {
	t.Run("should drop duplicate keys preferring the new value", func(t *testing.T) {
		prior := []models.RawObservation{
			obs("2025-01-01", "100", "Old Name", "1"),
			obs("2025-01-02", "100", "Old Name", "1"),
		}
		fresh := []models.RawObservation{
			obs("2025-01-02", "100", "New Name", "1"),
			obs("2025-01-03", "100", "New Name", "1"),
		}

		merged := Merge(prior, fresh)
		assert.Equal(t, []models.RawObservation{
			obs("2025-01-01", "100", "Old Name", "1"),
			obs("2025-01-02", "100", "New Name", "1"),
			obs("2025-01-03", "100", "New Name", "1"),
		}, merged)

		seen := map[models.Key]bool{}
		for _, row := range merged {
			assert.False(t, seen[row.Key()], "duplicate key %v", row.Key())
			seen[row.Key()] = true
		}
	})
}
