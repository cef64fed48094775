package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/nuclear-outages/services/connector/dataset"
	"github.com/02loveslollipop/nuclear-outages/services/connector/models"
	"github.com/02loveslollipop/nuclear-outages/services/modeler/tables"
)

func TestRootCommand(t *testing.T) {
	t.Run("should model the input and print a summary", func(t *testing.T) {
		dir := t.TempDir()
		input := filepath.Join(dir, "raw.parquet")
		d := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, dataset.Write(input, []models.RawObservation{
			{Period: d, Facility: "100", FacilityName: "A", Generator: "1"},
			{Period: d.AddDate(0, 0, 1), Facility: "100", FacilityName: "A", Generator: "1"},
		}))
		out := filepath.Join(dir, "modeled")

		var stdout bytes.Buffer
		cmd := newRootCommand(&stdout)
		cmd.SetArgs([]string{"--input", input, "--output-dir", out, "--print-raw", "--print-modeled", "--head", "1"})
		require.NoError(t, cmd.Execute())

		text := stdout.String()
		assert.Contains(t, text, "=== RAW DATA (preview) ===")
		assert.Contains(t, text, "=== FACT_OUTAGE (preview) ===")
		assert.Contains(t, text, "100-1-20250101")
		assert.Contains(t, text, "Wrote modeled tables: dim_plant=1 rows, dim_date=2 rows, fact_outage=1 rows")

		_, err := tables.Stat(out)
		assert.NoError(t, err)
	})

	t.Run("should fail on a missing input", func(t *testing.T) {
		cmd := newRootCommand(&bytes.Buffer{})
		cmd.SetArgs([]string{"--input", filepath.Join(t.TempDir(), "nope.parquet")})
		assert.Error(t, cmd.Execute())
	})
}
