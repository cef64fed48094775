// Package tables defines the modeled star-schema rows and their parquet files.
package tables

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"golang.org/x/sync/errgroup"
)

// File names inside a modeled directory.
const (
	PlantFile = "dim_plant.parquet"
	DateFile  = "dim_date.parquet"
	FactFile  = "fact_outage.parquet"
)

// Files lists the modeled files in a fixed order.
var Files = []string{PlantFile, DateFile, FactFile}

// DimPlant is one row per (facility, generator).
type DimPlant struct {
	PlantKey      int64  `parquet:"PlantKey" json:"PlantKey" csv:"PlantKey"`
	EIAFacilityID string `parquet:"EIA_FacilityID" json:"EIA_FacilityID" csv:"EIA_FacilityID"`
	PlantName     string `parquet:"PlantName" json:"PlantName" csv:"PlantName"`
	UnitName      string `parquet:"UnitName" json:"UnitName" csv:"UnitName"`
	Generator     string `parquet:"Generator" json:"Generator" csv:"Generator"`
}

// DimDate is one row per observed calendar date.
type DimDate struct {
	DateKey   int64     `parquet:"DateKey" json:"DateKey" csv:"DateKey"`
	Date      time.Time `parquet:"Date,timestamp(millisecond)" json:"Date" csv:"Date"`
	Year      int64     `parquet:"Year" json:"Year" csv:"Year"`
	Month     int64     `parquet:"Month" json:"Month" csv:"Month"`
	DayOfWeek string    `parquet:"DayOfWeek" json:"DayOfWeek" csv:"DayOfWeek"`
	IsWeekend bool      `parquet:"IsWeekend" json:"IsWeekend" csv:"IsWeekend"`
}

// FactOutage is one row per outage event.
type FactOutage struct {
	OutageKey            int64     `parquet:"OutageKey" json:"OutageKey" csv:"OutageKey"`
	PlantKey             int64     `parquet:"PlantKey" json:"PlantKey" csv:"PlantKey"`
	DateKey              int64     `parquet:"DateKey" json:"DateKey" csv:"DateKey"`
	OutageStartTimestamp time.Time `parquet:"OutageStartTimestamp,timestamp(millisecond)" json:"OutageStartTimestamp" csv:"OutageStartTimestamp"`
	OutageEndTimestamp   time.Time `parquet:"OutageEndTimestamp,timestamp(millisecond)" json:"OutageEndTimestamp" csv:"OutageEndTimestamp"`
	OutageDurationHours  float64   `parquet:"OutageDurationHours" json:"OutageDurationHours" csv:"OutageDurationHours"`
	EIAOutageID          string    `parquet:"EIA_OutageID" json:"EIA_OutageID" csv:"EIA_OutageID"`
}

// Tables bundles the three modeled tables.
type Tables struct {
	Plants []DimPlant
	Dates  []DimDate
	Facts  []FactOutage
}

// Counts holds row counts per table.
type Counts struct {
	DimPlant   int `json:"dim_plant"`
	DimDate    int `json:"dim_date"`
	FactOutage int `json:"fact_outage"`
}

// Counts returns the row count of each table.
func (t Tables) Counts() Counts {
	return Counts{DimPlant: len(t.Plants), DimDate: len(t.Dates), FactOutage: len(t.Facts)}
}

// Head returns a copy limited to the first n rows of each table.
func (t Tables) Head(n int) Tables {
	return Tables{
		Plants: t.Plants[:min(n, len(t.Plants))],
		Dates:  t.Dates[:min(n, len(t.Dates))],
		Facts:  t.Facts[:min(n, len(t.Facts))],
	}
}

// CardinalityError reports a key that should be unique but is not.
type CardinalityError struct {
	Table string
	Key   string
}

func (e *CardinalityError) Error() string {
	return fmt.Sprintf("cardinality violation: %s has duplicate key %s", e.Table, e.Key)
}

// Write stores the three tables in dir, creating it if needed.
func Write(dir string, t Tables) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create modeled dir: %w", err)
	}
	if err := parquet.WriteFile(filepath.Join(dir, PlantFile), t.Plants); err != nil {
		return fmt.Errorf("write %s: %w", PlantFile, err)
	}
	if err := parquet.WriteFile(filepath.Join(dir, DateFile), t.Dates); err != nil {
		return fmt.Errorf("write %s: %w", DateFile, err)
	}
	if err := parquet.WriteFile(filepath.Join(dir, FactFile), t.Facts); err != nil {
		return fmt.Errorf("write %s: %w", FactFile, err)
	}
	return nil
}

// Read loads the three tables from dir concurrently.
func Read(dir string) (Tables, error) {
	var t Tables
	var g errgroup.Group

	g.Go(func() error {
		rows, err := parquet.ReadFile[DimPlant](filepath.Join(dir, PlantFile))
		if err != nil {
			return fmt.Errorf("read %s: %w", PlantFile, err)
		}
		t.Plants = rows
		return nil
	})
	g.Go(func() error {
		rows, err := parquet.ReadFile[DimDate](filepath.Join(dir, DateFile))
		if err != nil {
			return fmt.Errorf("read %s: %w", DateFile, err)
		}
		for i := range rows {
			rows[i].Date = rows[i].Date.UTC()
		}
		t.Dates = rows
		return nil
	})
	g.Go(func() error {
		rows, err := parquet.ReadFile[FactOutage](filepath.Join(dir, FactFile))
		if err != nil {
			return fmt.Errorf("read %s: %w", FactFile, err)
		}
		for i := range rows {
			rows[i].OutageStartTimestamp = rows[i].OutageStartTimestamp.UTC()
			rows[i].OutageEndTimestamp = rows[i].OutageEndTimestamp.UTC()
		}
		t.Facts = rows
		return nil
	})

	if err := g.Wait(); err != nil {
		return Tables{}, err
	}
	return t, nil
}

// Fingerprint is the modification time of each modeled file.
type Fingerprint [3]int64

// Stat returns the fingerprint of the modeled files in dir. A missing file
// yields an error satisfying errors.Is(err, fs.ErrNotExist).
func Stat(dir string) (Fingerprint, error) {
	var fp Fingerprint
	for i, name := range Files {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			return Fingerprint{}, err
		}
		fp[i] = info.ModTime().UnixNano()
	}
	return fp, nil
}
