package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/02loveslollipop/nuclear-outages/services/modeler/tables"
)

// Schema is the Postgres schema holding the mirrored tables.
const Schema = "outages"

// Store wraps database access helpers.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

var createSchemaSQL = []string{
	`CREATE SCHEMA IF NOT EXISTS outages`,
	`CREATE TABLE IF NOT EXISTS outages.dim_plant (
        plant_key       BIGINT PRIMARY KEY,
        eia_facility_id TEXT NOT NULL,
        plant_name      TEXT NOT NULL,
        unit_name       TEXT NOT NULL,
        generator       TEXT NOT NULL,
        UNIQUE (eia_facility_id, generator)
    )`,
	`CREATE TABLE IF NOT EXISTS outages.dim_date (
        date_key    BIGINT PRIMARY KEY,
        date        DATE NOT NULL,
        year        INTEGER NOT NULL,
        month       INTEGER NOT NULL,
        day_of_week TEXT NOT NULL,
        is_weekend  BOOLEAN NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS outages.fact_outage (
        outage_key             BIGINT PRIMARY KEY,
        plant_key              BIGINT NOT NULL,
        date_key               BIGINT NOT NULL,
        outage_start_timestamp TIMESTAMPTZ NOT NULL,
        outage_end_timestamp   TIMESTAMPTZ NOT NULL,
        outage_duration_hours  DOUBLE PRECISION NOT NULL,
        eia_outage_id          TEXT NOT NULL UNIQUE
    )`,
}

const truncateSQL = `TRUNCATE outages.fact_outage, outages.dim_plant, outages.dim_date`

var (
	plantColumns = []string{"plant_key", "eia_facility_id", "plant_name", "unit_name", "generator"}
	dateColumns  = []string{"date_key", "date", "year", "month", "day_of_week", "is_weekend"}
	factColumns  = []string{"outage_key", "plant_key", "date_key", "outage_start_timestamp",
		"outage_end_timestamp", "outage_duration_hours", "eia_outage_id"}
)

// Publish replaces the mirrored tables with t inside one transaction, so
// readers of the warehouse see either the previous snapshot or this one.
func (s *Store) Publish(ctx context.Context, t tables.Tables) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin publish: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, stmt := range createSchemaSQL {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, truncateSQL); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}

	copies := []struct {
		table string
		cols  []string
		rows  [][]any
	}{
		{"dim_plant", plantColumns, plantRows(t.Plants)},
		{"dim_date", dateColumns, dateRows(t.Dates)},
		{"fact_outage", factColumns, factRows(t.Facts)},
	}
	for _, c := range copies {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{Schema, c.table}, c.cols, pgx.CopyFromRows(c.rows)); err != nil {
			return fmt.Errorf("copy %s: %w", c.table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit publish: %w", err)
	}
	return nil
}

const countsSQL = `
    SELECT
      (SELECT COUNT(*) FROM outages.dim_plant),
      (SELECT COUNT(*) FROM outages.dim_date),
      (SELECT COUNT(*) FROM outages.fact_outage)
`

// Counts returns the row count of each mirrored table.
func (s *Store) Counts(ctx context.Context) (tables.Counts, error) {
	var c tables.Counts
	if err := s.pool.QueryRow(ctx, countsSQL).Scan(&c.DimPlant, &c.DimDate, &c.FactOutage); err != nil {
		return tables.Counts{}, err
	}
	return c, nil
}

func plantRows(plants []tables.DimPlant) [][]any {
	rows := make([][]any, 0, len(plants))
	for _, p := range plants {
		rows = append(rows, []any{p.PlantKey, p.EIAFacilityID, p.PlantName, p.UnitName, p.Generator})
	}
	return rows
}

func dateRows(dates []tables.DimDate) [][]any {
	rows := make([][]any, 0, len(dates))
	for _, d := range dates {
		rows = append(rows, []any{d.DateKey, d.Date, int32(d.Year), int32(d.Month), d.DayOfWeek, d.IsWeekend})
	}
	return rows
}

func factRows(facts []tables.FactOutage) [][]any {
	rows := make([][]any, 0, len(facts))
	for _, f := range facts {
		rows = append(rows, []any{
			f.OutageKey,
			f.PlantKey,
			f.DateKey,
			f.OutageStartTimestamp,
			f.OutageEndTimestamp,
			f.OutageDurationHours,
			f.EIAOutageID,
		})
	}
	return rows
}
