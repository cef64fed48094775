// Package runner drives paginated extraction from the EIA API into the raw
// dataset file, optionally in incremental (dedup + early-stop) mode.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/02loveslollipop/nuclear-outages/services/connector/config"
	"github.com/02loveslollipop/nuclear-outages/services/connector/dataset"
	"github.com/02loveslollipop/nuclear-outages/services/connector/eia"
	"github.com/02loveslollipop/nuclear-outages/services/connector/incremental"
	"github.com/02loveslollipop/nuclear-outages/services/connector/models"
)

// StopReason records why pagination ended.
type StopReason string

const (
	StopEmpty            StopReason = "empty"
	StopShortPage        StopReason = "short_page"
	StopCapReached       StopReason = "cap_reached"
	StopEarlyIncremental StopReason = "early_incremental"
)

// ErrEmptyDataset is returned when no valid rows remain to be written.
var ErrEmptyDataset = errors.New("zero valid records collected; nothing to save")

// Result summarizes one extraction run.
type Result struct {
	Reason      StopReason
	Incremental bool
	Pages       int
	Fetched     int
	New         int
	Dropped     int
	Written     int
	Wrote       bool

	// SkipErr is the last fetch error of a page skipped after retries.
	SkipErr error
}

// Extract runs the connector against the live API described by cfg.
func Extract(ctx context.Context, cfg config.Config) (Result, error) {
	client, err := eia.NewClient(cfg)
	if err != nil {
		return Result{}, err
	}
	return Run(ctx, cfg, client)
}

// Run paginates through fetcher, validates, merges with prior output in
// incremental mode, and writes cfg.OutputFile. Auth failures abort immediately.
func Run(ctx context.Context, cfg config.Config, fetcher eia.Fetcher) (Result, error) {
	var res Result

	state := incremental.Empty()
	if cfg.Incremental {
		var ok bool
		state, ok = incremental.Load(cfg.OutputFile)
		res.Incremental = ok
		if ok {
			log.Printf("incremental mode enabled: existing rows=%d max_period=%s", len(state.Existing), formatPeriod(state.MaxPeriod))
		}
	}

	var (
		all    []models.APIRecord
		fresh  []models.RawObservation
		offset int
	)

	for {
		seen := len(all) + len(fresh)
		if cfg.MaxRecords > 0 {
			progress := min(100, seen*100/cfg.MaxRecords)
			log.Printf("progress: %d%% | fetching page at offset %d with limit %d", progress, offset, cfg.MaxLimit)
		} else {
			log.Printf("fetched %d records so far | fetching page at offset %d with limit %d", seen, offset, cfg.MaxLimit)
		}

		page, err := fetcher.FetchPage(ctx, offset, cfg.MaxLimit)
		if err != nil {
			return res, fmt.Errorf("fetch offset %d: %w", offset, err)
		}
		res.Pages++

		if page.Skipped {
			if page.Err != nil {
				log.Printf("offset %d skipped after retries: %v", offset, page.Err)
				res.SkipErr = page.Err
			}
			log.Printf("no usable response for offset %d; halting pagination", offset)
			res.Reason = StopEmpty
			break
		}
		if len(page.Records) == 0 {
			log.Printf("pagination complete: API returned an empty list of records")
			res.Reason = StopEmpty
			break
		}
		res.Fetched += len(page.Records)

		if res.Incremental {
			rows, _ := normalize(page.Records)
			newRows, _ := state.Partition(rows)
			fresh = append(fresh, newRows...)

			if cfg.EarlyStop && state.MaxPeriod != nil && len(rows) > 0 && len(newRows) == 0 {
				if pageMax := maxPeriod(rows); !pageMax.After(*state.MaxPeriod) {
					log.Printf("incremental early-stop: page periods <= %s with no new rows", formatPeriod(state.MaxPeriod))
					res.Reason = StopEarlyIncremental
					break
				}
			}
		} else {
			all = append(all, page.Records...)
		}

		offset += cfg.MaxLimit

		total := len(all) + len(fresh)
		if cfg.MaxRecords > 0 && total >= cfg.MaxRecords {
			log.Printf("reached maximum records limit (%d); stopping pagination", cfg.MaxRecords)
			if overflow := total - cfg.MaxRecords; overflow > 0 {
				if res.Incremental {
					fresh = fresh[:len(fresh)-overflow]
				} else {
					all = all[:len(all)-overflow]
				}
			}
			res.Reason = StopCapReached
			break
		}

		if len(page.Records) < cfg.MaxLimit {
			log.Printf("received %d records, less than limit; pagination complete", len(page.Records))
			res.Reason = StopShortPage
			break
		}
	}

	var rows []models.RawObservation
	if res.Incremental {
		res.New = len(fresh)
		if len(fresh) == 0 {
			log.Printf("incremental run found 0 new records; output unchanged")
			return res, nil
		}
		rows = incremental.Merge(state.Existing, fresh)
		log.Printf("total records collected: new=%d merged=%d", len(fresh), len(rows))
	} else {
		rows, res.Dropped = normalize(all)
		log.Printf("dropped %d records with missing or invalid %v", res.Dropped, incremental.KeyFields)
		log.Printf("total records collected: %d, valid: %d", len(all), len(rows))
	}

	if len(rows) == 0 {
		return res, ErrEmptyDataset
	}

	if err := dataset.Write(cfg.OutputFile, rows); err != nil {
		return res, err
	}
	res.Wrote = true
	res.Written = len(rows)

	if info, err := os.Stat(cfg.OutputFile); err == nil {
		log.Printf("saved raw data to %q (%.2f MB)", cfg.OutputFile, float64(info.Size())/(1024*1024))
	}
	log.Printf("pipeline completed: %d records extracted and saved", len(rows))
	return res, nil
}

func normalize(records []models.APIRecord) ([]models.RawObservation, int) {
	rows := make([]models.RawObservation, 0, len(records))
	dropped := 0
	for _, rec := range records {
		row, ok := rec.Normalize()
		if !ok {
			dropped++
			continue
		}
		rows = append(rows, row)
	}
	return rows, dropped
}

func maxPeriod(rows []models.RawObservation) time.Time {
	var m time.Time
	for _, row := range rows {
		if row.Period.After(m) {
			m = row.Period
		}
	}
	return m
}

func formatPeriod(t *time.Time) string {
	if t == nil {
		return "none"
	}
	return t.Format(models.DateLayout)
}
