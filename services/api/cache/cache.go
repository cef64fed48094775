// Package cache keeps the joined outage view of the modeled tables in memory,
// keyed by the modification times of the files it was built from.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"sync"
	"time"

	"github.com/02loveslollipop/nuclear-outages/services/modeler/tables"
)

// ErrNotFound is returned when the modeled directory lacks any modeled file.
var ErrNotFound = errors.New("modeled data not found; run POST /refresh or the modeler first")

// OutageRow is one fact row with its plant and date attributes attached.
// Dimension columns are nil when the matching dimension row is absent.
type OutageRow struct {
	OutageKey            int64      `json:"OutageKey" csv:"OutageKey"`
	EIAOutageID          string     `json:"EIA_OutageID" csv:"EIA_OutageID"`
	PlantKey             int64      `json:"PlantKey" csv:"PlantKey"`
	EIAFacilityID        *string    `json:"EIA_FacilityID" csv:"EIA_FacilityID"`
	PlantName            *string    `json:"PlantName" csv:"PlantName"`
	Generator            *string    `json:"Generator" csv:"Generator"`
	UnitName             *string    `json:"UnitName" csv:"UnitName"`
	DateKey              int64      `json:"DateKey" csv:"DateKey"`
	Date                 *time.Time `json:"Date" csv:"Date"`
	OutageStartTimestamp time.Time  `json:"OutageStartTimestamp" csv:"OutageStartTimestamp"`
	OutageEndTimestamp   time.Time  `json:"OutageEndTimestamp" csv:"OutageEndTimestamp"`
	OutageDurationHours  float64    `json:"OutageDurationHours" csv:"OutageDurationHours"`
}

// BuildView left-joins facts to plants and dates. Each fact row matches at most
// one plant and one date; a duplicate dimension key is a *tables.CardinalityError.
func BuildView(t tables.Tables) ([]OutageRow, error) {
	plants := make(map[int64]tables.DimPlant, len(t.Plants))
	for _, p := range t.Plants {
		if _, dup := plants[p.PlantKey]; dup {
			return nil, &tables.CardinalityError{Table: "dim_plant", Key: strconv.FormatInt(p.PlantKey, 10)}
		}
		plants[p.PlantKey] = p
	}
	dates := make(map[int64]tables.DimDate, len(t.Dates))
	for _, d := range t.Dates {
		if _, dup := dates[d.DateKey]; dup {
			return nil, &tables.CardinalityError{Table: "dim_date", Key: strconv.FormatInt(d.DateKey, 10)}
		}
		dates[d.DateKey] = d
	}

	rows := make([]OutageRow, 0, len(t.Facts))
	for _, f := range t.Facts {
		row := OutageRow{
			OutageKey:            f.OutageKey,
			EIAOutageID:          f.EIAOutageID,
			PlantKey:             f.PlantKey,
			DateKey:              f.DateKey,
			OutageStartTimestamp: f.OutageStartTimestamp,
			OutageEndTimestamp:   f.OutageEndTimestamp,
			OutageDurationHours:  f.OutageDurationHours,
		}
		if p, ok := plants[f.PlantKey]; ok {
			row.EIAFacilityID = &p.EIAFacilityID
			row.PlantName = &p.PlantName
			row.Generator = &p.Generator
			row.UnitName = &p.UnitName
		}
		if d, ok := dates[f.DateKey]; ok {
			date := d.Date
			row.Date = &date
		}
		rows = append(rows, row)
	}
	return rows, nil
}

type entry struct {
	fingerprint tables.Fingerprint
	view        []OutageRow
}

// Store is a single-slot cache over one modeled directory. Its mutex also
// serializes directory swaps against reads.
type Store struct {
	mu     sync.Mutex
	dir    string
	load   func(dir string) (tables.Tables, error)
	cached *entry
}

// Option customizes a Store.
type Option func(*Store)

// WithLoader replaces the modeled-table reader.
func WithLoader(fn func(dir string) (tables.Tables, error)) Option {
	return func(s *Store) { s.load = fn }
}

// New returns an empty cache over dir.
func New(dir string, opts ...Option) *Store {
	s := &Store{dir: dir, load: tables.Read}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// View returns the joined view, reloading all three files when the cache is
// empty or any file's modification time changed. The returned slice is shared
// and must not be modified.
func (s *Store) View() ([]OutageRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp, err := tables.Stat(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat modeled files: %w", err)
	}
	if s.cached != nil && s.cached.fingerprint == fp {
		return s.cached.view, nil
	}

	t, err := s.load(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	view, err := BuildView(t)
	if err != nil {
		return nil, err
	}
	// Files rewritten between Stat and load get picked up on the next read.
	s.cached = &entry{fingerprint: fp, view: view}
	return view, nil
}

// Swap runs fn while holding the cache lock and then empties the cache,
// whether or not fn succeeded.
func (s *Store) Swap(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.cached = nil }()
	return fn()
}

// Cached reports whether a view is currently held.
func (s *Store) Cached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cached != nil
}
