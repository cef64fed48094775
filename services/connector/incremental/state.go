// Package incremental holds the dedup state carried through an incremental
// extraction run.
package incremental

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/02loveslollipop/nuclear-outages/services/connector/dataset"
	"github.com/02loveslollipop/nuclear-outages/services/connector/models"
)

// KeyFields are the columns that identify an observation.
var KeyFields = []string{"period", "facility", "generator"}

// State is built once per run from the previous raw output.
type State struct {
	Existing  []models.RawObservation
	Keys      map[models.Key]struct{}
	MaxPeriod *time.Time
}

// Empty returns a state with no prior data.
func Empty() *State {
	return &State{Keys: make(map[models.Key]struct{})}
}

// FromRows computes keys and the high-water mark for rows.
func FromRows(rows []models.RawObservation) *State {
	st := &State{
		Existing: rows,
		Keys:     make(map[models.Key]struct{}, len(rows)),
	}
	for _, row := range rows {
		st.Keys[row.Key()] = struct{}{}
		if st.MaxPeriod == nil || row.Period.After(*st.MaxPeriod) {
			p := row.Period
			st.MaxPeriod = &p
		}
	}
	return st
}

// Load reads the previous raw output at path. It reports ok=false when there is
// no usable prior dataset (absent, unreadable or missing key columns), in which
// case the caller falls back to a full extract.
func Load(path string) (*State, bool) {
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("cannot stat existing dataset at %s; falling back to full extract: %v", path, err)
		}
		return Empty(), false
	}

	cols, err := dataset.Columns(path)
	if err != nil {
		log.Printf("failed to read existing dataset at %s; falling back to full extract: %v", path, err)
		return Empty(), false
	}
	if missing := dataset.Missing(cols, KeyFields); len(missing) > 0 {
		log.Printf("existing dataset at %s missing %v; falling back to full extract", path, missing)
		return Empty(), false
	}

	rows, err := dataset.Read(path)
	if err != nil {
		log.Printf("failed to read existing dataset at %s; falling back to full extract: %v", path, err)
		return Empty(), false
	}
	return FromRows(rows), true
}

// Known reports whether key was seen before.
func (s *State) Known(key models.Key) bool {
	_, ok := s.Keys[key]
	return ok
}

// Add records key as seen. It reports false if the key was already known.
func (s *State) Add(key models.Key) bool {
	if s.Known(key) {
		return false
	}
	s.Keys[key] = struct{}{}
	return true
}

// Partition splits a page into rows not seen before and rows already known,
// marking the new ones as seen.
func (s *State) Partition(rows []models.RawObservation) (fresh, known []models.RawObservation) {
	fresh = make([]models.RawObservation, 0, len(rows))
	for _, row := range rows {
		if s.Add(row.Key()) {
			fresh = append(fresh, row)
		} else {
			known = append(known, row)
		}
	}
	return fresh, known
}

// Merge appends fresh rows to prior rows and removes duplicate keys, keeping the
// last occurrence of each key at its position.
func Merge(prior, fresh []models.RawObservation) []models.RawObservation {
	all := make([]models.RawObservation, 0, len(prior)+len(fresh))
	all = append(all, prior...)
	all = append(all, fresh...)

	last := make(map[models.Key]int, len(all))
	for i, row := range all {
		last[row.Key()] = i
	}
	out := make([]models.RawObservation, 0, len(last))
	for i, row := range all {
		if last[row.Key()] == i {
			out = append(out, row)
		}
	}
	return out
}
