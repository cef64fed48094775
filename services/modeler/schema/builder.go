// Package schema turns raw outage observations into the DimPlant, DimDate and
// FactOutage star schema.
//
// The raw feed is daily, so outage events are derived by collapsing consecutive
// dates for the same generator: the start timestamp is the first date at
// midnight and the end timestamp is the day after the last date (exclusive), so
// a single-day event lasts exactly 24 hours.
package schema

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/02loveslollipop/nuclear-outages/services/connector/dataset"
	"github.com/02loveslollipop/nuclear-outages/services/connector/models"
	"github.com/02loveslollipop/nuclear-outages/services/modeler/tables"
)

// RequiredColumns must be present in a raw file before modeling.
var RequiredColumns = []string{"period", "facility", "facilityName", "generator"}

// SchemaError reports raw input lacking required columns.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("raw data is missing required columns: [%s]", strings.Join(e.Missing, ", "))
}

// CheckColumns returns a *SchemaError when any required column is absent.
func CheckColumns(columns []string) error {
	missing := dataset.Missing(columns, RequiredColumns)
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &SchemaError{Missing: missing}
}

type plantID struct {
	facility  string
	generator string
}

// DateKey encodes a date as a YYYYMMDD integer.
func DateKey(t time.Time) int64 {
	y, m, d := t.Date()
	return int64(y)*10000 + int64(m)*100 + int64(d)
}

// OutageID builds the natural identifier of an outage event.
func OutageID(facility, generator string, dateKey int64) string {
	return fmt.Sprintf("%s-%s-%d", facility, generator, dateKey)
}

// BuildDimPlant returns one row per distinct (facility, facilityName,
// generator), sorted by facility then generator, keyed 1..N.
func BuildDimPlant(raw []models.RawObservation) []tables.DimPlant {
	type triple struct{ facility, name, generator string }
	seen := make(map[triple]struct{}, len(raw))
	plants := make([]tables.DimPlant, 0)
	for _, row := range raw {
		k := triple{row.Facility, row.FacilityName, row.Generator}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		plants = append(plants, tables.DimPlant{
			EIAFacilityID: row.Facility,
			PlantName:     row.FacilityName,
			UnitName:      "Unit " + row.Generator,
			Generator:     row.Generator,
		})
	}

	sort.SliceStable(plants, func(i, j int) bool {
		if plants[i].EIAFacilityID != plants[j].EIAFacilityID {
			return plants[i].EIAFacilityID < plants[j].EIAFacilityID
		}
		return plants[i].Generator < plants[j].Generator
	})
	for i := range plants {
		plants[i].PlantKey = int64(i + 1)
	}
	return plants
}

// BuildDimDate returns one row per distinct observed date, ascending.
func BuildDimDate(raw []models.RawObservation) []tables.DimDate {
	seen := make(map[int64]struct{}, len(raw))
	days := make([]time.Time, 0)
	for _, row := range raw {
		if row.Period.IsZero() {
			continue
		}
		day := models.Midnight(row.Period)
		key := DateKey(day)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		days = append(days, day)
	}
	sort.SliceStable(days, func(i, j int) bool { return days[i].Before(days[j]) })

	dates := make([]tables.DimDate, 0, len(days))
	for _, day := range days {
		wd := day.Weekday()
		dates = append(dates, tables.DimDate{
			DateKey:   DateKey(day),
			Date:      day,
			Year:      int64(day.Year()),
			Month:     int64(day.Month()),
			DayOfWeek: wd.String(),
			IsWeekend: wd == time.Saturday || wd == time.Sunday,
		})
	}
	return dates
}

// plantDates is the ordered set of observed dates for one plant.
type plantDates struct {
	key   int64
	dates []time.Time
}

// groupByPlant attaches PlantKey to raw rows (inner join on facility and
// generator) and returns one ordered date list per plant, ascending by key.
func groupByPlant(raw []models.RawObservation, plants []tables.DimPlant) ([]plantDates, error) {
	keys := make(map[plantID]int64, len(plants))
	for _, p := range plants {
		id := plantID{p.EIAFacilityID, p.Generator}
		if _, dup := keys[id]; dup {
			return nil, &tables.CardinalityError{Table: "dim_plant", Key: p.EIAFacilityID + "/" + p.Generator}
		}
		keys[id] = p.PlantKey
	}

	byKey := make(map[int64]map[int64]time.Time)
	for _, row := range raw {
		if row.Period.IsZero() {
			continue
		}
		pk, ok := keys[plantID{row.Facility, row.Generator}]
		if !ok {
			continue
		}
		if byKey[pk] == nil {
			byKey[pk] = make(map[int64]time.Time)
		}
		day := models.Midnight(row.Period)
		byKey[pk][DateKey(day)] = day
	}

	groups := make([]plantDates, 0, len(byKey))
	for pk, days := range byKey {
		g := plantDates{key: pk, dates: make([]time.Time, 0, len(days))}
		for _, day := range days {
			g.dates = append(g.dates, day)
		}
		sort.Slice(g.dates, func(i, j int) bool { return g.dates[i].Before(g.dates[j]) })
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].key < groups[j].key })
	return groups, nil
}

type event struct {
	plantKey int64
	start    time.Time
	last     time.Time
}

// collapse scans one plant's ordered dates and emits a run for every maximal
// sequence of dates exactly one day apart.
func collapse(g plantDates) []event {
	var events []event
	for i, day := range g.dates {
		if i == 0 || day.Sub(g.dates[i-1]) != 24*time.Hour {
			events = append(events, event{plantKey: g.key, start: day, last: day})
			continue
		}
		events[len(events)-1].last = day
	}
	return events
}

// BuildFactOutage collapses consecutive daily observations into outage events.
func BuildFactOutage(raw []models.RawObservation, plants []tables.DimPlant) ([]tables.FactOutage, error) {
	groups, err := groupByPlant(raw, plants)
	if err != nil {
		return nil, err
	}

	natural := make(map[int64]plantID, len(plants))
	for _, p := range plants {
		natural[p.PlantKey] = plantID{p.EIAFacilityID, p.Generator}
	}

	var events []event
	for _, g := range groups {
		events = append(events, collapse(g)...)
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].plantKey != events[j].plantKey {
			return events[i].plantKey < events[j].plantKey
		}
		return events[i].start.Before(events[j].start)
	})

	facts := make([]tables.FactOutage, 0, len(events))
	for i, ev := range events {
		end := ev.last.AddDate(0, 0, 1)
		dk := DateKey(ev.start)
		id := natural[ev.plantKey]
		facts = append(facts, tables.FactOutage{
			OutageKey:            int64(i + 1),
			PlantKey:             ev.plantKey,
			DateKey:              dk,
			OutageStartTimestamp: ev.start,
			OutageEndTimestamp:   end,
			OutageDurationHours:  end.Sub(ev.start).Seconds() / 3600.0,
			EIAOutageID:          OutageID(id.facility, id.generator, dk),
		})
	}
	return facts, nil
}

// Build produces all three modeled tables from raw rows.
func Build(raw []models.RawObservation) (tables.Tables, error) {
	plants := BuildDimPlant(raw)
	dates := BuildDimDate(raw)
	facts, err := BuildFactOutage(raw, plants)
	if err != nil {
		return tables.Tables{}, err
	}
	return tables.Tables{Plants: plants, Dates: dates, Facts: facts}, nil
}

// LoadRaw validates the raw file's columns and reads its rows.
func LoadRaw(rawPath string) ([]models.RawObservation, error) {
	cols, err := dataset.Columns(rawPath)
	if err != nil {
		return nil, err
	}
	if err := CheckColumns(cols); err != nil {
		return nil, err
	}
	return dataset.Read(rawPath)
}

// Rebuild reads the raw file at rawPath and writes the modeled tables into
// outDir. Nothing is written when the raw file fails validation.
func Rebuild(rawPath, outDir string) (tables.Tables, error) {
	raw, err := LoadRaw(rawPath)
	if err != nil {
		return tables.Tables{}, err
	}
	t, err := Build(raw)
	if err != nil {
		return tables.Tables{}, err
	}
	if err := tables.Write(outDir, t); err != nil {
		return tables.Tables{}, err
	}
	return t, nil
}
