package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// PageResponse models the JSON envelope returned by the EIA outages route.
// Response is nil when the envelope lacks the "response" object.
type PageResponse struct {
	Response *PageBody `json:"response"`
}

// PageBody holds the records of one page.
type PageBody struct {
	Data []APIRecord `json:"data"`
}

// APIRecord is one record as delivered by the upstream API. Identifier fields may
// arrive as strings, numbers or null, so they are decoded leniently.
type APIRecord struct {
	Period       FlexString `json:"period"`
	Facility     FlexString `json:"facility"`
	FacilityName FlexString `json:"facilityName"`
	Generator    FlexString `json:"generator"`
}

// FlexString decodes a JSON string or number into text. Null, booleans, objects
// and arrays decode as invalid so the owning record is dropped during
// normalization instead of failing the whole page.
type FlexString struct {
	Value string
	Valid bool
}

// Str builds a valid FlexString.
func Str(s string) FlexString {
	return FlexString{Value: s, Valid: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = FlexString{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString{Value: s, Valid: true}
		return nil
	}
	if b[0] != '-' && (b[0] < '0' || b[0] > '9') {
		*f = FlexString{}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString{Value: n.String(), Valid: true}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (f FlexString) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// RawObservation is one validated (period, facility, generator) observation; the
// unit of dedup and the row type of the raw dataset file.
type RawObservation struct {
	Period       time.Time `parquet:"period,timestamp(millisecond)" json:"period"`
	Facility     string    `parquet:"facility" json:"facility"`
	FacilityName string    `parquet:"facilityName" json:"facilityName"`
	Generator    string    `parquet:"generator" json:"generator"`
}

// Key identifies an observation for dedup.
type Key struct {
	Period    string
	Facility  string
	Generator string
}

// Key returns the dedup key of the observation.
func (o RawObservation) Key() Key {
	return Key{
		Period:    o.Period.UTC().Format(DateLayout),
		Facility:  o.Facility,
		Generator: o.Generator,
	}
}

// DateLayout is the canonical day format used for periods.
const DateLayout = "2006-01-02"

var periodLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01",
}

// ParsePeriod parses an upstream period and truncates it to UTC midnight.
func ParsePeriod(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range periodLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Midnight(t), true
		}
	}
	return time.Time{}, false
}

// Midnight returns the UTC midnight of the calendar day of t.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Normalize converts the record into a RawObservation. It reports false when
// period, facility or generator is missing or unparseable.
func (r APIRecord) Normalize() (RawObservation, bool) {
	if !r.Period.Valid || !r.Facility.Valid || !r.Generator.Valid {
		return RawObservation{}, false
	}
	period, ok := ParsePeriod(r.Period.Value)
	if !ok {
		return RawObservation{}, false
	}
	facility := strings.TrimSpace(r.Facility.Value)
	generator := strings.TrimSpace(r.Generator.Value)
	if facility == "" || generator == "" {
		return RawObservation{}, false
	}
	return RawObservation{
		Period:       period,
		Facility:     facility,
		FacilityName: strings.TrimSpace(r.FacilityName.Value),
		Generator:    generator,
	}, true
}
