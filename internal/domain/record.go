package domain

import (
	"fmt"
	"time"
)

// Source classifies where a payload came from. Archive data is observed and
// authoritative; forecast data is predicted and yields to archive on overlap.
type Source string

const (
	SourceArchive  Source = "archive"
	SourceForecast Source = "forecast"
)

// Value is one metric reading for one hour. The zero Value means "no
// reading"; it is never conflated with a measurement of zero.
type Value struct {
	Float64 float64
	Valid   bool
}

// NewValue wraps a present reading.
func NewValue(v float64) Value {
	return Value{Float64: v, Valid: true}
}

// Location is a named point for which weather is tracked. Timezone is the
// IANA name sent to the provider; conversion to UTC uses the offset the
// provider declares in its payload, never a guess.
type Location struct {
	ID        string
	Name      string
	Latitude  float64
	Longitude float64
	Timezone  string
}

// RawPayload is one location's raw observation payload as handed over by the
// acquisition layer: an ordered timestamp array plus one same-length array
// per metric. Times are local to the payload's UTC offset and use the
// provider's "2006-01-02T15:04" layout.
type RawPayload struct {
	LocationID string
	Source     Source
	FetchedAt  time.Time
	UTCOffset  time.Duration
	Times      []string
	Metrics    map[string][]Value

	// Raw is the undecoded provider body, kept for archival only.
	Raw []byte `json:"-"`
}

// Record is one hourly reading for one location. Timestamp is UTC and
// hour-aligned; Values is index-aligned with the owning schema.
type Record struct {
	LocationID string
	Timestamp  time.Time
	Values     []Value
}

// Key returns the (location_id, timestamp) identity of the record.
func (r Record) Key() string {
	return r.LocationID + "|" + r.Timestamp.Format(time.RFC3339)
}

// Series is one location's normalized sequence from a single source.
// Timestamps are strictly increasing and hour-aligned.
type Series struct {
	LocationID string
	Source     Source
	FetchedAt  time.Time
	Schema     []string
	Records    []Record
}

// Table is the merged, deduplicated hourly dataset across all locations.
// Records are ordered by (location_id, timestamp) ascending; that ordering is
// part of the contract, downstream aggregation and presentation rely on it.
type Table struct {
	Schema  []string
	Records []Record
}

// MetricIndex returns the schema position of a metric, or -1.
func (t Table) MetricIndex(name string) int {
	for i, m := range t.Schema {
		if m == name {
			return i
		}
	}
	return -1
}

// DateRange is a closed interval of UTC calendar days.
type DateRange struct {
	Start time.Time // midnight UTC of the first day
	End   time.Time // midnight UTC of the last day
}

const dateLayout = "2006-01-02"

// ParseDateRange parses "YYYY-MM-DD" bounds and validates Start <= End.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.ParseInLocation(dateLayout, start, time.UTC)
	if err != nil {
		return DateRange{}, fmt.Errorf("parse start date %q: %w", start, err)
	}
	e, err := time.ParseInLocation(dateLayout, end, time.UTC)
	if err != nil {
		return DateRange{}, fmt.Errorf("parse end date %q: %w", end, err)
	}
	if e.Before(s) {
		return DateRange{}, fmt.Errorf("end date %s before start date %s", end, start)
	}
	return DateRange{Start: s, End: e}, nil
}

// Days returns the number of calendar days in the interval.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start)/(24*time.Hour)) + 1
}

// HourCount returns how many hourly records a complete payload would carry.
func (r DateRange) HourCount() int {
	return r.Days() * 24
}

// Contains reports whether a UTC instant falls inside the interval,
// [Start 00:00, End 23:00] inclusive.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End.Add(24*time.Hour))
}

// String renders the range as "start_end" for artifact paths.
func (r DateRange) String() string {
	return r.Start.Format(dateLayout) + "_" + r.End.Format(dateLayout)
}
