package domain

import (
	"fmt"
	"sort"
	"time"
)

// providerTimeLayout is Open-Meteo's hourly timestamp format: local time,
// minute precision, no zone designator.
const providerTimeLayout = "2006-01-02T15:04"

// DefaultMetrics is the hourly variable set requested from the provider, in
// canonical column order.
var DefaultMetrics = []string{
	"temperature_2m",
	"relative_humidity_2m",
	"dew_point_2m",
	"apparent_temperature",
	"precipitation",
	"rain",
	"snowfall",
	"cloudcover",
	"pressure_msl",
	"windspeed_10m",
	"winddirection_10m",
}

// Normalize converts one location's raw payload into an ordered Series of
// hour-aligned UTC records restricted to the requested interval.
//
// Payload timestamps are converted to UTC using the payload's declared
// offset, never an inferred one. Hours where every metric is missing are
// dropped rather than emitted as rows of nulls. Duplicate timestamps within
// the payload keep the first occurrence.
//
// Returns ErrSchemaMismatch if the payload's metric set or array lengths do
// not match the expected schema. Returns the series together with an error
// wrapping ErrIncompleteRange when the payload yields fewer records than the
// interval implies; callers log the gap and continue with partial data.
func Normalize(raw RawPayload, interval DateRange, schema []string) (Series, error) {
	s := Series{
		LocationID: raw.LocationID,
		Source:     raw.Source,
		FetchedAt:  raw.FetchedAt,
		Schema:     schema,
	}

	if err := checkSchema(raw, schema); err != nil {
		return Series{}, err
	}

	zone := time.FixedZone("payload", int(raw.UTCOffset/time.Second))
	seen := make(map[time.Time]bool, len(raw.Times))

	for i, ts := range raw.Times {
		local, err := time.ParseInLocation(providerTimeLayout, ts, zone)
		if err != nil {
			return Series{}, fmt.Errorf("%w: location %s: bad timestamp %q", ErrSchemaMismatch, raw.LocationID, ts)
		}

		utc := local.UTC().Truncate(time.Hour)
		if !interval.Contains(utc) || seen[utc] {
			continue
		}

		values := make([]Value, len(schema))
		present := false
		for j, metric := range schema {
			v := raw.Metrics[metric][i]
			values[j] = v
			present = present || v.Valid
		}
		if !present {
			continue
		}

		seen[utc] = true
		s.Records = append(s.Records, Record{
			LocationID: raw.LocationID,
			Timestamp:  utc,
			Values:     values,
		})
	}

	sort.Slice(s.Records, func(i, j int) bool {
		return s.Records[i].Timestamp.Before(s.Records[j].Timestamp)
	})

	if want := interval.HourCount(); len(s.Records) < want {
		return s, fmt.Errorf("%w: location %s source %s: %d of %d hours",
			ErrIncompleteRange, raw.LocationID, raw.Source, len(s.Records), want)
	}
	return s, nil
}

// checkSchema verifies the payload carries exactly the expected metrics, each
// with one value per timestamp.
func checkSchema(raw RawPayload, schema []string) error {
	for _, metric := range schema {
		arr, ok := raw.Metrics[metric]
		if !ok {
			return fmt.Errorf("%w: location %s: missing metric %q", ErrSchemaMismatch, raw.LocationID, metric)
		}
		if len(arr) != len(raw.Times) {
			return fmt.Errorf("%w: location %s: metric %q has %d values for %d timestamps",
				ErrSchemaMismatch, raw.LocationID, metric, len(arr), len(raw.Times))
		}
	}
	if len(raw.Metrics) != len(schema) {
		for metric := range raw.Metrics {
			if !containsMetric(schema, metric) {
				return fmt.Errorf("%w: location %s: unexpected metric %q", ErrSchemaMismatch, raw.LocationID, metric)
			}
		}
	}
	return nil
}

func containsMetric(schema []string, name string) bool {
	for _, m := range schema {
		if m == name {
			return true
		}
	}
	return false
}
