package domain

import (
	"fmt"
	"time"
)

// Agg names a daily aggregate function.
type Agg string

const (
	AggMin  Agg = "min"
	AggMax  Agg = "max"
	AggMean Agg = "mean"
	AggSum  Agg = "sum"
)

// MetricAggs assigns one metric its set of aggregate functions.
type MetricAggs struct {
	Metric string
	Aggs   []Agg
}

// Policy is the explicit per-metric aggregation mapping. It is ordered: the
// daily table's columns follow policy order. Metrics absent from the policy
// are carried in the hourly table but omitted from daily summaries.
//
// The policy is deliberately data rather than inline conditionals: applying
// mean to an accumulative metric like precipitation would silently corrupt
// downstream analysis, so the mapping must be inspectable and testable on
// its own.
type Policy []MetricAggs

// DefaultPolicy returns the standard mapping for the default metric set.
// Accumulative metrics (precipitation, rain, snowfall) are summed, never
// averaged; instantaneous metrics get mean and, where extremes matter,
// min/max.
func DefaultPolicy() Policy {
	return Policy{
		{Metric: "temperature_2m", Aggs: []Agg{AggMean, AggMin, AggMax}},
		{Metric: "relative_humidity_2m", Aggs: []Agg{AggMean}},
		{Metric: "precipitation", Aggs: []Agg{AggSum}},
		{Metric: "rain", Aggs: []Agg{AggSum}},
		{Metric: "snowfall", Aggs: []Agg{AggSum}},
		{Metric: "windspeed_10m", Aggs: []Agg{AggMean, AggMax}},
		{Metric: "cloudcover", Aggs: []Agg{AggMean}},
		{Metric: "pressure_msl", Aggs: []Agg{AggMean}},
	}
}

// Columns returns the daily table's aggregate column names in policy order,
// e.g. "temperature_2m_mean".
func (p Policy) Columns() []string {
	var cols []string
	for _, ma := range p.aggs() {
		cols = append(cols, ma.column)
	}
	return cols
}

// aggColumn is one (metric, function) pair flattened out of the policy.
type aggColumn struct {
	metric string
	fn     Agg
	column string
}

// aggs flattens the policy into its ordered (metric, function) pairs.
func (p Policy) aggs() []aggColumn {
	var out []aggColumn
	for _, ma := range p {
		for _, fn := range ma.Aggs {
			out = append(out, aggColumn{metric: ma.Metric, fn: fn, column: ma.Metric + "_" + string(fn)})
		}
	}
	return out
}

// Validate checks every policy metric against the table schema and every
// function against the known aggregate set.
func (p Policy) Validate(schema []string) error {
	for _, ma := range p {
		if !containsMetric(schema, ma.Metric) {
			return fmt.Errorf("%w: aggregation policy names metric %q absent from schema", ErrSchemaMismatch, ma.Metric)
		}
		if len(ma.Aggs) == 0 {
			return fmt.Errorf("%w: aggregation policy has no functions for metric %q", ErrSchemaMismatch, ma.Metric)
		}
		for _, fn := range ma.Aggs {
			switch fn {
			case AggMin, AggMax, AggMean, AggSum:
			default:
				return fmt.Errorf("%w: unknown aggregate function %q for metric %q", ErrSchemaMismatch, fn, ma.Metric)
			}
		}
	}
	return nil
}

// DailySummary is one row per (location_id, UTC calendar day). Values is
// index-aligned with Policy.Columns(). SampleCount is the number of hourly
// records that contributed to the day: counting is record-level, so an hour
// present in the table counts even if an individual metric was missing for
// it, while per-metric missing values are simply excluded from that metric's
// aggregates.
type DailySummary struct {
	LocationID  string
	Date        time.Time // midnight UTC
	Values      []Value
	SampleCount int
}

// Aggregate resamples the unified hourly table into one DailySummary per
// (location_id, day) with at least one contributing record. Days with zero
// records are omitted, never emitted as rows of nulls; partial days are valid
// and carry their true SampleCount (always 1..24).
func Aggregate(t Table, policy Policy) ([]DailySummary, error) {
	if err := policy.Validate(t.Schema); err != nil {
		return nil, err
	}

	idx := make(map[string]int, len(t.Schema))
	for i, m := range t.Schema {
		idx[m] = i
	}
	aggs := policy.aggs()

	// The table is ordered by (location_id, timestamp), so days arrive as
	// contiguous runs and output order falls out for free.
	var out []DailySummary
	flush := func(locID string, day time.Time, recs []Record) {
		if len(recs) == 0 {
			return
		}
		row := DailySummary{
			LocationID:  locID,
			Date:        day,
			Values:      make([]Value, len(aggs)),
			SampleCount: len(recs),
		}
		for i, a := range aggs {
			row.Values[i] = aggregateMetric(recs, idx[a.metric], a.fn)
		}
		out = append(out, row)
	}

	var (
		curLoc string
		curDay time.Time
		bucket []Record
	)
	for _, rec := range t.Records {
		day := rec.Timestamp.Truncate(24 * time.Hour)
		if rec.LocationID != curLoc || !day.Equal(curDay) {
			flush(curLoc, curDay, bucket)
			curLoc, curDay, bucket = rec.LocationID, day, bucket[:0]
		}
		bucket = append(bucket, rec)
	}
	flush(curLoc, curDay, bucket)
	return out, nil
}

// aggregateMetric computes one aggregate over the non-missing values of one
// metric. All values missing yields a missing result, not zero.
func aggregateMetric(recs []Record, col int, fn Agg) Value {
	var (
		n   int
		sum float64
		mn  float64
		mx  float64
	)
	for _, rec := range recs {
		v := rec.Values[col]
		if !v.Valid {
			continue
		}
		if n == 0 {
			mn, mx = v.Float64, v.Float64
		} else {
			if v.Float64 < mn {
				mn = v.Float64
			}
			if v.Float64 > mx {
				mx = v.Float64
			}
		}
		sum += v.Float64
		n++
	}
	if n == 0 {
		return Value{}
	}
	switch fn {
	case AggMin:
		return NewValue(mn)
	case AggMax:
		return NewValue(mx)
	case AggSum:
		return NewValue(sum)
	default: // AggMean, validated upstream
		return NewValue(sum / float64(n))
	}
}
