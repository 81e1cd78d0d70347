package domain

import (
	"fmt"
	"sort"
)

// Merge combines normalized per-location series into one unified hourly
// table. For every (location_id, timestamp) present in more than one series
// exactly one record survives: archive beats forecast, and between two series
// of the same source class the most recently fetched wins.
//
// Output records are ordered by (location_id, timestamp) ascending; that
// ordering is a contract of the table, not an implementation detail.
//
// Returns ErrSchemaConflict if two series disagree on the metric set.
func Merge(series []Series) (Table, error) {
	if len(series) == 0 {
		return Table{}, nil
	}

	schema := series[0].Schema
	for _, s := range series[1:] {
		if !equalSchema(schema, s.Schema) {
			return Table{}, fmt.Errorf("%w: location %s source %s: %v vs %v",
				ErrSchemaConflict, s.LocationID, s.Source, s.Schema, schema)
		}
	}

	type chosen struct {
		rec       Record
		source    Source
		fetchedAt int64
	}
	best := make(map[string]chosen)

	for _, s := range series {
		for _, rec := range s.Records {
			key := rec.Key()
			cand := chosen{rec: rec, source: s.Source, fetchedAt: s.FetchedAt.UnixNano()}
			cur, ok := best[key]
			if !ok || wins(cand.source, cand.fetchedAt, cur.source, cur.fetchedAt) {
				best[key] = cand
			}
		}
	}

	t := Table{Schema: schema, Records: make([]Record, 0, len(best))}
	for _, c := range best {
		t.Records = append(t.Records, c.rec)
	}
	sort.Slice(t.Records, func(i, j int) bool {
		a, b := t.Records[i], t.Records[j]
		if a.LocationID != b.LocationID {
			return a.LocationID < b.LocationID
		}
		return a.Timestamp.Before(b.Timestamp)
	})
	return t, nil
}

// wins reports whether candidate (as, af) takes precedence over current
// (bs, bf). Observed data is authoritative over predicted data, so archive
// always beats forecast; ties on source class go to the later fetch.
func wins(as Source, af int64, bs Source, bf int64) bool {
	if as != bs {
		return as == SourceArchive
	}
	return af > bf
}

func equalSchema(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
