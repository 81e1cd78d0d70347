package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesOf(loc string, src Source, fetchedAt time.Time, recs ...Record) Series {
	return Series{
		LocationID: loc,
		Source:     src,
		FetchedAt:  fetchedAt,
		Schema:     testSchema,
		Records:    recs,
	}
}

func hourlyRec(loc string, ts time.Time, temp float64) Record {
	return Record{
		LocationID: loc,
		Timestamp:  ts,
		Values:     []Value{NewValue(temp), NewValue(0)},
	}
}

func TestMerge(t *testing.T) {
	fetched := time.Date(2024, 10, 8, 6, 0, 0, 0, time.UTC)
	noon := time.Date(2024, 10, 3, 12, 0, 0, 0, time.UTC)

	t.Run("archive record wins over forecast on overlap", func(t *testing.T) {
		archive := seriesOf("a", SourceArchive, fetched, hourlyRec("a", noon, 14.2))
		forecast := seriesOf("a", SourceForecast, fetched.Add(time.Hour), hourlyRec("a", noon, 16.8))

		table, err := Merge([]Series{forecast, archive})
		require.NoError(t, err)
		require.Len(t, table.Records, 1)
		assert.Equal(t, 14.2, table.Records[0].Values[0].Float64)
	})

	t.Run("most recently fetched wins within the same source class", func(t *testing.T) {
		older := seriesOf("a", SourceArchive, fetched, hourlyRec("a", noon, 14.2))
		newer := seriesOf("a", SourceArchive, fetched.Add(2*time.Hour), hourlyRec("a", noon, 14.5))

		table, err := Merge([]Series{older, newer})
		require.NoError(t, err)
		require.Len(t, table.Records, 1)
		assert.Equal(t, 14.5, table.Records[0].Values[0].Float64)
	})

	t.Run("orders rows by location then timestamp", func(t *testing.T) {
		s1 := seriesOf("b", SourceArchive, fetched,
			hourlyRec("b", noon.Add(time.Hour), 1),
			hourlyRec("b", noon, 2),
		)
		s2 := seriesOf("a", SourceArchive, fetched, hourlyRec("a", noon, 3))

		table, err := Merge([]Series{s1, s2})
		require.NoError(t, err)
		require.Len(t, table.Records, 3)
		assert.Equal(t, "a", table.Records[0].LocationID)
		assert.Equal(t, "b", table.Records[1].LocationID)
		assert.True(t, table.Records[1].Timestamp.Before(table.Records[2].Timestamp))
	})

	t.Run("no two rows share a location and timestamp", func(t *testing.T) {
		var series []Series
		for i := 0; i < 3; i++ {
			series = append(series, seriesOf("a", SourceForecast, fetched.Add(time.Duration(i)*time.Hour),
				hourlyRec("a", noon, float64(i)),
				hourlyRec("a", noon.Add(time.Hour), float64(i)),
			))
		}

		table, err := Merge(series)
		require.NoError(t, err)
		seen := map[string]bool{}
		for _, rec := range table.Records {
			require.False(t, seen[rec.Key()], "duplicate key %s", rec.Key())
			seen[rec.Key()] = true
		}
		assert.Len(t, table.Records, 2)
	})

	t.Run("schema disagreement fails with schema conflict", func(t *testing.T) {
		good := seriesOf("a", SourceArchive, fetched, hourlyRec("a", noon, 1))
		bad := Series{
			LocationID: "a",
			Source:     SourceForecast,
			FetchedAt:  fetched,
			Schema:     []string{"temperature_2m"},
		}

		_, err := Merge([]Series{good, bad})
		require.ErrorIs(t, err, ErrSchemaConflict)
	})

	t.Run("empty input yields empty table", func(t *testing.T) {
		table, err := Merge(nil)
		require.NoError(t, err)
		assert.Empty(t, table.Records)
	})
}
