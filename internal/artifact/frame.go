// Package artifact persists the pipeline's tables as columnar files and
// describes what it wrote. Parquet is the primary format; a CSV sibling is
// written for consumers without parquet support. Paths are deterministic in
// (logical name, date range) so repeated runs over the same interval
// overwrite rather than accumulate.
package artifact

import (
	"fmt"
	"strconv"
	"time"

	"github.com/couchcryptid/weather-archive-etl/internal/domain"
)

// ColumnType is the serialization type of a frame column.
type ColumnType int

const (
	TypeString ColumnType = iota
	TypeTimestamp
	TypeDate
	TypeFloat
	TypeInt
)

// Column is one named, typed column of a frame.
type Column struct {
	Name string
	Type ColumnType
}

// Frame is a row-major table ready for serialization. Cells hold string,
// time.Time, float64 or int64 per the column type; a nil cell is a missing
// value and is only legal in TypeFloat columns.
type Frame struct {
	Name    string
	Range   domain.DateRange
	Columns []Column
	Rows    [][]any
}

// Descriptor is the metadata returned for one persisted artifact.
type Descriptor struct {
	Name       string
	Path       string
	Format     string // "parquet" or "csv"
	Rows       int
	Columns    []string
	ProducedAt time.Time
}

// ColumnNames returns the frame's column names in order.
func (f Frame) ColumnNames() []string {
	names := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		names[i] = c.Name
	}
	return names
}

// HourlyFrame lays out the unified hourly table: location_id, timestamp, one
// column per metric.
func HourlyFrame(t domain.Table, r domain.DateRange) Frame {
	f := Frame{
		Name:  "hourly",
		Range: r,
		Columns: []Column{
			{Name: "location_id", Type: TypeString},
			{Name: "timestamp", Type: TypeTimestamp},
		},
	}
	for _, m := range t.Schema {
		f.Columns = append(f.Columns, Column{Name: m, Type: TypeFloat})
	}

	f.Rows = make([][]any, 0, len(t.Records))
	for _, rec := range t.Records {
		row := make([]any, 0, len(f.Columns))
		row = append(row, rec.LocationID, rec.Timestamp)
		for _, v := range rec.Values {
			row = append(row, cell(v))
		}
		f.Rows = append(f.Rows, row)
	}
	return f
}

// DailyFrame lays out the daily summary table: location_id, date, one column
// per (metric, aggregate) pair in policy order, sample_count.
func DailyFrame(rows []domain.DailySummary, policy domain.Policy, r domain.DateRange) Frame {
	f := Frame{
		Name:  "daily_summary",
		Range: r,
		Columns: []Column{
			{Name: "location_id", Type: TypeString},
			{Name: "date", Type: TypeDate},
		},
	}
	for _, col := range policy.Columns() {
		f.Columns = append(f.Columns, Column{Name: col, Type: TypeFloat})
	}
	f.Columns = append(f.Columns, Column{Name: "sample_count", Type: TypeInt})

	f.Rows = make([][]any, 0, len(rows))
	for _, s := range rows {
		row := make([]any, 0, len(f.Columns))
		row = append(row, s.LocationID, s.Date)
		for _, v := range s.Values {
			row = append(row, cell(v))
		}
		row = append(row, int64(s.SampleCount))
		f.Rows = append(f.Rows, row)
	}
	return f
}

func cell(v domain.Value) any {
	if !v.Valid {
		return nil
	}
	return v.Float64
}

// CellString renders one cell the way the CSV artifact does: RFC 3339 for
// timestamps, YYYY-MM-DD for dates, empty string for missing.
func CellString(c Column, v any) string {
	if v == nil {
		return ""
	}
	switch c.Type {
	case TypeTimestamp:
		return v.(time.Time).UTC().Format(time.RFC3339)
	case TypeDate:
		return v.(time.Time).UTC().Format("2006-01-02")
	case TypeFloat:
		return strconv.FormatFloat(v.(float64), 'g', -1, 64)
	case TypeInt:
		return strconv.FormatInt(v.(int64), 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}
