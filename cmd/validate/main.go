// Command validate performs end-to-end integrity checks on a pipeline run's
// output: the hourly and daily CSV artifacts and, when present, the raw
// payload files. It verifies schema shape, key uniqueness and ordering,
// range coverage, and that the daily summary is reproducible from the hourly
// table via the actual aggregation code.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -data-dir data \
//	  -start 2024-10-01 -end 2024-10-07
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/weather-archive-etl/internal/artifact"
	"github.com/couchcryptid/weather-archive-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "data", "pipeline data directory (holds raw/ and processed/)")
	start := flag.String("start", "", "start date YYYY-MM-DD of the run to validate")
	end := flag.String("end", "", "end date YYYY-MM-DD of the run to validate")
	flag.Parse()

	if *start == "" || *end == "" {
		flag.Usage()
		os.Exit(1)
	}

	r, err := domain.ParseDateRange(*start, *end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	if code := run(*dataDir, r); code != 0 {
		os.Exit(code)
	}
}

func run(dataDir string, r domain.DateRange) int {
	fmt.Println("=== Weather Artifact Integrity Validation ===")
	fmt.Println()

	processed := filepath.Join(dataDir, "processed")
	hourlyPath := filepath.Join(processed, fmt.Sprintf("hourly_%s.csv", r))
	dailyPath := filepath.Join(processed, fmt.Sprintf("daily_summary_%s.csv", r))

	hourlyHeader, hourlyRows, err := artifact.ReadCSV(hourlyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load hourly artifact: %v\n", err)
		return 1
	}
	dailyHeader, dailyRows, err := artifact.ReadCSV(dailyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load daily artifact: %v\n", err)
		return 1
	}

	table, tablePhase := rebuildTable(hourlyHeader, hourlyRows)

	phases := []*phase{
		validateSchema(hourlyHeader, dailyHeader),
		tablePhase,
		validateHourly(table, r),
		validateDaily(table, dailyHeader, dailyRows, r),
		validateRawPresence(filepath.Join(dataDir, "raw"), table, r),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-44s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d hourly, %d daily\n", len(hourlyRows), len(dailyRows))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Schema Shape ──

func validateSchema(hourlyHeader, dailyHeader []string) *phase {
	p := &phase{name: "Phase 1: Schema Shape"}

	wantHourly := append([]string{"location_id", "timestamp"}, domain.DefaultMetrics...)
	if !equalStrings(hourlyHeader, wantHourly) {
		p.errorf("hourly header mismatch:\n    want %v\n    got  %v", wantHourly, hourlyHeader)
	}

	wantDaily := append([]string{"location_id", "date"}, domain.DefaultPolicy().Columns()...)
	wantDaily = append(wantDaily, "sample_count")
	if !equalStrings(dailyHeader, wantDaily) {
		p.errorf("daily header mismatch:\n    want %v\n    got  %v", wantDaily, dailyHeader)
	}
	return p
}

// ── Phase 2: Hourly Parse ──
// Rebuilds the in-memory table from the CSV artifact.

func rebuildTable(header []string, rows [][]string) (domain.Table, *phase) {
	p := &phase{name: "Phase 2: Hourly Parse"}
	table := domain.Table{Schema: header[2:]}

	for i, row := range rows {
		if len(row) != len(header) {
			p.errorf("row %d: %d fields, header has %d", i, len(row), len(header))
			continue
		}
		ts, err := time.Parse(time.RFC3339, row[1])
		if err != nil {
			p.errorf("row %d: bad timestamp %q: %v", i, row[1], err)
			continue
		}

		rec := domain.Record{
			LocationID: row[0],
			Timestamp:  ts.UTC(),
			Values:     make([]domain.Value, len(table.Schema)),
		}
		for j, cell := range row[2:] {
			if cell == "" {
				continue
			}
			f, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				p.errorf("row %d, metric %s: bad value %q", i, table.Schema[j], cell)
				continue
			}
			rec.Values[j] = domain.NewValue(f)
		}
		table.Records = append(table.Records, rec)
	}
	return table, p
}

// ── Phase 3: Hourly Invariants ──
// UTC hour alignment, unique keys, (location, timestamp) ordering, range.

func validateHourly(table domain.Table, r domain.DateRange) *phase {
	p := &phase{name: "Phase 3: Hourly Invariants"}

	seen := map[string]bool{}
	for i, rec := range table.Records {
		if !rec.Timestamp.Truncate(time.Hour).Equal(rec.Timestamp) {
			p.errorf("row %d: timestamp %s not hour-aligned", i, rec.Timestamp.Format(time.RFC3339))
		}
		if !r.Contains(rec.Timestamp) {
			p.errorf("row %d: timestamp %s outside range %s", i, rec.Timestamp.Format(time.RFC3339), r)
		}
		if key := rec.Key(); seen[key] {
			p.errorf("row %d: duplicate key %s", i, key)
		} else {
			seen[key] = true
		}
		if i > 0 {
			prev := table.Records[i-1]
			if rec.LocationID < prev.LocationID ||
				(rec.LocationID == prev.LocationID && rec.Timestamp.Before(prev.Timestamp)) {
				p.errorf("row %d: out of order after (%s, %s)", i, prev.LocationID, prev.Timestamp.Format(time.RFC3339))
			}
		}
	}
	return p
}

// ── Phase 4: Daily Reproducibility ──
// Re-runs the aggregation on the hourly table and compares every cell.

func validateDaily(table domain.Table, header []string, rows [][]string, r domain.DateRange) *phase {
	p := &phase{name: "Phase 4: Daily Reproducibility"}

	policy := domain.DefaultPolicy()
	daily, err := domain.Aggregate(table, policy)
	if err != nil {
		p.errorf("aggregate hourly table: %v", err)
		return p
	}

	expected := artifact.DailyFrame(daily, policy, r)
	if len(rows) != len(expected.Rows) {
		p.errorf("daily rows: artifact has %d, recomputed %d", len(rows), len(expected.Rows))
		return p
	}

	for i, row := range rows {
		for j := range header {
			want := artifact.CellString(expected.Columns[j], expected.Rows[i][j])
			if row[j] != want {
				p.errorf("row %d, column %s: artifact=%q, recomputed=%q", i, header[j], row[j], want)
			}
		}
	}
	return p
}

// ── Phase 5: Raw Payload Presence ──
// Every location in the hourly table should have archived raw payloads.

func validateRawPresence(rawDir string, table domain.Table, r domain.DateRange) *phase {
	p := &phase{name: "Phase 5: Raw Payload Presence"}

	if _, err := os.Stat(rawDir); os.IsNotExist(err) {
		fmt.Printf("  Note: raw dir %s not found, skipping phase 5\n", rawDir)
		return p
	}

	locs := map[string]bool{}
	for _, rec := range table.Records {
		locs[rec.LocationID] = true
	}
	for loc := range locs {
		name := fmt.Sprintf("%s__archive__%s.json", loc, r)
		if _, err := os.Stat(filepath.Join(rawDir, name)); err != nil {
			p.errorf("%s: missing raw archive payload %s", loc, name)
		}
	}
	return p
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}
