// Command genfixture generates synthetic Open-Meteo style payloads and the
// artifacts they produce, for use as test fixtures and demo data. It runs the
// payloads through the actual domain pipeline so the fixtures match real
// normalization, merge, and aggregation behavior.
//
// Usage:
//
//	go run ./cmd/genfixture \
//	  -locations config/locations.yaml \
//	  -start 2024-10-01 -end 2024-10-07 \
//	  -out data/fixtures
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-archive-etl/internal/artifact"
	"github.com/couchcryptid/weather-archive-etl/internal/config"
	"github.com/couchcryptid/weather-archive-etl/internal/domain"
	"github.com/couchcryptid/weather-archive-etl/internal/observability"
)

const timeLayout = "2006-01-02T15:04"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	locFile := flag.String("locations", "config/locations.yaml", "location registry YAML")
	start := flag.String("start", "2024-10-01", "start date YYYY-MM-DD")
	end := flag.String("end", "2024-10-07", "end date YYYY-MM-DD")
	out := flag.String("out", "data/fixtures", "output directory")
	seed := flag.Int64("seed", 42, "random seed for reproducible payloads")
	flag.Parse()

	locations, err := config.LoadLocations(*locFile)
	if err != nil {
		return fmt.Errorf("load locations: %w", err)
	}
	r, err := domain.ParseDateRange(*start, *end)
	if err != nil {
		return fmt.Errorf("parse range: %w", err)
	}

	// Fixed clock for reproducible FetchedAt and ProducedAt timestamps.
	fetchedAt := r.End.Add(30 * time.Hour)
	domain.SetClock(clockwork.NewFakeClockAt(fetchedAt))
	defer domain.SetClock(nil)

	rng := rand.New(rand.NewSource(*seed))
	rawDir := filepath.Join(*out, "raw")
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		return err
	}

	var series []domain.Series
	for _, loc := range locations {
		for _, source := range []domain.Source{domain.SourceArchive, domain.SourceForecast} {
			raw := synthesize(rng, loc, source, r)
			if err := saveProviderJSON(rawDir, loc, source, r, raw); err != nil {
				return fmt.Errorf("save raw fixture: %w", err)
			}

			s, err := domain.Normalize(raw, r, domain.DefaultMetrics)
			if err != nil && len(s.Records) == 0 {
				return fmt.Errorf("normalize %s/%s: %w", loc.ID, source, err)
			}
			series = append(series, s)
			log.Printf("%s %s: %d records", loc.ID, source, len(s.Records))
		}
	}

	table, err := domain.Merge(series)
	if err != nil {
		return fmt.Errorf("merge: %w", err)
	}
	daily, err := domain.Aggregate(table, domain.DefaultPolicy())
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}

	logger := observability.NewLogger("info", "text")
	writer, err := artifact.NewWriter(filepath.Join(*out, "processed"), logger)
	if err != nil {
		return err
	}
	for _, f := range []artifact.Frame{
		artifact.HourlyFrame(table, r),
		artifact.DailyFrame(daily, domain.DefaultPolicy(), r),
	} {
		if _, err := writer.WriteCSV(f); err != nil {
			return err
		}
		if _, err := writer.WriteParquet(f); err != nil {
			return err
		}
	}

	printStats(table, daily)
	return nil
}

// synthesize builds one payload. Archive covers the whole range with local
// timestamps at the location's rough UTC offset; forecast overlaps the last
// two days with slightly different readings, so merges have real conflicts.
func synthesize(rng *rand.Rand, loc domain.Location, source domain.Source, r domain.DateRange) domain.RawPayload {
	offset := time.Duration(math.Round(loc.Longitude/15)) * time.Hour
	from := r.Start
	hours := r.HourCount()
	if source == domain.SourceForecast {
		from = r.End.Add(-24 * time.Hour)
		hours = 96
	}

	p := domain.RawPayload{
		LocationID: loc.ID,
		Source:     source,
		FetchedAt:  domain.Now(),
		UTCOffset:  offset,
		Times:      make([]string, hours),
		Metrics:    make(map[string][]domain.Value, len(domain.DefaultMetrics)),
	}
	for _, m := range domain.DefaultMetrics {
		p.Metrics[m] = make([]domain.Value, hours)
	}

	bias := 0.0
	if source == domain.SourceForecast {
		bias = 1.5
	}
	for h := 0; h < hours; h++ {
		local := from.Add(time.Duration(h)*time.Hour).Add(offset)
		p.Times[h] = local.Format(timeLayout)

		// Roughly 2% of readings drop out, like real station gaps.
		for _, m := range domain.DefaultMetrics {
			if rng.Float64() < 0.02 {
				continue
			}
			p.Metrics[m][h] = domain.NewValue(sample(rng, m, h, loc.Latitude, bias))
		}
	}
	return p
}

// sample produces a plausible reading for a metric: a diurnal temperature
// cycle, mostly-dry precipitation, and bounded percentages.
func sample(rng *rand.Rand, metric string, hour int, lat, bias float64) float64 {
	diurnal := 5 * math.Sin(2*math.Pi*float64(hour%24)/24)
	switch metric {
	case "temperature_2m", "apparent_temperature", "dew_point_2m":
		return 20 - math.Abs(lat)/4 + diurnal + bias + rng.Float64()
	case "relative_humidity_2m":
		return 40 + 50*rng.Float64()
	case "cloudcover":
		return 100 * rng.Float64()
	case "precipitation", "rain", "snowfall":
		if rng.Float64() < 0.8 {
			return 0
		}
		return math.Round(3*rng.Float64()*10) / 10
	case "pressure_msl":
		return 1000 + 25*rng.Float64()
	case "windspeed_10m":
		return 25 * rng.Float64()
	case "winddirection_10m":
		return 360 * rng.Float64()
	default:
		return rng.Float64()
	}
}

// saveProviderJSON writes the payload in the provider's wire shape so the
// fixture can also back an HTTP stub.
func saveProviderJSON(dir string, loc domain.Location, source domain.Source, r domain.DateRange, p domain.RawPayload) error {
	hourly := map[string]any{"time": p.Times}
	for name, col := range p.Metrics {
		vals := make([]*float64, len(col))
		for i, v := range col {
			if v.Valid {
				f := v.Float64
				vals[i] = &f
			}
		}
		hourly[name] = vals
	}
	body := map[string]any{
		"latitude":           loc.Latitude,
		"longitude":          loc.Longitude,
		"timezone":           loc.Timezone,
		"utc_offset_seconds": int(p.UTCOffset.Seconds()),
		"hourly":             hourly,
	}

	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	name := fmt.Sprintf("%s__%s__%s.json", loc.ID, source, r)
	return os.WriteFile(filepath.Join(dir, name), data, 0o600)
}

func printStats(table domain.Table, daily []domain.DailySummary) {
	perLocation := map[string]int{}
	missing := 0
	for _, rec := range table.Records {
		perLocation[rec.LocationID]++
		for _, v := range rec.Values {
			if !v.Valid {
				missing++
			}
		}
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Hourly rows: %d\n", len(table.Records))
	fmt.Printf("Daily rows: %d\n", len(daily))
	fmt.Printf("Missing cells: %d\n", missing)
	for loc, n := range perLocation {
		fmt.Printf("  %s: %d hourly records\n", loc, n)
	}
	if len(daily) > 0 {
		d := daily[0]
		fmt.Printf("\nFirst daily row: %s %s sample_count=%d\n",
			d.LocationID, d.Date.Format("2006-01-02"), d.SampleCount)
	}
}
