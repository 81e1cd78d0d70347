package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-archive-etl/internal/artifact"
	"github.com/couchcryptid/weather-archive-etl/internal/domain"
	"github.com/couchcryptid/weather-archive-etl/internal/observability"
	"github.com/couchcryptid/weather-archive-etl/internal/pipeline"
)

const timeLayout = "2006-01-02T15:04"

var testSchema = []string{"temperature_2m", "precipitation"}

var testPolicy = domain.Policy{
	{Metric: "temperature_2m", Aggs: []domain.Agg{domain.AggMean, domain.AggMin, domain.AggMax}},
	{Metric: "precipitation", Aggs: []domain.Agg{domain.AggSum}},
}

// makePayload builds a payload of consecutive hours starting at from (UTC),
// with constant temperature temp and zero precipitation.
func makePayload(locID string, source domain.Source, from time.Time, hours int, temp float64) domain.RawPayload {
	p := domain.RawPayload{
		LocationID: locID,
		Source:     source,
		FetchedAt:  time.Date(2024, 10, 8, 0, 0, 0, 0, time.UTC),
		Times:      make([]string, hours),
		Metrics: map[string][]domain.Value{
			"temperature_2m": make([]domain.Value, hours),
			"precipitation":  make([]domain.Value, hours),
		},
		Raw: []byte(fmt.Sprintf(`{"loc":%q,"source":%q}`, locID, source)),
	}
	for h := 0; h < hours; h++ {
		p.Times[h] = from.Add(time.Duration(h) * time.Hour).Format(timeLayout)
		p.Metrics["temperature_2m"][h] = domain.NewValue(temp)
		p.Metrics["precipitation"][h] = domain.NewValue(0)
	}
	return p
}

// --- mocks ---

type mockFetcher struct {
	archiveTemp  float64
	forecastTemp float64
	forecastFrom time.Time
	archiveErr   error
	forecastLen  int
}

func (m *mockFetcher) FetchArchive(_ context.Context, loc domain.Location, r domain.DateRange, _ []string) (domain.RawPayload, error) {
	if m.archiveErr != nil {
		return domain.RawPayload{}, m.archiveErr
	}
	return makePayload(loc.ID, domain.SourceArchive, r.Start, r.HourCount(), m.archiveTemp), nil
}

func (m *mockFetcher) FetchForecast(_ context.Context, loc domain.Location, _ []string) (domain.RawPayload, error) {
	n := m.forecastLen
	if n == 0 {
		n = 12
	}
	return makePayload(loc.ID, domain.SourceForecast, m.forecastFrom, n, m.forecastTemp), nil
}

type mockWriter struct {
	frames []artifact.Frame
	dir    string
	err    error
}

func (m *mockWriter) write(f artifact.Frame, format string) (artifact.Descriptor, error) {
	if m.err != nil {
		return artifact.Descriptor{}, m.err
	}
	m.frames = append(m.frames, f)
	return artifact.Descriptor{
		Name:    f.Name,
		Path:    filepath.Join(m.dir, f.Name+"."+format),
		Format:  format,
		Rows:    len(f.Rows),
		Columns: f.ColumnNames(),
	}, nil
}

func (m *mockWriter) WriteParquet(f artifact.Frame) (artifact.Descriptor, error) { return m.write(f, "parquet") }
func (m *mockWriter) WriteCSV(f artifact.Frame) (artifact.Descriptor, error)     { return m.write(f, "csv") }

type mockUploader struct {
	paths []string
	err   error
}

func (m *mockUploader) Upload(_ context.Context, paths []string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.paths = paths
	uris := make([]string, len(paths))
	for i, p := range paths {
		uris[i] = "s3://bucket/" + filepath.Base(p)
	}
	return uris, nil
}

func testLocations(n int) []domain.Location {
	locs := make([]domain.Location, n)
	for i := range locs {
		locs[i] = domain.Location{ID: fmt.Sprintf("loc%d", i), Name: fmt.Sprintf("Loc %d", i), Timezone: "UTC"}
	}
	return locs
}

func newTestPipeline(f pipeline.Fetcher, w pipeline.ArtifactWriter, u pipeline.Uploader, opts pipeline.Options) *pipeline.Pipeline {
	return pipeline.New(f, w, u, opts, slog.Default(), observability.NewMetricsForTesting())
}

func mustRange(t *testing.T) domain.DateRange {
	t.Helper()
	r, err := domain.ParseDateRange("2024-10-01", "2024-10-03")
	require.NoError(t, err)
	return r
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	r := mustRange(t)
	// Forecast overlaps the last 12 archive hours with different readings;
	// the archive values must survive the merge.
	fetcher := &mockFetcher{
		archiveTemp:  10,
		forecastTemp: 99,
		forecastFrom: r.Start.Add(60 * time.Hour),
	}
	writer := &mockWriter{dir: t.TempDir()}
	rawDir := t.TempDir()

	p := newTestPipeline(fetcher, writer, nil, pipeline.Options{
		Locations: testLocations(2),
		Schema:    testSchema,
		Policy:    testPolicy,
		RawDir:    rawDir,
	})

	require.Error(t, p.CheckReadiness(context.Background()), "not ready before first run")

	result, err := p.Run(context.Background(), r)
	require.NoError(t, err)

	assert.Equal(t, "2024-10-01_2024-10-03", result.Range)
	assert.Equal(t, 2, result.Locations)
	assert.Equal(t, 2*r.HourCount(), result.HourlyRows)
	assert.Equal(t, 2*r.Days(), result.DailyRows)
	require.Len(t, result.Artifacts, 4)

	// hourly and daily_summary each in parquet and csv.
	names := map[string]int{}
	for _, d := range result.Artifacts {
		names[d.Name+"."+d.Format]++
	}
	assert.Equal(t, map[string]int{
		"hourly.parquet": 1, "hourly.csv": 1,
		"daily_summary.parquet": 1, "daily_summary.csv": 1,
	}, names)

	// Archive wins on overlapping hours.
	hourly := writer.frames[0]
	tempCol := 2
	for _, row := range hourly.Rows {
		assert.Equal(t, 10.0, row[tempCol])
	}

	// Raw payloads saved per location and source.
	entries, err := os.ReadDir(rawDir)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
	assert.FileExists(t, filepath.Join(rawDir, "loc0__archive__2024-10-01_2024-10-03.json"))
	assert.FileExists(t, filepath.Join(rawDir, "loc1__forecast__2024-10-01_2024-10-03.json"))

	require.NoError(t, p.CheckReadiness(context.Background()))
	latest, ok := p.LatestRun()
	require.True(t, ok)
	assert.Equal(t, result, latest)
}

func TestPipeline_Run_FetchErrorFailsRun(t *testing.T) {
	fetcher := &mockFetcher{archiveErr: errors.New("upstream 502")}
	p := newTestPipeline(fetcher, &mockWriter{}, nil, pipeline.Options{
		Locations: testLocations(3),
		Schema:    testSchema,
		Policy:    testPolicy,
	})

	_, err := p.Run(context.Background(), mustRange(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream 502")
	require.Error(t, p.CheckReadiness(context.Background()))
	_, ok := p.LatestRun()
	assert.False(t, ok)
}

func TestPipeline_Run_ForecastOutsideRangeTolerated(t *testing.T) {
	r := mustRange(t)
	// Forecast entirely after the requested interval: contributes nothing
	// but must not fail the run.
	fetcher := &mockFetcher{
		archiveTemp:  10,
		forecastTemp: 99,
		forecastFrom: r.End.Add(48 * time.Hour),
	}
	writer := &mockWriter{dir: t.TempDir()}

	p := newTestPipeline(fetcher, writer, nil, pipeline.Options{
		Locations: testLocations(1),
		Schema:    testSchema,
		Policy:    testPolicy,
	})

	result, err := p.Run(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, r.HourCount(), result.HourlyRows)
}

func TestPipeline_Run_UploadsArtifacts(t *testing.T) {
	r := mustRange(t)
	fetcher := &mockFetcher{archiveTemp: 10, forecastTemp: 12, forecastFrom: r.Start}
	uploader := &mockUploader{}

	p := newTestPipeline(fetcher, &mockWriter{dir: "/data/processed"}, uploader, pipeline.Options{
		Locations: testLocations(1),
		Schema:    testSchema,
		Policy:    testPolicy,
	})

	result, err := p.Run(context.Background(), r)
	require.NoError(t, err)
	require.Len(t, result.Uploaded, 4)
	assert.Contains(t, result.Uploaded, "s3://bucket/hourly.parquet")
	assert.Len(t, uploader.paths, 4)
}

func TestPipeline_Run_UploadFailureFailsRun(t *testing.T) {
	r := mustRange(t)
	fetcher := &mockFetcher{archiveTemp: 10, forecastTemp: 12, forecastFrom: r.Start}

	p := newTestPipeline(fetcher, &mockWriter{dir: t.TempDir()}, &mockUploader{err: errors.New("access denied")}, pipeline.Options{
		Locations: testLocations(1),
		Schema:    testSchema,
		Policy:    testPolicy,
	})

	_, err := p.Run(context.Background(), r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive artifacts")
}

func TestPipeline_Run_WriteFailureFailsRun(t *testing.T) {
	r := mustRange(t)
	fetcher := &mockFetcher{archiveTemp: 10, forecastTemp: 12, forecastFrom: r.Start}

	p := newTestPipeline(fetcher, &mockWriter{err: domain.ErrWriteFailure}, nil, pipeline.Options{
		Locations: testLocations(1),
		Schema:    testSchema,
		Policy:    testPolicy,
	})

	_, err := p.Run(context.Background(), r)
	require.ErrorIs(t, err, domain.ErrWriteFailure)
}

func TestPipeline_Run_NoLocations(t *testing.T) {
	p := newTestPipeline(&mockFetcher{}, &mockWriter{}, nil, pipeline.Options{Schema: testSchema, Policy: testPolicy})
	_, err := p.Run(context.Background(), mustRange(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no locations configured")
}
