// Package pipeline orchestrates one end-to-end run: fetch raw payloads for
// every configured location, normalize and merge them into the unified
// hourly table, derive the daily summary, and persist both as artifacts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/couchcryptid/weather-archive-etl/internal/artifact"
	"github.com/couchcryptid/weather-archive-etl/internal/domain"
	"github.com/couchcryptid/weather-archive-etl/internal/observability"
)

// Fetcher acquires raw payloads from the weather provider.
type Fetcher interface {
	FetchArchive(ctx context.Context, loc domain.Location, r domain.DateRange, metrics []string) (domain.RawPayload, error)
	FetchForecast(ctx context.Context, loc domain.Location, metrics []string) (domain.RawPayload, error)
}

// ArtifactWriter persists frames and reports what it wrote.
type ArtifactWriter interface {
	WriteParquet(f artifact.Frame) (artifact.Descriptor, error)
	WriteCSV(f artifact.Frame) (artifact.Descriptor, error)
}

// Uploader archives written artifact files to remote storage.
type Uploader interface {
	Upload(ctx context.Context, paths []string) ([]string, error)
}

// Options configures a Pipeline. Zero values fall back to the default
// metric schema, aggregation policy, and a concurrency of 4.
type Options struct {
	Locations   []domain.Location
	Schema      []string
	Policy      domain.Policy
	RawDir      string
	Concurrency int
}

// Result summarizes one completed run.
type Result struct {
	Range       string                `json:"range"`
	Locations   int                   `json:"locations"`
	HourlyRows  int                   `json:"hourly_rows"`
	DailyRows   int                   `json:"daily_rows"`
	Artifacts   []artifact.Descriptor `json:"artifacts"`
	Uploaded    []string              `json:"uploaded,omitempty"`
	Duration    time.Duration         `json:"duration_ns"`
	CompletedAt time.Time             `json:"completed_at"`
}

// Pipeline runs the fetch-normalize-merge-aggregate-persist cycle.
type Pipeline struct {
	fetcher  Fetcher
	writer   ArtifactWriter
	uploader Uploader // nil disables archival

	locations   []domain.Location
	schema      []string
	policy      domain.Policy
	rawDir      string
	concurrency int

	logger  *slog.Logger
	metrics *observability.Metrics

	ready atomic.Bool
	last  atomic.Pointer[Result]
}

// New creates a Pipeline with the given stages and observability.
func New(f Fetcher, w ArtifactWriter, u Uploader, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if len(opts.Schema) == 0 {
		opts.Schema = domain.DefaultMetrics
	}
	if len(opts.Policy) == 0 {
		opts.Policy = domain.DefaultPolicy()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Pipeline{
		fetcher:     f,
		writer:      w,
		uploader:    u,
		locations:   opts.Locations,
		schema:      opts.Schema,
		policy:      opts.Policy,
		rawDir:      opts.RawDir,
		concurrency: opts.Concurrency,
		logger:      logger,
		metrics:     metrics,
	}
}

// CheckReadiness returns nil once at least one run has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no pipeline run has completed yet")
	}
	return nil
}

// LatestRun returns the summary of the most recent successful run.
func (p *Pipeline) LatestRun() (any, bool) {
	r := p.last.Load()
	if r == nil {
		return nil, false
	}
	return r, true
}

// Run executes one complete cycle over the given date range. Fetch and
// normalization failures for any location fail the run; an incomplete range
// is logged and the partial data kept.
func (p *Pipeline) Run(ctx context.Context, r domain.DateRange) (*Result, error) {
	if len(p.locations) == 0 {
		return nil, errors.New("no locations configured")
	}

	p.logger.Info("run started", "range", r.String(), "locations", len(p.locations), "concurrency", p.concurrency)
	p.metrics.RunsStarted.Inc()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)
	start := time.Now()

	series, err := p.fetchAll(ctx, r)
	if err != nil {
		p.metrics.RunsFailed.Inc()
		return nil, fmt.Errorf("acquire payloads: %w", err)
	}

	result, err := p.buildArtifacts(ctx, r, series)
	if err != nil {
		p.metrics.RunsFailed.Inc()
		return nil, err
	}

	result.Duration = time.Since(start)
	result.CompletedAt = domain.Now()
	p.metrics.RunDuration.Observe(result.Duration.Seconds())
	p.last.Store(result)
	p.ready.Store(true)

	p.logger.Info("run completed",
		"range", result.Range,
		"hourly_rows", result.HourlyRows,
		"daily_rows", result.DailyRows,
		"duration", result.Duration)
	return result, nil
}

// fetchAll acquires and normalizes archive and forecast payloads for every
// location, at most p.concurrency locations in flight at once.
func (p *Pipeline) fetchAll(ctx context.Context, r domain.DateRange) ([]domain.Series, error) {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		series []domain.Series
		merr   *multierror.Error
	)
	sem := make(chan struct{}, p.concurrency)

	for _, loc := range p.locations {
		wg.Add(1)
		go func(loc domain.Location) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			got, err := p.fetchLocation(ctx, loc, r)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				merr = multierror.Append(merr, err)
				return
			}
			series = append(series, got...)
		}(loc)
	}
	wg.Wait()

	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}
	return series, nil
}

func (p *Pipeline) fetchLocation(ctx context.Context, loc domain.Location, r domain.DateRange) ([]domain.Series, error) {
	archive, err := p.fetchPayload(ctx, loc, domain.SourceArchive, r)
	if err != nil {
		return nil, err
	}
	forecast, err := p.fetchPayload(ctx, loc, domain.SourceForecast, r)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Series, 0, 2)
	for _, raw := range []domain.RawPayload{archive, forecast} {
		s, err := domain.Normalize(raw, r, p.schema)
		if errors.Is(err, domain.ErrIncompleteRange) {
			// Expected for forecasts, whose horizon rarely matches the
			// requested interval. The partial series is kept.
			p.metrics.IncompleteRanges.Inc()
			p.logger.Warn("payload covers partial range",
				"location", loc.ID, "source", string(raw.Source), "records", len(s.Records))
		} else if err != nil {
			return nil, fmt.Errorf("normalize %s payload for %s: %w", raw.Source, loc.ID, err)
		}
		if len(s.Records) > 0 {
			out = append(out, s)
		}
	}
	p.metrics.RecordsNormalized.Add(float64(countRecords(out)))
	return out, nil
}

func (p *Pipeline) fetchPayload(ctx context.Context, loc domain.Location, source domain.Source, r domain.DateRange) (domain.RawPayload, error) {
	p.metrics.FetchRequests.Inc()
	start := time.Now()

	var raw domain.RawPayload
	var err error
	if source == domain.SourceArchive {
		raw, err = p.fetcher.FetchArchive(ctx, loc, r, p.schema)
	} else {
		raw, err = p.fetcher.FetchForecast(ctx, loc, p.schema)
	}
	p.metrics.FetchDuration.WithLabelValues(string(source)).Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.FetchErrors.Inc()
		return domain.RawPayload{}, err
	}

	if p.rawDir != "" {
		if err := p.saveRaw(loc, source, r, raw.Raw); err != nil {
			p.logger.Warn("raw payload not saved", "location", loc.ID, "source", string(source), "error", err)
		}
	}
	return raw, nil
}

// saveRaw keeps the undecoded provider body for audits and reprocessing,
// named {location}__{source}__{range}.json.
func (p *Pipeline) saveRaw(loc domain.Location, source domain.Source, r domain.DateRange, body []byte) error {
	if err := os.MkdirAll(p.rawDir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("%s__%s__%s.json", loc.ID, source, r)
	return os.WriteFile(filepath.Join(p.rawDir, name), body, 0o644)
}

func (p *Pipeline) buildArtifacts(ctx context.Context, r domain.DateRange, series []domain.Series) (*Result, error) {
	before := 0
	for _, s := range series {
		before += len(s.Records)
	}

	table, err := domain.Merge(series)
	if err != nil {
		return nil, fmt.Errorf("merge series: %w", err)
	}
	p.metrics.DuplicatesResolved.Add(float64(before - len(table.Records)))

	daily, err := domain.Aggregate(table, p.policy)
	if err != nil {
		return nil, fmt.Errorf("aggregate daily summary: %w", err)
	}

	hourlyFrame := artifact.HourlyFrame(table, r)
	dailyFrame := artifact.DailyFrame(daily, p.policy, r)

	result := &Result{
		Range:      r.String(),
		Locations:  len(p.locations),
		HourlyRows: len(hourlyFrame.Rows),
		DailyRows:  len(dailyFrame.Rows),
	}

	for _, f := range []artifact.Frame{hourlyFrame, dailyFrame} {
		p.metrics.ArtifactRows.WithLabelValues(f.Name).Set(float64(len(f.Rows)))
		for _, write := range []func(artifact.Frame) (artifact.Descriptor, error){p.writer.WriteParquet, p.writer.WriteCSV} {
			d, err := write(f)
			if err != nil {
				return nil, err
			}
			p.metrics.ArtifactWrites.Inc()
			result.Artifacts = append(result.Artifacts, d)
		}
	}

	if p.uploader != nil {
		paths := make([]string, len(result.Artifacts))
		for i, d := range result.Artifacts {
			paths[i] = d.Path
		}
		uris, err := p.uploader.Upload(ctx, paths)
		if err != nil {
			p.metrics.UploadErrors.Inc()
			return nil, fmt.Errorf("archive artifacts: %w", err)
		}
		result.Uploaded = uris
	}

	return result, nil
}

func countRecords(series []domain.Series) int {
	n := 0
	for _, s := range series {
		n += len(s.Records)
	}
	return n
}
