// Package openmeteo acquires hourly weather payloads from the Open-Meteo
// archive and forecast APIs. Requests carry retries with exponential backoff
// and a per-endpoint circuit breaker; decoded payloads keep the raw body for
// archival.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/couchcryptid/weather-archive-etl/internal/domain"
)

const (
	defaultArchiveURL  = "https://archive-api.open-meteo.com/v1/archive"
	defaultForecastURL = "https://api.open-meteo.com/v1/forecast"
)

// Client fetches raw observation payloads from Open-Meteo.
type Client struct {
	httpClient  *http.Client
	archiveURL  string
	forecastURL string
	retry       retryConfig
	archiveCB   *gobreaker.CircuitBreaker
	forecastCB  *gobreaker.CircuitBreaker
	logger      *slog.Logger
}

// NewClient creates an Open-Meteo client. The archive and forecast endpoints
// get independent breakers; an outage of one host must not block the other.
func NewClient(timeout time.Duration, logger *slog.Logger) *Client {
	breaker := func(name string) *gobreaker.CircuitBreaker {
		return gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
		})
	}
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		archiveURL:  defaultArchiveURL,
		forecastURL: defaultForecastURL,
		retry: retryConfig{
			maxRetries:      3,
			initialInterval: 500 * time.Millisecond,
			maxInterval:     5 * time.Second,
		},
		archiveCB:  breaker("openmeteo-archive"),
		forecastCB: breaker("openmeteo-forecast"),
		logger:     logger,
	}
}

// FetchArchive retrieves observed hourly history for the location over the
// closed date range.
func (c *Client) FetchArchive(ctx context.Context, loc domain.Location, r domain.DateRange, metrics []string) (domain.RawPayload, error) {
	params := c.baseParams(loc, metrics)
	params.Set("start_date", r.Start.Format("2006-01-02"))
	params.Set("end_date", r.End.Format("2006-01-02"))

	return c.fetch(ctx, c.archiveURL, params, loc, domain.SourceArchive, c.archiveCB)
}

// FetchForecast retrieves predicted hourly data for the location over the
// provider's default forecast horizon. Hours outside the pipeline's interval
// are dropped downstream during normalization.
func (c *Client) FetchForecast(ctx context.Context, loc domain.Location, metrics []string) (domain.RawPayload, error) {
	return c.fetch(ctx, c.forecastURL, c.baseParams(loc, metrics), loc, domain.SourceForecast, c.forecastCB)
}

func (c *Client) baseParams(loc domain.Location, metrics []string) url.Values {
	v := url.Values{}
	v.Set("latitude", fmt.Sprintf("%.6f", loc.Latitude))
	v.Set("longitude", fmt.Sprintf("%.6f", loc.Longitude))
	v.Set("hourly", strings.Join(metrics, ","))
	v.Set("timezone", loc.Timezone)
	return v
}

func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values, loc domain.Location, source domain.Source, cb *gobreaker.CircuitBreaker) (domain.RawPayload, error) {
	buildRequest := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, endpoint+"?"+params.Encode(), nil)
	}

	resp, err := doResilient(ctx, c.httpClient, cb, c.retry, buildRequest)
	if err != nil {
		return domain.RawPayload{}, fmt.Errorf("%s fetch for %s: %w", source, loc.ID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.RawPayload{}, fmt.Errorf("%s fetch for %s: read body: %w", source, loc.ID, err)
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return domain.RawPayload{}, fmt.Errorf("%s fetch for %s: decode: %w", source, loc.ID, err)
	}
	if len(p.Hourly.Times) == 0 {
		return domain.RawPayload{}, fmt.Errorf("%s fetch for %s: payload has no hourly block", source, loc.ID)
	}

	c.logger.Debug("payload fetched",
		"location", loc.ID, "source", string(source),
		"hours", len(p.Hourly.Times), "utc_offset_seconds", p.UTCOffsetSeconds)

	return domain.RawPayload{
		LocationID: loc.ID,
		Source:     source,
		FetchedAt:  domain.Now(),
		UTCOffset:  time.Duration(p.UTCOffsetSeconds) * time.Second,
		Times:      p.Hourly.Times,
		Metrics:    p.Hourly.Metrics,
		Raw:        body,
	}, nil
}
