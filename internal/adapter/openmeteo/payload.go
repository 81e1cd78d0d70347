package openmeteo

import (
	"encoding/json"
	"fmt"

	"github.com/couchcryptid/weather-archive-etl/internal/domain"
)

// payload mirrors the provider's response envelope. Only the fields the
// pipeline consumes are decoded; the full body is archived separately.
type payload struct {
	Latitude         float64     `json:"latitude"`
	Longitude        float64     `json:"longitude"`
	UTCOffsetSeconds int         `json:"utc_offset_seconds"`
	Timezone         string      `json:"timezone"`
	Hourly           hourlyBlock `json:"hourly"`
}

// hourlyBlock is the provider's column-oriented hourly section: a "time"
// array plus one same-length numeric array per requested metric. Metric
// names are not known ahead of decoding, so the block unmarshals itself.
type hourlyBlock struct {
	Times   []string
	Metrics map[string][]domain.Value
}

func (h *hourlyBlock) UnmarshalJSON(data []byte) error {
	var columns map[string]json.RawMessage
	if err := json.Unmarshal(data, &columns); err != nil {
		return fmt.Errorf("hourly block: %w", err)
	}

	h.Metrics = make(map[string][]domain.Value, len(columns))
	for name, raw := range columns {
		if name == "time" {
			if err := json.Unmarshal(raw, &h.Times); err != nil {
				return fmt.Errorf("hourly time column: %w", err)
			}
			continue
		}

		// Nulls in the provider arrays are missing readings, not zeros.
		var vals []*float64
		if err := json.Unmarshal(raw, &vals); err != nil {
			return fmt.Errorf("hourly column %s: %w", name, err)
		}
		col := make([]domain.Value, len(vals))
		for i, v := range vals {
			if v != nil {
				col[i] = domain.NewValue(*v)
			}
		}
		h.Metrics[name] = col
	}
	return nil
}
