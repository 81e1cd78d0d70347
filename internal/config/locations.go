package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/weather-archive-etl/internal/domain"
)

// locationsFile is the YAML shape of the location registry.
type locationsFile struct {
	Locations []locationEntry `yaml:"locations"`
}

type locationEntry struct {
	Name      string   `yaml:"name"`
	Latitude  *float64 `yaml:"latitude"`
	Longitude *float64 `yaml:"longitude"`
	Timezone  string   `yaml:"timezone"`
}

// LoadLocations reads the location registry. Every entry needs a name and
// coordinates; timezone defaults to UTC. IDs are slugs derived from names
// and must come out unique.
func LoadLocations(path string) ([]domain.Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locations file: %w", err)
	}

	var f locationsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse locations file %s: %w", path, err)
	}
	if len(f.Locations) == 0 {
		return nil, fmt.Errorf("locations file %s defines no locations", path)
	}

	seen := make(map[string]string, len(f.Locations))
	locs := make([]domain.Location, 0, len(f.Locations))
	for i, e := range f.Locations {
		if e.Name == "" {
			return nil, fmt.Errorf("location %d: name is required", i)
		}
		if e.Latitude == nil || e.Longitude == nil {
			return nil, fmt.Errorf("location %q: latitude and longitude are required", e.Name)
		}
		if *e.Latitude < -90 || *e.Latitude > 90 {
			return nil, fmt.Errorf("location %q: latitude %v out of range", e.Name, *e.Latitude)
		}
		if *e.Longitude < -180 || *e.Longitude > 180 {
			return nil, fmt.Errorf("location %q: longitude %v out of range", e.Name, *e.Longitude)
		}

		tz := e.Timezone
		if tz == "" {
			tz = "UTC"
		}

		id := Slug(e.Name)
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("locations %q and %q collapse to the same id %q", prev, e.Name, id)
		}
		seen[id] = e.Name

		locs = append(locs, domain.Location{
			ID:        id,
			Name:      e.Name,
			Latitude:  *e.Latitude,
			Longitude: *e.Longitude,
			Timezone:  tz,
		})
	}
	return locs, nil
}

// Slug converts a display name to a stable lowercase identifier used in
// record keys and raw file names, e.g. "New York" to "new_york".
func Slug(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
}
