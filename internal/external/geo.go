// ABOUTME: IP-based geolocation via ipapi-style JSON endpoints
// ABOUTME: Caches the result for a day and falls back to a default country

package external

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// geoTTL is how long a successful lookup is reused.
const geoTTL = 24 * time.Hour

// Location is the user's approximate location.
type Location struct {
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	City        string  `json:"city,omitempty"`
	Region      string  `json:"region,omitempty"`
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`
	Source      Source  `json:"source"`
}

// HasCoordinates reports whether the lookup returned coordinates.
func (l Location) HasCoordinates() bool {
	return l.Latitude != 0 || l.Longitude != 0
}

// DefaultLocation is returned when the lookup fails.
func DefaultLocation() Location {
	return Location{Country: "United States", CountryCode: "US", Source: SourceDefault}
}

// GeoConfig configures a GeoClient.
type GeoConfig struct {
	URL     string
	Timeout time.Duration
	Client  Doer
	Logger  *slog.Logger
	Now     func() time.Time
}

// GeoClient looks up the user's country from their IP address.
type GeoClient struct {
	url    string
	api    fetcher
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	cached   *Location
	cachedAt time.Time
}

// NewGeoClient creates a GeoClient.
func NewGeoClient(cfg GeoConfig) *GeoClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &GeoClient{
		url:    cfg.URL,
		api:    newFetcher(cfg.Client, cfg.Timeout),
		logger: logger.With("component", "geo"),
		now:    now,
	}
}

type ipapiResponse struct {
	CountryName string  `json:"country_name"`
	CountryCode string  `json:"country_code"`
	City        string  `json:"city"`
	Region      string  `json:"region"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// Locate returns the user's location. It never fails: lookup errors return
// DefaultLocation.
func (g *GeoClient) Locate(ctx context.Context) Location {
	g.mu.Lock()
	if g.cached != nil && g.now().Sub(g.cachedAt) < geoTTL {
		loc := *g.cached
		g.mu.Unlock()
		loc.Source = SourceCache
		return loc
	}
	g.mu.Unlock()

	var resp ipapiResponse
	if err := g.api.getJSON(ctx, g.url, &resp); err != nil || resp.CountryCode == "" {
		g.logger.Warn("geolocation failed, using default", "error", err)
		return DefaultLocation()
	}

	loc := Location{
		Country:     resp.CountryName,
		CountryCode: resp.CountryCode,
		City:        resp.City,
		Region:      resp.Region,
		Latitude:    resp.Latitude,
		Longitude:   resp.Longitude,
		Source:      SourceAPI,
	}

	g.mu.Lock()
	g.cached = &loc
	g.cachedAt = g.now()
	g.mu.Unlock()

	return loc
}
