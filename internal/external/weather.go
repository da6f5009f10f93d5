// ABOUTME: Current weather from Open-Meteo for entry snapshots
// ABOUTME: Remembers the last good reading and serves it when the API is unreachable

package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/2389/mindmatters/internal/store"
)

// WeatherCacheKey is the settings key holding the last good reading.
const WeatherCacheKey = "cachedWeather"

// weatherFreshFor is how long a cached reading counts as current.
const weatherFreshFor = 3 * time.Hour

// Default coordinates when none are configured.
const (
	DefaultLatitude  = 40.7128
	DefaultLongitude = -74.0060
)

// WeatherConfig configures a WeatherClient.
type WeatherConfig struct {
	URL       string
	Latitude  float64
	Longitude float64
	Timeout   time.Duration
	Client    Doer
	// Store holds the last good reading. Optional.
	Store  store.Store
	Logger *slog.Logger
	Now    func() time.Time
}

// WeatherClient fetches current conditions.
type WeatherClient struct {
	url      string
	lat, lon float64
	api      fetcher
	store    store.Store
	logger   *slog.Logger
	now      func() time.Time
}

// NewWeatherClient creates a WeatherClient.
func NewWeatherClient(cfg WeatherConfig) *WeatherClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	lat, lon := cfg.Latitude, cfg.Longitude
	if lat == 0 && lon == 0 {
		lat, lon = DefaultLatitude, DefaultLongitude
	}
	return &WeatherClient{
		url:    cfg.URL,
		lat:    lat,
		lon:    lon,
		api:    newFetcher(cfg.Client, cfg.Timeout),
		store:  cfg.Store,
		logger: logger.With("component", "weather"),
		now:    now,
	}
}

// openMeteoResponse is the subset of the forecast response we read.
type openMeteoResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		Humidity    float64 `json:"relative_humidity_2m"`
		IsDay       int     `json:"is_day"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
}

type cachedWeather struct {
	Snapshot  store.WeatherSnapshot `json:"snapshot"`
	FetchedAt time.Time             `json:"fetchedAt"`
}

// WithLocation returns a copy of the client using other coordinates.
func (w *WeatherClient) WithLocation(lat, lon float64) *WeatherClient {
	cp := *w
	cp.lat, cp.lon = lat, lon
	return &cp
}

// Current returns the current weather. When the API fails it falls back to
// the last good reading: "cache" if under three hours old, "old-cache"
// otherwise. ErrUnavailable means there is nothing to fall back to.
func (w *WeatherClient) Current(ctx context.Context) (*store.WeatherSnapshot, Source, error) {
	snap, err := w.fetch(ctx)
	if err == nil {
		w.remember(ctx, snap)
		return snap, SourceAPI, nil
	}
	w.logger.Warn("weather fetch failed", "error", err)

	cached, ok := w.lastKnown(ctx)
	if !ok {
		return nil, "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if w.now().Sub(cached.FetchedAt) < weatherFreshFor {
		return &cached.Snapshot, SourceCache, nil
	}
	return &cached.Snapshot, SourceOldCache, nil
}

func (w *WeatherClient) fetch(ctx context.Context) (*store.WeatherSnapshot, error) {
	u, err := url.Parse(w.url)
	if err != nil {
		return nil, fmt.Errorf("parsing weather url: %w", err)
	}
	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(w.lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(w.lon, 'f', 4, 64))
	q.Set("current", "temperature_2m,relative_humidity_2m,is_day,weather_code")
	q.Set("timezone", "auto")
	u.RawQuery = q.Encode()

	var resp openMeteoResponse
	if err := w.api.getJSON(ctx, u.String(), &resp); err != nil {
		return nil, err
	}
	return &store.WeatherSnapshot{
		Temperature: resp.Current.Temperature,
		WeatherCode: resp.Current.WeatherCode,
		Humidity:    resp.Current.Humidity,
		IsDay:       resp.Current.IsDay == 1,
	}, nil
}

func (w *WeatherClient) remember(ctx context.Context, snap *store.WeatherSnapshot) {
	if w.store == nil {
		return
	}
	if err := w.store.PutSetting(ctx, WeatherCacheKey, cachedWeather{Snapshot: *snap, FetchedAt: w.now()}); err != nil {
		w.logger.Debug("failed to cache weather", "error", err)
	}
}

func (w *WeatherClient) lastKnown(ctx context.Context) (cachedWeather, bool) {
	if w.store == nil {
		return cachedWeather{}, false
	}
	var c cachedWeather
	if err := w.store.GetSetting(ctx, WeatherCacheKey, &c); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			w.logger.Debug("failed to read cached weather", "error", err)
		}
		return cachedWeather{}, false
	}
	return c, true
}

var weatherDescriptions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snow fall",
	73: "Moderate snow fall",
	75: "Heavy snow fall",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

// DescribeWeather returns the WMO description for code.
func DescribeWeather(code int) string {
	if d, ok := weatherDescriptions[code]; ok {
		return d
	}
	return "Unknown"
}

// WeatherGroup buckets a WMO code into sunny, cloudy, rainy or snowy.
// Other codes (fog, thunderstorms) return "".
func WeatherGroup(code int) string {
	switch {
	case code == 0 || code == 1:
		return "sunny"
	case code == 2 || code == 3:
		return "cloudy"
	case code >= 51 && code <= 67, code >= 80 && code <= 82:
		return "rainy"
	case code >= 71 && code <= 77, code >= 85 && code <= 86:
		return "snowy"
	default:
		return ""
	}
}
