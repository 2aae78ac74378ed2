package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/i474232898/moisture-alerts/internal/resilience"
	"github.com/i474232898/moisture-alerts/internal/weather"
	"github.com/kelvins/geocoder"
	"github.com/sony/gobreaker"
)

// GeocodeFunc resolves an address to coordinates.
type GeocodeFunc func(geocoder.Address) (geocoder.Location, error)

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
// Open-Meteo only accepts coordinates; when the location has none they are
// resolved once through the Google geocoding API and cached.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg resilience.HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	geocode GeocodeFunc

	mu       sync.Mutex
	resolved map[string][2]float64
	failed   map[string]time.Time
}

// geocodeRetryAfter is how long a failed geocode is remembered before retrying.
const geocodeRetryAfter = 5 * time.Minute

// NewOpenMeteoProvider creates the provider. geocoderAPIKey may be empty when
// every configured location carries lat/lon.
func NewOpenMeteoProvider(client *http.Client, geocoderAPIKey string) *OpenMeteoProvider {
	var geocode GeocodeFunc
	if geocoderAPIKey != "" {
		geocoder.ApiKey = geocoderAPIKey
		geocode = geocoder.Geocoding
	}
	return &OpenMeteoProvider{
		name:     "openmeteo",
		baseURL:  "https://api.open-meteo.com/v1/forecast",
		httpCfg:  defaultHTTPConfig(client),
		circuit:  resilience.NewBreaker("openmeteo"),
		geocode:  geocode,
		resolved: make(map[string][2]float64),
		failed:   make(map[string]time.Time),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

// coordinates returns the location's lat/lon, geocoding it when needed. The
// geocoder client takes no context, so the lookup runs in its own goroutine
// and the caller gives up when ctx ends; a late answer still fills the cache.
func (p *OpenMeteoProvider) coordinates(ctx context.Context, loc weather.Location) (float64, float64, error) {
	if loc.Lat != nil && loc.Lon != nil {
		return *loc.Lat, *loc.Lon, nil
	}
	key := loc.Key()

	p.mu.Lock()
	c, ok := p.resolved[key]
	failedAt, failed := p.failed[key]
	p.mu.Unlock()

	if ok {
		return c[0], c[1], nil
	}
	if p.geocode == nil {
		return 0, 0, fmt.Errorf("openmeteo requires latitude and longitude or a geocoder api key")
	}
	if failed && time.Since(failedAt) < geocodeRetryAfter {
		return 0, 0, fmt.Errorf("geocoding %s failed recently, retrying after %s", key, failedAt.Add(geocodeRetryAfter).Format(time.RFC3339))
	}

	type geocodeResult struct {
		found geocoder.Location
		err   error
	}
	done := make(chan geocodeResult, 1)

	go func() {
		found, err := p.geocode(geocoder.Address{City: loc.City, Country: loc.Country})

		p.mu.Lock()
		if err != nil {
			p.failed[key] = time.Now()
		} else {
			p.resolved[key] = [2]float64{found.Latitude, found.Longitude}
			delete(p.failed, key)
		}
		p.mu.Unlock()

		done <- geocodeResult{found: found, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return 0, 0, fmt.Errorf("geocoding %s: %w", key, res.err)
		}
		return res.found.Latitude, res.found.Longitude, nil
	case <-ctx.Done():
		return 0, 0, fmt.Errorf("geocoding %s: %w", key, ctx.Err())
	}
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, loc weather.Location) (weather.ProviderReading, error) {
	lat, lon, err := p.coordinates(ctx, loc)
	if err != nil {
		return weather.ProviderReading{}, err
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", lat))
		values.Set("longitude", fmt.Sprintf("%f", lon))
		values.Set("current", "temperature_2m,relative_humidity_2m,weather_code,wind_speed_10m,surface_pressure,precipitation")
		values.Set("wind_speed_unit", "ms")
		values.Set("timezone", "UTC")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := resilience.Do(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.ProviderReading{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Current struct {
			Time          string  `json:"time"`
			Temperature   float64 `json:"temperature_2m"`
			Humidity      float64 `json:"relative_humidity_2m"`
			WeatherCode   int     `json:"weather_code"`
			WindSpeed     float64 `json:"wind_speed_10m"`
			Pressure      float64 `json:"surface_pressure"`
			Precipitation float64 `json:"precipitation"`
		} `json:"current"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.ProviderReading{}, err
	}

	ts, err := time.Parse("2006-01-02T15:04", payload.Current.Time)
	if err != nil {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	return weather.ProviderReading{
		ProviderName: p.name,
		Timestamp:    ts,
		TemperatureC: payload.Current.Temperature,
		HumidityPct:  payload.Current.Humidity,
		WindSpeedMS:  payload.Current.WindSpeed,
		PressureHpa:  payload.Current.Pressure,
		PrecipMm:     payload.Current.Precipitation,
		Condition:    mapOpenMeteoCondition(payload.Current.WeatherCode),
	}, nil
}

func mapOpenMeteoCondition(code int) weather.Condition {
	// Mapping based on Open-Meteo WMO weather codes (simplified).
	switch {
	case code == 0:
		return weather.ConditionClear
	case code >= 1 && code <= 3:
		return weather.ConditionCloudy
	case code == 45 || code == 48:
		return weather.ConditionMist
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return weather.ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return weather.ConditionSnow
	case code >= 95:
		return weather.ConditionStorm
	default:
		return weather.ConditionUnknown
	}
}
