package weather

import (
	"fmt"
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Location is the place the field device sits in.
// City/Country must be provided; Lat/Lon are optional.
type Location struct {
	City    string   `json:"city"`
	Country string   `json:"country"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
}

// Key returns a canonical string key for this location, used in logs.
func (l Location) Key() string {
	return l.City + ":" + l.Country
}

// Conditions is the normalized, aggregated view of the current weather.
type Conditions struct {
	Location     Location  `json:"location"`
	Timestamp    time.Time `json:"timestamp"` // always UTC
	Condition    Condition `json:"condition"`
	TemperatureC float64   `json:"temperatureC"`
	HumidityPct  float64   `json:"humidityPercent"`
	WindSpeed    float64   `json:"windSpeed"`
	Pressure     float64   `json:"pressureHpa"`
	PrecipMM     float64   `json:"precipMm"`

	// Providers contributing to this view.
	Providers []ProviderContribution `json:"providers,omitempty"`
}

// Summary renders the conditions as used in alert messages,
// e.g. "clear, 29°C, humidity 40%".
func (c Conditions) Summary() string {
	return fmt.Sprintf("%s, %.0f°C, humidity %.0f%%", c.Condition, c.TemperatureC, c.HumidityPct)
}

// ProviderContribution describes data coming from a single provider used in aggregation.
type ProviderContribution struct {
	ProviderName string    `json:"provider"`
	Timestamp    time.Time `json:"timestamp"`
}
