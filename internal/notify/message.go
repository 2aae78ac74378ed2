package notify

import (
	"github.com/i474232898/moisture-alerts/internal/sensor"
	"github.com/i474232898/moisture-alerts/internal/weather"
)

// DefaultAlertPrefix opens every alert message.
const DefaultAlertPrefix = "Alert! Soil moisture is low:"

// WeatherClause renders the enrichment suffix appended after the reading.
func WeatherClause(c weather.Conditions) string {
	return " Current weather: " + c.Summary() + "."
}

// ComposeMessage builds "<prefix> <value>%.<weather clause>".
func ComposeMessage(prefix string, r sensor.Reading, enriched string) string {
	return prefix + " " + r.Percent() + "." + enriched
}
