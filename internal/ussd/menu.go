// Package ussd implements the menu behind the USSD short code. The gateway
// resends everything the caller has typed on every turn, so the menu position
// is derived from that text alone and nothing is kept between requests.
package ussd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/i474232898/moisture-alerts/internal/sensor"
	"github.com/i474232898/moisture-alerts/internal/store"
	"github.com/i474232898/moisture-alerts/internal/weather"
)

// State is a position in the menu.
type State int

const (
	StateRoot State = iota
	StateReading
	StateTemperature
	StateHumidity
	StateInvalid
)

// Response is one USSD reply. Terminal replies close the session.
type Response struct {
	Terminal bool
	Text     string
}

// String renders the wire format: "CON <text>" or "END <text>".
func (r Response) String() string {
	if r.Terminal {
		return "END " + r.Text
	}
	return "CON " + r.Text
}

// ReadingSource provides the latest moisture reading.
type ReadingSource interface {
	Latest() (sensor.Reading, error)
}

// WeatherSource provides current conditions.
type WeatherSource interface {
	Current(ctx context.Context) (weather.Conditions, error)
}

const rootMenu = "Soil monitor\n1. Soil moisture\n2. Temperature\n3. Humidity"

// Parse maps the accumulated session text to a menu state.
func Parse(text string) State {
	switch strings.TrimSpace(text) {
	case "":
		return StateRoot
	case "1":
		return StateReading
	case "2":
		return StateTemperature
	case "3":
		return StateHumidity
	default:
		return StateInvalid
	}
}

// Menu answers session turns from the reading store and the weather service.
type Menu struct {
	readings ReadingSource
	weather  WeatherSource
}

// NewMenu creates a Menu. ws may be nil, in which case the weather options
// always answer with their fallback text.
func NewMenu(readings ReadingSource, ws WeatherSource) *Menu {
	return &Menu{readings: readings, weather: ws}
}

// Respond produces the single reply for the given accumulated text.
func (m *Menu) Respond(ctx context.Context, text string) Response {
	switch Parse(text) {
	case StateRoot:
		return Response{Text: rootMenu}
	case StateReading:
		return m.reading()
	case StateTemperature:
		c, err := m.current(ctx)
		if err != nil {
			return Response{Terminal: true, Text: "unable to fetch temperature"}
		}
		return Response{Terminal: true, Text: fmt.Sprintf("Current temperature: %.0f°C", c.TemperatureC)}
	case StateHumidity:
		c, err := m.current(ctx)
		if err != nil {
			return Response{Terminal: true, Text: "unable to fetch humidity"}
		}
		return Response{Terminal: true, Text: fmt.Sprintf("Current humidity: %.0f%%", c.HumidityPct)}
	default:
		return InvalidChoice()
	}
}

// InvalidChoice is the reply for any text the menu does not recognise.
func InvalidChoice() Response {
	return Response{Terminal: true, Text: "Invalid choice"}
}

func (m *Menu) reading() Response {
	r, err := m.readings.Latest()
	if errors.Is(err, store.ErrNotFound) {
		return Response{Terminal: true, Text: "Soil moisture reading unavailable"}
	}
	if err != nil {
		log.Printf("ERROR: ussd: reading latest moisture: %v", err)
		return Response{Terminal: true, Text: "Soil moisture reading unavailable"}
	}
	return Response{Terminal: true, Text: "Current soil moisture: " + r.Percent()}
}

func (m *Menu) current(ctx context.Context) (weather.Conditions, error) {
	if m.weather == nil {
		return weather.Conditions{}, weather.ErrUnavailable
	}
	c, err := m.weather.Current(ctx)
	if err != nil {
		log.Printf("ERROR: ussd: weather lookup failed: %v", err)
	}
	return c, err
}
