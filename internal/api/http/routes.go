package httpapi

import (
	"context"
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/moisture-alerts/internal/notify"
	"github.com/i474232898/moisture-alerts/internal/sensor"
	"github.com/i474232898/moisture-alerts/internal/store"
	"github.com/i474232898/moisture-alerts/internal/ussd"
	"github.com/i474232898/moisture-alerts/internal/weather"
)

var validate = validator.New()

// ReadingStore holds the latest reading.
type ReadingStore interface {
	Set(sensor.Reading)
	Latest() (sensor.Reading, error)
}

// Notifier accepts readings for alerting without blocking.
type Notifier interface {
	Submit(sensor.Reading) bool
	Stats() notify.Stats
}

// WeatherService reports current conditions for the farm location.
type WeatherService interface {
	Current(ctx context.Context) (weather.Conditions, error)
}

// Deps are the components the routes talk to.
type Deps struct {
	Store    ReadingStore
	Notifier Notifier
	Weather  WeatherService
	Menu     *ussd.Menu
}

// ErrorHandler renders errors as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal server error"
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		msg = e.Message
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": msg,
	})
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	ingest := ingestHandler(deps)
	status := statusHandler(deps)

	// Paths the field device and the USSD gateway are configured with.
	app.Post("/reading", ingest)
	app.Get("/status", status)
	app.Post("/ussd", sessionHandler(deps))

	v1 := app.Group("/api/v1")
	v1.Post("/readings", ingest)
	v1.Get("/readings/latest", status)

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		if deps.Weather == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "weather enrichment is not configured")
		}
		conditions, err := deps.Weather.Current(c.UserContext())
		if err != nil {
			log.Printf("ERROR: weather lookup failed: %v", err)
			return fiber.NewError(fiber.StatusServiceUnavailable, "weather data unavailable")
		}
		return c.JSON(conditions)
	})

	v1.Get("/notifications/stats", func(c *fiber.Ctx) error {
		return c.JSON(deps.Notifier.Stats())
	})
}

// readingRequest is the sensor payload.
type readingRequest struct {
	Moisture *float64 `json:"moisture" form:"moisture" validate:"required,gte=0,lte=100"`
}

// ingestHandler stores the reading and hands it to the notifier. The reply
// does not wait for, or reflect, any notification.
func ingestHandler(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req readingRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid reading payload")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		reading := sensor.NewReading(*req.Moisture)
		deps.Store.Set(reading)
		deps.Notifier.Submit(reading)

		return c.JSON(fiber.Map{
			"ok":          true,
			"lastReading": reading,
		})
	}
}

func statusHandler(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		reading, err := deps.Store.Latest()
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no reading received yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read latest reading")
		}
		return c.JSON(reading)
	}
}

// sessionRequest is the USSD gateway callback. Only Text drives the menu;
// the other fields are passed through to the logs.
type sessionRequest struct {
	SessionID   string `json:"sessionId" form:"sessionId"`
	ServiceCode string `json:"serviceCode" form:"serviceCode"`
	PhoneNumber string `json:"phoneNumber" form:"phoneNumber"`
	Text        string `json:"text" form:"text"`
}

// sessionHandler always answers with a single CON/END line; a body that
// cannot be read is answered as an invalid choice.
func sessionHandler(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var (
			req  sessionRequest
			resp ussd.Response
		)
		if err := c.BodyParser(&req); err != nil {
			log.Printf("ERROR: ussd: unreadable session payload: %v", err)
			resp = ussd.InvalidChoice()
		} else {
			resp = deps.Menu.Respond(c.UserContext(), req.Text)
		}
		log.Printf("DEBUG: ussd session %s (%s) text=%q terminal=%t", req.SessionID, req.ServiceCode, req.Text, resp.Terminal)

		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.Status(fiber.StatusOK).SendString(resp.String())
	}
}
