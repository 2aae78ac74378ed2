package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/moisture-alerts/internal/common"
	"github.com/i474232898/moisture-alerts/internal/weather"
)

type AppConfig struct {
	Port string

	// MoistureThreshold is the percentage below which an alert is sent.
	MoistureThreshold float64
	// AlertPrefix opens every alert; empty leaves the pipeline's default.
	AlertPrefix string

	// Location the field device sits in; used for weather enrichment.
	Location weather.Location

	OpenWeatherAPIKey string
	WeatherAPIKey     string
	GeocoderAPIKey    string

	HTTPTimeout     time.Duration // outbound HTTP client
	EnrichTimeout   time.Duration // whole weather lookup
	DispatchTimeout time.Duration // single SMS batch

	NotifyWorkers   int
	NotifyQueueSize int

	// Africa's Talking credentials.
	ATUsername string
	ATAPIKey   string
	ATSenderID string
	ATSandbox  bool

	// SubscriberDB is the SQLite subscriber directory; empty disables it.
	SubscriberDB string
	// StaticRecipients are always-approved numbers, used when SubscriberDB is empty.
	StaticRecipients []string

	StatsInterval time.Duration
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}
	var err error

	cfg.Port = getenvDefault("PORT", "8080")

	if cfg.MoistureThreshold, err = getenvFloat("MOISTURE_THRESHOLD", 30); err != nil {
		return nil, err
	}
	cfg.AlertPrefix = os.Getenv("ALERT_PREFIX")

	if cfg.Location, err = loadLocation(); err != nil {
		return nil, err
	}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.EnrichTimeout, err = getenvDuration("ENRICH_TIMEOUT", "5s"); err != nil {
		return nil, err
	}
	if cfg.DispatchTimeout, err = getenvDuration("DISPATCH_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.StatsInterval, err = getenvDuration("STATS_INTERVAL", "15m"); err != nil {
		return nil, err
	}

	if cfg.NotifyWorkers, err = getenvInt("NOTIFY_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.NotifyQueueSize, err = getenvInt("NOTIFY_QUEUE_SIZE", 64); err != nil {
		return nil, err
	}

	cfg.ATUsername = os.Getenv("AT_USERNAME")
	cfg.ATAPIKey = os.Getenv("AT_API_KEY")
	cfg.ATSenderID = os.Getenv("AT_SENDER_ID")
	if cfg.ATSandbox, err = getenvBool("AT_SANDBOX", false); err != nil {
		return nil, err
	}

	cfg.SubscriberDB = os.Getenv("SUBSCRIBER_DB")
	cfg.StaticRecipients = common.SplitList(os.Getenv("FARMER_NUM"))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	if c.NotifyWorkers <= 0 {
		return errors.New("NOTIFY_WORKERS must be greater than zero")
	}
	if c.NotifyQueueSize <= 0 {
		return errors.New("NOTIFY_QUEUE_SIZE must be greater than zero")
	}
	for name, d := range map[string]time.Duration{
		"HTTP_TIMEOUT":     c.HTTPTimeout,
		"ENRICH_TIMEOUT":   c.EnrichTimeout,
		"DISPATCH_TIMEOUT": c.DispatchTimeout,
		"STATS_INTERVAL":   c.StatsInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

func loadLocation() (weather.Location, error) {
	loc := weather.Location{
		City:    os.Getenv("WEATHER_LOCATION_CITY"),
		Country: os.Getenv("WEATHER_LOCATION_COUNTRY"),
	}

	latStr, lonStr := os.Getenv("WEATHER_LOCATION_LAT"), os.Getenv("WEATHER_LOCATION_LON")
	if (latStr == "") != (lonStr == "") {
		return loc, fmt.Errorf("WEATHER_LOCATION_LAT and WEATHER_LOCATION_LON must be set together")
	}
	if latStr != "" {
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			return loc, fmt.Errorf("invalid WEATHER_LOCATION_LAT: %w", err)
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			return loc, fmt.Errorf("invalid WEATHER_LOCATION_LON: %w", err)
		}
		loc.Lat, loc.Lon = &lat, &lon
	}

	return loc, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
