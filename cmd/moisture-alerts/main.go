package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/moisture-alerts/internal/api/http"
	"github.com/i474232898/moisture-alerts/internal/config"
	"github.com/i474232898/moisture-alerts/internal/notify"
	"github.com/i474232898/moisture-alerts/internal/scheduler"
	"github.com/i474232898/moisture-alerts/internal/sms"
	"github.com/i474232898/moisture-alerts/internal/store"
	"github.com/i474232898/moisture-alerts/internal/subscribers"
	"github.com/i474232898/moisture-alerts/internal/ussd"
	"github.com/i474232898/moisture-alerts/internal/weather"
	"github.com/i474232898/moisture-alerts/internal/weather/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound provider and gateway calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	readings := store.NewReadingStore()

	// Providers with resilience (backoff + circuit breaker).
	var provs []weather.Provider
	if cfg.OpenWeatherAPIKey != "" {
		provs = append(provs, providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey))
	}
	if cfg.WeatherAPIKey != "" {
		provs = append(provs, providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey))
	}
	// Open-Meteo needs no key, only coordinates or a geocoder key to find them.
	if cfg.Location.Lat != nil || cfg.GeocoderAPIKey != "" {
		provs = append(provs, providers.NewOpenMeteoProvider(httpClient, cfg.GeocoderAPIKey))
	}
	if len(provs) == 0 {
		log.Println("INFO: no weather providers configured; alerts will not include weather")
	}
	weatherSvc := weather.NewService(cfg.Location, provs, cfg.EnrichTimeout)

	var resolver notify.RecipientResolver = subscribers.StaticList(cfg.StaticRecipients)
	if cfg.SubscriberDB != "" {
		dir, err := subscribers.Open(cfg.SubscriberDB)
		if err != nil {
			log.Fatalf("failed to open subscriber directory: %v", err)
		}
		defer dir.Close()
		resolver = dir
	}

	dispatcher := sms.NewAfricasTalking(httpClient, sms.Options{
		Username: cfg.ATUsername,
		APIKey:   cfg.ATAPIKey,
		SenderID: cfg.ATSenderID,
		Sandbox:  cfg.ATSandbox,
	})

	pipeline := notify.NewPipeline(notify.Config{
		Threshold:       cfg.MoistureThreshold,
		AlertPrefix:     cfg.AlertPrefix,
		Workers:         cfg.NotifyWorkers,
		QueueSize:       cfg.NotifyQueueSize,
		DispatchTimeout: cfg.DispatchTimeout,
	}, weatherSvc, resolver, dispatcher)
	pipeline.Start(context.Background())

	sched := scheduler.New(cfg.StatsInterval, pipeline)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "moisture-alerts",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "moisture-alerts",
		})
	})

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Store:    readings,
		Notifier: pipeline,
		Weather:  weatherSvc,
		Menu:     ussd.NewMenu(readings, weatherSvc),
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("ERROR: fiber server stopped: %v", err)
		}
	}()
	log.Printf("INFO: listening on :%s (threshold %g%%)", cfg.Port, cfg.MoistureThreshold)

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("ERROR: error during shutdown: %v", err)
	}

	// No new readings arrive past this point; let queued alerts go out.
	if err := pipeline.Stop(); err != nil {
		log.Printf("ERROR: pipeline did not drain: %v", err)
	}
}
