package providers

import (
	"net/http"
	"time"

	"github.com/i474232898/moisture-alerts/internal/resilience"
)

// Enrichment runs under a short deadline, so providers get a small retry budget.
func defaultHTTPConfig(client *http.Client) resilience.HTTPClientConfig {
	return resilience.HTTPClientConfig{
		Client: client,
		Backoff: resilience.BackoffConfig{
			MaxRetries:      2,
			InitialInterval: 250 * time.Millisecond,
			MaxInterval:     2 * time.Second,
		},
	}
}
