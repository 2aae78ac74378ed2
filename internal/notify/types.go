package notify

import (
	"context"

	"github.com/google/uuid"

	"github.com/i474232898/moisture-alerts/internal/sensor"
	"github.com/i474232898/moisture-alerts/internal/weather"
)

// Enricher supplies current weather conditions for alert messages.
type Enricher interface {
	Current(ctx context.Context) (weather.Conditions, error)
}

// RecipientResolver lists the phone numbers currently approved for alerts.
// An empty result is valid and means nobody is notified.
type RecipientResolver interface {
	ApprovedRecipients(ctx context.Context) ([]string, error)
}

// Dispatcher sends one message to a batch of recipients in a single call.
// A returned error is a transport failure; per-recipient failures are
// reported through the outcomes.
type Dispatcher interface {
	Send(ctx context.Context, message string, to []string) ([]DispatchOutcome, error)
}

// DispatchOutcome is the gateway's verdict for a single recipient.
type DispatchOutcome struct {
	Recipient   string `json:"recipient"`
	Delivered   bool   `json:"delivered"`
	CostOrError string `json:"costOrError"`
}

// NotificationJob is the unit of work for one qualifying reading. Reading is
// copied at creation so later ingests never change what the job reports.
type NotificationJob struct {
	ID           uuid.UUID
	Reading      sensor.Reading
	Recipients   []string
	EnrichedText string
}
