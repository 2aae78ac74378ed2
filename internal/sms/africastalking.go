package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/moisture-alerts/internal/notify"
	"github.com/i474232898/moisture-alerts/internal/resilience"
)

const (
	productionURL = "https://api.africastalking.com/version1/messaging"
	sandboxURL    = "https://api.sandbox.africastalking.com/version1/messaging"
)

// ErrNotConfigured is returned when the gateway credentials are missing.
var ErrNotConfigured = errors.New("sms gateway credentials are not configured")

// Options configure the Africa's Talking client.
type Options struct {
	Username string
	APIKey   string
	SenderID string // optional short code or alphanumeric sender
	Sandbox  bool
}

// AfricasTalking sends bulk SMS through the Africa's Talking messaging API.
// Each Send is a single request; failed sends are not retried.
type AfricasTalking struct {
	opts    Options
	baseURL string
	httpCfg resilience.HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewAfricasTalking creates the dispatcher.
func NewAfricasTalking(client *http.Client, opts Options) *AfricasTalking {
	base := productionURL
	if opts.Sandbox {
		base = sandboxURL
	}
	return &AfricasTalking{
		opts:    opts,
		baseURL: base,
		httpCfg: resilience.HTTPClientConfig{Client: client},
		circuit: resilience.NewBreaker("africastalking"),
	}
}

type sendResponse struct {
	SMSMessageData struct {
		Message    string `json:"Message"`
		Recipients []struct {
			StatusCode int    `json:"statusCode"`
			Number     string `json:"number"`
			Status     string `json:"status"`
			Cost       string `json:"cost"`
			MessageID  string `json:"messageId"`
		} `json:"Recipients"`
	} `json:"SMSMessageData"`
}

// Send delivers message to every number in to with one API call.
func (a *AfricasTalking) Send(ctx context.Context, message string, to []string) ([]notify.DispatchOutcome, error) {
	if a.opts.Username == "" || a.opts.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if len(to) == 0 {
		return nil, nil
	}

	form := url.Values{}
	form.Set("username", a.opts.Username)
	form.Set("to", strings.Join(to, ","))
	form.Set("message", message)
	if a.opts.SenderID != "" {
		form.Set("from", a.opts.SenderID)
	}
	body := form.Encode()

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, a.baseURL, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("apiKey", a.opts.APIKey)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}

	resp, err := resilience.Do(ctx, a.httpCfg, a.circuit, buildRequest)
	if err != nil {
		return nil, fmt.Errorf("sending sms: %w", err)
	}
	defer resp.Body.Close()

	var payload sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding sms response: %w", err)
	}

	return outcomes(to, payload), nil
}

// outcomes maps the gateway reply onto the requested numbers. Numbers the
// gateway did not report on are marked undelivered with its summary message.
func outcomes(to []string, payload sendResponse) []notify.DispatchOutcome {
	byNumber := make(map[string]notify.DispatchOutcome, len(payload.SMSMessageData.Recipients))
	for _, r := range payload.SMSMessageData.Recipients {
		o := notify.DispatchOutcome{Recipient: r.Number}
		// 100 Processed, 101 Sent, 102 Queued
		if r.StatusCode >= 100 && r.StatusCode <= 102 {
			o.Delivered = true
			o.CostOrError = r.Cost
		} else {
			o.CostOrError = fmt.Sprintf("%s (%d)", r.Status, r.StatusCode)
		}
		byNumber[r.Number] = o
	}

	result := make([]notify.DispatchOutcome, 0, len(to))
	for _, n := range to {
		o, ok := byNumber[n]
		if !ok {
			o = notify.DispatchOutcome{Recipient: n, CostOrError: payload.SMSMessageData.Message}
		}
		result = append(result, o)
	}
	return result
}
