// Package notify delivers ledger events to external consumers.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"payee-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// defaultRetryIntervals is the delivery backoff schedule.
var defaultRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// EventEnvelope is the JSON structure posted to the webhook endpoint.
type EventEnvelope struct {
	Event     string      `json:"event"`
	OwnerID   string      `json:"owner_id"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookNotifier posts signed event envelopes to a configured endpoint.
// Delivery runs in a background goroutine with retries; Notify itself never
// blocks on the network.
type WebhookNotifier struct {
	endpoint       string
	secret         string
	sigSvc         ports.SignatureService
	httpClient     HTTPClient
	retryIntervals []time.Duration
	log            zerolog.Logger
}

// NewWebhookNotifier creates a webhook notifier. A nil retry schedule uses
// the default backoff.
func NewWebhookNotifier(
	endpoint string,
	secret string,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	retryIntervals []time.Duration,
	log zerolog.Logger,
) *WebhookNotifier {
	if retryIntervals == nil {
		retryIntervals = defaultRetryIntervals
	}
	return &WebhookNotifier{
		endpoint:       endpoint,
		secret:         secret,
		sigSvc:         sigSvc,
		httpClient:     httpClient,
		retryIntervals: retryIntervals,
		log:            log.With().Str("component", "webhook_notifier").Logger(),
	}
}

// Notify enqueues delivery of an event. It returns an error only when the
// payload cannot be serialized; delivery failures are retried in the
// background and eventually dropped with a log line.
func (n *WebhookNotifier) Notify(ctx context.Context, ownerID uuid.UUID, event string, payload interface{}) error {
	if n.endpoint == "" {
		n.log.Debug().Str("event", event).Msg("webhook: no endpoint configured, skipping")
		return nil
	}

	envelope := EventEnvelope{
		Event:     event,
		OwnerID:   ownerID.String(),
		Data:      payload,
		Timestamp: time.Now().Unix(),
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		n.log.Error().Err(err).Str("event", event).Msg("webhook: failed to marshal envelope")
		return err
	}

	signature := n.sigSvc.Sign(n.secret, string(body))

	go n.deliverWithRetries(body, signature, event)
	return nil
}

// deliverWithRetries attempts delivery until a 2xx response or the schedule
// is exhausted.
func (n *WebhookNotifier) deliverWithRetries(body []byte, signature string, event string) {
	for attempt := 0; attempt <= len(n.retryIntervals); attempt++ {
		if attempt > 0 {
			time.Sleep(n.retryIntervals[attempt-1])
		}

		req, err := http.NewRequest(http.MethodPost, n.endpoint, bytes.NewReader(body))
		if err != nil {
			n.log.Error().Err(err).Str("event", event).Int("attempt", attempt+1).Msg("webhook: failed to create request")
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Ledger-Signature", signature)

		resp, err := n.httpClient.Do(req)
		if err != nil {
			n.log.Warn().Err(err).Str("event", event).Int("attempt", attempt+1).Msg("webhook: delivery failed")
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			n.log.Info().Str("event", event).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("webhook: delivered")
			return
		}

		n.log.Warn().Str("event", event).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("webhook: non-2xx response, retrying")
	}

	n.log.Error().Str("event", event).Msg("webhook: all retry attempts exhausted")
}
