package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/probuild/gateway/internal/core"
	"github.com/probuild/gateway/internal/model"
)

// EventTest is the reserved synthetic event type. It bypasses the
// subscription check so a test delivery exercises the production path
// against any endpoint.
const EventTest = "webhook.test"

var (
	// ErrInactive is returned when the endpoint is disabled.
	ErrInactive = errors.New("webhook is not active")
	// ErrUnsupportedEvent is returned when the endpoint is not
	// subscribed to the event type. No network call is made and no
	// delivery entry is logged. The message is part of the API contract.
	ErrUnsupportedEvent = errors.New("Event type not configured for this webhook")
)

var deliveriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Total number of webhook delivery attempts",
	},
	[]string{"outcome"},
)

// Store is the persistence surface the dispatcher needs.
// *core.WebhookService satisfies this interface.
type Store interface {
	Endpoint(ctx context.Context, tenantID, id string) (*model.WebhookEndpoint, error)
	RecordDelivery(ctx context.Context, d *model.WebhookDelivery) error
}

// Envelope is the wire format of every delivery.
type Envelope struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Result reports the terminal outcome of one delivery attempt. There is
// no in-process retry; an external scheduler drives retries from the
// delivery log.
type Result struct {
	Success  bool
	Status   int
	Duration time.Duration
	Delivery *model.WebhookDelivery
}

// Dispatcher performs single-attempt signed deliveries.
type Dispatcher struct {
	store  Store
	client *http.Client
	logger zerolog.Logger
	now    func() time.Time
}

// NewDispatcher creates a Dispatcher. The client's own timeout is left
// unset; each delivery is bounded by the endpoint's configured timeout.
func NewDispatcher(store Store, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:  store,
		client: &http.Client{},
		logger: logger,
		now:    time.Now,
	}
}

// Dispatch delivers one event to the endpoint. Preconditions (unknown
// endpoint, inactive endpoint, unsubscribed event) fail before any
// network activity and leave no delivery log entry. Once the attempt
// starts, exactly one delivery row is recorded whatever the outcome.
//
// The outbound call runs on a context detached from ctx: an aborted
// inbound request must not leave a delivery without a logged outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, tenantID, endpointID, eventType string, payload any) (*Result, error) {
	ep, err := d.store.Endpoint(ctx, tenantID, endpointID)
	if err != nil {
		return nil, err
	}
	if !ep.Active {
		return nil, ErrInactive
	}
	if eventType != EventTest && !ep.Subscribed(eventType) {
		return nil, ErrUnsupportedEvent
	}

	envelope := Envelope{
		Event:     eventType,
		Timestamp: d.now().UTC(),
		Data:      payload,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not serializable: %v", core.ErrValidation, err)
	}

	attemptedAt := d.now().UTC()
	delivery := &model.WebhookDelivery{
		EndpointID:  ep.ID,
		EventType:   eventType,
		AttemptedAt: attemptedAt,
	}

	status, respBody, callErr := d.deliver(ctx, ep, eventType, body)
	duration := d.now().Sub(attemptedAt)

	if status != 0 {
		s := status
		delivery.ResponseStatus = &s
		delivery.ResponseBody = respBody
	}

	success := callErr == nil && status >= 200 && status < 300
	if success {
		completed := d.now().UTC()
		delivery.Status = model.DeliverySuccess
		delivery.CompletedAt = &completed
	} else {
		delivery.Status = model.DeliveryFailed
		if callErr != nil {
			delivery.Error = callErr.Error()
		} else {
			delivery.Error = fmt.Sprintf("endpoint returned status %d", status)
		}
	}

	deliveriesTotal.WithLabelValues(delivery.Status).Inc()

	// Best-effort but always attempted: a log write failure degrades
	// observability, not the delivery outcome returned to the caller.
	if err := d.store.RecordDelivery(context.WithoutCancel(ctx), delivery); err != nil {
		d.logger.Error().Err(err).
			Str("endpoint_id", ep.ID).
			Str("event_type", eventType).
			Msg("failed to record webhook delivery")
	}

	return &Result{
		Success:  success,
		Status:   status,
		Duration: duration,
		Delivery: delivery,
	}, nil
}

// Test delivers the reserved synthetic event with a fixed payload. It
// runs the exact same path as production dispatch, not a mock.
func (d *Dispatcher) Test(ctx context.Context, tenantID, endpointID string) (*Result, error) {
	return d.Dispatch(ctx, tenantID, endpointID, EventTest, map[string]any{
		"message": "test webhook delivery",
	})
}

// deliver performs the signed HTTP call, bounded by the endpoint's
// timeout. Returns the HTTP status (0 if no response was obtained), the
// truncated response body, and any transport error.
func (d *Dispatcher) deliver(ctx context.Context, ep *model.WebhookEndpoint, eventType string, body []byte) (int, string, error) {
	timeout := time.Duration(ep.TimeoutSeconds) * time.Second
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, eventType)
	req.Header.Set(SignatureHeader, Sign(ep.Secret, body))

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, core.MaxDeliveryBodyBytes))
	if err != nil {
		return resp.StatusCode, "", err
	}

	return resp.StatusCode, string(respBody), nil
}
