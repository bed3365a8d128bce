package request

import "encoding/json"

// CreateWebhook holds the request body for registering an endpoint.
type CreateWebhook struct {
	URL            string   `json:"url" validate:"required,url"`
	Events         []string `json:"events" validate:"required,min=1"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty" validate:"omitempty,min=1,max=60"`
}

// UpdateWebhook holds the request body for editing an endpoint.
type UpdateWebhook struct {
	URL            string   `json:"url" validate:"required,url"`
	Events         []string `json:"events" validate:"required,min=1"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty" validate:"omitempty,min=1,max=60"`
	Active         bool     `json:"active"`
}

// TriggerWebhook holds the request body for a manual dispatch.
type TriggerWebhook struct {
	WebhookID string          `json:"webhook_id" validate:"required"`
	EventType string          `json:"event_type" validate:"required"`
	Payload   json.RawMessage `json:"payload"`
}

// TestWebhook holds the request body for a synthetic test dispatch.
type TestWebhook struct {
	WebhookID string `json:"webhook_id" validate:"required"`
}
