package model

import "time"

// WebhookEndpoint is a registered delivery target for outbound events.
// FailureCount counts consecutive failed deliveries; it resets to zero
// on the next success.
type WebhookEndpoint struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenant_id"`
	URL            string     `json:"url"`
	Secret         string     `json:"-"`
	Events         []string   `json:"events"`
	TimeoutSeconds int        `json:"timeout_seconds"`
	Active         bool       `json:"active"`
	FailureCount   int        `json:"failure_count"`
	LastSuccessAt  *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt  *time.Time `json:"last_failure_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Subscribed reports whether the endpoint is subscribed to eventType.
func (e *WebhookEndpoint) Subscribed(eventType string) bool {
	for _, ev := range e.Events {
		if ev == eventType {
			return true
		}
	}
	return false
}

// Delivery statuses.
const (
	DeliverySuccess = "success"
	DeliveryFailed  = "failed"
)

// WebhookDelivery is one append-only log row per delivery attempt.
type WebhookDelivery struct {
	ID             string     `json:"id"`
	EndpointID     string     `json:"endpoint_id"`
	EventType      string     `json:"event_type"`
	Status         string     `json:"status"`
	ResponseStatus *int       `json:"response_status,omitempty"`
	ResponseBody   string     `json:"response_body,omitempty"`
	Error          string     `json:"error,omitempty"`
	AttemptedAt    time.Time  `json:"attempted_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}
