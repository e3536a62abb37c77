package store

import "time"

// Delivery states.
const (
	StatusPending   = "pending"
	StatusRetry     = "retry"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

type WebhookDelivery struct {
	ID             string
	TenantID       string
	SubscriptionID string
	EventType      string
	URL            string
	Secret         string
	Payload        []byte
	Status         string
	Attempts       int
}

// DeliveryResult is the outcome of one POST attempt.
type DeliveryResult struct {
	Success       bool
	NextAttemptAt *time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
}

// DeliveryInfo is the admin view of a delivery; it omits secret and payload.
type DeliveryInfo struct {
	ID            string     `json:"id"`
	EventType     string     `json:"eventType"`
	Status        string     `json:"status"`
	Attempts      int        `json:"attempts"`
	URL           string     `json:"url"`
	NextAttemptAt *time.Time `json:"nextAttemptAt,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
	ResponseCode  int        `json:"responseCode,omitempty"`
}
