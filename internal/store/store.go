package store

import (
	"context"
	"errors"
	"time"

	"stationplan/internal/model"
)

// Store is the persistence interface used by the API server and the webhook
// worker. It holds station networks, webhook state and run statistics; it never
// holds computed schedules.
type Store interface {
	// Networks
	CreateNetwork(ctx context.Context, tenantID string, in model.NetworkInput, stations int) (model.Network, error)
	GetNetwork(ctx context.Context, tenantID, id string) (model.Network, error)
	ListNetworks(ctx context.Context, tenantID, cursor string, limit int) ([]model.Network, string, error)
	DeleteNetwork(ctx context.Context, tenantID, id string) error

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, tenantID, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, d WebhookDelivery) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, res DeliveryResult) error
	FailWebhookDelivery(ctx context.Context, id string, res DeliveryResult) error
	ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]DeliveryInfo, string, error)
	RetryWebhookDelivery(ctx context.Context, tenantID, id string) error

	// Schedule runs
	RecordRun(ctx context.Context, rec model.RunRecord) error
	RunStats(ctx context.Context, tenantID string, since time.Time) (model.RunStats, error)

	Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
