package webhooks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"stationplan/internal/logger"
	"stationplan/internal/store"
)

type Publisher struct {
	Store store.Store
	Log   logger.Logger
}

func NewPublisher(s store.Store, log logger.Logger) *Publisher {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Publisher{Store: s, Log: log}
}

// Envelope is the JSON body POSTed to subscribers.
type Envelope struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	TenantID string `json:"tenantId"`
	TS       string `json:"ts"`
	Data     any    `json:"data"`
}

// Emit queues one delivery per subscription of the tenant to eventType and
// returns how many were queued.
func (p *Publisher) Emit(ctx context.Context, tenantID, eventType string, data any) int {
	subs, err := p.Store.GetSubscriptionsForEvent(ctx, tenantID, eventType)
	if err != nil {
		p.Log.Errorf("webhooks: subscriptions for %s/%s: %v", tenantID, eventType, err)
		return 0
	}
	if len(subs) == 0 {
		return 0
	}
	body, err := json.Marshal(Envelope{
		ID:       "evt_" + uuid.New().String(),
		Type:     eventType,
		TenantID: tenantID,
		TS:       time.Now().UTC().Format(time.RFC3339),
		Data:     data,
	})
	if err != nil {
		p.Log.Errorf("webhooks: encode %s: %v", eventType, err)
		return 0
	}
	queued := 0
	for _, s := range subs {
		_, err := p.Store.EnqueueWebhook(ctx, store.WebhookDelivery{
			TenantID:       tenantID,
			SubscriptionID: s.ID,
			EventType:      eventType,
			URL:            s.URL,
			Secret:         s.Secret,
			Payload:        body,
		})
		if err != nil {
			p.Log.Errorf("webhooks: enqueue %s to %s: %v", eventType, s.URL, err)
			continue
		}
		queued++
	}
	return queued
}
