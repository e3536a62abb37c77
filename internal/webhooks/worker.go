package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"stationplan/internal/config"
	"stationplan/internal/logger"
	"stationplan/internal/metrics"
	"stationplan/internal/store"
)

// Worker polls due deliveries and POSTs them, backing off exponentially
// until MaxAttempts is reached.
type Worker struct {
	Store       store.Store
	HTTP        *http.Client
	Log         logger.Logger
	MaxAttempts int
	Interval    time.Duration
	BatchSize   int
}

func NewWorker(s store.Store, cfg config.WebhooksConfig, log logger.Logger) *Worker {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Worker{
		Store:       s,
		HTTP:        &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
		Log:         log,
		MaxAttempts: cfg.MaxAttempts,
		Interval:    time.Duration(cfg.PollIntervalMs) * time.Millisecond,
		BatchSize:   50,
	}
}

// Run processes deliveries until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processOnce(ctx)
		}
	}
}

func (w *Worker) processOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, 30*time.Second)
	defer cancel()
	items, err := w.Store.FetchDueWebhookDeliveries(ctx, w.BatchSize)
	if err != nil {
		w.Log.Errorf("webhooks: fetch due: %v", err)
		return
	}
	for _, it := range items {
		w.deliver(ctx, it)
	}
}

func (w *Worker) deliver(ctx context.Context, it store.WebhookDelivery) {
	res := store.DeliveryResult{}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
	if err != nil {
		res.LastError = err.Error()
	} else {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Event-Type", it.EventType)
		req.Header.Set("X-Delivery-Id", it.ID)
		if it.Secret != "" {
			req.Header.Set(SignatureHeader, SignHMAC(it.Secret, it.Payload))
		}
		start := time.Now()
		resp, err := w.HTTP.Do(req)
		res.LatencyMs = int(time.Since(start).Milliseconds())
		if err != nil {
			res.LastError = err.Error()
		} else {
			res.ResponseCode = resp.StatusCode
			_ = resp.Body.Close()
			res.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
			if !res.Success {
				res.LastError = "status " + strconv.Itoa(resp.StatusCode)
			}
		}
	}

	status := store.StatusDelivered
	switch {
	case res.Success:
		err = w.Store.MarkWebhookDelivery(ctx, it.ID, res)
	case it.Attempts+1 >= w.MaxAttempts:
		status = store.StatusFailed
		err = w.Store.FailWebhookDelivery(ctx, it.ID, res)
		w.Log.Warnf("webhooks: giving up on %s after %d attempts: %s", it.ID, it.Attempts+1, res.LastError)
	default:
		status = store.StatusRetry
		next := time.Now().Add(nextBackoff(it.Attempts))
		res.NextAttemptAt = &next
		err = w.Store.MarkWebhookDelivery(ctx, it.ID, res)
	}
	if err != nil {
		w.Log.Errorf("webhooks: record outcome of %s: %v", it.ID, err)
	}
	metrics.WebhookDeliveries.WithLabelValues(it.EventType, status).Inc()
	metrics.WebhookLatency.WithLabelValues(it.EventType, status).Observe(float64(res.LatencyMs))
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 12 {
		attempts = 12
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
