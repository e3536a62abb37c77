package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stationplan/internal/model"
	"stationplan/internal/store"
)

// knownEvents are the event types a subscription may ask for.
var knownEvents = map[string]bool{model.EventScheduleComputed: true}

// SubscriptionsHandler handles POST/GET /v1/subscriptions (admin).
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p, ok := s.require(w, r, Principal.IsAdmin, "admin")
		if !ok {
			return
		}
		var req model.SubscriptionRequest
		if status, err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
			writeProblem(w, status, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		req.TenantID = p.Tenant
		if err := validateSubscription(req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Validation failed", err.Error(), r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		p, ok := s.require(w, r, Principal.IsAdmin, "admin")
		if !ok {
			return
		}
		items, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, r.URL.Query().Get("cursor"), queryLimit(r))
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func validateSubscription(req model.SubscriptionRequest) error {
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be an absolute http(s) URL")
	}
	if len(req.Events) == 0 {
		return fmt.Errorf("events required")
	}
	for _, e := range req.Events {
		if !knownEvents[e] {
			return fmt.Errorf("unknown event type %q", e)
		}
	}
	return nil
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id} (admin).
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.require(w, r, Principal.IsAdmin, "admin")
	if !ok {
		return
	}
	if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, r.PathValue("id")); err != nil {
		s.writeStoreErr(w, r, "Delete subscription failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WebhookDeliveriesHandler handles GET /v1/admin/webhook-deliveries.
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.require(w, r, Principal.IsAdmin, "admin")
	if !ok {
		return
	}
	q := r.URL.Query()
	status := q.Get("status")
	switch status {
	case "", store.StatusPending, store.StatusRetry, store.StatusDelivered, store.StatusFailed:
	default:
		writeProblem(w, http.StatusBadRequest, "Validation failed", "unknown status "+status, r.URL.Path)
		return
	}
	items, next, err := s.Store.ListWebhookDeliveries(r.Context(), p.Tenant, status, q.Get("cursor"), queryLimit(r))
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List deliveries failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// WebhookDeliveryRetryHandler handles POST /v1/admin/webhook-deliveries/{id}/retry.
func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.require(w, r, Principal.IsAdmin, "admin")
	if !ok {
		return
	}
	if err := s.Store.RetryWebhookDelivery(r.Context(), p.Tenant, r.PathValue("id")); err != nil {
		s.writeStoreErr(w, r, "Retry delivery failed", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": 1})
}

// ScheduleStatsHandler handles GET /v1/admin/schedule-stats?sinceHours=.
func (s *Server) ScheduleStatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p, ok := s.require(w, r, Principal.IsAdmin, "admin")
	if !ok {
		return
	}
	sinceHours := 24
	if v := r.URL.Query().Get("sinceHours"); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &sinceHours); err != nil || sinceHours <= 0 {
			writeProblem(w, http.StatusBadRequest, "Validation failed", "sinceHours must be a positive integer", r.URL.Path)
			return
		}
	}
	since := time.Now().Add(-time.Duration(sinceHours) * time.Hour)
	stats, err := s.Store.RunStats(r.Context(), p.Tenant, since)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Schedule stats failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sinceHours": sinceHours, "stats": stats})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler checks the store and, when it supports it, the broker.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	type pinger interface {
		Ping(ctx context.Context) error
	}
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	checks := map[string]pinger{"store": s.Store}
	if b, ok := s.Broker.(pinger); ok {
		checks["broker"] = b
	}
	var failed []string
	for name, c := range checks {
		if err := c.Ping(ctx); err != nil {
			failed = append(failed, name+": "+err.Error())
		}
	}
	if len(failed) > 0 {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", strings.Join(failed, "; "), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
