package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"stationplan/internal/model"
)

// Memory is an in-memory Store used when no database URL is configured.
type Memory struct {
	mu       sync.Mutex
	networks map[string][]model.Network      // tenant -> networks in creation order
	subs     map[string][]model.Subscription // tenant -> subscriptions
	// webhook queue state
	deliveries         map[string]*memDelivery // id -> delivery state
	deliveriesByTenant map[string][]string     // tenant -> delivery ids
	order              []string                // delivery ids in enqueue order
	runs               []model.RunRecord
	now                func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		networks:           map[string][]model.Network{},
		subs:               map[string][]model.Subscription{},
		deliveries:         map[string]*memDelivery{},
		deliveriesByTenant: map[string][]string{},
		now:                time.Now,
	}
}

// memDelivery augments WebhookDelivery with scheduling state.
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
	DeliveredAt   *time.Time
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

// Networks

func (m *Memory) CreateNetwork(ctx context.Context, tenantID string, in model.NetworkInput, stations int) (model.Network, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := model.Network{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		Name:        in.Name,
		Stations:    stations,
		Connections: append([]model.ConnectionIn(nil), in.Connections...),
		CreatedAt:   m.now().UTC(),
	}
	m.networks[tenantID] = append(m.networks[tenantID], n)
	return n, nil
}

func (m *Memory) GetNetwork(ctx context.Context, tenantID, id string) (model.Network, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.networks[tenantID] {
		if n.ID == id {
			return n, nil
		}
	}
	return model.Network{}, ErrNotFound
}

func (m *Memory) ListNetworks(ctx context.Context, tenantID, cursor string, limit int) ([]model.Network, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(m.networks[tenantID], cursor, clampLimit(limit), func(n model.Network) string { return n.ID })
}

func (m *Memory) DeleteNetwork(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.networks[tenantID]
	for i := range list {
		if list[i].ID == id {
			m.networks[tenantID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// page returns up to limit items after the item whose key is cursor. The
// next cursor is empty once the list is exhausted.
func page[T any](list []T, cursor string, limit int, key func(T) string) ([]T, string, error) {
	start := 0
	if cursor != "" {
		for i := range list {
			if key(list[i]) == cursor {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(list) {
		end = len(list)
	}
	items := append(make([]T, 0, end-start), list[start:end]...)
	next := ""
	if end < len(list) {
		next = key(list[end-1])
	}
	return items, next, nil
}

// Subscriptions

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs[req.TenantID] = append(m.subs[req.TenantID], s)
	return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs[tenantID] {
		for _, e := range s.Events {
			if e == eventType {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(m.subs[tenantID], cursor, clampLimit(limit), func(s model.Subscription) string { return s.ID })
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	arr := m.subs[tenantID]
	out := make([]model.Subscription, 0, len(arr))
	for _, s := range arr {
		if s.ID != id {
			out = append(out, s)
		}
	}
	if len(out) == len(arr) {
		return ErrNotFound
	}
	m.subs[tenantID] = out
	return nil
}

// Webhook deliveries

func (m *Memory) EnqueueWebhook(ctx context.Context, d WebhookDelivery) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = uuid.New().String()
	d.Status = StatusPending
	d.Attempts = 0
	m.deliveries[d.ID] = &memDelivery{WebhookDelivery: d, NextAttemptAt: m.now()}
	m.deliveriesByTenant[d.TenantID] = append(m.deliveriesByTenant[d.TenantID], d.ID)
	m.order = append(m.order, d.ID)
	return d.ID, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var due []*memDelivery
	for _, id := range m.order {
		d := m.deliveries[id]
		if (d.Status == StatusPending || d.Status == StatusRetry) && !d.NextAttemptAt.After(now) {
			due = append(due, d)
		}
	}
	sort.SliceStable(due, func(a, b int) bool { return due[a].NextAttemptAt.Before(due[b].NextAttemptAt) })
	out := []WebhookDelivery{}
	for _, d := range due {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, d.WebhookDelivery)
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, res DeliveryResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.ResponseCode = res.ResponseCode
	d.LatencyMs = res.LatencyMs
	if res.Success {
		d.Status = StatusDelivered
		now := m.now()
		d.DeliveredAt = &now
		return nil
	}
	d.Status = StatusRetry
	d.LastError = res.LastError
	if res.NextAttemptAt != nil {
		d.NextAttemptAt = *res.NextAttemptAt
	} else {
		d.NextAttemptAt = m.now().Add(time.Minute)
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, res DeliveryResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.Status = StatusFailed
	d.LastError = res.LastError
	d.ResponseCode = res.ResponseCode
	d.LatencyMs = res.LatencyMs
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]DeliveryInfo, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := []DeliveryInfo{}
	for _, id := range m.deliveriesByTenant[tenantID] {
		d := m.deliveries[id]
		if status != "" && d.Status != status {
			continue
		}
		info := DeliveryInfo{ID: d.ID, EventType: d.EventType, Status: d.Status, Attempts: d.Attempts, URL: d.URL, LastError: d.LastError, ResponseCode: d.ResponseCode}
		if d.Status == StatusPending || d.Status == StatusRetry {
			at := d.NextAttemptAt
			info.NextAttemptAt = &at
		}
		all = append(all, info)
	}
	return page(all, cursor, clampLimit(limit), func(d DeliveryInfo) string { return d.ID })
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil || d.TenantID != tenantID {
		return ErrNotFound
	}
	d.Status = StatusPending
	d.NextAttemptAt = m.now()
	return nil
}

// Schedule runs

func (m *Memory) RecordRun(ctx context.Context, rec model.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now()
	}
	m.runs = append(m.runs, rec)
	return nil
}

func (m *Memory) RunStats(ctx context.Context, tenantID string, since time.Time) (model.RunStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := model.RunStats{ByOutcome: map[string]int{}}
	var tasks, stations, dur float64
	for _, r := range m.runs {
		if r.TenantID != tenantID || r.CreatedAt.Before(since) {
			continue
		}
		st.Runs++
		st.ByOutcome[r.Outcome]++
		tasks += float64(r.Tasks)
		stations += float64(r.Stations)
		dur += r.DurationMs
		if r.DurationMs > st.MaxDurationMs {
			st.MaxDurationMs = r.DurationMs
		}
	}
	if st.Runs > 0 {
		n := float64(st.Runs)
		st.AvgTasks = tasks / n
		st.AvgStations = stations / n
		st.AvgDurationMs = dur / n
	}
	return st, nil
}
