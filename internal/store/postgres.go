package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"stationplan/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// Migrate applies the embedded migrations that are not yet recorded in
// schema_migrations, each in its own transaction, in file name order.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		var applied bool
		if err := p.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version=$1)`, name).Scan(&applied); err != nil {
			return err
		}
		if applied {
			continue
		}
		body, err := migrationsFS.ReadFile(name)
		if err != nil {
			return err
		}
		if err := p.applyMigration(ctx, name, string(body)); err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return nil
}

func (p *Postgres) applyMigration(ctx context.Context, name, body string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, body); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
		return err
	}
	return tx.Commit()
}

// Networks

func (p *Postgres) CreateNetwork(ctx context.Context, tenantID string, in model.NetworkInput, stations int) (model.Network, error) {
	conns, err := json.Marshal(in.Connections)
	if err != nil {
		return model.Network{}, err
	}
	n := model.Network{ID: uuid.New().String(), TenantID: tenantID, Name: in.Name, Stations: stations, Connections: in.Connections}
	err = p.db.QueryRowContext(ctx, `INSERT INTO networks (id, tenant_id, name, stations, connections) VALUES ($1,$2,$3,$4,$5) RETURNING created_at`,
		n.ID, tenantID, nullIfEmpty(in.Name), stations, string(conns)).Scan(&n.CreatedAt)
	if err != nil {
		return model.Network{}, err
	}
	return n, nil
}

func (p *Postgres) GetNetwork(ctx context.Context, tenantID, id string) (model.Network, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id, COALESCE(name,''), stations, connections, created_at FROM networks WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	n, err := scanNetwork(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Network{}, ErrNotFound
	}
	if err != nil {
		return model.Network{}, err
	}
	n.TenantID = tenantID
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNetwork(r rowScanner) (model.Network, error) {
	var n model.Network
	var conns []byte
	if err := r.Scan(&n.ID, &n.Name, &n.Stations, &conns, &n.CreatedAt); err != nil {
		return model.Network{}, err
	}
	if err := json.Unmarshal(conns, &n.Connections); err != nil {
		return model.Network{}, fmt.Errorf("decode connections of %s: %w", n.ID, err)
	}
	return n, nil
}

func (p *Postgres) ListNetworks(ctx context.Context, tenantID, cursor string, limit int) ([]model.Network, string, error) {
	limit = clampLimit(limit)
	rows, err := p.db.QueryContext(ctx, `SELECT id, COALESCE(name,''), stations, connections, created_at FROM networks WHERE tenant_id=$1 AND id > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Network{}
	var last string
	for rows.Next() {
		n, err := scanNetwork(rows)
		if err != nil {
			return nil, "", err
		}
		n.TenantID = tenantID
		out = append(out, n)
		last = n.ID
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, nil
}

func (p *Postgres) DeleteNetwork(ctx context.Context, tenantID, id string) error {
	return expectOne(p.db.ExecContext(ctx, `DELETE FROM networks WHERE tenant_id=$1 AND id=$2`, tenantID, id))
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Subscriptions

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	id := uuid.New().String()
	ev, _ := json.Marshal(req.Events)
	_, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`, id, req.TenantID, req.URL, string(ev), req.Secret)
	if err != nil {
		return model.Subscription{}, err
	}
	return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	filter, _ := json.Marshal([]string{eventType})
	rows, err := p.db.QueryContext(ctx, `SELECT id, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND events @> $2::jsonb ORDER BY id`, tenantID, string(filter))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var ev []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil {
			return nil, err
		}
		s.TenantID = tenantID
		_ = json.Unmarshal(ev, &s.Events)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	limit = clampLimit(limit)
	rows, err := p.db.QueryContext(ctx, `SELECT id, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND id > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Subscription{}
	var last string
	for rows.Next() {
		var s model.Subscription
		var ev []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil {
			return nil, "", err
		}
		s.TenantID = tenantID
		_ = json.Unmarshal(ev, &s.Events)
		out = append(out, s)
		last = s.ID
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, nil
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	return expectOne(p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id))
}

// Webhook deliveries

// EnqueueWebhook inserts a pending delivery. A payload already queued for the
// same tenant, event type and URL is dropped; the existing id is returned.
func (p *Postgres) EnqueueWebhook(ctx context.Context, d WebhookDelivery) (string, error) {
	id := uuid.New().String()
	dk := computeDedupKey(d.Payload)
	var got string
	err := p.db.QueryRowContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now(),$8)
        ON CONFLICT (tenant_id, event_type, url, dedup_key) DO UPDATE SET updated_at=webhook_deliveries.updated_at
        RETURNING id`, id, d.TenantID, nullIfEmpty(d.SubscriptionID), d.EventType, d.URL, nullIfEmpty(d.Secret), string(d.Payload), dk).Scan(&got)
	if err != nil {
		return "", err
	}
	return got, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, tenant_id, COALESCE(subscription_id,''), event_type, url, COALESCE(secret,''), payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, res DeliveryResult) error {
	if res.Success {
		return expectOne(p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`,
			id, res.ResponseCode, res.LatencyMs))
	}
	next := time.Now().Add(time.Minute)
	if res.NextAttemptAt != nil {
		next = *res.NextAttemptAt
	}
	return expectOne(p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`,
		id, nullIfEmpty(res.LastError), next, res.ResponseCode, res.LatencyMs))
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, res DeliveryResult) error {
	return expectOne(p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`,
		id, nullIfEmpty(res.LastError), res.ResponseCode, res.LatencyMs))
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]DeliveryInfo, string, error) {
	limit = clampLimit(limit)
	rows, err := p.db.QueryContext(ctx, `SELECT id, event_type, status, attempts, url, next_attempt_at, COALESCE(last_error,''), COALESCE(response_code,0)
        FROM webhook_deliveries WHERE tenant_id=$1 AND ($2 = '' OR status=$2) AND id > $3 ORDER BY id LIMIT $4`, tenantID, status, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []DeliveryInfo{}
	var last string
	for rows.Next() {
		var d DeliveryInfo
		var nextAt sql.NullTime
		if err := rows.Scan(&d.ID, &d.EventType, &d.Status, &d.Attempts, &d.URL, &nextAt, &d.LastError, &d.ResponseCode); err != nil {
			return nil, "", err
		}
		if nextAt.Valid && (d.Status == StatusPending || d.Status == StatusRetry) {
			d.NextAttemptAt = &nextAt.Time
		}
		out = append(out, d)
		last = d.ID
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, nil
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
	return expectOne(p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now(), updated_at=now() WHERE tenant_id=$1 AND id=$2`, tenantID, id))
}

// Schedule runs

func (p *Postgres) RecordRun(ctx context.Context, rec model.RunRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO schedule_runs (id, tenant_id, network_id, tasks, stations, scheduled, outcome, max_score, duration_ms, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		rec.ID, rec.TenantID, nullIfEmpty(rec.NetworkID), rec.Tasks, rec.Stations, rec.Scheduled, rec.Outcome, rec.MaxScore, rec.DurationMs, rec.CreatedAt)
	return err
}

func (p *Postgres) RunStats(ctx context.Context, tenantID string, since time.Time) (model.RunStats, error) {
	st := model.RunStats{ByOutcome: map[string]int{}}
	err := p.db.QueryRowContext(ctx, `SELECT count(*), COALESCE(avg(tasks),0), COALESCE(avg(stations),0), COALESCE(avg(duration_ms),0), COALESCE(max(duration_ms),0)
        FROM schedule_runs WHERE tenant_id=$1 AND created_at >= $2`, tenantID, since).
		Scan(&st.Runs, &st.AvgTasks, &st.AvgStations, &st.AvgDurationMs, &st.MaxDurationMs)
	if err != nil {
		return model.RunStats{}, err
	}
	rows, err := p.db.QueryContext(ctx, `SELECT outcome, count(*) FROM schedule_runs WHERE tenant_id=$1 AND created_at >= $2 GROUP BY outcome`, tenantID, since)
	if err != nil {
		return model.RunStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return model.RunStats{}, err
		}
		st.ByOutcome[outcome] = n
	}
	return st, rows.Err()
}

// computeDedupKey uses the event id when the payload carries one, otherwise
// the first 8 bytes of its SHA-256.
func computeDedupKey(payload []byte) string {
	var m map[string]any
	if json.Unmarshal(payload, &m) == nil {
		if v, ok := m["id"].(string); ok && v != "" {
			return v
		}
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:8])
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
