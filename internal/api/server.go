package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"stationplan/internal/auth"
	"stationplan/internal/config"
	"stationplan/internal/logger"
	"stationplan/internal/metrics"
	"stationplan/internal/store"
	"stationplan/internal/webhooks"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 8 << 20

type Server struct {
	Store  store.Store
	Pub    *webhooks.Publisher
	Auth   *auth.Verifier
	Broker EventBroker
	Limits config.LimitsConfig
	Log    logger.Logger

	cfg     *config.Config
	limiter *tenantLimiter
	closers []func() error
}

// NewServer wires the server from cfg. Without a database URL the in-memory
// store is used; without a Redis URL events stay in process.
func NewServer(ctx context.Context, cfg *config.Config, log logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.NopLogger{}
	}
	s := &Server{
		Auth:    auth.NewVerifier(cfg.Auth),
		Limits:  cfg.Limits,
		Log:     log,
		cfg:     cfg,
		limiter: newTenantLimiter(cfg.Server.RateRPS, cfg.Server.RateBurst),
	}

	if strings.TrimSpace(cfg.Store.DatabaseURL) == "" {
		s.Store = store.NewMemory()
		log.Infof("store: in-memory")
	} else {
		pg, err := store.NewPostgres(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.Store.ShouldMigrate() {
			if err := pg.Migrate(ctx); err != nil {
				_ = pg.Close()
				return nil, err
			}
		}
		s.Store = pg
		s.closers = append(s.closers, pg.Close)
		log.Infof("store: postgres")
	}

	if cfg.Redis.URL != "" {
		rb, err := NewRedisBroker(cfg.Redis.URL, log)
		if err != nil {
			log.Warnf("broker: redis unavailable, using in-memory: %v", err)
			s.Broker = NewBroker()
		} else {
			s.Broker = rb
		}
	} else {
		s.Broker = NewBroker()
	}
	s.closers = append(s.closers, s.Broker.Close)

	s.Pub = webhooks.NewPublisher(s.Store, log)
	return s, nil
}

// NewWebhookWorker creates the background delivery worker for this server's store.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.cfg.Webhooks, s.Log)
}

// Routes returns the full handler tree including middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/schedule", s.ScheduleHandler)

	mux.HandleFunc("/v1/networks", s.NetworksHandler)
	mux.HandleFunc("/v1/networks/{id}", s.NetworkByIDHandler)
	mux.HandleFunc("/v1/networks/{id}/cost", s.NetworkCostHandler)

	mux.HandleFunc("/v1/subscriptions", s.SubscriptionsHandler)
	mux.HandleFunc("/v1/subscriptions/{id}", s.SubscriptionByIDHandler)

	mux.HandleFunc("/v1/events/stream", s.EventsStreamHandler)
	mux.HandleFunc("/v1/events/ws", s.EventsWSHandler)

	mux.HandleFunc("/v1/admin/webhook-deliveries", s.WebhookDeliveriesHandler)
	mux.HandleFunc("/v1/admin/webhook-deliveries/{id}/retry", s.WebhookDeliveryRetryHandler)
	mux.HandleFunc("/v1/admin/schedule-stats", s.ScheduleStatsHandler)

	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/openapi.yaml", OpenAPIYAMLHandler)
	mux.HandleFunc("/openapi.json", OpenAPIJSONHandler)
	mux.HandleFunc("/docs", DocsHandler)
	mux.HandleFunc("/debug/info", s.DebugInfoHandler)

	return s.observe(s.rateLimit(mux))
}

// Close releases the store and broker connections.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
