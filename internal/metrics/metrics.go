package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stationplan/internal/opt"
)

var (
	// Registry is the dedicated Prometheus registry for the service.
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// ScheduleRuns counts optimizer runs by outcome (chain, fallback, empty).
	ScheduleRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "schedule_runs_total", Help: "Schedule optimizer runs by outcome."},
		[]string{"outcome"},
	)
	ScheduleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "schedule_duration_seconds", Help: "Cost index build plus optimizer time.", Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10)},
	)
	ScheduleStations = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "schedule_stations", Help: "Distinct stations per schedule request.", Buckets: []float64{2, 5, 10, 25, 50, 100, 250, 500}},
	)
	ScheduleTasks = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "schedule_tasks", Help: "Tasks per schedule request.", Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000}},
	)

	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors on Registry. Safe to call repeatedly.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration)
		Registry.MustRegister(ScheduleRuns, ScheduleDuration, ScheduleStations, ScheduleTasks)
		Registry.MustRegister(WebhookDeliveries, WebhookLatency)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler exposes Registry in the Prometheus text format.
func Handler() http.Handler {
	RegisterDefault()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// ObserveSchedule records one optimizer run.
func ObserveSchedule(s opt.Stats) {
	ScheduleRuns.WithLabelValues(s.Outcome()).Inc()
	ScheduleDuration.Observe(s.Duration.Seconds())
	ScheduleStations.Observe(float64(s.Stations))
	ScheduleTasks.Observe(float64(s.Tasks))
}
