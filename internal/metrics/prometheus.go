package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors for one process.  Each instance owns its
// registry, so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	DBConnectFailures  prometheus.Counter
	RecordsCreated     *prometheus.CounterVec
	EventPublishErrors prometheus.Counter
}

// New registers all collectors, plus the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency by method and route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		DBConnectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "db_connect_failures_total",
			Help: "Total number of failed database connection attempts",
		}),
		RecordsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "records_created_total",
				Help: "Total number of records written, by region",
			},
			[]string{"region"},
		),
		EventPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "event_publish_errors_total",
			Help: "Total number of record.created events that could not be published",
		}),
	}
	m.Registry.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.DBConnectFailures,
		m.RecordsCreated,
		m.EventPublishErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
