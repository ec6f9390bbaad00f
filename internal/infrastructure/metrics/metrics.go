package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	WebhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopify_webhooks_total",
			Help: "Inbound webhook deliveries by topic and outcome",
		},
		[]string{"topic", "outcome"},
	)

	TokenProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopify_token_probes_total",
			Help: "Access token liveness probes by result",
		},
		[]string{"result"},
	)

	AdminAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopify_admin_api_duration_seconds",
			Help:    "Admin API call duration by kind and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "status"},
	)

	StoreAPIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_api_requests_total",
			Help: "Store API calls by path and outcome",
		},
		[]string{"path", "outcome"},
	)

	TasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "background_tasks_total",
			Help: "Background task attempts by queue, task and outcome",
		},
		[]string{"queue", "task", "outcome"},
	)

	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "background_queue_depth",
			Help: "Tasks waiting in each queue",
		},
		[]string{"queue"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			WebhooksTotal,
			TokenProbesTotal,
			AdminAPIDuration,
			StoreAPIRequestsTotal,
			TasksTotal,
			QueueDepth,
		)
	})
}
