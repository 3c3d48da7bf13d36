package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway collectors on a private registry so that tests
// can build as many instances as they like.
type Metrics struct {
	Registry *prometheus.Registry

	WebhookEvents            *prometheus.CounterVec
	DirectoryLookups         *prometheus.CounterVec
	DialogueRequestDuration  prometheus.Histogram
	DialogueFailures         *prometheus.CounterVec
	GreetingFragmentsDropped prometheus.Counter
	ActiveSessions           prometheus.Gauge
	MonitorSubscribers       prometheus.Gauge
}

// NewMetrics registers all collectors on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		WebhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_webhook_events_total",
			Help: "Telephony webhook events handled, by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		DirectoryLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_directory_lookups_total",
			Help: "Customer directory lookups, by outcome (found, not_found, error)",
		}, []string{"outcome"}),
		DialogueRequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_dialogue_request_duration_seconds",
			Help:    "Time taken by the dialogue engine to answer a turn",
			Buckets: prometheus.DefBuckets,
		}),
		DialogueFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_dialogue_failures_total",
			Help: "Dialogue gateway failures, by reason",
		}, []string{"reason"}),
		GreetingFragmentsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_greeting_fragments_dropped_total",
			Help: "Reply fragments dropped because the call was already greeted",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voice_active_sessions",
			Help: "Call sessions currently held by the session store",
		}),
		MonitorSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voice_monitor_subscribers",
			Help: "Connected operator monitor WebSocket clients",
		}),
	}
}

// Handler exposes the registry for scraping
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
