// README: Prometheus metrics registry and recorders.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the API.
type Metrics struct {
	// Registry owns these metrics. A private registry avoids duplicate
	// collector panics when NewMetrics runs more than once (e.g. in tests).
	Registry *prometheus.Registry

	httpDuration          *prometheus.HistogramVec
	recommendationsTotal  prometheus.Counter
	tripsStartedTotal     prometheus.Counter
	tripsArrivedTotal     prometheus.Counter
	rewardsCreditedTotal  *prometheus.CounterVec
	creditReplaysTotal    prometheus.Counter
	ledgerViolationsTotal prometheus.Counter
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "offpeak_http_request_duration_seconds",
				Help:    "Duration of HTTP requests by route and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		recommendationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "offpeak_recommendations_total",
			Help: "Total departure-window recommendations created.",
		}),
		tripsStartedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "offpeak_trips_started_total",
			Help: "Total trips started.",
		}),
		tripsArrivedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "offpeak_trips_arrived_total",
			Help: "Total trips arrived.",
		}),
		rewardsCreditedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "offpeak_rewards_credited_total",
				Help: "Total reward credits applied, by reward kind.",
			},
			[]string{"kind"},
		),
		creditReplaysTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "offpeak_credit_replays_total",
			Help: "Total idempotent credit replays (no balance change).",
		}),
		ledgerViolationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "offpeak_ledger_violations_total",
			Help: "Total wallet balance/sum mismatches detected.",
		}),
	}
}

// Handler exposes the private registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

func (m *Metrics) IncrRecommendation() {
	m.recommendationsTotal.Inc()
}

func (m *Metrics) IncrTripStarted() {
	m.tripsStartedTotal.Inc()
}

func (m *Metrics) IncrTripArrived() {
	m.tripsArrivedTotal.Inc()
}

// IncrRewardCredited records a credit; replays count separately and do not
// count as new credits.
func (m *Metrics) IncrRewardCredited(kind string, replayed bool) {
	if replayed {
		m.creditReplaysTotal.Inc()
		return
	}
	m.rewardsCreditedTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrLedgerViolation() {
	m.ledgerViolationsTotal.Inc()
}
