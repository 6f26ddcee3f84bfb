// Package metrics exposes Prometheus collectors for the HTTP surface and the
// points economy (reports, awards, purchases, event joins).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricHTTPRequestsTotal     = "cleanup_http_requests_total"
	MetricHTTPRequestDuration   = "cleanup_http_request_duration_seconds"
	MetricReportsSubmittedTotal = "cleanup_reports_submitted_total"
	MetricReportsReviewedTotal  = "cleanup_reports_reviewed_total"
	MetricPointsAwardedTotal    = "cleanup_points_awarded_total"
	MetricPointsSpentTotal      = "cleanup_points_spent_total"
	MetricPurchasesTotal        = "cleanup_store_purchases_total"
	MetricEventJoinsTotal       = "cleanup_event_joins_total"
	MetricChallengeClaimsTotal  = "cleanup_challenge_claims_total"
	MetricLiveClients           = "cleanup_live_clients"
)

// Metrics is safe for concurrent use. A nil *Metrics records nothing, so
// services can be built without a registry in tests.
type Metrics struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	reportsSubmitted *prometheus.CounterVec
	reportsReviewed  *prometheus.CounterVec
	pointsAwarded    *prometheus.CounterVec
	pointsSpent      *prometheus.CounterVec
	purchases        *prometheus.CounterVec
	eventJoins       *prometheus.CounterVec
	challengeClaims  prometheus.Counter
	liveClients      prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricHTTPRequestsTotal,
				Help: "HTTP requests by method, route and status code",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPRequestDuration,
				Help:    "HTTP request latency in seconds by method and route",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		reportsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricReportsSubmittedTotal,
				Help: "Litter reports submitted by media type",
			},
			[]string{"media_type"},
		),
		reportsReviewed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricReportsReviewedTotal,
				Help: "Litter reports reviewed by resulting status",
			},
			[]string{"status"},
		),
		pointsAwarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPointsAwardedTotal,
				Help: "Points credited by reason",
			},
			[]string{"reason"},
		),
		pointsSpent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPointsSpentTotal,
				Help: "Points debited by reason",
			},
			[]string{"reason"},
		),
		purchases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPurchasesTotal,
				Help: "Store purchases by item type and result",
			},
			[]string{"item_type", "result"},
		),
		eventJoins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricEventJoinsTotal,
				Help: "Event join attempts by result",
			},
			[]string{"result"},
		),
		challengeClaims: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricChallengeClaimsTotal,
			Help: "Challenge rewards claimed",
		}),
		liveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricLiveClients,
			Help: "Connected live update websocket clients",
		}),
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.httpRequests,
		m.httpDuration,
		m.reportsSubmitted,
		m.reportsReviewed,
		m.pointsAwarded,
		m.pointsSpent,
		m.purchases,
		m.eventJoins,
		m.challengeClaims,
		m.liveClients,
	}
}

func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(seconds)
}

func (m *Metrics) IncReportSubmitted(mediaType string) {
	if m == nil {
		return
	}
	m.reportsSubmitted.WithLabelValues(mediaType).Inc()
}

func (m *Metrics) IncReportReviewed(status string) {
	if m == nil {
		return
	}
	m.reportsReviewed.WithLabelValues(status).Inc()
}

func (m *Metrics) AddPointsAwarded(reason string, amount int) {
	if m == nil || amount <= 0 {
		return
	}
	m.pointsAwarded.WithLabelValues(reason).Add(float64(amount))
}

func (m *Metrics) AddPointsSpent(reason string, amount int) {
	if m == nil || amount <= 0 {
		return
	}
	m.pointsSpent.WithLabelValues(reason).Add(float64(amount))
}

func (m *Metrics) IncPurchase(itemType, result string) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(itemType, result).Inc()
}

func (m *Metrics) IncEventJoin(result string) {
	if m == nil {
		return
	}
	m.eventJoins.WithLabelValues(result).Inc()
}

func (m *Metrics) IncChallengeClaim() {
	if m == nil {
		return
	}
	m.challengeClaims.Inc()
}

func (m *Metrics) SetLiveClients(n int) {
	if m == nil {
		return
	}
	m.liveClients.Set(float64(n))
}
