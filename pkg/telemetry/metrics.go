package telemetry

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the Prometheus series scraped from /metrics.
type Metrics struct {
	apiRequests     *prometheus.CounterVec
	apiDuration     *prometheus.HistogramVec
	reportDuration  *prometheus.HistogramVec
	rebuildEntities *prometheus.CounterVec
	netRevenue      *prometheus.GaugeVec
}

// NewMetrics registers the series on reg. A nil reg uses the default
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	apiRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finance_api_requests_total",
		Help: "Counts API requests by method, route and status.",
	}, []string{"method", "route", "status"})

	apiDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finance_api_duration_seconds",
		Help:    "API request latency per method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	reportDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "finance_report_duration_seconds",
		Help:    "Net revenue aggregation latency by service type.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"service_type"})

	rebuildEntities := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finance_snapshot_rebuild_entities_total",
		Help: "Entities visited by snapshot rebuilds by outcome.",
	}, []string{"outcome"})

	netRevenue := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "finance_last_net_revenue",
		Help: "Net revenue of the last computed report by service type.",
	}, []string{"service_type"})

	reg.MustRegister(apiRequests, apiDuration, reportDuration, rebuildEntities, netRevenue)

	return &Metrics{
		apiRequests:     apiRequests,
		apiDuration:     apiDuration,
		reportDuration:  reportDuration,
		rebuildEntities: rebuildEntities,
		netRevenue:      netRevenue,
	}
}

// ObserveAPIRequest records an API request and latency.
func (m *Metrics) ObserveAPIRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	methodLabel := sanitizeLabel(method)
	routeLabel := sanitizeLabel(route)
	m.apiRequests.WithLabelValues(methodLabel, routeLabel, strconv.Itoa(status)).Inc()
	m.apiDuration.WithLabelValues(methodLabel, routeLabel).Observe(duration.Seconds())
}

// ObserveReport records one net revenue aggregation.
func (m *Metrics) ObserveReport(serviceType string, net float64, duration time.Duration) {
	if m == nil {
		return
	}
	label := serviceTypeLabel(serviceType)
	m.reportDuration.WithLabelValues(label).Observe(duration.Seconds())
	m.netRevenue.WithLabelValues(label).Set(net)
}

// ObserveRebuild adds the outcome counts of a snapshot rebuild.
func (m *Metrics) ObserveRebuild(written, skipped, failed int) {
	if m == nil {
		return
	}
	m.rebuildEntities.WithLabelValues("written").Add(float64(written))
	m.rebuildEntities.WithLabelValues("skipped").Add(float64(skipped))
	m.rebuildEntities.WithLabelValues("failed").Add(float64(failed))
}

func serviceTypeLabel(serviceType string) string {
	if strings.TrimSpace(serviceType) == "" {
		return "all"
	}
	return sanitizeLabel(serviceType)
}

func sanitizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
