package metrics

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "reachstacker_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	storeRequests *prometheus.CounterVec
	storeLatency  *prometheus.HistogramVec
	storeAppends  *prometheus.CounterVec

	pollFetches      *prometheus.CounterVec
	pollLatency      *prometheus.HistogramVec
	pollStaleResults prometheus.Counter

	notificationsTotal *prometheus.CounterVec
	toneCuesTotal      prometheus.Counter

	unitLiveness *prometheus.GaugeVec
	unitSeverity *prometheus.GaugeVec
)

var livenessStates = []string{"unknown", "connected", "degraded", "disconnected"}

// Init registers the service metrics.
func Init(logger *log.Logger) {
	registerOnce.Do(func() {
		storeRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "store_requests_total",
				Help: "Total telemetry store requests by route and result",
			},
			[]string{"route", "result"},
		)
		storeLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "store_request_latency_seconds",
				Help:    "Telemetry store request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		)
		storeAppends = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "store_appends_total",
				Help: "Total appended readings by unit and result",
			},
			[]string{"unit", "result"},
		)

		pollFetches = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "poll_fetches_total",
				Help: "Total dashboard fetches by scope and result",
			},
			[]string{"scope", "result"},
		)
		pollLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "poll_fetch_latency_seconds",
				Help:    "Dashboard fetch latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"scope"},
		)
		pollStaleResults = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "poll_stale_results_total",
				Help: "Fetch results discarded because a newer tick was already applied",
			},
		)

		notificationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Total notifications by kind and outcome",
			},
			[]string{"kind", "outcome"},
		)
		toneCuesTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "tone_cues_total",
				Help: "Total audible cues played",
			},
		)

		unitLiveness = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "unit_liveness",
				Help: "Current liveness state per unit (1 for the active state)",
			},
			[]string{"unit", "state"},
		)
		unitSeverity = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "unit_severity",
				Help: "Current severity per unit (0 normal, 1 warning, 2 danger)",
			},
			[]string{"unit"},
		)

		prometheus.MustRegister(
			storeRequests,
			storeLatency,
			storeAppends,
			pollFetches,
			pollLatency,
			pollStaleResults,
			notificationsTotal,
			toneCuesTotal,
			unitLiveness,
			unitSeverity,
		)
		if logger != nil {
			logger.Printf("metrics registered")
		}
	})
}

// ObserveStoreRequest records a store request.
func ObserveStoreRequest(route, result string, duration time.Duration) {
	if route == "" {
		route = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if storeRequests != nil {
		storeRequests.WithLabelValues(route, result).Inc()
	}
	if storeLatency != nil {
		storeLatency.WithLabelValues(route).Observe(duration.Seconds())
	}
}

// IncStoreAppend counts an append attempt.
func IncStoreAppend(unit, result string) {
	if unit == "" {
		unit = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if storeAppends != nil {
		storeAppends.WithLabelValues(unit, result).Inc()
	}
}

// ObservePollFetch records a dashboard fetch.
func ObservePollFetch(scope, result string, duration time.Duration) {
	if scope == "" {
		scope = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if pollFetches != nil {
		pollFetches.WithLabelValues(scope, result).Inc()
	}
	if pollLatency != nil {
		pollLatency.WithLabelValues(scope).Observe(duration.Seconds())
	}
}

// IncStaleResult counts a discarded fetch result.
func IncStaleResult() {
	if pollStaleResults != nil {
		pollStaleResults.Inc()
	}
}

// IncNotification counts a notification outcome (delivered or suppressed).
func IncNotification(kind, outcome string) {
	if kind == "" {
		kind = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	if notificationsTotal != nil {
		notificationsTotal.WithLabelValues(kind, outcome).Inc()
	}
}

// IncToneCue counts an audible cue.
func IncToneCue() {
	if toneCuesTotal != nil {
		toneCuesTotal.Inc()
	}
}

// SetUnitLiveness marks the unit's current liveness state.
func SetUnitLiveness(unit, state string) {
	if unitLiveness == nil || unit == "" {
		return
	}
	for _, candidate := range livenessStates {
		value := 0.0
		if candidate == state {
			value = 1
		}
		unitLiveness.WithLabelValues(unit, candidate).Set(value)
	}
}

// SetUnitSeverity records the unit's severity rank.
func SetUnitSeverity(unit string, rank int) {
	if unitSeverity == nil || unit == "" {
		return
	}
	unitSeverity.WithLabelValues(unit).Set(float64(rank))
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	OutcomeDelivered  = "delivered"
	OutcomeSuppressed = "suppressed"
)
