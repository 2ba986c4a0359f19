package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sgc"

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, matched route and status code.",
		},
		[]string{"method", "route", "status"},
	)

	// No status label here; the counter above carries it.
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and matched route.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	httpInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "HTTP requests currently being served.",
	})

	// Listings of commitments are the largest payloads; a page of 100 rows
	// lands around 100KiB.
	httpResponseBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response body size by method and matched route.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		},
		[]string{"method", "route"},
	)

	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by a rate limit bucket (api, login).",
		},
		[]string{"bucket"},
	)

	idempotentReplays = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idempotent_replays_total",
			Help:      "Creations answered from a stored Idempotency-Key, by resource.",
		},
		[]string{"scope"},
	)

	// commitmentTransitions counts lifecycle moves by action
	// (archive, unarchive, delete, restore, purge).
	commitmentTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commitment_transitions_total",
			Help:      "Commitment lifecycle transitions by action.",
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequests, httpDuration, httpInflight, httpResponseBytes,
		rateLimited, idempotentReplays, commitmentTransitions,
	)
}

// TrackInflight raises the in-flight gauge and returns the func that lowers it.
func TrackInflight() (done func()) {
	httpInflight.Inc()
	return httpInflight.Dec
}

// ObserveHTTP records one finished request. A negative size (nothing
// written) is not observed.
func ObserveHTTP(method, route string, status int, elapsed time.Duration, size int) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
	if size >= 0 {
		httpResponseBytes.WithLabelValues(method, route).Observe(float64(size))
	}
}

// RecordRateLimited counts one rejection from the named bucket.
func RecordRateLimited(bucket string) {
	rateLimited.WithLabelValues(bucket).Inc()
}

// RecordReplay counts one creation served from the idempotency store.
func RecordReplay(scope string) {
	idempotentReplays.WithLabelValues(scope).Inc()
}

// RecordTransition adds n transitions of the given action.
func RecordTransition(action string, n int) {
	if n <= 0 {
		return
	}
	commitmentTransitions.WithLabelValues(action).Add(float64(n))
}
