package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "market_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "market_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "market_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	purchaseTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "market_layer",
			Subsystem: "purchases",
			Name:      "transitions_total",
			Help:      "Total number of purchase state transitions.",
		},
		[]string{"to_status"},
	)

	reservationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "market_layer",
			Subsystem: "listings",
			Name:      "reservation_failures_total",
			Help:      "Total number of reservations rejected for insufficient quantity.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		purchaseTransitions,
		reservationFailures,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordPurchaseTransition records a purchase state change.
func RecordPurchaseTransition(toStatus string) {
	purchaseTransitions.WithLabelValues(toStatus).Inc()
}

// RecordReservationFailure records a reserve rejected for lack of quantity.
func RecordReservationFailure() {
	reservationFailures.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses resource ids so metric label cardinality stays
// bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "v1" {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/v1"
	}
	resource := parts[1]
	if len(parts) == 2 {
		return "/v1/" + resource
	}
	// keep action segments, collapse ids
	out := "/v1/" + resource
	for _, part := range parts[2:] {
		if actionSegment(part) {
			out += "/" + part
		} else {
			out += "/:id"
		}
	}
	return out
}

func actionSegment(part string) bool {
	switch part {
	case "accept", "decline", "contract", "complete", "cancel", "permissions",
		"browse", "demand", "markers", "deficits", "assets":
		return true
	}
	return false
}
