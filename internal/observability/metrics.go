package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"service", "method", "path", "code"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	donationSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donation_submissions_total",
			Help: "Donation submissions by instrument and final state.",
		},
		[]string{"instrument", "state", "reason"},
	)
	providerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_provider_requests_total",
			Help: "Calls made to the payment provider.",
		},
		[]string{"provider", "operation", "code"},
	)
	providerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_provider_request_duration_seconds",
			Help:    "Latency of payment provider calls.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)
	webhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Webhook events by type and resulting notification.",
		},
		[]string{"event_type", "notification"},
	)
)

// NewMetricsMiddleware Creates HTTP middleware for collecting Prometheus metrics.
func NewMetricsMiddleware(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				// Route patterns keep the label cardinality bounded.
				path := r.URL.Path
				if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
					path = rctx.RoutePattern()
				}

				httpRequestDuration.WithLabelValues(serviceName, r.Method, path).Observe(time.Since(start).Seconds())
				httpRequestsTotal.WithLabelValues(serviceName, r.Method, path, strconv.Itoa(ww.Status())).Inc()
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// RecordSubmission counts a finished donation submission.
func RecordSubmission(instrument, state, reason string) {
	if instrument == "" {
		instrument = "unknown"
	}
	donationSubmissionsTotal.WithLabelValues(instrument, state, reason).Inc()
}

// ObserveProviderCall records one outbound provider request. code is the HTTP status or "error".
func ObserveProviderCall(provider, operation, code string, took time.Duration) {
	providerRequestsTotal.WithLabelValues(provider, operation, code).Inc()
	providerRequestDuration.WithLabelValues(provider, operation).Observe(took.Seconds())
}

// RecordWebhook counts a reconciled webhook event.
func RecordWebhook(eventType, notification string) {
	if notification == "" {
		notification = "none"
	}
	webhookEventsTotal.WithLabelValues(eventType, notification).Inc()
}
