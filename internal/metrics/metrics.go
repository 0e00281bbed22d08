package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	OpensRecordedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mailtrack_opens_recorded_total",
			Help: "Total number of open events applied to the message log",
		},
	)

	OpensUnknownTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mailtrack_opens_unknown_total",
			Help: "Total number of open events for unknown or expired message identifiers",
		},
	)

	OpensFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mailtrack_opens_failed_total",
			Help: "Total number of open events dropped because of storage errors",
		},
	)

	InboundEmailsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mailtrack_inbound_emails_total",
			Help: "Total number of inbound mail webhooks processed successfully",
		},
	)

	InboundFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mailtrack_inbound_failures_total",
			Help: "Total number of inbound mail webhooks that failed",
		},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"handler", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "method"},
	)
)

func Register() {
	prometheus.MustRegister(OpensRecordedTotal)
	prometheus.MustRegister(OpensUnknownTotal)
	prometheus.MustRegister(OpensFailedTotal)
	prometheus.MustRegister(InboundEmailsTotal)
	prometheus.MustRegister(InboundFailuresTotal)
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
}

// Instrument wraps a handler with request count and duration collection.
func Instrument(handlerName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(startTime).Seconds()
			httpRequestDuration.WithLabelValues(handlerName, r.Method).Observe(duration)
			httpRequestsTotal.WithLabelValues(handlerName, r.Method, strconv.Itoa(wrapped.statusCode)).Inc()
		})
	}
}

// responseWriter captures the status code written by the wrapped handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
