package tracking_http

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mailtrack/internal/app/tracking"
	"mailtrack/internal/metrics"
)

func RegisterRoutes(r chi.Router, s tracking.TrackingService, l *zap.Logger) {
	handler := NewTrackingHandler(s, l.With(zap.String("component", "TrackingHTTPHandler")))

	r.Route("/track", func(r chi.Router) {
		r.Use(metrics.Instrument("track"))
		r.Get("/", handler.TrackOpen)
		r.Options("/", handler.Preflight)
	})
}
