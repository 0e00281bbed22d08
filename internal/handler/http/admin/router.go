package admin_http

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mailtrack/internal/app/tracking"
	"mailtrack/internal/metrics"
)

func RegisterRoutes(r chi.Router, s tracking.TrackingService, l *zap.Logger) {
	handler := NewAdminHandler(s, l.With(zap.String("component", "AdminHTTPHandler")))

	r.Route("/admin/deliveries", func(r chi.Router) {
		r.Use(metrics.Instrument("admin-deliveries"))
		r.Get("/", handler.ListDeliveries)
	})
}
