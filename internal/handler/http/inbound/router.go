package inbound_http

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mailtrack/internal/app/inbound"
	"mailtrack/internal/metrics"
)

func RegisterRoutes(r chi.Router, s inbound.InboundService, l *zap.Logger) {
	handler := NewInboundHandler(s, l.With(zap.String("component", "InboundHTTPHandler")))

	r.Route("/inbound", func(r chi.Router) {
		r.Use(metrics.Instrument("inbound"))
		r.Post("/", handler.HandleWebhook)
		r.Options("/", handler.Preflight)
	})
}
