package tracking_http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"mailtrack/internal/app/tracking"
	"mailtrack/internal/metrics"
	"mailtrack/internal/repository/delivery_repo"
)

const unknownValue = "Unknown"

type TrackingHandler struct {
	service tracking.TrackingService
	logger  *zap.Logger
	now     func() time.Time
}

func NewTrackingHandler(s tracking.TrackingService, l *zap.Logger) *TrackingHandler {
	return &TrackingHandler{
		service: s,
		logger:  l,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// TrackOpen serves the tracking pixel. The pixel is the response contract:
// whatever happens on the store side, the caller gets the same 200 and the
// same bytes, because the pixel is embedded in already-delivered email and
// must never break rendering for the recipient.
func (h *TrackingHandler) TrackOpen(w http.ResponseWriter, r *http.Request) {
	messageID := r.URL.Query().Get("id")
	if messageID == "" {
		h.logger.Debug("Tracking request without message identifier")
		h.writePixel(w)
		return
	}

	userAgent := r.Header.Get("User-Agent")
	if userAgent == "" {
		userAgent = unknownValue
	}
	ipAddress := clientAddress(r)

	err := h.service.RecordOpen(r.Context(), messageID, h.now(), userAgent, ipAddress)
	switch {
	case err == nil:
		metrics.OpensRecordedTotal.Inc()
	case errors.Is(err, delivery_repo.ErrDeliveryNotFound):
		metrics.OpensUnknownTotal.Inc()
		h.logger.Warn("Open event for unknown message", zap.String("message_id", messageID))
	default:
		metrics.OpensFailedTotal.Inc()
		h.logger.Error("Failed to record open", zap.String("message_id", messageID), zap.Error(err))
	}

	h.writePixel(w)
}

// Preflight answers OPTIONS for clients that probe before loading the image.
func (h *TrackingHandler) Preflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *TrackingHandler) writePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(trackingPixel)))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(trackingPixel); err != nil {
		h.logger.Error("Failed to write tracking pixel", zap.Error(err))
	}
}

func clientAddress(r *http.Request) string {
	if addr := r.Header.Get("X-Forwarded-For"); addr != "" {
		return addr
	}
	if addr := r.Header.Get("X-Real-IP"); addr != "" {
		return addr
	}
	return unknownValue
}
