package inbound_http

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"mailtrack/internal/app/inbound"
	"mailtrack/internal/domain"
	"mailtrack/internal/metrics"
)

type InboundHandler struct {
	service inbound.InboundService
	logger  *zap.Logger
}

func NewInboundHandler(s inbound.InboundService, l *zap.Logger) *InboundHandler {
	return &InboundHandler{service: s, logger: l}
}

type webhookSuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	From    string `json:"from"`
	Subject string `json:"subject"`
}

type webhookErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// HandleWebhook processes one inbound-mail notification. Unlike the tracking
// pixel there is no rendering contract to preserve, so every failure is
// surfaced to the provider as a 500 envelope and redelivery is left to the
// provider's retry policy.
func (h *InboundHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	var notification domain.InboundNotification
	if err := json.NewDecoder(r.Body).Decode(&notification); err != nil {
		h.logger.Error("Failed to decode inbound webhook payload", zap.Error(err))
		h.writeError(w, "invalid webhook payload: "+err.Error())
		return
	}

	email, err := h.service.ProcessNotification(r.Context(), &notification)
	if err != nil {
		h.logger.Error("Failed to process inbound notification",
			zap.String("email_id", notification.Data.EmailID),
			zap.Error(err),
		)
		h.writeError(w, err.Error())
		return
	}

	metrics.InboundEmailsTotal.Inc()
	h.writeJSON(w, http.StatusOK, webhookSuccessResponse{
		Success: true,
		Message: "Email received and logged",
		From:    email.From,
		Subject: email.Subject,
	})
}

// Preflight answers OPTIONS per the provider's cross-origin probing.
func (h *InboundHandler) Preflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *InboundHandler) writeError(w http.ResponseWriter, message string) {
	metrics.InboundFailuresTotal.Inc()
	h.writeJSON(w, http.StatusInternalServerError, webhookErrorResponse{
		Success: false,
		Error:   message,
	})
}

func (h *InboundHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}
