package admin_http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"mailtrack/internal/app/tracking"
	"mailtrack/internal/domain"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

type AdminHandler struct {
	service tracking.TrackingService
	logger  *zap.Logger
}

func NewAdminHandler(s tracking.TrackingService, l *zap.Logger) *AdminHandler {
	return &AdminHandler{service: s, logger: l}
}

type deliveryResponse struct {
	ID             string             `json:"id"`
	MessageID      string             `json:"message_id"`
	RecipientEmail string             `json:"recipient_email"`
	RecipientName  string             `json:"recipient_name"`
	Subject        string             `json:"subject"`
	OrderTotal     float64            `json:"order_total"`
	OrderItems     []domain.OrderItem `json:"order_items"`
	SentAt         time.Time          `json:"sent_at"`
	OpenedAt       *time.Time         `json:"opened_at"`
	OpenedCount    int64              `json:"opened_count"`
	LastOpenedAt   *time.Time         `json:"last_opened_at"`
	UserAgent      string             `json:"user_agent,omitempty"`
	IPAddress      string             `json:"ip_address,omitempty"`
}

type deliveryStats struct {
	Total    int    `json:"total"`
	Opened   int    `json:"opened"`
	Unopened int    `json:"unopened"`
	OpenRate string `json:"open_rate"`
}

type listDeliveriesResponse struct {
	Stats      deliveryStats      `json:"stats"`
	Deliveries []deliveryResponse `json:"deliveries"`
}

// ListDeliveries is the read side of the message log for the admin UI:
// sent_at descending, filtered by recipient substring and open status.
func (h *AdminHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	filter := domain.DeliveryFilter{
		Search: r.URL.Query().Get("search"),
		Status: domain.DeliveryStatusAll,
		Limit:  defaultListLimit,
	}

	switch status := r.URL.Query().Get("status"); status {
	case "", string(domain.DeliveryStatusAll):
	case string(domain.DeliveryStatusOpened):
		filter.Status = domain.DeliveryStatusOpened
	case string(domain.DeliveryStatusUnopened):
		filter.Status = domain.DeliveryStatusUnopened
	default:
		http.Error(w, "status must be one of all, opened, unopened", http.StatusBadRequest)
		return
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 || limit > maxListLimit {
			http.Error(w, fmt.Sprintf("limit must be between 1 and %d", maxListLimit), http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}

	records, err := h.service.ListDeliveries(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list deliveries", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := listDeliveriesResponse{
		Deliveries: make([]deliveryResponse, 0, len(records)),
	}
	for _, record := range records {
		resp.Deliveries = append(resp.Deliveries, deliveryResponse{
			ID:             record.ID,
			MessageID:      record.MessageID,
			RecipientEmail: record.RecipientEmail,
			RecipientName:  record.RecipientName,
			Subject:        record.Subject,
			OrderTotal:     record.OrderTotal,
			OrderItems:     record.OrderItems,
			SentAt:         record.SentAt,
			OpenedAt:       record.OpenedAt,
			OpenedCount:    record.OpenedCount,
			LastOpenedAt:   record.LastOpenedAt,
			UserAgent:      record.UserAgent,
			IPAddress:      record.IPAddress,
		})
		if record.Opened() {
			resp.Stats.Opened++
		} else {
			resp.Stats.Unopened++
		}
	}
	resp.Stats.Total = len(records)
	if resp.Stats.Total > 0 {
		resp.Stats.OpenRate = fmt.Sprintf("%.1f", float64(resp.Stats.Opened)/float64(resp.Stats.Total)*100)
	} else {
		resp.Stats.OpenRate = "0"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}
