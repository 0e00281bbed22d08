package domain

import "time"

// EmailSentEvent is published by the send-path service when an outbound
// message leaves the system. Consuming it creates the initial DeliveryRecord.
type EmailSentEvent struct {
	MessageID      string      `json:"message_id"`
	RecipientEmail string      `json:"recipient_email"`
	RecipientName  string      `json:"recipient_name"`
	Subject        string      `json:"subject"`
	OrderTotal     float64     `json:"order_total"`
	OrderItems     []OrderItem `json:"order_items"`
	SentAt         time.Time   `json:"sent_at"`
}

// EmailOpenedEvent is published for every recorded open, for downstream
// analytics consumers.
type EmailOpenedEvent struct {
	MessageID   string    `json:"message_id"`
	OpenedAt    time.Time `json:"opened_at"`
	OpenedCount int64     `json:"opened_count"`
	FirstOpen   bool      `json:"first_open"`
	UserAgent   string    `json:"user_agent"`
	IPAddress   string    `json:"ip_address"`
}
