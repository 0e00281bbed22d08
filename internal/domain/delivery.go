package domain

import "time"

// DeliveryRecord is one row of the message log: a single outbound email and
// its open-tracking state. The record is created when the message is sent and
// mutated only by recorded opens afterwards.
type DeliveryRecord struct {
	ID             string
	MessageID      string
	RecipientEmail string
	RecipientName  string
	Subject        string
	OrderTotal     float64
	OrderItems     []OrderItem
	SentAt         time.Time
	OpenedAt       *time.Time
	OpenedCount    int64
	LastOpenedAt   *time.Time
	UserAgent      string
	IPAddress      string
}

// OrderItem is the business payload snapshot attached at send time.
type OrderItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Opened reports whether the message has been opened at least once.
func (d *DeliveryRecord) Opened() bool {
	return d.OpenedAt != nil
}

type DeliveryStatusFilter string

const (
	DeliveryStatusAll      DeliveryStatusFilter = "all"
	DeliveryStatusOpened   DeliveryStatusFilter = "opened"
	DeliveryStatusUnopened DeliveryStatusFilter = "unopened"
)

// DeliveryFilter narrows the administrative listing. Search matches a
// substring of the recipient email or name, case-insensitively.
type DeliveryFilter struct {
	Search string
	Status DeliveryStatusFilter
	Limit  int
}
