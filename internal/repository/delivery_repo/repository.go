package delivery_repo

import (
	"context"
	"errors"
	"time"

	"mailtrack/internal/domain"
)

var ErrDeliveryNotFound = errors.New("delivery record not found")

// OpenResult is what an applied open looks like after the atomic update.
type OpenResult struct {
	OpenedCount int64
	FirstOpen   bool
}

type DeliveryRepository interface {
	// CreateTx inserts the initial record for a sent message.
	CreateTx(ctx context.Context, querier domain.Querier, record *domain.DeliveryRecord) error
	// GetByMessageID returns the record for a provider message identifier.
	GetByMessageID(ctx context.Context, querier domain.Querier, messageID string) (*domain.DeliveryRecord, error)
	// RecordOpenTx applies one open event as a single atomic UPDATE: the
	// first applied open sets opened_at, every open increments opened_count
	// and overwrites last_opened_at and the request metadata. Returns
	// ErrDeliveryNotFound when no record matches messageID.
	RecordOpenTx(ctx context.Context, querier domain.Querier, messageID string, openedAt time.Time, userAgent, ipAddress string) (*OpenResult, error)
	// List returns records ordered by sent_at descending, narrowed by filter.
	List(ctx context.Context, querier domain.Querier, filter domain.DeliveryFilter) ([]domain.DeliveryRecord, error)
}
