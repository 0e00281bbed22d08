package tracking

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mailtrack/internal/domain"
	"mailtrack/internal/repository/delivery_repo"
	"mailtrack/internal/repository/outbox_repo"
	"mailtrack/internal/util"
)

const openedEventType = "email.opened"

// TrackingService owns every access to the message log: open recording,
// send-path registration and the administrative read path.
type TrackingService interface {
	// RecordOpen applies one open event for a provider message identifier
	// and queues an EmailOpenedEvent in the outbox, both in one
	// transaction. Returns delivery_repo.ErrDeliveryNotFound for unknown
	// identifiers.
	RecordOpen(ctx context.Context, messageID string, openedAt time.Time, userAgent, ipAddress string) error
	// RegisterDelivery creates the initial record for a sent message.
	// Redelivered events are absorbed by the message_id uniqueness.
	RegisterDelivery(ctx context.Context, event *domain.EmailSentEvent) error
	GetDelivery(ctx context.Context, messageID string) (*domain.DeliveryRecord, error)
	ListDeliveries(ctx context.Context, filter domain.DeliveryFilter) ([]domain.DeliveryRecord, error)
}

type trackingService struct {
	db              *sql.DB
	deliveryRepo    delivery_repo.DeliveryRepository
	outboxRepo      outbox_repo.OutboxRepository
	openEventsTopic string
	logger          *zap.Logger
}

func NewTrackingService(
	db *sql.DB,
	deliveryRepo delivery_repo.DeliveryRepository,
	outboxRepo outbox_repo.OutboxRepository,
	openEventsTopic string,
	logger *zap.Logger,
) TrackingService {
	return &trackingService{
		db:              db,
		deliveryRepo:    deliveryRepo,
		outboxRepo:      outboxRepo,
		openEventsTopic: openEventsTopic,
		logger:          logger,
	}
}

func (s *trackingService) RecordOpen(ctx context.Context, messageID string, openedAt time.Time, userAgent, ipAddress string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Recovered panic during open recording, rolling back", zap.String("message_id", messageID), zap.Any("panic", r))
			tx.Rollback()
			panic(r)
		}
	}()

	result, err := s.deliveryRepo.RecordOpenTx(ctx, tx, messageID, openedAt, userAgent, ipAddress)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to roll back transaction after open recording error", zap.String("message_id", messageID), zap.Error(rbErr))
		}
		if errors.Is(err, delivery_repo.ErrDeliveryNotFound) {
			return delivery_repo.ErrDeliveryNotFound
		}
		return fmt.Errorf("failed to record open for message %s: %w", messageID, err)
	}

	payload, err := json.Marshal(domain.EmailOpenedEvent{
		MessageID:   messageID,
		OpenedAt:    openedAt,
		OpenedCount: result.OpenedCount,
		FirstOpen:   result.FirstOpen,
		UserAgent:   userAgent,
		IPAddress:   ipAddress,
	})
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to marshal opened event for message %s: %w", messageID, err)
	}

	outboxMsg := &domain.OutboxMessage{
		ID:          util.GenerateUUID(),
		MessageID:   messageID,
		MessageType: openedEventType,
		Topic:       s.openEventsTopic,
		Key:         messageID,
		Payload:     payload,
		Status:      domain.OutboxStatusPending,
		CreatedAt:   openedAt,
	}
	if err := s.outboxRepo.CreateMessageTx(ctx, tx, outboxMsg); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to queue opened event for message %s: %w", messageID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("Open recorded",
		zap.String("message_id", messageID),
		zap.Int64("opened_count", result.OpenedCount),
		zap.Bool("first_open", result.FirstOpen),
	)
	return nil
}

func (s *trackingService) RegisterDelivery(ctx context.Context, event *domain.EmailSentEvent) error {
	record := &domain.DeliveryRecord{
		ID:             util.GenerateUUID(),
		MessageID:      event.MessageID,
		RecipientEmail: event.RecipientEmail,
		RecipientName:  event.RecipientName,
		Subject:        event.Subject,
		OrderTotal:     event.OrderTotal,
		OrderItems:     event.OrderItems,
		SentAt:         event.SentAt,
	}
	if record.SentAt.IsZero() {
		record.SentAt = time.Now().UTC()
	}
	if err := s.deliveryRepo.CreateTx(ctx, s.db, record); err != nil {
		return fmt.Errorf("failed to register delivery for message %s: %w", event.MessageID, err)
	}
	s.logger.Info("Delivery registered",
		zap.String("message_id", event.MessageID),
		zap.String("recipient", event.RecipientEmail),
	)
	return nil
}

func (s *trackingService) GetDelivery(ctx context.Context, messageID string) (*domain.DeliveryRecord, error) {
	record, err := s.deliveryRepo.GetByMessageID(ctx, s.db, messageID)
	if err != nil {
		if errors.Is(err, delivery_repo.ErrDeliveryNotFound) {
			return nil, delivery_repo.ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("failed to get delivery for message %s: %w", messageID, err)
	}
	return record, nil
}

func (s *trackingService) ListDeliveries(ctx context.Context, filter domain.DeliveryFilter) ([]domain.DeliveryRecord, error) {
	records, err := s.deliveryRepo.List(ctx, s.db, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	return records, nil
}
