package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"mailtrack/internal/app/tracking"
	"mailtrack/internal/domain"
	kafka_infra "mailtrack/internal/infrastructure/kafka"
)

// EmailSentMessageHandler creates the initial delivery record for every
// message the send-path service announces. Unparseable events are logged and
// skipped; redeliveries are absorbed by the record's message_id uniqueness.
func EmailSentMessageHandler(trackingService tracking.TrackingService, logger *zap.Logger) kafka_infra.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var event domain.EmailSentEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("Failed to unmarshal EmailSentEvent, skipping message",
				zap.Error(err),
				zap.ByteString("value", msg.Value),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
			return nil
		}
		if event.MessageID == "" {
			logger.Error("EmailSentEvent without message_id, skipping message",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
			return nil
		}

		if err := trackingService.RegisterDelivery(ctx, &event); err != nil {
			logger.Error("Failed to register delivery from EmailSentEvent",
				zap.String("message_id", event.MessageID),
				zap.Error(err),
			)
			return fmt.Errorf("failed to register delivery for message %s: %w", event.MessageID, err)
		}
		return nil
	}
}
