package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mailtrack/internal/repository/outbox_repo"

	kafka_infra "mailtrack/internal/infrastructure/kafka"
)

// Processor drains pending outbox rows to Kafka on a fixed poll interval.
// Rows stay PENDING until the broker acknowledged the publish, so a crash
// between publish and mark can only cause redelivery, never loss.
type Processor struct {
	outboxRepo    outbox_repo.OutboxRepository
	kafkaProducer kafka_infra.Producer
	pollInterval  time.Duration
	pollTimeout   time.Duration
	batchSize     int
	logger        *zap.Logger
}

func NewProcessor(
	outboxRepo outbox_repo.OutboxRepository,
	kafkaProducer kafka_infra.Producer,
	pollInterval time.Duration,
	pollTimeout time.Duration,
	batchSize int,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		outboxRepo:    outboxRepo,
		kafkaProducer: kafkaProducer,
		pollInterval:  pollInterval,
		pollTimeout:   pollTimeout,
		batchSize:     batchSize,
		logger:        logger,
	}
}

// Start blocks until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	p.logger.Info("Starting outbox processor",
		zap.Duration("poll_interval", p.pollInterval),
		zap.Int("batch_size", p.batchSize),
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox processor stopping.")
			return
		case <-ticker.C:
			p.processOutboxMessages(ctx)
		}
	}
}

func (p *Processor) processOutboxMessages(ctx context.Context) {
	queryCtx, cancel := context.WithTimeout(ctx, p.pollTimeout)
	defer cancel()

	messages, err := p.outboxRepo.GetPendingMessages(queryCtx, p.batchSize)
	if err != nil {
		p.logger.Error("Failed to get pending outbox messages", zap.Error(err))
		return
	}
	if len(messages) == 0 {
		return
	}

	p.logger.Debug("Found pending outbox messages", zap.Int("count", len(messages)))

	var sentIDs, failedIDs []string
	for _, msg := range messages {
		if err := p.kafkaProducer.Produce(ctx, msg.Topic, msg.Key, msg.Payload); err != nil {
			p.logger.Error("Failed to publish outbox message",
				zap.String("outbox_id", msg.ID),
				zap.String("topic", msg.Topic),
				zap.Error(err),
			)
			failedIDs = append(failedIDs, msg.ID)
			continue
		}
		sentIDs = append(sentIDs, msg.ID)
	}

	if err := p.outboxRepo.MarkMessagesAsSent(ctx, sentIDs); err != nil {
		p.logger.Error("Failed to mark outbox messages as sent", zap.Error(err))
	}
	if err := p.outboxRepo.MarkMessagesAsFailed(ctx, failedIDs); err != nil {
		p.logger.Error("Failed to mark outbox messages as failed", zap.Error(err))
	}

	if len(sentIDs) > 0 {
		p.logger.Info("Outbox messages published", zap.Int("sent", len(sentIDs)), zap.Int("failed", len(failedIDs)))
	}
}
