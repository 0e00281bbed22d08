package inbound

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"mailtrack/internal/domain"
)

// ErrMissingEmailID means the webhook payload carried no message identifier,
// so there is nothing to fetch. The provider call is skipped entirely.
var ErrMissingEmailID = errors.New("webhook payload is missing data.email_id")

const htmlLogLimit = 500

// MessageFetcher retrieves the full inbound message from the mail provider.
// Satisfied by the resend client.
type MessageFetcher interface {
	GetReceivedEmail(ctx context.Context, emailID string) (*domain.InboundMessage, error)
}

// InboundService turns a webhook notification into a fetched, audited
// message. It keeps no state; redelivered notifications are simply processed
// again.
type InboundService interface {
	ProcessNotification(ctx context.Context, notification *domain.InboundNotification) (*domain.InboundMessage, error)
}

type inboundService struct {
	fetcher MessageFetcher
	logger  *zap.Logger
}

func NewInboundService(fetcher MessageFetcher, logger *zap.Logger) InboundService {
	return &inboundService{
		fetcher: fetcher,
		logger:  logger,
	}
}

func (s *inboundService) ProcessNotification(ctx context.Context, notification *domain.InboundNotification) (*domain.InboundMessage, error) {
	emailID := notification.Data.EmailID
	if emailID == "" {
		return nil, ErrMissingEmailID
	}

	s.logger.Info("Fetching inbound email from provider", zap.String("email_id", emailID))

	email, err := s.fetcher.GetReceivedEmail(ctx, emailID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch inbound email %s: %w", emailID, err)
	}

	s.logMessage(emailID, email)
	return email, nil
}

// logMessage is the whole audit trail for inbound mail: content is not
// persisted here, only logged.
func (s *inboundService) logMessage(emailID string, email *domain.InboundMessage) {
	fields := []zap.Field{
		zap.String("email_id", emailID),
		zap.String("from", email.From),
		zap.String("to", strings.Join(email.To, ", ")),
		zap.String("subject", email.Subject),
		zap.Int("attachment_count", len(email.Attachments)),
	}
	if email.Text != "" {
		fields = append(fields, zap.String("text", email.Text))
	}
	if email.HTML != "" {
		html := email.HTML
		if len(html) > htmlLogLimit {
			html = html[:htmlLogLimit]
		}
		fields = append(fields, zap.String("html_excerpt", html))
	}
	s.logger.Info("Inbound email received", fields...)

	for i, attachment := range email.Attachments {
		s.logger.Info("Inbound email attachment",
			zap.String("email_id", emailID),
			zap.Int("index", i+1),
			zap.String("filename", attachment.Filename),
			zap.String("content_type", attachment.ContentType),
			zap.Int64("size_bytes", attachment.Size),
		)
	}
}
