package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"mailtrack/internal/domain"
	"mailtrack/internal/repository/delivery_repo"
)

type DeliveryRepository struct {
	db *sql.DB
}

func NewDeliveryRepository(db *sql.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

func (r *DeliveryRepository) CreateTx(ctx context.Context, querier domain.Querier, record *domain.DeliveryRecord) error {
	itemsJSON, err := json.Marshal(record.OrderItems)
	if err != nil {
		return fmt.Errorf("failed to marshal order items for message %s: %w", record.MessageID, err)
	}

	query := `
		INSERT INTO email_deliveries
			(id, message_id, recipient_email, recipient_name, subject, order_total, order_items, sent_at, opened_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0)
		ON CONFLICT (message_id) DO NOTHING
	`
	_, err = querier.ExecContext(ctx, query,
		record.ID,
		record.MessageID,
		record.RecipientEmail,
		record.RecipientName,
		record.Subject,
		record.OrderTotal,
		itemsJSON,
		record.SentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create delivery record for message %s: %w", record.MessageID, err)
	}
	return nil
}

func (r *DeliveryRepository) GetByMessageID(ctx context.Context, querier domain.Querier, messageID string) (*domain.DeliveryRecord, error) {
	query := `
		SELECT id, message_id, recipient_email, recipient_name, subject, order_total, order_items,
		       sent_at, opened_at, opened_count, last_opened_at, user_agent, ip_address
		FROM email_deliveries
		WHERE message_id = $1
	`
	record, err := scanDelivery(querier.QueryRowContext(ctx, query, messageID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, delivery_repo.ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("failed to get delivery record for message %s: %w", messageID, err)
	}
	return record, nil
}

// RecordOpenTx is the one read-modify-write in the system and is pushed down
// to a single UPDATE so concurrent opens for the same message serialize on
// the row: opened_at is set only when still NULL, opened_count is a relative
// increment. RETURNING tells us whether this call was the first open.
func (r *DeliveryRepository) RecordOpenTx(ctx context.Context, querier domain.Querier, messageID string, openedAt time.Time, userAgent, ipAddress string) (*delivery_repo.OpenResult, error) {
	query := `
		UPDATE email_deliveries
		SET opened_at      = COALESCE(opened_at, $2),
		    opened_count   = opened_count + 1,
		    last_opened_at = $2,
		    user_agent     = $3,
		    ip_address     = $4
		WHERE message_id = $1
		RETURNING opened_count, (opened_count = 1)
	`
	result := &delivery_repo.OpenResult{}
	err := querier.QueryRowContext(ctx, query, messageID, openedAt, userAgent, ipAddress).
		Scan(&result.OpenedCount, &result.FirstOpen)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, delivery_repo.ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("failed to record open for message %s: %w", messageID, err)
	}
	return result, nil
}

func (r *DeliveryRepository) List(ctx context.Context, querier domain.Querier, filter domain.DeliveryFilter) ([]domain.DeliveryRecord, error) {
	query := `
		SELECT id, message_id, recipient_email, recipient_name, subject, order_total, order_items,
		       sent_at, opened_at, opened_count, last_opened_at, user_agent, ip_address
		FROM email_deliveries
	`
	var args []any
	argCount := 0

	conditions := ""
	if filter.Search != "" {
		argCount++
		conditions = fmt.Sprintf(" WHERE (recipient_email ILIKE $%d OR recipient_name ILIKE $%d)", argCount, argCount)
		args = append(args, "%"+filter.Search+"%")
	}
	switch filter.Status {
	case domain.DeliveryStatusOpened:
		if conditions == "" {
			conditions = " WHERE opened_at IS NOT NULL"
		} else {
			conditions += " AND opened_at IS NOT NULL"
		}
	case domain.DeliveryStatusUnopened:
		if conditions == "" {
			conditions = " WHERE opened_at IS NULL"
		} else {
			conditions += " AND opened_at IS NULL"
		}
	}
	query += conditions + " ORDER BY sent_at DESC"

	if filter.Limit > 0 {
		argCount++
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
	}

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery records: %w", err)
	}
	defer rows.Close()

	var records []domain.DeliveryRecord
	for rows.Next() {
		record, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery record: %w", err)
		}
		records = append(records, *record)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delivery records: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDelivery(row rowScanner) (*domain.DeliveryRecord, error) {
	record := &domain.DeliveryRecord{}
	var (
		itemsJSON    []byte
		openedAt     sql.NullTime
		lastOpenedAt sql.NullTime
		userAgent    sql.NullString
		ipAddress    sql.NullString
	)
	err := row.Scan(
		&record.ID,
		&record.MessageID,
		&record.RecipientEmail,
		&record.RecipientName,
		&record.Subject,
		&record.OrderTotal,
		&itemsJSON,
		&record.SentAt,
		&openedAt,
		&record.OpenedCount,
		&lastOpenedAt,
		&userAgent,
		&ipAddress,
	)
	if err != nil {
		return nil, err
	}
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &record.OrderItems); err != nil {
			return nil, fmt.Errorf("failed to unmarshal order items: %w", err)
		}
	}
	if openedAt.Valid {
		record.OpenedAt = &openedAt.Time
	}
	if lastOpenedAt.Valid {
		record.LastOpenedAt = &lastOpenedAt.Time
	}
	record.UserAgent = userAgent.String
	record.IPAddress = ipAddress.String
	return record, nil
}
