package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// RecipientRepository persists per-event delivery targets and their
// per-channel sent flags.
type RecipientRepository interface {
	BulkInsert(ctx context.Context, eventID int64, userIDs []string) error
	ListByEvent(ctx context.Context, eventID int64) ([]domain.NotificationRecipient, error)
	MarkNotified(ctx context.Context, eventID int64, userID string, channel domain.NotificationChannel) error
}

type recipientRepository struct {
	pool *pgxpool.Pool
}

// NewRecipientRepository instantiates repository.
func NewRecipientRepository(pool *pgxpool.Pool) RecipientRepository {
	return &recipientRepository{pool: pool}
}

// BulkInsert adds one row per user, skipping pairs that already exist. A
// replayed init job therefore cannot duplicate recipients or reset flags.
func (r *recipientRepository) BulkInsert(ctx context.Context, eventID int64, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	const query = `
        INSERT INTO notification_recipients (event_id, user_id)
        SELECT $1, unnest($2::uuid[])
        ON CONFLICT (event_id, user_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query, eventID, userIDs)
	return err
}

func (r *recipientRepository) ListByEvent(ctx context.Context, eventID int64) ([]domain.NotificationRecipient, error) {
	const query = `
        SELECT event_id, user_id, email_notified, sms_notified
        FROM notification_recipients WHERE event_id = $1`
	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recipients []domain.NotificationRecipient
	for rows.Next() {
		var rec domain.NotificationRecipient
		if err := rows.Scan(&rec.EventID, &rec.UserID, &rec.EmailNotified, &rec.SMSNotified); err != nil {
			return nil, err
		}
		recipients = append(recipients, rec)
	}
	return recipients, rows.Err()
}

func (r *recipientRepository) MarkNotified(ctx context.Context, eventID int64, userID string, channel domain.NotificationChannel) error {
	var column string
	switch channel {
	case domain.ChannelEmail:
		column = "email_notified"
	case domain.ChannelSMS:
		column = "sms_notified"
	default:
		return fmt.Errorf("unknown notification channel %q", channel)
	}
	query := fmt.Sprintf(`UPDATE notification_recipients SET %s = TRUE WHERE event_id = $1 AND user_id = $2`, column)
	_, err := r.pool.Exec(ctx, query, eventID, userID)
	return err
}
