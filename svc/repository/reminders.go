package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/diary/pkg/pg"
	"github.com/dmitrymomot/diary/pkg/subscription"
)

const reminderColumns = `id, user_id, subscription_id, type, scheduled_at, sent, sent_at, created_at`

func (s *Store) DeleteReminders(ctx context.Context, userID, subscriptionID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM payment_reminders WHERE user_id = $1 AND subscription_id = $2`,
		userID, subscriptionID)
	if err != nil {
		return fmt.Errorf("delete reminders: %w", err)
	}
	return nil
}

func (s *Store) CreateReminder(ctx context.Context, r *subscription.Reminder) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO payment_reminders (`+reminderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.UserID, r.SubscriptionID, string(r.Type), r.ScheduledAt, r.Sent, r.SentAt, r.CreatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return subscription.ErrReminderExists
		}
		return fmt.Errorf("create reminder: %w", err)
	}
	return nil
}

func (s *Store) UpsertReminder(ctx context.Context, r *subscription.Reminder) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO payment_reminders (`+reminderColumns+`)
		VALUES ($1, $2, $3, $4, $5, FALSE, NULL, $6)
		ON CONFLICT (user_id, subscription_id, type)
		DO UPDATE SET scheduled_at = EXCLUDED.scheduled_at, sent = FALSE, sent_at = NULL
		RETURNING id`,
		r.ID, r.UserID, r.SubscriptionID, string(r.Type), r.ScheduledAt, r.CreatedAt,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("upsert reminder: %w", err)
	}
	r.Sent = false
	r.SentAt = nil
	return nil
}

func (s *Store) ListReminders(ctx context.Context, subscriptionID uuid.UUID) ([]subscription.Reminder, error) {
	return s.queryReminders(ctx, `
		SELECT `+reminderColumns+` FROM payment_reminders
		WHERE subscription_id = $1 ORDER BY scheduled_at`, subscriptionID)
}

func (s *Store) ListDueReminders(ctx context.Context, now time.Time, limit int) ([]subscription.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM payment_reminders
		WHERE NOT sent AND scheduled_at <= $1 ORDER BY scheduled_at`
	args := []any{now}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.queryReminders(ctx, query, args...)
}

func (s *Store) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE payment_reminders SET sent = TRUE, sent_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return subscription.ErrReminderNotFound
	}
	return nil
}

func (s *Store) queryReminders(ctx context.Context, query string, args ...any) ([]subscription.Reminder, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var out []subscription.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("list reminders: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return out, nil
}

func scanReminder(row pgx.Row) (*subscription.Reminder, error) {
	var (
		r   subscription.Reminder
		typ string
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.SubscriptionID, &typ, &r.ScheduledAt, &r.Sent, &r.SentAt, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Type = subscription.ReminderType(typ)
	r.ScheduledAt = r.ScheduledAt.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	r.SentAt = utcPtr(r.SentAt)
	return &r, nil
}
