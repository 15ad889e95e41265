package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/diary/pkg/pg"
	"github.com/dmitrymomot/diary/pkg/subscription"
)

const subscriptionColumns = `id, user_id, plan_id, status, start_date, end_date,
	auto_renew, external_ref, created_at, updated_at`

func (s *Store) GetSubscription(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1` + s.lockClause()

	sub, err := scanSubscription(s.db.QueryRow(ctx, query, userID))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, subscription.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sub.ID, sub.UserID, sub.PlanID, string(sub.Status), sub.StartDate, sub.EndDate,
		sub.AutoRenew, sub.ExternalRef, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return subscription.ErrSubscriptionAlreadyExists
		}
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE subscriptions
		SET plan_id = $3, status = $4, start_date = $5, end_date = $6,
			auto_renew = $7, external_ref = $8, updated_at = $9
		WHERE id = $1 AND user_id = $2`,
		sub.ID, sub.UserID, sub.PlanID, string(sub.Status), sub.StartDate, sub.EndDate,
		sub.AutoRenew, sub.ExternalRef, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return subscription.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context, f subscription.SubscriptionFilter) ([]subscription.Subscription, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if !f.EndBefore.IsZero() {
		args = append(args, f.EndBefore)
		where = append(where, fmt.Sprintf("end_date < $%d", len(args)))
	}

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions` + whereClause(where) + ` ORDER BY end_date, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []subscription.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("list subscriptions: %w", err)
		}
		out = append(out, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return out, nil
}

func scanSubscription(row pgx.Row) (*subscription.Subscription, error) {
	var (
		sub    subscription.Subscription
		status string
	)
	if err := row.Scan(
		&sub.ID, &sub.UserID, &sub.PlanID, &status, &sub.StartDate, &sub.EndDate,
		&sub.AutoRenew, &sub.ExternalRef, &sub.CreatedAt, &sub.UpdatedAt,
	); err != nil {
		return nil, err
	}
	sub.Status = subscription.Status(status)
	sub.StartDate = sub.StartDate.UTC()
	sub.EndDate = sub.EndDate.UTC()
	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.UpdatedAt = sub.UpdatedAt.UTC()
	return &sub, nil
}
