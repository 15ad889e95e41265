package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/diary/pkg/pg"
	"github.com/dmitrymomot/diary/pkg/subscription"
)

const paymentColumns = `id, user_id, subscription_id, plan_id, amount::text, currency, status,
	method, external_ref, transaction_id, paid_at, failure_reason, created_at, updated_at`

func (s *Store) GetPaymentByExternalRef(ctx context.Context, ref string) (*subscription.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE external_ref = $1` + s.lockClause()

	p, err := scanPayment(s.db.QueryRow(ctx, query, ref))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, subscription.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

func (s *Store) CreatePayment(ctx context.Context, p *subscription.Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO payments (id, user_id, subscription_id, plan_id, amount, currency, status,
			method, external_ref, transaction_id, paid_at, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.ID, p.UserID, nullUUID(p.SubscriptionID), p.PlanID, p.Amount.StringFixed(2), p.Currency,
		string(p.Status), string(p.Method), p.ExternalRef, p.TransactionID, nullTime(p.PaidAt),
		p.FailureReason, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return subscription.ErrDuplicatePayment
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (s *Store) UpdatePayment(ctx context.Context, p *subscription.Payment) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE payments
		SET subscription_id = $2, status = $3, transaction_id = $4, paid_at = $5,
			failure_reason = $6, updated_at = $7
		WHERE external_ref = $1`,
		p.ExternalRef, nullUUID(p.SubscriptionID), string(p.Status), p.TransactionID,
		nullTime(p.PaidAt), p.FailureReason, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return subscription.ErrPaymentNotFound
	}
	return nil
}

func (s *Store) ListPayments(ctx context.Context, userID uuid.UUID, limit int) ([]subscription.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE user_id = $1 ORDER BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []subscription.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("list payments: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return out, nil
}

func scanPayment(row pgx.Row) (*subscription.Payment, error) {
	var (
		p              subscription.Payment
		subID          *uuid.UUID
		amount         string
		status, method string
		paidAt         *time.Time
	)
	if err := row.Scan(
		&p.ID, &p.UserID, &subID, &p.PlanID, &amount, &p.Currency, &status,
		&method, &p.ExternalRef, &p.TransactionID, &paidAt, &p.FailureReason,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse payment amount %q: %w", amount, err)
	}
	p.Amount = d
	if subID != nil {
		p.SubscriptionID = *subID
	}
	if paidAt != nil {
		p.PaidAt = paidAt.UTC()
	}
	p.Status = subscription.PaymentStatus(status)
	p.Method = subscription.PaymentMethod(method)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}
