package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/diary/pkg/pg"
	"github.com/dmitrymomot/diary/pkg/subscription"
)

// usageColumn maps a resource to its counter column. Only values from this
// map are interpolated into SQL.
func usageColumn(res subscription.Resource) (string, error) {
	switch res {
	case subscription.ResourceEntries:
		return "entries_created", nil
	case subscription.ResourceReminders:
		return "reminders_created", nil
	}
	return "", subscription.ErrInvalidResource
}

func (s *Store) GetUsage(ctx context.Context, userID uuid.UUID) (*subscription.Usage, error) {
	u := subscription.Usage{UserID: userID}
	err := s.db.QueryRow(ctx, `
		SELECT entries_created, reminders_created, last_reset
		FROM usage_counters WHERE user_id = $1`+s.lockClause(), userID,
	).Scan(&u.EntriesCreated, &u.RemindersCreated, &u.LastReset)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, subscription.ErrUsageNotFound
		}
		return nil, fmt.Errorf("get usage: %w", err)
	}
	u.LastReset = u.LastReset.UTC()
	return &u, nil
}

func (s *Store) EnsureUsage(ctx context.Context, userID uuid.UUID, now time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO usage_counters (user_id, last_reset) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`, userID, now)
	if err != nil {
		return fmt.Errorf("ensure usage: %w", err)
	}
	return nil
}

// IncrementUsage relies on the row lock taken by UPDATE: concurrent callers
// serialise on the counter row and each re-evaluates the limit predicate
// against the committed value.
func (s *Store) IncrementUsage(ctx context.Context, userID uuid.UUID, res subscription.Resource, limit int64, now time.Time) (bool, error) {
	col, err := usageColumn(res)
	if err != nil {
		return false, err
	}
	if err := s.EnsureUsage(ctx, userID, now); err != nil {
		return false, err
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE usage_counters SET `+col+` = `+col+` + 1
		WHERE user_id = $1 AND ($2::bigint = -1 OR `+col+` < $2::bigint)`,
		userID, limit)
	if err != nil {
		return false, fmt.Errorf("increment usage: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) DecrementUsage(ctx context.Context, userID uuid.UUID, res subscription.Resource) error {
	col, err := usageColumn(res)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		UPDATE usage_counters SET `+col+` = GREATEST(`+col+` - 1, 0)
		WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("decrement usage: %w", err)
	}
	return nil
}

func (s *Store) ResetUsage(ctx context.Context, userID uuid.UUID, now time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE usage_counters
		SET entries_created = 0, reminders_created = 0, last_reset = $2
		WHERE user_id = $1`, userID, now)
	if err != nil {
		return fmt.Errorf("reset usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return subscription.ErrUsageNotFound
	}
	return nil
}

func (s *Store) ResetUsageBefore(ctx context.Context, cutoff, now time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE usage_counters
		SET entries_created = 0, reminders_created = 0, last_reset = $2
		WHERE last_reset < $1`, cutoff, now)
	if err != nil {
		return 0, fmt.Errorf("reset stale usage: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
