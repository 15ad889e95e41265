package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/diary/pkg/logger"
)

// SweepResult summarises one expiry sweep.
type SweepResult struct {
	Expired    int `json:"expired"`
	Downgraded int `json:"downgraded"`
	Failed     int `json:"failed"`
}

// SweepExpired runs both expiry passes. The first marks lapsed active
// subscriptions as expired and queues an "expired" reminder. The second moves
// subscriptions expired for longer than graceDays onto the free plan.
// Re-running the sweep is a no-op for records already handled.
//
// A catalog without a free plan fails the second pass with ErrConfiguration.
// Per-record failures are logged, counted and returned joined; the records
// are retried on the next run.
func (s *service) SweepExpired(ctx context.Context, graceDays int) (SweepResult, error) {
	if graceDays < 0 {
		return SweepResult{}, fmt.Errorf("%w: negative grace period %d", ErrConfiguration, graceDays)
	}

	var (
		res  SweepResult
		errs []error
	)
	now := s.now()

	err := s.eachSubscription(ctx, SubscriptionFilter{Status: StatusActive, EndBefore: now}, func(cand Subscription) error {
		done, err := s.expire(ctx, cand.UserID, now)
		if done {
			res.Expired++
		}
		return err
	}, &res.Failed, &errs)
	if err != nil {
		return res, err
	}

	free, err := s.catalog.Free()
	if err != nil {
		s.log.ErrorContext(ctx, "expiry sweep cannot downgrade: free plan missing from catalog",
			logger.Error(err),
		)
		return res, errors.Join(ErrConfiguration, err)
	}

	cutoff := now.AddDate(0, 0, -graceDays)
	err = s.eachSubscription(ctx, SubscriptionFilter{Status: StatusExpired, EndBefore: cutoff}, func(cand Subscription) error {
		done, err := s.downgrade(ctx, cand.UserID, free, cutoff)
		if done {
			res.Downgraded++
		}
		return err
	}, &res.Failed, &errs)
	if err != nil {
		return res, err
	}

	s.log.InfoContext(ctx, "expiry sweep finished",
		logger.Count("expired", res.Expired),
		logger.Count("downgraded", res.Downgraded),
		logger.Count("failed", res.Failed),
		slog.Int("grace_days", graceDays),
	)
	return res, errors.Join(errs...)
}

// eachSubscription pages through subscriptions matching f. Processed records
// drop out of the filter, so it re-queries from the start until a page
// yields nothing new.
func (s *service) eachSubscription(ctx context.Context, f SubscriptionFilter, fn func(Subscription) error, failed *int, errs *[]error) error {
	f.Limit = s.batchSize
	seen := make(map[uuid.UUID]struct{})
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := s.store.ListSubscriptions(ctx, f)
		if err != nil {
			return fmt.Errorf("list subscriptions: %w", err)
		}

		fresh := 0
		for _, cand := range batch {
			if _, ok := seen[cand.ID]; ok {
				continue
			}
			seen[cand.ID] = struct{}{}
			fresh++

			if err := fn(cand); err != nil {
				*failed++
				*errs = append(*errs, err)
				s.log.WarnContext(ctx, "sweep failed for subscription",
					logger.UserID(cand.UserID),
					logger.SubscriptionID(cand.ID),
					logger.Error(err),
				)
			}
		}
		if fresh == 0 || len(batch) < f.Limit {
			return nil
		}
	}
}

// expire marks one lapsed subscription expired and queues the expired
// reminder. It reports whether the subscription changed.
func (s *service) expire(ctx context.Context, userID uuid.UUID, now time.Time) (bool, error) {
	changed := false
	err := s.store.InTx(ctx, func(ctx context.Context, tx Store) error {
		sub, err := tx.GetSubscription(ctx, userID)
		if err != nil {
			return err
		}
		if sub.Status != StatusActive || !sub.EndDate.Before(now) {
			return nil
		}

		sub.Status = StatusExpired
		if err := s.save(ctx, tx, sub, false); err != nil {
			return err
		}

		r := newReminder(sub, ReminderExpired, now)
		if err := tx.CreateReminder(ctx, &r); err != nil && !errors.Is(err, ErrReminderExists) {
			return fmt.Errorf("create expired reminder: %w", err)
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("expire subscription of user %s: %w", userID, err)
	}
	if changed {
		s.log.InfoContext(ctx, "subscription expired", logger.UserID(userID))
	}
	return changed, nil
}

// downgrade moves a subscription expired before cutoff onto the free plan.
func (s *service) downgrade(ctx context.Context, userID uuid.UUID, free Plan, cutoff time.Time) (bool, error) {
	changed := false
	err := s.store.InTx(ctx, func(ctx context.Context, tx Store) error {
		sub, err := tx.GetSubscription(ctx, userID)
		if err != nil {
			return err
		}
		if sub.Status != StatusExpired || !sub.EndDate.Before(cutoff) {
			return nil
		}

		sub.switchPlan(free, s.now())
		sub.AutoRenew = false
		sub.ExternalRef = ""
		if err := s.save(ctx, tx, sub, false); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("downgrade subscription of user %s: %w", userID, err)
	}
	if changed {
		s.log.InfoContext(ctx, "subscription downgraded to free plan",
			logger.UserID(userID),
			logger.PlanID(free.ID),
		)
	}
	return changed, nil
}
