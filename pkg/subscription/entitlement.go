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

// limitFor returns the user's cap for res. Users without a subscription are
// not limited.
func (s *service) limitFor(ctx context.Context, userID uuid.UUID, res Resource) (int64, error) {
	if !res.Valid() {
		return 0, ErrInvalidResource
	}

	sub, err := s.store.GetSubscription(ctx, userID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return Unlimited, nil
	}
	if err != nil {
		return 0, err
	}

	plan, err := s.catalog.Get(sub.PlanID)
	if err != nil {
		return 0, err
	}
	return plan.Limit(res), nil
}

// CanCreate returns ErrLimitExceeded when one more res would exceed the
// user's plan limit. It is advisory; Consume enforces the limit atomically.
func (s *service) CanCreate(ctx context.Context, userID uuid.UUID, res Resource) error {
	limit, err := s.limitFor(ctx, userID, res)
	if err != nil {
		return err
	}
	if limit == Unlimited {
		return nil
	}

	usage, err := s.store.GetUsage(ctx, userID)
	if err != nil && !errors.Is(err, ErrUsageNotFound) {
		return err
	}
	if !WithinLimit(limit, usage.Count(res)) {
		return ErrLimitExceeded
	}
	return nil
}

// GetAllUsage returns the current count and limit of every resource.
func (s *service) GetAllUsage(ctx context.Context, userID uuid.UUID) (map[Resource]UsageInfo, error) {
	usage, err := s.store.GetUsage(ctx, userID)
	if err != nil && !errors.Is(err, ErrUsageNotFound) {
		return nil, err
	}

	result := make(map[Resource]UsageInfo, len(Resources))
	for _, res := range Resources {
		limit, err := s.limitFor(ctx, userID, res)
		if err != nil {
			return nil, err
		}
		result[res] = UsageInfo{Current: usage.Count(res), Limit: limit}
	}
	return result, nil
}

// Consume reserves one unit of res and runs create. The reservation is an
// atomic conditional increment, so concurrent callers can never push the
// counter past the limit. If create fails the unit is released.
func (s *service) Consume(ctx context.Context, userID uuid.UUID, res Resource, create func(ctx context.Context) error) error {
	limit, err := s.limitFor(ctx, userID, res)
	if err != nil {
		return err
	}

	ok, err := s.store.IncrementUsage(ctx, userID, res, limit, s.now())
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	if !ok {
		s.log.DebugContext(ctx, "quota exhausted",
			logger.UserID(userID),
			logger.Group("usage",
				slog.String("resource", string(res)),
				slog.Int64("limit", limit),
			),
		)
		return ErrLimitExceeded
	}

	if err := create(ctx); err != nil {
		if derr := s.store.DecrementUsage(context.WithoutCancel(ctx), userID, res); derr != nil {
			s.log.WarnContext(ctx, "failed to release usage reservation",
				logger.UserID(userID),
				logger.Error(derr),
			)
		}
		return err
	}
	return nil
}

// ResetUsage zeroes the user's counters.
func (s *service) ResetUsage(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.ResetUsage(ctx, userID, s.now()); err != nil {
		return fmt.Errorf("reset usage: %w", err)
	}
	s.log.InfoContext(ctx, "usage reset", logger.UserID(userID))
	return nil
}

// ResetStaleUsage zeroes every counter last reset before cutoff.
func (s *service) ResetStaleUsage(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := s.store.ResetUsageBefore(ctx, cutoff, s.now())
	if err != nil {
		return 0, fmt.Errorf("reset stale usage: %w", err)
	}
	s.log.InfoContext(ctx, "stale usage reset", logger.Count("reset", n), slog.Time("cutoff", cutoff))
	return n, nil
}
