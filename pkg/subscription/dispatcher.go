package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/diary/pkg/logger"
)

// Notifier delivers a reminder to its user. Delivery is at-least-once, so
// implementations must tolerate duplicates.
type Notifier interface {
	Notify(ctx context.Context, n ReminderNotice) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n ReminderNotice) error

func (f NotifierFunc) Notify(ctx context.Context, n ReminderNotice) error { return f(ctx, n) }

// ReminderNotice is everything a notifier needs to render a reminder.
type ReminderNotice struct {
	Reminder     Reminder
	Subscription *Subscription // nil if the subscription is gone
	Plan         *Plan         // nil if the plan left the catalog
}

// Subject is the email subject for the notice.
func (n ReminderNotice) Subject() string {
	return n.Reminder.Type.Subject()
}

// DispatchOptions controls a dispatch run.
type DispatchOptions struct {
	// DryRun reports due reminders without notifying or marking them sent.
	DryRun bool
	// Limit caps how many reminders are handled. Zero means the batch size.
	Limit int
}

// DispatchResult summarises a dispatch run.
type DispatchResult struct {
	Due     int              `json:"due"`
	Sent    int              `json:"sent"`
	Failed  int              `json:"failed"`
	DryRun  bool             `json:"dry_run"`
	Notices []ReminderNotice `json:"-"`
}

// DispatchReminders delivers due, unsent reminders through n. A reminder is
// marked sent only after delivery succeeds; failed deliveries stay due and
// are retried on the next run.
func (s *service) DispatchReminders(ctx context.Context, n Notifier, opts DispatchOptions) (DispatchResult, error) {
	if n == nil && !opts.DryRun {
		return DispatchResult{}, fmt.Errorf("%w: notifier is required", ErrConfiguration)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = s.batchSize
	}

	res := DispatchResult{DryRun: opts.DryRun}
	now := s.now()

	due, err := s.store.ListDueReminders(ctx, now, limit)
	if err != nil {
		return res, fmt.Errorf("list due reminders: %w", err)
	}
	res.Due = len(due)

	for _, r := range due {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		notice := s.notice(ctx, r)
		if opts.DryRun {
			res.Notices = append(res.Notices, notice)
			s.log.InfoContext(ctx, "would send reminder",
				logger.UserID(r.UserID),
				logger.ReminderType(string(r.Type)),
				slog.Time("scheduled_at", r.ScheduledAt),
			)
			continue
		}

		if err := n.Notify(ctx, notice); err != nil {
			res.Failed++
			s.log.WarnContext(ctx, "reminder delivery failed",
				logger.UserID(r.UserID),
				logger.ReminderType(string(r.Type)),
				logger.Error(err),
			)
			continue
		}

		if err := s.store.MarkReminderSent(ctx, r.ID, s.now()); err != nil {
			if errors.Is(err, ErrReminderNotFound) {
				// replaced by a recompute while we were sending
				res.Sent++
				continue
			}
			return res, fmt.Errorf("mark reminder sent: %w", err)
		}
		res.Sent++
	}

	s.log.InfoContext(ctx, "reminder dispatch finished",
		logger.Count("due", res.Due),
		logger.Count("sent", res.Sent),
		logger.Count("failed", res.Failed),
		slog.Bool("dry_run", res.DryRun),
	)
	return res, nil
}

func (s *service) notice(ctx context.Context, r Reminder) ReminderNotice {
	notice := ReminderNotice{Reminder: r}
	sub, err := s.store.GetSubscription(ctx, r.UserID)
	if err != nil || sub.ID != r.SubscriptionID {
		return notice
	}
	notice.Subscription = sub
	if plan, err := s.catalog.Get(sub.PlanID); err == nil {
		notice.Plan = &plan
	}
	return notice
}
