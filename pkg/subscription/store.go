package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SubscriptionFilter selects subscriptions for the sweeper.
type SubscriptionFilter struct {
	Status    Status
	EndBefore time.Time
	Limit     int
}

// SubscriptionStore persists subscriptions. One row per user.
type SubscriptionStore interface {
	// GetSubscription returns ErrSubscriptionNotFound when the user has none.
	// Inside a transaction the row is locked until commit.
	GetSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	// CreateSubscription returns ErrSubscriptionAlreadyExists on conflict.
	CreateSubscription(ctx context.Context, sub *Subscription) error
	UpdateSubscription(ctx context.Context, sub *Subscription) error
	// ListSubscriptions returns matches ordered by end date.
	ListSubscriptions(ctx context.Context, f SubscriptionFilter) ([]Subscription, error)
}

// UsageStore persists usage counters.
type UsageStore interface {
	GetUsage(ctx context.Context, userID uuid.UUID) (*Usage, error)
	// EnsureUsage creates a zeroed counter if none exists.
	EnsureUsage(ctx context.Context, userID uuid.UUID, now time.Time) error
	// IncrementUsage atomically adds one to res if the current count is below
	// limit (or limit is Unlimited), creating the counter if needed. It
	// reports whether the increment happened.
	IncrementUsage(ctx context.Context, userID uuid.UUID, res Resource, limit int64, now time.Time) (bool, error)
	// DecrementUsage subtracts one from res, never going below zero.
	DecrementUsage(ctx context.Context, userID uuid.UUID, res Resource) error
	ResetUsage(ctx context.Context, userID uuid.UUID, now time.Time) error
	// ResetUsageBefore resets every counter last reset before cutoff.
	ResetUsageBefore(ctx context.Context, cutoff, now time.Time) (int, error)
}

// PaymentStore persists the payment log.
type PaymentStore interface {
	GetPaymentByExternalRef(ctx context.Context, ref string) (*Payment, error)
	// CreatePayment returns ErrDuplicatePayment when ExternalRef is taken.
	CreatePayment(ctx context.Context, p *Payment) error
	UpdatePayment(ctx context.Context, p *Payment) error
	ListPayments(ctx context.Context, userID uuid.UUID, limit int) ([]Payment, error)
}

// ReminderStore persists payment reminders.
type ReminderStore interface {
	// DeleteReminders removes every reminder of the user's subscription.
	DeleteReminders(ctx context.Context, userID, subscriptionID uuid.UUID) error
	// CreateReminder returns ErrReminderExists on a (user, subscription, type) conflict.
	CreateReminder(ctx context.Context, r *Reminder) error
	// UpsertReminder inserts r or re-arms the existing one of the same type
	// with r's schedule and sent=false.
	UpsertReminder(ctx context.Context, r *Reminder) error
	ListReminders(ctx context.Context, subscriptionID uuid.UUID) ([]Reminder, error)
	// ListDueReminders returns unsent reminders scheduled at or before now.
	ListDueReminders(ctx context.Context, now time.Time, limit int) ([]Reminder, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Store bundles the persistence the service needs.
type Store interface {
	SubscriptionStore
	UsageStore
	PaymentStore
	ReminderStore

	// InTx runs fn in a single transaction. fn must use the Store it is given.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
