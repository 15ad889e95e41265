package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/diary/pkg/logger"
)

// Service defines the public interface for subscription management.
type Service interface {
	// Lifecycle
	ProvisionUser(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	GetSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	AssignPlan(ctx context.Context, userID uuid.UUID, planID string) (*Subscription, error)
	CancelAutoRenew(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	Extend(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	ListPlans() []Plan
	ListPayments(ctx context.Context, userID uuid.UUID, limit int) ([]Payment, error)
	ListReminders(ctx context.Context, userID uuid.UUID) ([]Reminder, error)

	// Entitlements
	CanCreate(ctx context.Context, userID uuid.UUID, res Resource) error
	GetAllUsage(ctx context.Context, userID uuid.UUID) (map[Resource]UsageInfo, error)
	Consume(ctx context.Context, userID uuid.UUID, res Resource, create func(ctx context.Context) error) error
	ResetUsage(ctx context.Context, userID uuid.UUID) error
	ResetStaleUsage(ctx context.Context, cutoff time.Time) (int, error)

	// Billing
	CreateCheckout(ctx context.Context, userID uuid.UUID, planID string, opts CheckoutOptions) (*CheckoutSession, error)
	HandleWebhook(ctx context.Context, payload []byte, header http.Header) error

	// Periodic
	SweepExpired(ctx context.Context, graceDays int) (SweepResult, error)
	DispatchReminders(ctx context.Context, n Notifier, opts DispatchOptions) (DispatchResult, error)
}

// CheckoutOptions carries the user-facing parts of a checkout request.
type CheckoutOptions struct {
	Email      string
	SuccessURL string
	CancelURL  string
}

const (
	defaultGatewayTimeout = 10 * time.Second
	defaultBatchSize      = 100
)

type service struct {
	store          Store
	catalog        *Catalog
	provider       Provider
	deduper        EventDeduper
	log            *slog.Logger
	now            func() time.Time
	gatewayTimeout time.Duration
	batchSize      int
}

// NewService creates a new Service. Panics if store or catalog is nil.
func NewService(store Store, catalog *Catalog, opts ...ServiceOption) Service {
	if store == nil {
		panic("subscription: Store is required")
	}
	if catalog == nil {
		panic("subscription: Catalog is required")
	}

	s := &service{
		store:          store,
		catalog:        catalog,
		log:            slog.Default(),
		now:            func() time.Time { return time.Now().UTC() },
		gatewayTimeout: defaultGatewayTimeout,
		batchSize:      defaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("subscription"))

	return s
}

// ProvisionUser creates the free subscription and a zeroed usage counter for
// a new user. Calling it again returns the existing subscription.
func (s *service) ProvisionUser(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	free, err := s.catalog.Free()
	if err != nil {
		return nil, errors.Join(ErrConfiguration, err)
	}

	var out *Subscription
	err = s.store.InTx(ctx, func(ctx context.Context, tx Store) error {
		now := s.now()
		if err := tx.EnsureUsage(ctx, userID, now); err != nil {
			return err
		}

		sub, err := tx.GetSubscription(ctx, userID)
		if err == nil {
			out = sub
			return nil
		}
		if !errors.Is(err, ErrSubscriptionNotFound) {
			return err
		}

		sub = &Subscription{ID: uuid.New(), UserID: userID, CreatedAt: now}
		sub.switchPlan(free, now)
		if err := s.save(ctx, tx, sub, true); err != nil {
			return err
		}
		out = sub
		return nil
	})
	if errors.Is(err, ErrSubscriptionAlreadyExists) {
		// lost a race with a concurrent provisioning of the same user
		return s.store.GetSubscription(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("provision user: %w", err)
	}

	s.log.InfoContext(ctx, "user provisioned",
		logger.UserID(userID),
		logger.SubscriptionID(out.ID),
		logger.PlanID(out.PlanID),
	)
	return out, nil
}

func (s *service) GetSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	return s.store.GetSubscription(ctx, userID)
}

// AssignPlan moves the user onto planID starting now. Recurring paid plans
// renew automatically; free and lifetime plans do not.
func (s *service) AssignPlan(ctx context.Context, userID uuid.UUID, planID string) (*Subscription, error) {
	plan, err := s.catalog.Get(planID)
	if err != nil {
		return nil, err
	}

	sub, err := s.mutate(ctx, userID, true, func(sub *Subscription, now time.Time) error {
		sub.switchPlan(plan, now)
		sub.AutoRenew = !plan.IsFree() && !plan.IsLifetime()
		if plan.IsFree() {
			sub.ExternalRef = ""
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("assign plan: %w", err)
	}

	s.log.InfoContext(ctx, "plan assigned",
		logger.UserID(userID),
		logger.SubscriptionID(sub.ID),
		logger.PlanID(plan.ID),
		slog.Time("end_date", sub.EndDate),
	)
	return sub, nil
}

// CancelAutoRenew stops renewal. The subscription stays active until its end date.
func (s *service) CancelAutoRenew(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	sub, err := s.mutate(ctx, userID, false, func(sub *Subscription, _ time.Time) error {
		sub.AutoRenew = false
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cancel auto-renew: %w", err)
	}

	s.log.InfoContext(ctx, "auto-renew cancelled", logger.UserID(userID), logger.SubscriptionID(sub.ID))
	return sub, nil
}

// Extend adds one period of the current plan to the end date.
func (s *service) Extend(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	sub, err := s.mutate(ctx, userID, false, func(sub *Subscription, _ time.Time) error {
		plan, err := s.catalog.Get(sub.PlanID)
		if err != nil {
			return err
		}
		sub.Extend(plan)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("extend subscription: %w", err)
	}

	s.log.InfoContext(ctx, "subscription extended",
		logger.UserID(userID),
		logger.SubscriptionID(sub.ID),
		slog.Time("end_date", sub.EndDate),
	)
	return sub, nil
}

// ListPlans returns the purchasable and free plans ordered by price.
func (s *service) ListPlans() []Plan {
	return s.catalog.Active()
}

func (s *service) ListPayments(ctx context.Context, userID uuid.UUID, limit int) ([]Payment, error) {
	return s.store.ListPayments(ctx, userID, limit)
}

func (s *service) ListReminders(ctx context.Context, userID uuid.UUID) ([]Reminder, error) {
	sub, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.ListReminders(ctx, sub.ID)
}

// mutate loads the user's subscription under lock, applies fn and persists
// the result. When create is set a missing subscription is created first.
func (s *service) mutate(ctx context.Context, userID uuid.UUID, create bool, fn func(sub *Subscription, now time.Time) error) (*Subscription, error) {
	var out *Subscription
	err := s.store.InTx(ctx, func(ctx context.Context, tx Store) error {
		now := s.now()
		sub, err := tx.GetSubscription(ctx, userID)
		isNew := false
		switch {
		case errors.Is(err, ErrSubscriptionNotFound) && create:
			sub = &Subscription{ID: uuid.New(), UserID: userID, CreatedAt: now}
			isNew = true
		case err != nil:
			return err
		}

		if err := fn(sub, now); err != nil {
			return err
		}
		if err := s.save(ctx, tx, sub, isNew); err != nil {
			return err
		}
		out = sub
		return nil
	})
	return out, err
}

// save is the single write path for subscriptions. It applies the expiry
// guard and rebuilds the renewal reminders from the new state.
func (s *service) save(ctx context.Context, tx Store, sub *Subscription, isNew bool) error {
	now := s.now()
	sub.TransitionOnSave(now)
	sub.UpdatedAt = now

	if isNew {
		if sub.CreatedAt.IsZero() {
			sub.CreatedAt = now
		}
		if err := tx.CreateSubscription(ctx, sub); err != nil {
			return err
		}
	} else if err := tx.UpdateSubscription(ctx, sub); err != nil {
		return err
	}

	return s.recomputeReminders(ctx, tx, sub, now)
}

// recomputeReminders replaces every reminder of sub with the renewal
// reminders implied by its current end date.
func (s *service) recomputeReminders(ctx context.Context, tx Store, sub *Subscription, now time.Time) error {
	if err := tx.DeleteReminders(ctx, sub.UserID, sub.ID); err != nil {
		return fmt.Errorf("delete reminders: %w", err)
	}
	for _, r := range RenewalReminders(sub, now) {
		if err := tx.CreateReminder(ctx, &r); err != nil {
			return fmt.Errorf("create %s reminder: %w", r.Type, err)
		}
	}
	return nil
}
