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

// HandleWebhook verifies and applies a gateway event.
//
// It returns ErrInvalidSignature for unverifiable requests and a storage
// error when the event could not be applied, so the gateway redelivers.
// Malformed, unknown and duplicate events are logged and acknowledged.
func (s *service) HandleWebhook(ctx context.Context, payload []byte, header http.Header) error {
	if s.provider == nil {
		return ErrPaymentUnavailable
	}

	event, err := s.provider.ParseWebhook(ctx, payload, header)
	if errors.Is(err, ErrInvalidSignature) {
		s.log.WarnContext(ctx, "webhook rejected", logger.Error(err))
		return ErrInvalidSignature
	}
	if err != nil {
		s.log.WarnContext(ctx, "malformed webhook discarded", logger.Error(err))
		return nil
	}

	log := s.log.With(
		logger.Provider(string(s.provider.Method())),
		logger.EventType(event.ProviderEvent),
		logger.EventID(event.ID),
	)

	if event.Kind == EventIgnored {
		log.DebugContext(ctx, "webhook ignored")
		return nil
	}

	key := string(s.provider.Method()) + ":" + event.ID
	dedupe := s.deduper != nil && event.ID != ""
	if dedupe {
		seen, err := s.deduper.Seen(ctx, key)
		switch {
		case err != nil:
			log.WarnContext(ctx, "webhook dedupe unavailable", logger.Error(err))
		case seen:
			log.InfoContext(ctx, "webhook redelivery skipped")
			return nil
		}
	}

	var duplicate bool
	switch event.Kind {
	case EventCheckoutCompleted:
		duplicate, err = s.checkoutCompleted(ctx, event)
	case EventPaymentFailed:
		duplicate, err = s.paymentFailed(ctx, event)
	case EventCheckoutExpired:
		duplicate, err = s.checkoutExpired(ctx, event)
	default:
		err = fmt.Errorf("%w: unknown event kind %q", ErrMalformedEvent, event.Kind)
	}

	switch {
	case errors.Is(err, ErrMalformedEvent):
		log.WarnContext(ctx, "malformed webhook discarded", logger.Error(err))
		return nil
	case err != nil:
		log.ErrorContext(ctx, "webhook processing failed", logger.Error(err))
		return err
	}

	// Remembered only once the event is committed, so a crash mid-way
	// leaves redeliveries free to apply it.
	if dedupe {
		if err := s.deduper.Remember(context.WithoutCancel(ctx), key); err != nil {
			log.WarnContext(ctx, "failed to remember webhook", logger.Error(err))
		}
	}

	if duplicate {
		log.InfoContext(ctx, "payment already settled, event ignored", logger.ExternalRef(event.ExternalRef))
		return nil
	}

	log.InfoContext(ctx, "webhook applied",
		logger.UserID(event.UserID),
		logger.ExternalRef(event.ExternalRef),
		slog.String("kind", string(event.Kind)),
	)
	return nil
}

// checkoutCompleted upgrades the user onto the purchased plan and records
// the completed payment. Only a completed payment for the reference makes
// the event a duplicate.
func (s *service) checkoutCompleted(ctx context.Context, ev *WebhookEvent) (bool, error) {
	userID, err := ev.user()
	if err != nil {
		return false, err
	}
	if ev.ExternalRef == "" {
		return false, fmt.Errorf("%w: missing payment reference", ErrMalformedEvent)
	}
	plan, err := s.catalog.Get(ev.PlanID)
	if err != nil {
		return false, errors.Join(ErrMalformedEvent, err)
	}

	duplicate := false
	err = s.store.InTx(ctx, func(ctx context.Context, tx Store) error {
		now := s.now()

		sub, err := tx.GetSubscription(ctx, userID)
		isNew := false
		switch {
		case errors.Is(err, ErrSubscriptionNotFound):
			sub = &Subscription{ID: uuid.New(), UserID: userID, CreatedAt: now}
			isNew = true
		case err != nil:
			return err
		}

		pending, ref, err := completionTarget(ctx, tx, ev.ExternalRef)
		if errors.Is(err, ErrDuplicatePayment) {
			duplicate = true
			return nil
		}
		if err != nil {
			return err
		}

		sub.switchPlan(plan, now)
		sub.AutoRenew = true
		if ev.SubscriptionRef != "" {
			sub.ExternalRef = ev.SubscriptionRef
		}
		if err := s.save(ctx, tx, sub, isNew); err != nil {
			return err
		}

		p := s.settledPayment(pending, ref, ev, plan, sub, now)
		p.Status = PaymentCompleted
		p.PaidAt = now
		if pending != nil {
			return tx.UpdatePayment(ctx, p)
		}
		return tx.CreatePayment(ctx, p)
	})
	if errors.Is(err, ErrDuplicatePayment) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("apply checkout completion: %w", err)
	}
	return duplicate, nil
}

// paymentFailed appends a failed payment and queues an immediate
// failed_payment reminder. Failures are keyed apart from the payment
// reference, so a pending checkout stays open for a later successful
// attempt. The subscription is left untouched.
func (s *service) paymentFailed(ctx context.Context, ev *WebhookEvent) (bool, error) {
	userID, err := ev.user()
	if err != nil {
		return false, err
	}
	if ev.ExternalRef == "" {
		return false, fmt.Errorf("%w: missing payment reference", ErrMalformedEvent)
	}

	err = s.store.InTx(ctx, func(ctx context.Context, tx Store) error {
		now := s.now()

		sub, err := tx.GetSubscription(ctx, userID)
		if err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
			return err
		}

		plan, _ := s.catalog.Get(ev.PlanID)
		p := s.settledPayment(nil, failureRef(ev), ev, plan, sub, now)
		p.Status = PaymentFailed
		p.FailureReason = ev.FailureReason
		if p.FailureReason == "" {
			p.FailureReason = "payment failed"
		}
		if err := tx.CreatePayment(ctx, p); err != nil {
			return err
		}

		if sub == nil {
			return nil
		}
		r := newReminder(sub, ReminderFailedPayment, now)
		return tx.UpsertReminder(ctx, &r)
	})
	if errors.Is(err, ErrDuplicatePayment) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("apply payment failure: %w", err)
	}
	return false, nil
}

// checkoutExpired cancels the pending payment of an abandoned checkout.
// Without a pending payment there is nothing to settle.
func (s *service) checkoutExpired(ctx context.Context, ev *WebhookEvent) (bool, error) {
	if ev.ExternalRef == "" {
		return false, fmt.Errorf("%w: missing payment reference", ErrMalformedEvent)
	}

	settled := true
	err := s.store.InTx(ctx, func(ctx context.Context, tx Store) error {
		p, err := tx.GetPaymentByExternalRef(ctx, ev.ExternalRef)
		switch {
		case errors.Is(err, ErrPaymentNotFound):
			return nil
		case err != nil:
			return err
		case !p.canSettle():
			return nil
		}

		p.Status = PaymentCancelled
		p.FailureReason = "checkout expired"
		p.UpdatedAt = s.now()
		settled = false
		return tx.UpdatePayment(ctx, p)
	})
	if err != nil {
		return false, fmt.Errorf("apply checkout expiry: %w", err)
	}
	return settled, nil
}

// completionTarget picks the payment a completion settles. A pending
// payment is settled in place. A failed or cancelled one stays as it is and
// the completion is appended under a derived reference.
func completionTarget(ctx context.Context, tx Store, ref string) (*Payment, string, error) {
	p, err := tx.GetPaymentByExternalRef(ctx, ref)
	switch {
	case errors.Is(err, ErrPaymentNotFound):
		return nil, ref, nil
	case err != nil:
		return nil, "", err
	case p.Status == PaymentCompleted:
		return nil, "", ErrDuplicatePayment
	case p.canSettle():
		return p, ref, nil
	}

	retry := ref + ":completed"
	_, err = tx.GetPaymentByExternalRef(ctx, retry)
	switch {
	case errors.Is(err, ErrPaymentNotFound):
		return nil, retry, nil
	case err != nil:
		return nil, "", err
	}
	return nil, "", ErrDuplicatePayment
}

// failureRef keys a failed attempt by its event, so repeated failures on
// one payment reference are kept apart and redeliveries collapse.
func failureRef(ev *WebhookEvent) string {
	if ev.ID == "" {
		return ev.ExternalRef + ":failed"
	}
	return ev.ExternalRef + ":failed:" + ev.ID
}

// settledPayment returns the payment record to settle: the pending one when
// checkout recorded it, a fresh record under ref otherwise.
func (s *service) settledPayment(pending *Payment, ref string, ev *WebhookEvent, plan Plan, sub *Subscription, now time.Time) *Payment {
	p := pending
	if p == nil {
		p = &Payment{
			ID:          uuid.New(),
			PlanID:      ev.PlanID,
			Amount:      plan.Price,
			Currency:    plan.Currency,
			Method:      s.provider.Method(),
			ExternalRef: ref,
			CreatedAt:   now,
		}
		if uid, err := uuid.Parse(ev.UserID); err == nil {
			p.UserID = uid
		}
	}
	if !ev.Amount.IsZero() {
		p.Amount = ev.Amount
	}
	if ev.Currency != "" {
		p.Currency = ev.Currency
	}
	if p.Currency == "" {
		p.Currency = DefaultCurrency
	}
	if sub != nil {
		p.SubscriptionID = sub.ID
	}
	if ev.TransactionID != "" {
		p.TransactionID = ev.TransactionID
	}
	p.UpdatedAt = now
	return p
}
