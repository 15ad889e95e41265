package subscription

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dmitrymomot/diary/pkg/logger"
)

// CreateCheckout starts a hosted checkout for planID. The gateway call is
// bounded by the gateway timeout; any failure other than an explicit decline
// is reported as ErrPaymentUnavailable and the completion webhook remains
// the source of truth.
func (s *service) CreateCheckout(ctx context.Context, userID uuid.UUID, planID string, opts CheckoutOptions) (*CheckoutSession, error) {
	plan, err := s.catalog.Get(planID)
	if err != nil {
		return nil, err
	}
	if !plan.Active || plan.IsFree() {
		return nil, ErrPlanNotPurchasable
	}
	if s.provider == nil {
		return nil, ErrPaymentUnavailable
	}

	cctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	session, err := s.provider.CreateCheckout(cctx, CheckoutRequest{
		UserID:     userID,
		Email:      opts.Email,
		Plan:       plan,
		SuccessURL: opts.SuccessURL,
		CancelURL:  opts.CancelURL,
	})
	if err != nil {
		var gerr *GatewayError
		if errors.As(err, &gerr) && gerr.Kind == GatewayDeclined {
			s.log.InfoContext(ctx, "checkout declined",
				logger.UserID(userID),
				logger.PlanID(plan.ID),
				logger.Error(err),
			)
			return nil, ErrPaymentDeclined
		}
		s.log.WarnContext(ctx, "checkout unavailable",
			logger.UserID(userID),
			logger.PlanID(plan.ID),
			logger.Provider(string(s.provider.Method())),
			logger.Error(err),
		)
		return nil, ErrPaymentUnavailable
	}

	s.recordPending(ctx, userID, plan, session)
	return session, nil
}

// recordPending writes the pending payment that the completion webhook
// settles. Failures are logged only: the webhook inserts the payment itself
// when no pending record exists.
func (s *service) recordPending(ctx context.Context, userID uuid.UUID, plan Plan, session *CheckoutSession) {
	if session.ExternalRef == "" {
		return
	}

	now := s.now()
	p := &Payment{
		ID:          uuid.New(),
		UserID:      userID,
		PlanID:      plan.ID,
		Amount:      plan.Price,
		Currency:    plan.Currency,
		Status:      PaymentPending,
		Method:      s.provider.Method(),
		ExternalRef: session.ExternalRef,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if sub, err := s.store.GetSubscription(ctx, userID); err == nil {
		p.SubscriptionID = sub.ID
	}

	if err := s.store.CreatePayment(ctx, p); err != nil && !errors.Is(err, ErrDuplicatePayment) {
		s.log.WarnContext(ctx, "failed to record pending payment",
			logger.UserID(userID),
			logger.ExternalRef(session.ExternalRef),
			logger.Error(err),
		)
	}
}
