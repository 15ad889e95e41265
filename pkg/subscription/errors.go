package subscription

import "errors"

var (
	ErrPlanNotFound             = errors.New("subscription plan not found")
	ErrPlanNotPurchasable       = errors.New("subscription plan cannot be purchased")
	ErrInvalidPlanConfiguration = errors.New("invalid subscription plan configuration")
	ErrFailedToLoadPlans        = errors.New("failed to load subscription plans")

	// ErrConfiguration marks faults that need an operator, such as a catalog
	// without a free plan. They abort the current sweep cycle.
	ErrConfiguration   = errors.New("subscription configuration error")
	ErrFreePlanMissing = errors.New("free plan not found in catalog")

	ErrLimitExceeded   = errors.New("subscription limit exceeded")
	ErrInvalidResource = errors.New("invalid subscription resource")

	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrSubscriptionAlreadyExists = errors.New("subscription already exists")
	ErrUsageNotFound             = errors.New("usage counter not found")
	ErrPaymentNotFound           = errors.New("payment not found")
	ErrDuplicatePayment          = errors.New("payment with this external reference already exists")
	ErrReminderExists            = errors.New("reminder already exists")
	ErrReminderNotFound          = errors.New("reminder not found")

	// ErrPaymentUnavailable is what users see when the gateway cannot be
	// reached, times out, or is not configured.
	ErrPaymentUnavailable = errors.New("payment processing is unavailable, please try again later")
	ErrPaymentDeclined    = errors.New("payment was declined")

	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrMalformedEvent   = errors.New("malformed webhook event")

	ErrMissingAPIKey              = errors.New("billing provider API key is required")
	ErrMissingWebhookSecret       = errors.New("billing provider webhook secret is required")
	ErrInvalidProviderEnvironment = errors.New("invalid billing provider environment")
	ErrNoCheckoutURL              = errors.New("no checkout URL returned from provider")
)
