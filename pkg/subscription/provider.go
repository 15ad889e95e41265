package subscription

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Provider is the payment gateway edge. Implementations translate the
// gateway's vocabulary into the types below and never leak SDK errors:
// checkout failures come back as *GatewayError, webhook failures as
// ErrInvalidSignature or ErrMalformedEvent.
type Provider interface {
	Method() PaymentMethod
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*WebhookEvent, error)
}

// CheckoutRequest contains data needed to start a hosted checkout.
type CheckoutRequest struct {
	UserID     uuid.UUID
	Email      string
	Plan       Plan
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is a hosted checkout the user is redirected to.
type CheckoutSession struct {
	URL         string
	ExternalRef string // matches WebhookEvent.ExternalRef of the completion event
	ExpiresAt   time.Time
}

// EventKind is the normalized webhook event kind.
type EventKind string

const (
	EventCheckoutCompleted EventKind = "checkout_completed"
	EventPaymentFailed     EventKind = "payment_failed"
	EventCheckoutExpired   EventKind = "checkout_expired"
	EventIgnored           EventKind = "ignored"
)

// WebhookEvent is a verified gateway event.
type WebhookEvent struct {
	ID              string // gateway event ID, used for dedupe
	Kind            EventKind
	ProviderEvent   string // original gateway event type
	UserID          string
	PlanID          string
	ExternalRef     string // payment reference, unique per payment
	TransactionID   string // gateway charge or transaction identifier, if distinct
	SubscriptionRef string // gateway subscription reference, if any
	Amount          decimal.Decimal
	Currency        string
	FailureReason   string
	OccurredAt      time.Time
}

// user parses the user reference carried in gateway metadata.
func (e *WebhookEvent) user() (uuid.UUID, error) {
	id, err := uuid.Parse(e.UserID)
	if err != nil {
		return uuid.Nil, errors.Join(ErrMalformedEvent, fmt.Errorf("user_id %q: %w", e.UserID, err))
	}
	return id, nil
}

// GatewayErrorKind classifies a failed gateway call.
type GatewayErrorKind int

const (
	// GatewayTransient means the outcome is unknown or the gateway is
	// unreachable. The webhook stays the source of truth.
	GatewayTransient GatewayErrorKind = iota
	// GatewayDeclined means the gateway refused the request.
	GatewayDeclined
)

func (k GatewayErrorKind) String() string {
	if k == GatewayDeclined {
		return "declined"
	}
	return "transient"
}

// GatewayError is the tagged failure returned by providers.
type GatewayError struct {
	Kind   GatewayErrorKind
	Reason string
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("gateway %s: %s", e.Kind, e.Reason)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Declined returns a GatewayError of kind GatewayDeclined.
func Declined(reason string, err error) *GatewayError {
	return &GatewayError{Kind: GatewayDeclined, Reason: reason, Err: err}
}

// Transient returns a GatewayError of kind GatewayTransient.
func Transient(reason string, err error) *GatewayError {
	return &GatewayError{Kind: GatewayTransient, Reason: reason, Err: err}
}

// toMinorUnits converts a decimal amount to the smallest currency unit.
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// fromMinorUnits converts the smallest currency unit to a decimal amount.
func fromMinorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}
