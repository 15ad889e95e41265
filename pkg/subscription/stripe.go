package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeConfig holds configuration for the Stripe gateway.
type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY,required"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`
}

// StripeSessionFunc creates a Checkout Session.
type StripeSessionFunc func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

// StripeProvider implements Provider on Stripe Checkout in payment mode.
type StripeProvider struct {
	newSession    StripeSessionFunc
	webhookSecret string
}

// StripeOption configures a StripeProvider.
type StripeOption func(*StripeProvider)

// WithStripeSessionFunc replaces the Checkout Session API call.
func WithStripeSessionFunc(fn StripeSessionFunc) StripeOption {
	return func(p *StripeProvider) {
		if fn != nil {
			p.newSession = fn
		}
	}
}

func NewStripeProvider(cfg StripeConfig, opts ...StripeOption) (*StripeProvider, error) {
	if cfg.SecretKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}

	client := &stripesession.Client{B: stripe.GetBackend(stripe.APIBackend), Key: cfg.SecretKey}
	p := &StripeProvider{
		newSession:    client.New,
		webhookSecret: cfg.WebhookSecret,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *StripeProvider) Method() PaymentMethod { return MethodStripe }

// CreateCheckout opens a one-off payment Checkout Session. User and plan
// travel as metadata on both the session and its payment intent so either
// webhook can be reconciled.
func (p *StripeProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.UserID.String()),
		LineItems:         []*stripe.CheckoutSessionLineItemParams{stripeLineItem(req.Plan)},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				"user_id": req.UserID.String(),
				"plan_id": req.Plan.ID,
			},
		},
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.Metadata = map[string]string{
		"user_id": req.UserID.String(),
		"plan_id": req.Plan.ID,
	}
	params.Context = ctx

	session, err := p.newSession(params)
	if err != nil {
		return nil, stripeGatewayError(ctx, err)
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return nil, Transient("create checkout session", ErrNoCheckoutURL)
	}

	out := &CheckoutSession{URL: session.URL, ExternalRef: session.ID}
	if session.ExpiresAt > 0 {
		out.ExpiresAt = time.Unix(session.ExpiresAt, 0).UTC()
	}
	return out, nil
}

func stripeLineItem(plan Plan) *stripe.CheckoutSessionLineItemParams {
	if plan.ProviderPriceID != "" {
		return &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(plan.ProviderPriceID),
			Quantity: stripe.Int64(1),
		}
	}
	return &stripe.CheckoutSessionLineItemParams{
		Quantity: stripe.Int64(1),
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(strings.ToLower(plan.Currency)),
			UnitAmount: stripe.Int64(toMinorUnits(plan.Price)),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(plan.Name),
			},
		},
	}
}

// stripeGatewayError maps SDK failures onto GatewayError. Only card errors
// are declines; everything else leaves the outcome unknown.
func stripeGatewayError(ctx context.Context, err error) *GatewayError {
	var serr *stripe.Error
	if errors.As(err, &serr) && serr.Type == stripe.ErrorTypeCard {
		return Declined(serr.Msg, err)
	}
	if ctx.Err() != nil {
		return Transient("gateway timeout", err)
	}
	return Transient("create checkout session", err)
}

// ParseWebhook verifies the Stripe-Signature header and normalises
// checkout.session.completed, checkout.session.async_payment_succeeded,
// checkout.session.expired and payment_intent.payment_failed. Other event
// types are ignored.
func (p *StripeProvider) ParseWebhook(_ context.Context, payload []byte, header http.Header) (*WebhookEvent, error) {
	sig := header.Get("Stripe-Signature")
	if strings.TrimSpace(sig) == "" {
		return nil, errors.Join(ErrInvalidSignature, errors.New("missing Stripe-Signature header"))
	}
	if err := webhook.ValidatePayload(payload, sig, p.webhookSecret); err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, errors.Join(ErrMalformedEvent, err)
	}

	out := &WebhookEvent{
		ID:            event.ID,
		Kind:          EventIgnored,
		ProviderEvent: string(event.Type),
		OccurredAt:    time.Unix(event.Created, 0).UTC(),
	}
	if event.Data == nil {
		return nil, fmt.Errorf("%w: event %s has no data", ErrMalformedEvent, event.ID)
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var s stripeCheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("%w: decode checkout.session: %w", ErrMalformedEvent, err)
		}
		if s.PaymentStatus == "unpaid" {
			// async payment methods settle later via async_payment_succeeded
			return out, nil
		}
		out.Kind = EventCheckoutCompleted
		out.UserID = firstNonEmpty(s.Metadata["user_id"], s.ClientReferenceID)
		out.PlanID = s.Metadata["plan_id"]
		out.ExternalRef = s.ID
		out.TransactionID = s.PaymentIntent
		out.SubscriptionRef = s.Subscription
		out.Amount = fromMinorUnits(s.AmountTotal)
		out.Currency = strings.ToUpper(s.Currency)

	case "checkout.session.expired":
		var s stripeCheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("%w: decode checkout.session: %w", ErrMalformedEvent, err)
		}
		out.Kind = EventCheckoutExpired
		out.UserID = firstNonEmpty(s.Metadata["user_id"], s.ClientReferenceID)
		out.PlanID = s.Metadata["plan_id"]
		out.ExternalRef = s.ID

	case "payment_intent.payment_failed":
		var pi stripePaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("%w: decode payment_intent: %w", ErrMalformedEvent, err)
		}
		out.Kind = EventPaymentFailed
		out.UserID = pi.Metadata["user_id"]
		out.PlanID = pi.Metadata["plan_id"]
		out.ExternalRef = pi.ID
		out.TransactionID = pi.ID
		out.Amount = fromMinorUnits(pi.Amount)
		out.Currency = strings.ToUpper(pi.Currency)
		if pi.LastPaymentError != nil {
			out.FailureReason = firstNonEmpty(pi.LastPaymentError.Message, pi.LastPaymentError.Code)
		}
	}

	return out, nil
}

// stripeCheckoutSession is the subset of checkout.session used here.
type stripeCheckoutSession struct {
	ID                string            `json:"id"`
	ClientReferenceID string            `json:"client_reference_id"`
	PaymentIntent     string            `json:"payment_intent"`
	Subscription      string            `json:"subscription"`
	PaymentStatus     string            `json:"payment_status"`
	AmountTotal       int64             `json:"amount_total"`
	Currency          string            `json:"currency"`
	Metadata          map[string]string `json:"metadata"`
}

// stripePaymentIntent is the subset of payment_intent used here.
type stripePaymentIntent struct {
	ID               string            `json:"id"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
