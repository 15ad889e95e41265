package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/diary/pkg/webhook"
)

// SignedConfig configures the shared-secret gateway used for bank transfer
// or self-hosted payment pages that post HMAC-signed events back.
type SignedConfig struct {
	Secret      string        `env:"BILLING_WEBHOOK_SECRET,required"`
	CheckoutURL string        `env:"BILLING_CHECKOUT_URL,required"`
	MaxAge      time.Duration `env:"BILLING_WEBHOOK_MAX_AGE" envDefault:"5m"`
	Method      PaymentMethod `env:"BILLING_PAYMENT_METHOD" envDefault:"bank_transfer"`
}

// SignedProvider implements Provider with pkg/webhook signatures. Events
// use the Stripe event names for the two kinds the service understands.
type SignedProvider struct {
	cfg      SignedConfig
	checkout *url.URL
	now      func() time.Time
}

func NewSignedProvider(cfg SignedConfig) (*SignedProvider, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingWebhookSecret
	}
	u, err := url.Parse(cfg.CheckoutURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid checkout url %q", ErrConfiguration, cfg.CheckoutURL)
	}
	if cfg.Method == "" {
		cfg.Method = MethodBank
	}
	return &SignedProvider{cfg: cfg, checkout: u, now: time.Now}, nil
}

func (p *SignedProvider) Method() PaymentMethod { return p.cfg.Method }

// CreateCheckout builds a link to the external payment page. The generated
// reference must come back as data.reference in the completion event.
func (p *SignedProvider) CreateCheckout(_ context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	ref := "chk_" + uuid.NewString()

	u := *p.checkout
	q := u.Query()
	q.Set("reference", ref)
	q.Set("user_id", req.UserID.String())
	q.Set("plan_id", req.Plan.ID)
	q.Set("amount", req.Plan.Price.StringFixed(2))
	q.Set("currency", req.Plan.Currency)
	if req.Email != "" {
		q.Set("email", req.Email)
	}
	if req.SuccessURL != "" {
		q.Set("success_url", req.SuccessURL)
	}
	if req.CancelURL != "" {
		q.Set("cancel_url", req.CancelURL)
	}
	u.RawQuery = q.Encode()

	return &CheckoutSession{
		URL:         u.String(),
		ExternalRef: ref,
		ExpiresAt:   p.now().Add(24 * time.Hour),
	}, nil
}

// SignedEvent is the wire format accepted by SignedProvider.
type SignedEvent struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	CreatedAt time.Time       `json:"created_at"`
	Data      SignedEventData `json:"data"`
}

type SignedEventData struct {
	Reference       string          `json:"reference"`
	UserID          string          `json:"user_id"`
	PlanID          string          `json:"plan_id"`
	SubscriptionRef string          `json:"subscription_ref,omitempty"`
	TransactionID   string          `json:"transaction_id,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Reason          string          `json:"reason,omitempty"`
}

const (
	SignedCheckoutCompleted = "checkout.session.completed"
	SignedPaymentFailed     = "payment_intent.payment_failed"
	SignedCheckoutExpired   = "checkout.session.expired"
)

func (p *SignedProvider) ParseWebhook(_ context.Context, payload []byte, header http.Header) (*WebhookEvent, error) {
	sig, err := webhook.FromHeader(header)
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}
	if err := webhook.Verify(p.cfg.Secret, payload, sig, p.cfg.MaxAge, p.now()); err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}

	var ev SignedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, errors.Join(ErrMalformedEvent, err)
	}

	out := &WebhookEvent{
		ID:              ev.ID,
		Kind:            EventIgnored,
		ProviderEvent:   ev.Type,
		UserID:          ev.Data.UserID,
		PlanID:          ev.Data.PlanID,
		ExternalRef:     ev.Data.Reference,
		SubscriptionRef: ev.Data.SubscriptionRef,
		TransactionID:   ev.Data.TransactionID,
		Amount:          ev.Data.Amount,
		Currency:        ev.Data.Currency,
		FailureReason:   ev.Data.Reason,
		OccurredAt:      ev.CreatedAt,
	}
	if out.ID == "" {
		out.ID = sig.ID
	}

	switch ev.Type {
	case SignedCheckoutCompleted:
		out.Kind = EventCheckoutCompleted
	case SignedPaymentFailed:
		out.Kind = EventPaymentFailed
	case SignedCheckoutExpired:
		out.Kind = EventCheckoutExpired
	}
	return out, nil
}

// SignEvent marshals ev and returns the payload with its signature headers.
// It is the sending side of SignedProvider, used by payment pages and tests.
func SignEvent(secret string, ev SignedEvent, at time.Time) ([]byte, http.Header, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, nil, err
	}
	sig, err := webhook.Sign(secret, payload, at)
	if err != nil {
		return nil, nil, err
	}
	h := http.Header{}
	sig.Apply(h)
	return payload, h, nil
}
