package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/shopspring/decimal"
)

// PaddleConfig holds configuration for the Paddle gateway.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// paddleTransactions is the part of the Paddle SDK used for checkout.
type paddleTransactions interface {
	CreateTransaction(ctx context.Context, req *paddle.CreateTransactionRequest) (*paddle.Transaction, error)
}

// PaddleProvider implements Provider on Paddle Billing transactions.
// Plans must carry the Paddle price ID in ProviderPriceID.
type PaddleProvider struct {
	transactions paddleTransactions
	verifier     *paddle.WebhookVerifier
}

// NewPaddleProvider creates a Paddle gateway for the configured environment.
func NewPaddleProvider(cfg PaddleConfig) (*PaddleProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}

	var (
		client *paddle.SDK
		err    error
	)
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidProviderEnvironment, cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	return newPaddleProvider(client.TransactionsClient, cfg.WebhookSecret), nil
}

func newPaddleProvider(tx paddleTransactions, secret string) *PaddleProvider {
	return &PaddleProvider{
		transactions: tx,
		verifier:     paddle.NewWebhookVerifier(secret),
	}
}

func (p *PaddleProvider) Method() PaymentMethod { return MethodPaddle }

// CreateCheckout creates a Paddle transaction and returns its hosted checkout.
// The transaction ID doubles as the payment reference.
func (p *PaddleProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.Plan.ProviderPriceID == "" {
		return nil, Transient("create transaction", fmt.Errorf("plan %q has no paddle price", req.Plan.ID))
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.Plan.ProviderPriceID,
		Quantity: 1,
	})
	txReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			"user_id": req.UserID.String(),
			"plan_id": req.Plan.ID,
		},
	}
	if req.Email != "" {
		txReq.CustomData["email"] = req.Email
	}
	if req.SuccessURL != "" {
		txReq.Checkout = &paddle.TransactionCheckout{URL: paddle.PtrTo(req.SuccessURL)}
	}

	txn, err := p.transactions.CreateTransaction(ctx, txReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, Transient("gateway timeout", err)
		}
		return nil, Transient("create transaction", err)
	}
	if txn.Checkout == nil || txn.Checkout.URL == nil || *txn.Checkout.URL == "" {
		return nil, Transient("create transaction", ErrNoCheckoutURL)
	}

	return &CheckoutSession{
		URL:         *txn.Checkout.URL,
		ExternalRef: txn.ID,
		ExpiresAt:   time.Now().Add(24 * time.Hour),
	}, nil
}

// ParseWebhook verifies the Paddle-Signature header and normalises
// transaction.completed, transaction.payment_failed and
// transaction.canceled.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*WebhookEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request for verification: %w", err)
	}
	req.Header.Set("Paddle-Signature", header.Get("Paddle-Signature"))

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}
	if !valid {
		return nil, ErrInvalidSignature
	}

	var ev paddleEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, errors.Join(ErrMalformedEvent, err)
	}

	out := &WebhookEvent{
		ID:            ev.EventID,
		Kind:          EventIgnored,
		ProviderEvent: ev.EventType,
		OccurredAt:    ev.OccurredAt,
	}

	switch ev.EventType {
	case "transaction.completed":
		out.Kind = EventCheckoutCompleted
	case "transaction.payment_failed":
		out.Kind = EventPaymentFailed
		if n := len(ev.Data.Payments); n > 0 {
			out.FailureReason = ev.Data.Payments[n-1].ErrorCode
		}
	case "transaction.canceled":
		out.Kind = EventCheckoutExpired
	default:
		return out, nil
	}

	out.UserID = ev.Data.CustomData["user_id"]
	out.PlanID = ev.Data.CustomData["plan_id"]
	out.ExternalRef = ev.Data.ID
	out.TransactionID = ev.Data.ID
	out.SubscriptionRef = ev.Data.SubscriptionID
	out.Currency = ev.Data.CurrencyCode
	if total := ev.Data.Details.Totals.GrandTotal; total != "" {
		minor, err := decimal.NewFromString(total)
		if err != nil {
			return nil, fmt.Errorf("%w: grand_total %q: %w", ErrMalformedEvent, total, err)
		}
		out.Amount = minor.Shift(-2)
	}
	return out, nil
}

// paddleEvent is the subset of a Paddle notification used here.
type paddleEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       struct {
		ID             string            `json:"id"`
		Status         string            `json:"status"`
		SubscriptionID string            `json:"subscription_id"`
		CurrencyCode   string            `json:"currency_code"`
		CustomData     map[string]string `json:"custom_data"`
		Details        struct {
			Totals struct {
				GrandTotal string `json:"grand_total"`
			} `json:"totals"`
		} `json:"details"`
		Payments []struct {
			Status    string `json:"status"`
			ErrorCode string `json:"error_code"`
		} `json:"payments"`
	} `json:"data"`
}
