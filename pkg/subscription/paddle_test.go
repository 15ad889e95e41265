package subscription

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTransactions struct {
	mock.Mock
}

func (m *mockTransactions) CreateTransaction(ctx context.Context, req *paddle.CreateTransactionRequest) (*paddle.Transaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paddle.Transaction), args.Error(1)
}

func paddleSignature(secret string, body []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + ":"))
	mac.Write(body)
	return fmt.Sprintf("ts=%s;h1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestNewPaddleProvider_Config(t *testing.T) {
	t.Parallel()

	_, err := NewPaddleProvider(PaddleConfig{WebhookSecret: "s"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	_, err = NewPaddleProvider(PaddleConfig{APIKey: "k"})
	assert.ErrorIs(t, err, ErrMissingWebhookSecret)
	_, err = NewPaddleProvider(PaddleConfig{APIKey: "k", WebhookSecret: "s", Environment: "staging"})
	assert.ErrorIs(t, err, ErrInvalidProviderEnvironment)
}

func TestPaddleProvider_CreateCheckout(t *testing.T) {
	t.Parallel()

	plan := Plan{ID: "pro-monthly", Name: "Pro Monthly", ProviderPriceID: "pri_123"}
	userID := uuid.New()

	t.Run("returns hosted checkout", func(t *testing.T) {
		t.Parallel()
		tx := &mockTransactions{}
		p := newPaddleProvider(tx, "secret")

		tx.On("CreateTransaction", mock.Anything, mock.MatchedBy(func(req *paddle.CreateTransactionRequest) bool {
			return len(req.Items) == 1 &&
				req.CustomData["user_id"] == userID.String() &&
				req.CustomData["plan_id"] == "pro-monthly"
		})).Return(&paddle.Transaction{
			ID:       "txn_1",
			Checkout: &paddle.TransactionCheckout{URL: paddle.PtrTo("https://pay.paddle.io/txn_1")},
		}, nil)

		session, err := p.CreateCheckout(context.Background(), CheckoutRequest{UserID: userID, Plan: plan})
		require.NoError(t, err)
		assert.Equal(t, "txn_1", session.ExternalRef)
		assert.Equal(t, "https://pay.paddle.io/txn_1", session.URL)
		tx.AssertExpectations(t)
	})

	t.Run("plan without price", func(t *testing.T) {
		t.Parallel()
		p := newPaddleProvider(&mockTransactions{}, "secret")
		_, err := p.CreateCheckout(context.Background(), CheckoutRequest{UserID: userID, Plan: Plan{ID: "x"}})
		var gerr *GatewayError
		require.True(t, errors.As(err, &gerr))
		assert.Equal(t, GatewayTransient, gerr.Kind)
	})

	t.Run("sdk failure", func(t *testing.T) {
		t.Parallel()
		tx := &mockTransactions{}
		p := newPaddleProvider(tx, "secret")
		tx.On("CreateTransaction", mock.Anything, mock.Anything).Return(nil, errors.New("503"))
		_, err := p.CreateCheckout(context.Background(), CheckoutRequest{UserID: userID, Plan: plan})
		var gerr *GatewayError
		require.True(t, errors.As(err, &gerr))
		assert.Equal(t, GatewayTransient, gerr.Kind)
	})

	t.Run("no checkout url", func(t *testing.T) {
		t.Parallel()
		tx := &mockTransactions{}
		p := newPaddleProvider(tx, "secret")
		tx.On("CreateTransaction", mock.Anything, mock.Anything).Return(&paddle.Transaction{ID: "txn_2"}, nil)
		_, err := p.CreateCheckout(context.Background(), CheckoutRequest{UserID: userID, Plan: plan})
		assert.ErrorIs(t, err, ErrNoCheckoutURL)
	})
}

func TestPaddleProvider_ParseWebhook(t *testing.T) {
	t.Parallel()

	const secret = "pdl_ntfset_secret"
	p := newPaddleProvider(&mockTransactions{}, secret)
	userID := uuid.New()

	body := []byte(fmt.Sprintf(`{
		"event_id": "evt_01",
		"event_type": "transaction.completed",
		"occurred_at": "2025-03-01T12:00:00Z",
		"data": {
			"id": "txn_1",
			"status": "completed",
			"subscription_id": "sub_1",
			"currency_code": "USD",
			"custom_data": {"user_id": %q, "plan_id": "pro-monthly"},
			"details": {"totals": {"grand_total": "499"}}
		}
	}`, userID))

	t.Run("completed", func(t *testing.T) {
		t.Parallel()
		h := http.Header{}
		h.Set("Paddle-Signature", paddleSignature(secret, body, time.Now()))

		ev, err := p.ParseWebhook(context.Background(), body, h)
		require.NoError(t, err)
		assert.Equal(t, EventCheckoutCompleted, ev.Kind)
		assert.Equal(t, "txn_1", ev.ExternalRef)
		assert.Equal(t, "sub_1", ev.SubscriptionRef)
		assert.Equal(t, userID.String(), ev.UserID)
		assert.Equal(t, "4.99", ev.Amount.StringFixed(2))
	})

	t.Run("canceled", func(t *testing.T) {
		t.Parallel()
		canceled := []byte(fmt.Sprintf(`{
			"event_id": "evt_02",
			"event_type": "transaction.canceled",
			"occurred_at": "2025-03-02T12:00:00Z",
			"data": {
				"id": "txn_1",
				"status": "canceled",
				"currency_code": "USD",
				"custom_data": {"user_id": %q, "plan_id": "pro-monthly"}
			}
		}`, userID))
		h := http.Header{}
		h.Set("Paddle-Signature", paddleSignature(secret, canceled, time.Now()))

		ev, err := p.ParseWebhook(context.Background(), canceled, h)
		require.NoError(t, err)
		assert.Equal(t, EventCheckoutExpired, ev.Kind)
		assert.Equal(t, "txn_1", ev.ExternalRef)
	})

	t.Run("bad signature", func(t *testing.T) {
		t.Parallel()
		h := http.Header{}
		h.Set("Paddle-Signature", paddleSignature("wrong", body, time.Now()))
		_, err := p.ParseWebhook(context.Background(), body, h)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}
