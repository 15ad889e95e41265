package subscription_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/diary/pkg/subscription"
)

func newSigned(t *testing.T) *subscription.SignedProvider {
	t.Helper()
	p, err := subscription.NewSignedProvider(subscription.SignedConfig{
		Secret:      "shared-secret",
		CheckoutURL: "https://pay.example.com/checkout",
		MaxAge:      5 * time.Minute,
	})
	require.NoError(t, err)
	return p
}

func TestNewSignedProvider_Config(t *testing.T) {
	t.Parallel()

	_, err := subscription.NewSignedProvider(subscription.SignedConfig{CheckoutURL: "https://x.example.com"})
	assert.ErrorIs(t, err, subscription.ErrMissingWebhookSecret)

	_, err = subscription.NewSignedProvider(subscription.SignedConfig{Secret: "s", CheckoutURL: "not a url"})
	assert.ErrorIs(t, err, subscription.ErrConfiguration)
}

func TestSignedProvider_CreateCheckout(t *testing.T) {
	t.Parallel()

	p := newSigned(t)
	plan, err := subscription.MustCatalog(subscription.DefaultPlans()...).Get("pro-yearly")
	require.NoError(t, err)
	userID := uuid.New()

	session, err := p.CreateCheckout(context.Background(), subscription.CheckoutRequest{
		UserID:     userID,
		Plan:       plan,
		SuccessURL: "https://diary.example.com/ok",
	})
	require.NoError(t, err)
	assert.Equal(t, subscription.MethodBank, p.Method())

	u, err := url.Parse(session.URL)
	require.NoError(t, err)
	assert.Equal(t, "pay.example.com", u.Host)
	q := u.Query()
	assert.Equal(t, session.ExternalRef, q.Get("reference"))
	assert.Equal(t, userID.String(), q.Get("user_id"))
	assert.Equal(t, "pro-yearly", q.Get("plan_id"))
	assert.Equal(t, "49.99", q.Get("amount"))
	assert.Equal(t, "https://diary.example.com/ok", q.Get("success_url"))
}

func TestSignedProvider_ParseWebhook(t *testing.T) {
	t.Parallel()

	p := newSigned(t)
	ctx := context.Background()
	userID := uuid.New()

	ev := subscription.SignedEvent{
		ID:        "evt_1",
		Type:      subscription.SignedCheckoutCompleted,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Data: subscription.SignedEventData{
			Reference: "chk_1",
			UserID:    userID.String(),
			PlanID:    "pro-yearly",
			Amount:    decimal.RequireFromString("49.99"),
			Currency:  "USD",
		},
	}

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		payload, h, err := subscription.SignEvent("shared-secret", ev, time.Now())
		require.NoError(t, err)

		got, err := p.ParseWebhook(ctx, payload, h)
		require.NoError(t, err)
		assert.Equal(t, subscription.EventCheckoutCompleted, got.Kind)
		assert.Equal(t, "chk_1", got.ExternalRef)
		assert.Equal(t, userID.String(), got.UserID)
		assert.True(t, got.Amount.Equal(decimal.RequireFromString("49.99")))
	})

	t.Run("payment failed", func(t *testing.T) {
		t.Parallel()
		failed := ev
		failed.Type = subscription.SignedPaymentFailed
		failed.Data.Reason = "insufficient funds"
		payload, h, err := subscription.SignEvent("shared-secret", failed, time.Now())
		require.NoError(t, err)

		got, err := p.ParseWebhook(ctx, payload, h)
		require.NoError(t, err)
		assert.Equal(t, subscription.EventPaymentFailed, got.Kind)
		assert.Equal(t, "insufficient funds", got.FailureReason)
	})

	t.Run("checkout expired", func(t *testing.T) {
		t.Parallel()
		expired := ev
		expired.Type = subscription.SignedCheckoutExpired
		payload, h, err := subscription.SignEvent("shared-secret", expired, time.Now())
		require.NoError(t, err)

		got, err := p.ParseWebhook(ctx, payload, h)
		require.NoError(t, err)
		assert.Equal(t, subscription.EventCheckoutExpired, got.Kind)
		assert.Equal(t, "chk_1", got.ExternalRef)
	})

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()
		payload, h, err := subscription.SignEvent("other-secret", ev, time.Now())
		require.NoError(t, err)
		_, err = p.ParseWebhook(ctx, payload, h)
		assert.ErrorIs(t, err, subscription.ErrInvalidSignature)
	})

	t.Run("stale signature", func(t *testing.T) {
		t.Parallel()
		payload, h, err := subscription.SignEvent("shared-secret", ev, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		_, err = p.ParseWebhook(ctx, payload, h)
		assert.ErrorIs(t, err, subscription.ErrInvalidSignature)
	})

	t.Run("unknown type", func(t *testing.T) {
		t.Parallel()
		other := ev
		other.Type = "refund.created"
		payload, h, err := subscription.SignEvent("shared-secret", other, time.Now())
		require.NoError(t, err)
		got, err := p.ParseWebhook(ctx, payload, h)
		require.NoError(t, err)
		assert.Equal(t, subscription.EventIgnored, got.Kind)
	})
}
