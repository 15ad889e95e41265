package subscription_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/diary/pkg/logger"
	"github.com/dmitrymomot/diary/pkg/subscription"
)

var t0 = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *testClock { return &testClock{now: t0} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

type fixture struct {
	svc   subscription.Service
	store *subscription.MemoryStore
	clock *testClock
}

func newFixture(t *testing.T, opts ...subscription.ServiceOption) *fixture {
	t.Helper()
	return newFixtureWithCatalog(t, subscription.MustCatalog(subscription.DefaultPlans()...), opts...)
}

func newFixtureWithCatalog(t *testing.T, catalog *subscription.Catalog, opts ...subscription.ServiceOption) *fixture {
	t.Helper()
	f := &fixture{store: subscription.NewMemoryStore(), clock: newClock()}
	opts = append([]subscription.ServiceOption{
		subscription.WithClock(f.clock.Now),
		subscription.WithLogger(logger.Discard()),
	}, opts...)
	f.svc = subscription.NewService(f.store, catalog, opts...)
	return f
}

func (f *fixture) provision(t *testing.T) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	_, err := f.svc.ProvisionUser(context.Background(), userID)
	require.NoError(t, err)
	return userID
}

func reminderTypes(rs []subscription.Reminder) []subscription.ReminderType {
	out := make([]subscription.ReminderType, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Type)
	}
	return out
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Method() subscription.PaymentMethod {
	return subscription.MethodStripe
}

func (m *mockProvider) CreateCheckout(ctx context.Context, req subscription.CheckoutRequest) (*subscription.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.CheckoutSession), args.Error(1)
}

func (m *mockProvider) ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*subscription.WebhookEvent, error) {
	args := m.Called(ctx, payload, header)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.WebhookEvent), args.Error(1)
}
